package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the slice of the order service's record the ledger needs: who
// owns the order and the authoritative total the payment must match.
type Order struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderService is the consumed collaborator interface for order lookup and
// downstream payment-status propagation.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID, status, method string) error
}

// HTTPOrderService talks to the remote order service with a bounded timeout
// per request.
type HTTPOrderService struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPOrderService(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPOrderService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOrderService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *HTTPOrderService) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	url := fmt.Sprintf("%s/internal/orders/%s", s.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &payload.Data, nil
}

func (s *HTTPOrderService) UpdatePaymentStatus(ctx context.Context, orderID, status, method string) error {
	payload, err := json.Marshal(map[string]string{
		"payment_status": status,
		"payment_method": method,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status update: %w", err)
	}

	url := fmt.Sprintf("%s/internal/orders/%s/payment-status", s.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create status update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("order service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	s.logger.Debug("order payment status propagated",
		"order_id", orderID,
		"payment_status", status)

	return nil
}
