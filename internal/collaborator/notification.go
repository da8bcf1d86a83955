package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Notification struct {
	Type      string `json:"type"`
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason,omitempty"`
}

// NotificationService is the consumed collaborator interface for customer
// and restaurant notifications.
type NotificationService interface {
	Notify(ctx context.Context, userID string, n Notification) error
}

type HTTPNotificationService struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPNotificationService(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPNotificationService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotificationService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *HTTPNotificationService) Notify(ctx context.Context, userID string, n Notification) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id":      userID,
		"notification": n,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("%s/internal/notifications", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	s.logger.Debug("notification dispatched",
		"user_id", userID,
		"type", n.Type,
		"payment_id", n.PaymentID)

	return nil
}
