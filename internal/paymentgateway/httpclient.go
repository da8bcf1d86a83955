package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPGateway implements Gateway against a real payment gateway's HTTP API.
// Deployments point it at the gateway via config; developments run the
// Simulator instead.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chargePayload struct {
	OrderID    string          `json:"order_id"`
	Amount     string          `json:"amount"`
	Currency   string          `json:"currency"`
	MethodType string          `json:"payment_method_type"`
	Token      string          `json:"token,omitempty"`
	Card       *CardDetails    `json:"card,omitempty"`
	Billing    *BillingAddress `json:"billing_address,omitempty"`
}

type chargeReply struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	FailureCode   string `json:"failure_code"`
	FailureReason string `json:"failure_reason"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*Outcome, error) {
	payload := chargePayload{
		OrderID:    req.OrderID,
		Amount:     req.Amount.StringFixed(2),
		Currency:   req.Currency,
		MethodType: req.MethodType,
		Token:      req.Token,
		Card:       req.Card,
		Billing:    req.Billing,
	}

	var reply chargeReply
	raw, err := g.post(ctx, "/v1/charges", payload, &reply)
	if err != nil {
		return nil, err
	}

	scenario := ScenarioApproved
	if reply.Status != "approved" {
		scenario = failureScenario(reply.FailureCode)
	}

	g.logger.Info("gateway charge decided",
		"order_id", req.OrderID,
		"status", reply.Status,
		"transaction_id", reply.TransactionID)

	return &Outcome{
		Scenario:      scenario,
		TransactionID: reply.TransactionID,
		Reference:     reply.Reference,
		FailureReason: reply.FailureReason,
		RawResponse:   raw,
	}, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) (*RefundOutcome, error) {
	payload := map[string]string{
		"transaction_id": req.TransactionID,
		"amount":         req.Amount.StringFixed(2),
	}

	var reply struct {
		Status   string `json:"status"`
		RefundID string `json:"refund_id"`
	}
	raw, err := g.post(ctx, "/v1/refunds", payload, &reply)
	if err != nil {
		return nil, err
	}

	return &RefundOutcome{
		Success:     reply.Status == "approved",
		RefundID:    reply.RefundID,
		RawResponse: raw,
	}, nil
}

func (g *HTTPGateway) Tokenize(ctx context.Context, card CardDetails) (string, error) {
	var reply struct {
		Token string `json:"token"`
	}
	if _, err := g.post(ctx, "/v1/tokens", card, &reply); err != nil {
		return "", err
	}
	if reply.Token == "" {
		return "", fmt.Errorf("gateway returned an empty token")
	}
	return reply.Token, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload, reply interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, reply); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return raw, nil
}

func failureScenario(code string) Scenario {
	switch code {
	case "insufficient_funds":
		return ScenarioInsufficientFunds
	case "invalid_card":
		return ScenarioInvalidCard
	case "expired_card":
		return ScenarioExpiredCard
	case "fraud_detected":
		return ScenarioFraudDetected
	default:
		return ScenarioNetworkError
	}
}

var _ Gateway = (*HTTPGateway)(nil)
