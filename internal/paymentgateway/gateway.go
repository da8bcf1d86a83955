package paymentgateway

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Scenario tags the outcome of a gateway charge attempt.
type Scenario string

const (
	ScenarioApproved          Scenario = "approved"
	ScenarioInsufficientFunds Scenario = "insufficient_funds"
	ScenarioInvalidCard       Scenario = "invalid_card"
	ScenarioExpiredCard       Scenario = "expired_card"
	ScenarioNetworkError      Scenario = "network_error"
	ScenarioFraudDetected     Scenario = "fraud_detected"
)

// FailureReason returns the customer-facing text for a declined scenario.
func (s Scenario) FailureReason() string {
	switch s {
	case ScenarioInsufficientFunds:
		return "Insufficient funds"
	case ScenarioInvalidCard:
		return "Invalid card number"
	case ScenarioExpiredCard:
		return "Card has expired"
	case ScenarioNetworkError:
		return "Network error while contacting card issuer"
	case ScenarioFraudDetected:
		return "Transaction flagged as potentially fraudulent"
	default:
		return ""
	}
}

func (s Scenario) Approved() bool {
	return s == ScenarioApproved
}

type BillingAddress struct {
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

type CardDetails struct {
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"-"`
	HolderName  string `json:"holder_name"`
}

type ChargeRequest struct {
	OrderID    string
	Amount     decimal.Decimal
	Currency   string
	MethodType string
	Card       *CardDetails
	Token      string
	Billing    *BillingAddress
}

// Outcome is the structured result of a charge attempt. RawResponse is an
// audit blob and must never reach non-privileged callers.
type Outcome struct {
	Scenario      Scenario
	TransactionID string
	Reference     string
	FailureReason string
	RawResponse   json.RawMessage
}

func (o *Outcome) Approved() bool {
	return o.Scenario.Approved()
}

type RefundRequest struct {
	TransactionID string
	Amount        decimal.Decimal
}

type RefundOutcome struct {
	Success     bool
	RefundID    string
	RawResponse json.RawMessage
}

// Gateway is the contract the ledger holds with a payment gateway, real or
// simulated. Charge and Refund block for the gateway's processing time and
// honor context cancellation.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Outcome, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundOutcome, error)
	Tokenize(ctx context.Context, card CardDetails) (string, error)
}
