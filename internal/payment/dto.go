package payment

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/core/common/validation"
	pay "github.com/frahmantamala/payment-processing/internal/core/datamodel/payment"
)

type CardDTO struct {
	Number     string `json:"number"`
	Expiry     string `json:"expiry"` // MM/YY
	CVV        string `json:"cvv"`
	HolderName string `json:"holder_name"`
}

type BillingDTO struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

// SubmitPaymentRequest is the payload for POST /payments. The instrument is
// either a stored method id or inline card details.
type SubmitPaymentRequest struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"-"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	MethodType      string          `json:"payment_method_type"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	Card            *CardDTO        `json:"card,omitempty"`
	Billing         *BillingDTO     `json:"billing_address,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

func (r *SubmitPaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", r.OrderID).Required()
	validator.Field("amount", r.Amount).Required().PositiveDecimal(errors.ErrCodeInvalidAmount)
	validator.Field("payment_method_type", r.MethodType).Required()

	if r.PaymentMethodID == "" && r.Card != nil {
		validator.Field("card.number", r.Card.Number).Required().Digits(13, 19, errors.ErrCodeInvalidCard)
		validator.Field("card.expiry", r.Card.Expiry).Required().Expiry(errors.ErrCodeInvalidExpiry)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}

	if r.PaymentMethodID == "" && r.Card == nil {
		return errors.NewValidationError("either payment_method_id or card details are required", errors.ErrCodeValidationFailed)
	}

	return nil
}

type RefundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	Actor  string          `json:"actor,omitempty"`
}

// ActorOrDefault attributes the refund to the customer when the request
// carries no explicit actor.
func (r *RefundPaymentRequest) ActorOrDefault() string {
	if r.Actor == "" {
		return "customer"
	}
	return r.Actor
}

func (r *RefundPaymentRequest) Validate() error {
	validator := validation.NewValidator()
	validator.Field("amount", r.Amount).Required().PositiveDecimal(errors.ErrCodeInvalidAmount)
	validator.Field("reason", r.Reason).Required().MaxLength(500)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ResubmitPaymentRequest re-drives an order's failed payment through the
// gateway, reusing the stored amount and currency.
type ResubmitPaymentRequest struct {
	OrderID         string   `json:"order_id"`
	CustomerID      string   `json:"-"`
	PaymentMethodID string   `json:"payment_method_id,omitempty"`
	Card            *CardDTO `json:"card,omitempty"`
}

func (r *ResubmitPaymentRequest) Validate() error {
	validator := validation.NewValidator()
	validator.Field("order_id", r.OrderID).Required()

	if r.PaymentMethodID == "" && r.Card != nil {
		validator.Field("card.number", r.Card.Number).Required().Digits(13, 19, errors.ErrCodeInvalidCard)
		validator.Field("card.expiry", r.Card.Expiry).Required().Expiry(errors.ErrCodeInvalidExpiry)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}

	if r.PaymentMethodID == "" && r.Card == nil {
		return errors.NewValidationError("either payment_method_id or card details are required", errors.ErrCodeValidationFailed)
	}
	return nil
}

// WebhookEvent is an asynchronous gateway callback. Events identify the
// payment directly or by gateway transaction id.
type WebhookEvent struct {
	Type          string           `json:"type"`
	PaymentID     string           `json:"payment_id,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Reference     string           `json:"reference,omitempty"`
	Status        string           `json:"status,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	RefundID      string           `json:"refund_id,omitempty"`
	RefundAmount  *decimal.Decimal `json:"refund_amount,omitempty"`
	RawPayload    json.RawMessage  `json:"-"`
}

const (
	WebhookPaymentCompleted = "payment.completed"
	WebhookPaymentFailed    = "payment.failed"
	WebhookPaymentRefunded  = "payment.refunded"
)

func (e *WebhookEvent) Validate() error {
	if e.Type == "" {
		return errors.NewValidationError("event type is required", errors.ErrCodeValidationFailed)
	}
	if e.PaymentID == "" && e.TransactionID == "" {
		return errors.NewValidationError("event must carry payment_id or transaction_id", errors.ErrCodeValidationFailed)
	}
	switch e.Type {
	case WebhookPaymentCompleted, WebhookPaymentFailed:
		if e.TransactionID == "" {
			return errors.NewValidationError("transaction_id is required for payment events", errors.ErrCodeValidationFailed)
		}
	case WebhookPaymentRefunded:
		if e.RefundID == "" {
			return errors.NewValidationError("refund_id is required for refund events", errors.ErrCodeValidationFailed)
		}
		if e.RefundAmount == nil || e.RefundAmount.Sign() <= 0 {
			return errors.NewValidationError("refund_amount must be greater than 0", errors.ErrCodeInvalidAmount)
		}
	default:
		return errors.NewValidationError("unsupported event type", errors.ErrCodeValidationFailed)
	}
	return nil
}

func parseCardExpiry(expiry string) (month, year int, ok bool) {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return m, 2000 + y, true
}

// SubmitResult is what the ledger hands back for a submission: the payment,
// whether the charge completed, and signal flags for the duplicate and
// gateway-timeout paths.
type SubmitResult struct {
	Payment   *pay.Payment
	Succeeded bool
	Duplicate bool
	Pending   bool
}

// PaymentResponse is the read shape. The raw gateway payload is only
// attached for privileged callers.
type PaymentResponse struct {
	ID                   string          `json:"id"`
	OrderID              string          `json:"order_id"`
	CustomerID           string          `json:"customer_id"`
	Amount               string          `json:"amount"`
	Currency             string          `json:"currency"`
	PaymentMethodType    string          `json:"payment_method_type"`
	Status               string          `json:"status"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty"`
	GatewayReference     *string         `json:"gateway_reference,omitempty"`
	ProcessingFee        string          `json:"processing_fee"`
	RefundAmount         string          `json:"refund_amount"`
	FailureReason        *string         `json:"failure_reason,omitempty"`
	ProcessedAt          *string         `json:"processed_at,omitempty"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
	GatewayRawResponse   json.RawMessage `json:"gateway_raw_response,omitempty"`
}

func ToResponse(p *pay.Payment, privileged bool) PaymentResponse {
	resp := PaymentResponse{
		ID:                   p.ID,
		OrderID:              p.OrderID,
		CustomerID:           p.CustomerID,
		Amount:               p.Amount.StringFixed(2),
		Currency:             p.Currency,
		PaymentMethodType:    p.PaymentMethodType,
		Status:               string(p.Status),
		GatewayTransactionID: p.GatewayTransactionID,
		GatewayReference:     p.GatewayReference,
		ProcessingFee:        p.ProcessingFee.StringFixed(2),
		RefundAmount:         p.RefundAmount.StringFixed(2),
		FailureReason:        p.FailureReason,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            p.UpdatedAt.Format(time.RFC3339),
	}
	if p.ProcessedAt != nil {
		formatted := p.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &formatted
	}
	if privileged {
		resp.GatewayRawResponse = p.GatewayRawResponse
	}
	return resp
}
