package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// Payment is the authoritative record of one payment per order. Rows are
// never deleted; refunds accumulate on the same row.
type Payment struct {
	ID                   string          `gorm:"primaryKey;type:varchar(36)"`
	OrderID              string          `gorm:"column:order_id;not null;uniqueIndex"`
	CustomerID           string          `gorm:"column:customer_id;not null;index"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	Currency             string          `gorm:"column:currency;not null;default:USD"`
	PaymentMethodType    string          `gorm:"column:payment_method_type;not null"`
	Status               Status          `gorm:"column:status;not null;default:pending;index"`
	GatewayTransactionID *string         `gorm:"column:gateway_transaction_id"`
	GatewayReference     *string         `gorm:"column:gateway_reference"`
	ProcessingFee        decimal.Decimal `gorm:"column:processing_fee;type:decimal(20,2);not null"`
	RefundAmount         decimal.Decimal `gorm:"column:refund_amount;type:decimal(20,2);not null;default:0"`
	FailureReason        *string         `gorm:"column:failure_reason"`
	GatewayRawResponse   json.RawMessage `gorm:"column:gateway_raw_response;type:jsonb"`
	Metadata             json.RawMessage `gorm:"column:metadata;type:jsonb"`
	Version              int64           `gorm:"column:version;not null;default:0"`
	ProcessedAt          *time.Time      `gorm:"column:processed_at"`
	CreatedAt            time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;default:now()"`
}

// AppliedEvent records a gateway transaction or refund id already applied to
// a payment. Redelivered webhooks and retried gateway responses match an
// existing row and become no-ops.
type AppliedEvent struct {
	ID         int64     `gorm:"primaryKey"`
	PaymentID  string    `gorm:"column:payment_id;not null;uniqueIndex:idx_payment_external_event,priority:1"`
	ExternalID string    `gorm:"column:external_id;not null;uniqueIndex:idx_payment_external_event,priority:2"`
	Kind       string    `gorm:"column:kind;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;default:now()"`
}

func (AppliedEvent) TableName() string {
	return "payment_applied_events"
}

const (
	AppliedKindCharge = "charge"
	AppliedKindRefund = "refund"
)

// CanTransitionTo validates a status change against the payment lifecycle:
// pending -> processing -> {completed, failed}; completed -> refunded;
// cancelled only from pending. failed -> pending covers an explicit
// operator-driven resubmission of the same order.
func (p *Payment) CanTransitionTo(target Status) error {
	switch p.Status {
	case StatusPending:
		if target == StatusProcessing || target == StatusCancelled {
			return nil
		}
	case StatusProcessing:
		if target == StatusCompleted || target == StatusFailed {
			return nil
		}
	case StatusCompleted:
		if target == StatusRefunded {
			return nil
		}
	case StatusFailed:
		if target == StatusPending {
			return nil
		}
	}
	return fmt.Errorf("invalid payment transition %s -> %s", p.Status, target)
}

// RemainingBalance is the amount still refundable.
func (p *Payment) RemainingBalance() decimal.Decimal {
	return p.Amount.Sub(p.RefundAmount)
}

func (p *Payment) FullyRefunded() bool {
	return p.RefundAmount.GreaterThanOrEqual(p.Amount)
}
