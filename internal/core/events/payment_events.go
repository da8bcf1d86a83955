package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentRefunded  = "payment.refunded"
)

type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID            string          `json:"payment_id"`
	OrderID              string          `json:"order_id"`
	CustomerID           string          `json:"customer_id"`
	Amount               decimal.Decimal `json:"amount"`
	PaymentMethodType    string          `json:"payment_method_type"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
}

func NewPaymentCompletedEvent(paymentID, orderID, customerID string, amount decimal.Decimal, methodType, gatewayTransactionID string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":             paymentID,
				"order_id":               orderID,
				"customer_id":            customerID,
				"amount":                 amount.String(),
				"payment_method_type":    methodType,
				"gateway_transaction_id": gatewayTransactionID,
			},
		},
		PaymentID:            paymentID,
		OrderID:              orderID,
		CustomerID:           customerID,
		Amount:               amount,
		PaymentMethodType:    methodType,
		GatewayTransactionID: gatewayTransactionID,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID         string          `json:"payment_id"`
	OrderID           string          `json:"order_id"`
	CustomerID        string          `json:"customer_id"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethodType string          `json:"payment_method_type"`
	FailureReason     string          `json:"failure_reason"`
}

func NewPaymentFailedEvent(paymentID, orderID, customerID string, amount decimal.Decimal, methodType, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":          paymentID,
				"order_id":            orderID,
				"customer_id":         customerID,
				"amount":              amount.String(),
				"payment_method_type": methodType,
				"failure_reason":      failureReason,
			},
		},
		PaymentID:         paymentID,
		OrderID:           orderID,
		CustomerID:        customerID,
		Amount:            amount,
		PaymentMethodType: methodType,
		FailureReason:     failureReason,
	}
}

type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	TotalRefunded decimal.Decimal `json:"total_refunded"`
	FullRefund    bool            `json:"full_refund"`
	Reason        string          `json:"reason"`
	Actor         string          `json:"actor,omitempty"`
}

func NewPaymentRefundedEvent(paymentID, orderID, customerID string, refundAmount, totalRefunded decimal.Decimal, fullRefund bool, reason, actor string) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRefunded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"order_id":       orderID,
				"customer_id":    customerID,
				"refund_amount":  refundAmount.String(),
				"total_refunded": totalRefunded.String(),
				"full_refund":    fullRefund,
				"reason":         reason,
				"actor":          actor,
			},
		},
		PaymentID:     paymentID,
		OrderID:       orderID,
		CustomerID:    customerID,
		RefundAmount:  refundAmount,
		TotalRefunded: totalRefunded,
		FullRefund:    fullRefund,
		Reason:        reason,
		Actor:         actor,
	}
}
