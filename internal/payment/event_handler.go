package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payment-processing/internal/collaborator"
	"github.com/frahmantamala/payment-processing/internal/core/events"
)

// EventHandler bridges ledger events to the collaborator notifier. It runs
// on the event bus so notification latency and failures never sit on the
// payment write path.
type EventHandler struct {
	notifier *collaborator.Notifier
	logger   *slog.Logger
}

func NewEventHandler(notifier *collaborator.Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandlePaymentCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentCompletedEvent, got %T", event)
	}

	h.notifier.PaymentCompleted(ctx,
		completed.PaymentID,
		completed.OrderID,
		completed.CustomerID,
		completed.Amount,
		completed.PaymentMethodType)
	return nil
}

func (h *EventHandler) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}

	h.notifier.PaymentFailed(ctx,
		failed.PaymentID,
		failed.OrderID,
		failed.CustomerID,
		failed.Amount,
		failed.PaymentMethodType,
		failed.FailureReason)
	return nil
}

func (h *EventHandler) HandlePaymentRefunded(ctx context.Context, event events.Event) error {
	refunded, ok := event.(*events.PaymentRefundedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentRefundedEvent, got %T", event)
	}

	h.notifier.PaymentRefunded(ctx,
		refunded.PaymentID,
		refunded.OrderID,
		refunded.CustomerID,
		refunded.RefundAmount,
		refunded.FullRefund,
		refunded.Reason)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCompleted, h.HandlePaymentCompleted)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentFailed)
	eventBus.Subscribe(events.EventTypePaymentRefunded, h.HandlePaymentRefunded)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{
			events.EventTypePaymentCompleted,
			events.EventTypePaymentFailed,
			events.EventTypePaymentRefunded,
		})
}
