package collaborator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

const (
	NotificationPaymentCompleted = "payment_completed"
	NotificationPaymentFailed    = "payment_failed"
	NotificationPaymentRefunded  = "payment_refunded"
)

type NotifierConfig struct {
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (c *NotifierConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
}

// Notifier fans payment state changes out to the order and notification
// services. Delivery is best effort: bounded retry with exponential backoff
// behind a per-collaborator circuit breaker, and every failure is logged and
// suppressed. The ledger's state never depends on this succeeding.
type Notifier struct {
	orders        OrderService
	notifications NotificationService

	ordersBreaker *Breaker
	notifyBreaker *Breaker

	maxAttempts uint64
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewNotifier(orders OrderService, notifications NotificationService, cfg NotifierConfig, clock Clock, logger *slog.Logger) *Notifier {
	cfg.applyDefaults()
	return &Notifier{
		orders:        orders,
		notifications: notifications,
		ordersBreaker: NewBreaker("order-service", cfg.BreakerThreshold, cfg.BreakerCooldown, clock, logger),
		notifyBreaker: NewBreaker("notification-service", cfg.BreakerThreshold, cfg.BreakerCooldown, clock, logger),
		maxAttempts:   uint64(cfg.MaxAttempts),
		baseDelay:     cfg.RetryBaseDelay,
		logger:        logger,
	}
}

func (n *Notifier) PaymentCompleted(ctx context.Context, paymentID, orderID, customerID string, amount decimal.Decimal, methodType string) {
	n.propagateOrderStatus(ctx, orderID, "completed", methodType)
	n.sendNotification(ctx, customerID, Notification{
		Type:      NotificationPaymentCompleted,
		PaymentID: paymentID,
		Amount:    amount.StringFixed(2),
	})
}

func (n *Notifier) PaymentFailed(ctx context.Context, paymentID, orderID, customerID string, amount decimal.Decimal, methodType, reason string) {
	n.propagateOrderStatus(ctx, orderID, "failed", methodType)
	n.sendNotification(ctx, customerID, Notification{
		Type:      NotificationPaymentFailed,
		PaymentID: paymentID,
		Amount:    amount.StringFixed(2),
		Reason:    reason,
	})
}

func (n *Notifier) PaymentRefunded(ctx context.Context, paymentID, orderID, customerID string, refundAmount decimal.Decimal, fullRefund bool, reason string) {
	if fullRefund {
		n.propagateOrderStatus(ctx, orderID, "refunded", "")
	}
	n.sendNotification(ctx, customerID, Notification{
		Type:      NotificationPaymentRefunded,
		PaymentID: paymentID,
		Amount:    refundAmount.StringFixed(2),
		Reason:    reason,
	})
}

func (n *Notifier) propagateOrderStatus(ctx context.Context, orderID, status, methodType string) {
	err := n.callWithRetry(ctx, n.ordersBreaker, func(ctx context.Context) error {
		return n.orders.UpdatePaymentStatus(ctx, orderID, status, methodType)
	})
	if err != nil {
		n.logger.Error("failed to propagate payment status to order service",
			"order_id", orderID,
			"status", status,
			"error", err)
	}
}

func (n *Notifier) sendNotification(ctx context.Context, customerID string, notification Notification) {
	err := n.callWithRetry(ctx, n.notifyBreaker, func(ctx context.Context) error {
		return n.notifications.Notify(ctx, customerID, notification)
	})
	if err != nil {
		n.logger.Error("failed to deliver customer notification",
			"customer_id", customerID,
			"type", notification.Type,
			"payment_id", notification.PaymentID,
			"error", err)
	}
}

// callWithRetry retries transient failures with exponential backoff. An open
// breaker is not retried; the cooldown exists precisely to stop hammering a
// collaborator that is already down.
func (n *Notifier) callWithRetry(ctx context.Context, breaker *Breaker, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(n.maxAttempts-1, retry.NewExponential(n.baseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := breaker.Do(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBreakerOpen) {
			return err
		}
		return retry.RetryableError(err)
	})
}
