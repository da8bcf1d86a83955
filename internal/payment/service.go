package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/collaborator"
	"github.com/frahmantamala/payment-processing/internal/core/events"
	pay "github.com/frahmantamala/payment-processing/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-processing/internal/fees"
	"github.com/frahmantamala/payment-processing/internal/paymentgateway"
)

// Repository is the data access contract for the payment ledger. Terminal
// transitions go through ApplyChargeOutcome / ApplyRefund, which pair a
// first-writer-wins status update with applied-event bookkeeping so a
// redelivered gateway result becomes a no-op.
type Repository interface {
	// CreateOrGet inserts a pending payment, or returns the existing row for
	// the order. created reports which happened.
	CreateOrGet(p *pay.Payment) (persisted *pay.Payment, created bool, err error)
	GetByID(id string) (*pay.Payment, error)
	GetByOrderID(orderID string) (*pay.Payment, error)
	GetByGatewayTransactionID(txnID string) (*pay.Payment, error)

	// TransitionStatus moves a payment from one status to another. Returns
	// false with no error when another writer got there first.
	TransitionStatus(id string, from, to pay.Status, updates map[string]interface{}) (bool, error)

	// ApplyChargeOutcome atomically records the gateway transaction id and
	// flips processing -> to. applied is false when the transaction was
	// already applied or the row already left processing.
	ApplyChargeOutcome(id, txnID string, to pay.Status, updates map[string]interface{}) (applied bool, err error)

	// ApplyRefund accumulates a refund on a completed or refunded payment,
	// flipping to refunded once the total covers the amount. applied is false
	// on a redelivered refund id.
	ApplyRefund(id, refundID string, amount decimal.Decimal) (*pay.Payment, bool, error)
}

// MethodResolver turns a stored payment method id into the gateway token the
// charge needs. Satisfied by the paymentmethod service.
type MethodResolver interface {
	ResolveForCharge(ctx context.Context, id, customerID string) (token, methodType string, err error)
}

// Service is the payment ledger: it owns the one-payment-per-order record,
// enforces the status lifecycle and drives the gateway. All money moves
// through here.
type Service struct {
	repo     Repository
	gateway  paymentgateway.Gateway
	orders   collaborator.OrderService
	methods  MethodResolver
	eventBus *events.EventBus
	logger   *slog.Logger

	gatewayTimeout time.Duration
}

func NewService(
	repo Repository,
	gateway paymentgateway.Gateway,
	orders collaborator.OrderService,
	methods MethodResolver,
	eventBus *events.EventBus,
	gatewayTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &Service{
		repo:           repo,
		gateway:        gateway,
		orders:         orders,
		methods:        methods,
		eventBus:       eventBus,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
	}
}

// Submit creates the payment record for an order and drives it through the
// gateway. Resubmitting an order that already has a payment returns that
// payment with Duplicate set instead of charging twice. A gateway timeout
// leaves the payment in processing for reconciliation to settle and reports
// Pending.
func (s *Service) Submit(ctx context.Context, req *SubmitPaymentRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// a repeat submission is answered from the ledger before any collaborator
	// call, so a changed amount or an order-service outage cannot mask the
	// duplicate; CreateOrGet below still guards the concurrent first submission
	if existing, lookupErr := s.repo.GetByOrderID(req.OrderID); lookupErr == nil && existing.CustomerID == req.CustomerID {
		s.logger.Info("duplicate payment submission",
			"order_id", req.OrderID,
			"payment_id", existing.ID,
			"status", existing.Status)
		return &SubmitResult{
			Payment:   existing,
			Succeeded: existing.Status == pay.StatusCompleted,
			Duplicate: true,
			Pending:   existing.Status == pay.StatusProcessing,
		}, nil
	}

	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		s.logger.Warn("order lookup failed", "order_id", req.OrderID, "error", err)
		return nil, errors.ErrOrderNotFound
	}
	if order.CustomerID != req.CustomerID {
		return nil, errors.NewValidationError("order does not belong to this customer", errors.ErrCodeValidationFailed)
	}
	if !order.TotalAmount.Equal(req.Amount) {
		s.logger.Warn("payment amount does not match order total",
			"order_id", req.OrderID,
			"payment_amount", req.Amount.String(),
			"order_total", order.TotalAmount.String())
		return nil, errors.ErrAmountMismatch
	}

	charge, err := s.buildChargeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	candidate := &pay.Payment{
		ID:                uuid.New().String(),
		OrderID:           req.OrderID,
		CustomerID:        req.CustomerID,
		Amount:            req.Amount,
		Currency:          currency,
		PaymentMethodType: req.MethodType,
		Status:            pay.StatusPending,
		ProcessingFee:     fees.Calculate(req.Amount),
		RefundAmount:      decimal.Zero,
		Metadata:          req.Metadata,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}

	persisted, created, err := s.repo.CreateOrGet(candidate)
	if err != nil {
		s.logger.Error("failed to create payment", "order_id", req.OrderID, "error", err)
		return nil, errors.NewInternalError("could not create payment", err)
	}
	if !created {
		s.logger.Info("duplicate payment submission",
			"order_id", req.OrderID,
			"payment_id", persisted.ID,
			"status", persisted.Status)
		return &SubmitResult{
			Payment:   persisted,
			Succeeded: persisted.Status == pay.StatusCompleted,
			Duplicate: true,
			Pending:   persisted.Status == pay.StatusProcessing,
		}, nil
	}

	return s.drive(ctx, persisted, charge)
}

// Resubmit re-drives an order whose payment failed. The same ledger row flips
// failed -> pending and goes back through the gateway; amount and currency
// come from the stored payment, not the request.
func (s *Service) Resubmit(ctx context.Context, req *ResubmitPaymentRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByOrderID(req.OrderID)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	if p.CustomerID != req.CustomerID {
		return nil, errors.ErrPaymentNotFound
	}
	if err := p.CanTransitionTo(pay.StatusPending); err != nil {
		return nil, errors.NewValidationError("only failed payments can be resubmitted", errors.ErrCodeInvalidPaymentStatus)
	}

	charge, err := s.buildChargeRequest(ctx, &SubmitPaymentRequest{
		OrderID:         req.OrderID,
		CustomerID:      req.CustomerID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		MethodType:      p.PaymentMethodType,
		PaymentMethodID: req.PaymentMethodID,
		Card:            req.Card,
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.TransitionStatus(p.ID, pay.StatusFailed, pay.StatusPending, map[string]interface{}{
		"failure_reason":         nil,
		"gateway_transaction_id": nil,
		"gateway_reference":      nil,
	})
	if err != nil {
		return nil, errors.NewInternalError("could not resubmit payment", err)
	}
	if !ok {
		return nil, errors.ErrInvalidPaymentStatus
	}
	p.Status = pay.StatusPending
	p.FailureReason = nil

	s.logger.Info("payment resubmitted", "payment_id", p.ID, "order_id", p.OrderID)

	return s.drive(ctx, p, charge)
}

// drive moves a pending payment through processing and the gateway charge.
func (s *Service) drive(ctx context.Context, p *pay.Payment, charge paymentgateway.ChargeRequest) (*SubmitResult, error) {
	ok, err := s.repo.TransitionStatus(p.ID, pay.StatusPending, pay.StatusProcessing, nil)
	if err != nil {
		s.logger.Error("failed to mark payment processing", "payment_id", p.ID, "error", err)
		return nil, errors.NewInternalError("could not start payment processing", err)
	}
	if !ok {
		// someone else picked this payment up between create and here
		current, getErr := s.repo.GetByID(p.ID)
		if getErr != nil {
			return nil, errors.NewInternalError("could not load payment", getErr)
		}
		return &SubmitResult{
			Payment:   current,
			Succeeded: current.Status == pay.StatusCompleted,
			Duplicate: true,
			Pending:   current.Status == pay.StatusProcessing,
		}, nil
	}
	p.Status = pay.StatusProcessing

	chargeCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	outcome, err := s.gateway.Charge(chargeCtx, charge)
	if err != nil {
		// no response from the gateway: the charge may or may not have gone
		// through, so the payment stays in processing until a webhook or
		// reconciliation settles it
		s.logger.Warn("gateway charge did not complete",
			"payment_id", p.ID,
			"order_id", p.OrderID,
			"error", err)
		return &SubmitResult{Payment: p, Pending: true}, nil
	}

	applied, final, err := s.applyOutcome(ctx, p.ID, outcome)
	if err != nil {
		return nil, err
	}
	if !applied {
		// a concurrent webhook already settled it; report the settled state
		final, err = s.repo.GetByID(p.ID)
		if err != nil {
			return nil, errors.NewInternalError("could not load payment", err)
		}
	}

	return &SubmitResult{
		Payment:   final,
		Succeeded: final.Status == pay.StatusCompleted,
		Pending:   final.Status == pay.StatusProcessing,
	}, nil
}

// applyOutcome settles a processing payment with a charge outcome, exactly
// once per gateway transaction. Shared by the synchronous charge path and
// webhook reconciliation.
func (s *Service) applyOutcome(ctx context.Context, paymentID string, outcome *paymentgateway.Outcome) (bool, *pay.Payment, error) {
	updates := map[string]interface{}{
		"gateway_transaction_id": outcome.TransactionID,
		"gateway_raw_response":   json.RawMessage(outcome.RawResponse),
	}
	if outcome.Reference != "" {
		updates["gateway_reference"] = outcome.Reference
	}

	target := pay.StatusCompleted
	if outcome.Approved() {
		// processed_at marks the first successful settlement; a failed
		// charge leaves it unset so a later resubmission still sets it once
		updates["processed_at"] = time.Now().UTC()
	} else {
		target = pay.StatusFailed
		reason := outcome.FailureReason
		if reason == "" {
			reason = outcome.Scenario.FailureReason()
		}
		updates["failure_reason"] = reason
	}

	applied, err := s.repo.ApplyChargeOutcome(paymentID, outcome.TransactionID, target, updates)
	if err != nil {
		s.logger.Error("failed to apply charge outcome",
			"payment_id", paymentID,
			"transaction_id", outcome.TransactionID,
			"error", err)
		return false, nil, errors.NewInternalError("could not record payment outcome", err)
	}
	if !applied {
		s.logger.Info("charge outcome already applied",
			"payment_id", paymentID,
			"transaction_id", outcome.TransactionID)
		return false, nil, nil
	}

	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return true, nil, errors.NewInternalError("could not load payment", err)
	}

	if target == pay.StatusCompleted {
		s.logger.Info("payment completed",
			"payment_id", p.ID,
			"order_id", p.OrderID,
			"amount", p.Amount.String(),
			"transaction_id", outcome.TransactionID)
		s.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(
			p.ID, p.OrderID, p.CustomerID, p.Amount, p.PaymentMethodType, outcome.TransactionID))
	} else {
		reason := ""
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		s.logger.Info("payment failed",
			"payment_id", p.ID,
			"order_id", p.OrderID,
			"reason", reason)
		s.eventBus.Publish(ctx, events.NewPaymentFailedEvent(
			p.ID, p.OrderID, p.CustomerID, p.Amount, p.PaymentMethodType, reason))
	}

	return true, p, nil
}

// Refund returns part or all of a completed payment. Partial refunds
// accumulate on the same row; the status flips to refunded only when the
// running total covers the full amount. The refund bound is re-checked inside
// the repository transaction, so concurrent refunds cannot overshoot.
func (s *Service) Refund(ctx context.Context, paymentID, customerID string, req *RefundPaymentRequest) (*pay.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	if p.CustomerID != customerID {
		return nil, errors.ErrPaymentNotFound
	}
	if p.Status != pay.StatusCompleted && p.Status != pay.StatusRefunded {
		return nil, errors.NewValidationError("only completed payments can be refunded", errors.ErrCodeInvalidPaymentStatus)
	}
	if p.FullyRefunded() {
		return nil, errors.ErrRefundExceedsBalance
	}
	if req.Amount.GreaterThan(p.RemainingBalance()) {
		return nil, errors.ErrRefundExceedsBalance
	}
	if p.GatewayTransactionID == nil {
		return nil, errors.NewInternalError("payment has no gateway transaction", nil)
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	outcome, err := s.gateway.Refund(refundCtx, paymentgateway.RefundRequest{
		TransactionID: *p.GatewayTransactionID,
		Amount:        req.Amount,
	})
	if err != nil {
		s.logger.Error("gateway refund failed", "payment_id", paymentID, "error", err)
		return nil, errors.NewGatewayError("refund could not be processed", err)
	}
	if !outcome.Success {
		return nil, errors.NewValidationError("gateway declined the refund", errors.ErrCodeRefundFailed)
	}

	updated, applied, err := s.repo.ApplyRefund(paymentID, outcome.RefundID, req.Amount)
	if err != nil {
		s.logger.Error("failed to record refund", "payment_id", paymentID, "refund_id", outcome.RefundID, "error", err)
		return nil, errors.NewInternalError("could not record refund", err)
	}
	if !applied {
		return updated, nil
	}

	s.logger.Info("payment refunded",
		"payment_id", updated.ID,
		"refund_id", outcome.RefundID,
		"refund_amount", req.Amount.String(),
		"total_refunded", updated.RefundAmount.String(),
		"full_refund", updated.FullyRefunded(),
		"actor", req.ActorOrDefault())

	s.eventBus.Publish(ctx, events.NewPaymentRefundedEvent(
		updated.ID, updated.OrderID, updated.CustomerID,
		req.Amount, updated.RefundAmount, updated.FullyRefunded(), req.Reason, req.ActorOrDefault()))

	return updated, nil
}

// Cancel withdraws a payment that has not started processing. Anything past
// pending is too late to cancel; refund is the path for completed payments.
func (s *Service) Cancel(ctx context.Context, paymentID, customerID string) (*pay.Payment, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	if p.CustomerID != customerID {
		return nil, errors.ErrPaymentNotFound
	}
	if err := p.CanTransitionTo(pay.StatusCancelled); err != nil {
		return nil, errors.NewValidationError("only pending payments can be cancelled", errors.ErrCodeInvalidPaymentStatus)
	}

	ok, err := s.repo.TransitionStatus(paymentID, pay.StatusPending, pay.StatusCancelled, nil)
	if err != nil {
		return nil, errors.NewInternalError("could not cancel payment", err)
	}
	if !ok {
		return nil, errors.NewValidationError("only pending payments can be cancelled", errors.ErrCodeInvalidPaymentStatus)
	}

	s.logger.Info("payment cancelled", "payment_id", paymentID, "order_id", p.OrderID)

	return s.repo.GetByID(paymentID)
}

func (s *Service) GetByID(ctx context.Context, paymentID, customerID string, privileged bool) (*pay.Payment, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	if !privileged && p.CustomerID != customerID {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID, customerID string, privileged bool) (*pay.Payment, error) {
	p, err := s.repo.GetByOrderID(orderID)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	if !privileged && p.CustomerID != customerID {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

// Reconcile applies an asynchronous gateway event to the ledger. Events for
// unknown payments are logged and acknowledged; the gateway will not learn
// anything useful from a 4xx and would just redeliver. Redelivered events
// no-op through applied-event bookkeeping.
func (s *Service) Reconcile(ctx context.Context, event *WebhookEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	p, err := s.lookupForEvent(event)
	if err != nil {
		s.logger.Warn("webhook for unknown payment acknowledged",
			"event_type", event.Type,
			"payment_id", event.PaymentID,
			"transaction_id", event.TransactionID)
		return nil
	}

	switch event.Type {
	case WebhookPaymentCompleted, WebhookPaymentFailed:
		return s.reconcileCharge(ctx, p, event)
	case WebhookPaymentRefunded:
		return s.reconcileRefund(ctx, p, event)
	}
	return nil
}

func (s *Service) reconcileCharge(ctx context.Context, p *pay.Payment, event *WebhookEvent) error {
	if p.Status != pay.StatusProcessing {
		// settled before the webhook arrived; applied-event bookkeeping makes
		// this safe to ignore
		s.logger.Info("webhook for already settled payment",
			"payment_id", p.ID,
			"status", p.Status,
			"transaction_id", event.TransactionID)
		return nil
	}

	scenario := paymentgateway.ScenarioApproved
	if event.Type == WebhookPaymentFailed {
		scenario = paymentgateway.ScenarioNetworkError
	}

	outcome := &paymentgateway.Outcome{
		Scenario:      scenario,
		TransactionID: event.TransactionID,
		Reference:     event.Reference,
		FailureReason: event.FailureReason,
		RawResponse:   event.RawPayload,
	}

	_, _, err := s.applyOutcome(ctx, p.ID, outcome)
	return err
}

func (s *Service) reconcileRefund(ctx context.Context, p *pay.Payment, event *WebhookEvent) error {
	if p.Status != pay.StatusCompleted && p.Status != pay.StatusRefunded {
		s.logger.Warn("refund webhook for non-refundable payment acknowledged",
			"payment_id", p.ID,
			"status", p.Status,
			"refund_id", event.RefundID)
		return nil
	}
	if event.RefundAmount.GreaterThan(p.RemainingBalance()) {
		s.logger.Warn("refund webhook exceeds remaining balance, acknowledged without applying",
			"payment_id", p.ID,
			"refund_id", event.RefundID,
			"refund_amount", event.RefundAmount.String(),
			"remaining", p.RemainingBalance().String())
		return nil
	}

	updated, applied, err := s.repo.ApplyRefund(p.ID, event.RefundID, *event.RefundAmount)
	if err != nil {
		s.logger.Error("failed to apply refund webhook",
			"payment_id", p.ID,
			"refund_id", event.RefundID,
			"error", err)
		return errors.NewInternalError("could not record refund", err)
	}
	if !applied {
		s.logger.Info("refund webhook already applied",
			"payment_id", p.ID,
			"refund_id", event.RefundID)
		return nil
	}

	s.eventBus.Publish(ctx, events.NewPaymentRefundedEvent(
		updated.ID, updated.OrderID, updated.CustomerID,
		*event.RefundAmount, updated.RefundAmount, updated.FullyRefunded(), "gateway refund", "gateway"))

	return nil
}

func (s *Service) lookupForEvent(event *WebhookEvent) (*pay.Payment, error) {
	if event.PaymentID != "" {
		return s.repo.GetByID(event.PaymentID)
	}
	return s.repo.GetByGatewayTransactionID(event.TransactionID)
}

// buildChargeRequest resolves the instrument: a stored method id beats inline
// card details.
func (s *Service) buildChargeRequest(ctx context.Context, req *SubmitPaymentRequest) (paymentgateway.ChargeRequest, error) {
	charge := paymentgateway.ChargeRequest{
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		MethodType: req.MethodType,
	}

	if req.PaymentMethodID != "" {
		token, methodType, err := s.methods.ResolveForCharge(ctx, req.PaymentMethodID, req.CustomerID)
		if err != nil {
			return charge, err
		}
		charge.Token = token
		if req.MethodType == "" {
			charge.MethodType = methodType
		}
		return charge, nil
	}

	card := &paymentgateway.CardDetails{
		Number:     req.Card.Number,
		CVV:        req.Card.CVV,
		HolderName: req.Card.HolderName,
	}
	if month, year, ok := parseCardExpiry(req.Card.Expiry); ok {
		card.ExpiryMonth = month
		card.ExpiryYear = year
	}
	charge.Card = card

	if req.Billing != nil {
		charge.Billing = &paymentgateway.BillingAddress{
			Street:   req.Billing.Street,
			City:     req.Billing.City,
			State:    req.Billing.State,
			Postcode: req.Billing.Postcode,
			Country:  req.Billing.Country,
		}
	}

	return charge, nil
}
