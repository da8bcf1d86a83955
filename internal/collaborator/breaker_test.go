package collaborator_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-processing/internal/collaborator"
)

func TestCollaborator(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Collaborator Suite")
}

// fakeClock lets tests move through breaker cooldowns without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = ginkgo.Describe("Breaker", func() {
	var (
		logger  *slog.Logger
		clock   *fakeClock
		breaker *collaborator.Breaker
		callErr error
		calls   int
	)

	failing := func(ctx context.Context) error {
		calls++
		return errors.New("collaborator down")
	}

	succeeding := func(ctx context.Context) error {
		calls++
		return nil
	}

	ginkgo.BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		clock = newFakeClock()
		breaker = collaborator.NewBreaker("order-service", 3, 30*time.Second, clock, logger)
		calls = 0
	})

	ginkgo.It("should stay closed while calls succeed", func() {
		for i := 0; i < 10; i++ {
			gomega.Expect(breaker.Do(context.Background(), succeeding)).To(gomega.Succeed())
		}
		gomega.Expect(breaker.State()).To(gomega.Equal(collaborator.StateClosed))
	})

	ginkgo.It("should open after threshold consecutive failures", func() {
		for i := 0; i < 3; i++ {
			callErr = breaker.Do(context.Background(), failing)
			gomega.Expect(callErr).To(gomega.HaveOccurred())
		}
		gomega.Expect(breaker.State()).To(gomega.Equal(collaborator.StateOpen))

		// short-circuits without invoking the function
		before := calls
		callErr = breaker.Do(context.Background(), failing)
		gomega.Expect(errors.Is(callErr, collaborator.ErrBreakerOpen)).To(gomega.BeTrue())
		gomega.Expect(calls).To(gomega.Equal(before))
	})

	ginkgo.It("should reset the failure count on success", func() {
		gomega.Expect(breaker.Do(context.Background(), failing)).ToNot(gomega.Succeed())
		gomega.Expect(breaker.Do(context.Background(), failing)).ToNot(gomega.Succeed())
		gomega.Expect(breaker.Do(context.Background(), succeeding)).To(gomega.Succeed())
		gomega.Expect(breaker.Do(context.Background(), failing)).ToNot(gomega.Succeed())
		gomega.Expect(breaker.Do(context.Background(), failing)).ToNot(gomega.Succeed())
		gomega.Expect(breaker.State()).To(gomega.Equal(collaborator.StateClosed))
	})

	ginkgo.Context("after the cooldown elapses", func() {
		ginkgo.BeforeEach(func() {
			for i := 0; i < 3; i++ {
				_ = breaker.Do(context.Background(), failing)
			}
			gomega.Expect(breaker.State()).To(gomega.Equal(collaborator.StateOpen))
			clock.Advance(31 * time.Second)
		})

		ginkgo.It("should close again after a successful probe", func() {
			gomega.Expect(breaker.Do(context.Background(), succeeding)).To(gomega.Succeed())
			gomega.Expect(breaker.State()).To(gomega.Equal(collaborator.StateClosed))
		})

		ginkgo.It("should re-open after a failed probe", func() {
			gomega.Expect(breaker.Do(context.Background(), failing)).ToNot(gomega.Succeed())
			gomega.Expect(breaker.State()).To(gomega.Equal(collaborator.StateOpen))

			// and the fresh cooldown applies
			callErr = breaker.Do(context.Background(), succeeding)
			gomega.Expect(errors.Is(callErr, collaborator.ErrBreakerOpen)).To(gomega.BeTrue())
		})
	})
})

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recording doubles for notifier behavior tests

type recordingOrderService struct {
	mu          sync.Mutex
	updates     []string
	failUpdates int
}

func (r *recordingOrderService) GetOrder(ctx context.Context, orderID string) (*collaborator.Order, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingOrderService) UpdatePaymentStatus(ctx context.Context, orderID, status, method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates > 0 {
		r.failUpdates--
		return errors.New("order service unavailable")
	}
	r.updates = append(r.updates, orderID+":"+status)
	return nil
}

func (r *recordingOrderService) Updates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.updates...)
}

type recordingNotificationService struct {
	mu            sync.Mutex
	notifications []collaborator.Notification
	failAll       bool
	attempts      int
}

func (r *recordingNotificationService) Notify(ctx context.Context, userID string, n collaborator.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failAll {
		return errors.New("notification service unavailable")
	}
	r.notifications = append(r.notifications, n)
	return nil
}

var _ = ginkgo.Describe("Notifier", func() {
	var (
		logger        *slog.Logger
		orders        *recordingOrderService
		notifications *recordingNotificationService
		notifier      *collaborator.Notifier
	)

	amount := mustDecimal("250.00")

	ginkgo.BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		orders = &recordingOrderService{}
		notifications = &recordingNotificationService{}
		notifier = collaborator.NewNotifier(orders, notifications, collaborator.NotifierConfig{
			MaxAttempts:      3,
			RetryBaseDelay:   time.Millisecond,
			BreakerThreshold: 5,
			BreakerCooldown:  time.Minute,
		}, newFakeClock(), logger)
	})

	ginkgo.It("should propagate completion to both collaborators", func() {
		notifier.PaymentCompleted(context.Background(), "pay-1", "order-1", "cust-1", amount, "credit_card")

		gomega.Expect(orders.Updates()).To(gomega.ConsistOf("order-1:completed"))
		gomega.Expect(notifications.notifications).To(gomega.HaveLen(1))
		gomega.Expect(notifications.notifications[0].Type).To(gomega.Equal(collaborator.NotificationPaymentCompleted))
		gomega.Expect(notifications.notifications[0].Amount).To(gomega.Equal("250.00"))
	})

	ginkgo.It("should retry transient order service failures", func() {
		orders.failUpdates = 2

		notifier.PaymentFailed(context.Background(), "pay-2", "order-2", "cust-2", amount, "credit_card", "Insufficient funds")

		gomega.Expect(orders.Updates()).To(gomega.ConsistOf("order-2:failed"))
	})

	ginkgo.It("should give up after the retry budget and stay silent", func() {
		notifications.failAll = true

		notifier.PaymentCompleted(context.Background(), "pay-3", "order-3", "cust-3", amount, "wallet")

		gomega.Expect(notifications.attempts).To(gomega.Equal(3))
		gomega.Expect(orders.Updates()).To(gomega.ConsistOf("order-3:completed"))
	})

	ginkgo.It("should only update the order on a full refund", func() {
		notifier.PaymentRefunded(context.Background(), "pay-4", "order-4", "cust-4", amount, false, "customer request")
		gomega.Expect(orders.Updates()).To(gomega.BeEmpty())

		notifier.PaymentRefunded(context.Background(), "pay-4", "order-4", "cust-4", amount, true, "customer request")
		gomega.Expect(orders.Updates()).To(gomega.ConsistOf("order-4:refunded"))
	})
})
