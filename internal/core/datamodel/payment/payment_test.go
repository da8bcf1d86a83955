package payment_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	pay "github.com/frahmantamala/payment-processing/internal/core/datamodel/payment"
)

func TestPaymentModel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Model Suite")
}

var _ = Describe("Payment lifecycle", func() {
	transition := func(from, to pay.Status) error {
		p := &pay.Payment{Status: from}
		return p.CanTransitionTo(to)
	}

	It("should allow the forward path through the gateway", func() {
		Expect(transition(pay.StatusPending, pay.StatusProcessing)).To(Succeed())
		Expect(transition(pay.StatusProcessing, pay.StatusCompleted)).To(Succeed())
		Expect(transition(pay.StatusProcessing, pay.StatusFailed)).To(Succeed())
		Expect(transition(pay.StatusCompleted, pay.StatusRefunded)).To(Succeed())
	})

	It("should allow cancelling only before processing starts", func() {
		Expect(transition(pay.StatusPending, pay.StatusCancelled)).To(Succeed())
		Expect(transition(pay.StatusProcessing, pay.StatusCancelled)).ToNot(Succeed())
		Expect(transition(pay.StatusCompleted, pay.StatusCancelled)).ToNot(Succeed())
	})

	It("should allow resubmitting only a failed payment", func() {
		Expect(transition(pay.StatusFailed, pay.StatusPending)).To(Succeed())
		Expect(transition(pay.StatusCompleted, pay.StatusPending)).ToNot(Succeed())
		Expect(transition(pay.StatusProcessing, pay.StatusPending)).ToNot(Succeed())
	})

	It("should keep refunded and cancelled payments frozen", func() {
		for _, to := range []pay.Status{pay.StatusPending, pay.StatusProcessing, pay.StatusCompleted, pay.StatusFailed} {
			Expect(transition(pay.StatusRefunded, to)).ToNot(Succeed())
			Expect(transition(pay.StatusCancelled, to)).ToNot(Succeed())
		}
	})
})

var _ = Describe("Refund balance", func() {
	It("should track the refundable remainder", func() {
		p := &pay.Payment{
			Amount:       decimal.RequireFromString("250.00"),
			RefundAmount: decimal.RequireFromString("100.00"),
		}
		Expect(p.RemainingBalance().StringFixed(2)).To(Equal("150.00"))
		Expect(p.FullyRefunded()).To(BeFalse())

		p.RefundAmount = p.Amount
		Expect(p.RemainingBalance().IsZero()).To(BeTrue())
		Expect(p.FullyRefunded()).To(BeTrue())
	})
})
