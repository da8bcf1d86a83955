package paymentmethod_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/payment-processing/internal"
	methodmodel "github.com/frahmantamala/payment-processing/internal/core/datamodel/paymentmethod"
	"github.com/frahmantamala/payment-processing/internal/paymentgateway"
	"github.com/frahmantamala/payment-processing/internal/paymentmethod"
)

func TestPaymentMethod(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Method Suite")
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type memoryMethodRepo struct {
	methods map[string]*methodmodel.PaymentMethod
}

func newMemoryMethodRepo() *memoryMethodRepo {
	return &memoryMethodRepo{methods: make(map[string]*methodmodel.PaymentMethod)}
}

func (r *memoryMethodRepo) Create(m *methodmodel.PaymentMethod, makeDefault bool) error {
	if makeDefault {
		for _, existing := range r.methods {
			if existing.CustomerID == m.CustomerID {
				existing.IsDefault = false
			}
		}
		m.IsDefault = true
	}
	cp := *m
	r.methods[m.ID] = &cp
	return nil
}

func (r *memoryMethodRepo) GetByID(id, customerID string) (*methodmodel.PaymentMethod, error) {
	m, ok := r.methods[id]
	if !ok || m.CustomerID != customerID {
		return nil, fmt.Errorf("payment method %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMethodRepo) ListActive(customerID string) ([]*methodmodel.PaymentMethod, error) {
	var out []*methodmodel.PaymentMethod
	for _, m := range r.methods {
		if m.CustomerID == customerID && m.IsActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryMethodRepo) HasDefault(customerID string) (bool, error) {
	for _, m := range r.methods {
		if m.CustomerID == customerID && m.IsDefault && m.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryMethodRepo) SetDefault(id, customerID string) error {
	target, ok := r.methods[id]
	if !ok || target.CustomerID != customerID {
		return fmt.Errorf("payment method %s not found", id)
	}
	for _, m := range r.methods {
		if m.CustomerID == customerID {
			m.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func (r *memoryMethodRepo) Deactivate(id, customerID string) error {
	m, ok := r.methods[id]
	if !ok || m.CustomerID != customerID {
		return fmt.Errorf("payment method %s not found", id)
	}
	m.IsActive = false
	m.IsDefault = false
	return nil
}

var _ = Describe("Payment Method Service", func() {
	var (
		repo    *memoryMethodRepo
		service *paymentmethod.Service
		ctx     context.Context
	)

	newRequest := func() *paymentmethod.AddPaymentMethodRequest {
		return &paymentmethod.AddPaymentMethodRequest{
			Type:       "credit_card",
			CardNumber: "4242424242424242",
			Expiry:     "12/30",
			CVV:        "123",
			HolderName: "Test Customer",
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMemoryMethodRepo()
		// negative delays skip the simulated gateway latency
		gateway := paymentgateway.NewSimulator(paymentgateway.SimulatorConfig{
			PaymentDelay: -1,
			RefundDelay:  -1,
			Seed:         42,
		}, testLogger)
		service = paymentmethod.NewService(repo, gateway, testLogger)
	})

	Describe("Add", func() {
		It("should tokenize the card and store only the derived fields", func() {
			method, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())
			Expect(method.LastFour).To(Equal("4242"))
			Expect(method.Brand).To(Equal("visa"))
			Expect(method.GatewayToken).To(HavePrefix("tok_"))
			Expect(method.ExpiryMonth).To(Equal(12))
			Expect(method.ExpiryYear).To(Equal(2030))
		})

		It("should make the first method the default automatically", func() {
			first, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())
			Expect(first.IsDefault).To(BeTrue())

			second, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())
			Expect(second.IsDefault).To(BeFalse())
		})

		It("should surface a gateway error when tokenization is rejected", func() {
			req := newRequest()
			req.CardNumber = paymentgateway.CardTokenizeReject

			_, err := service.Add(ctx, "cust-1", req)
			Expect(err).To(HaveOccurred())
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeExternal))
		})

		It("should reject a card number with the wrong shape", func() {
			req := newRequest()
			req.CardNumber = "1234"

			_, err := service.Add(ctx, "cust-1", req)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an expiry in the past", func() {
			req := newRequest()
			req.Expiry = "01/20"

			_, err := service.Add(ctx, "cust-1", req)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetDefault", func() {
		It("should switch the default to the chosen method", func() {
			first, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())
			second, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())

			Expect(service.SetDefault(ctx, second.ID, "cust-1")).To(Succeed())

			reloaded, err := repo.GetByID(first.ID, "cust-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.IsDefault).To(BeFalse())
		})

		It("should refuse an inactive method", func() {
			method, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())
			Expect(service.Deactivate(ctx, method.ID, "cust-1")).To(Succeed())

			err = service.SetDefault(ctx, method.ID, "cust-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Deactivate", func() {
		It("should be a no-op for an already inactive method", func() {
			method, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Deactivate(ctx, method.ID, "cust-1")).To(Succeed())
			Expect(service.Deactivate(ctx, method.ID, "cust-1")).To(Succeed())
		})

		It("should return not found for another customer's method", func() {
			method, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())

			err = service.Deactivate(ctx, method.ID, "cust-2")
			Expect(err).To(Equal(apperrors.ErrPaymentMethodNotFound))
		})
	})

	Describe("ResolveForCharge", func() {
		It("should hand back the token and type for an active method", func() {
			method, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())

			token, methodType, err := service.ResolveForCharge(ctx, method.ID, "cust-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal(method.GatewayToken))
			Expect(methodType).To(Equal("credit_card"))
		})

		It("should refuse an inactive method", func() {
			method, err := service.Add(ctx, "cust-1", newRequest())
			Expect(err).NotTo(HaveOccurred())
			Expect(service.Deactivate(ctx, method.ID, "cust-1")).To(Succeed())

			_, _, err = service.ResolveForCharge(ctx, method.ID, "cust-1")
			Expect(err).To(HaveOccurred())
		})
	})
})
