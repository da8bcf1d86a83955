package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-processing/internal/collaborator"
	"github.com/frahmantamala/payment-processing/internal/core/events"
	"github.com/frahmantamala/payment-processing/internal/payment"
	"github.com/frahmantamala/payment-processing/internal/paymentgateway"
	"github.com/frahmantamala/payment-processing/internal/transport"
)

var _ = Describe("Payment HTTP API", func() {
	var (
		repo    *memoryRepo
		gateway *scriptedGateway
		router  *chi.Mux
	)

	BeforeEach(func() {
		repo = newMemoryRepo()
		gateway = &scriptedGateway{}
		orders := &fakeOrders{orders: map[string]*collaborator.Order{
			"order-1": {OrderID: "order-1", CustomerID: "cust-1", TotalAmount: mustDecimal("250.00")},
		}}
		bus := events.NewEventBus(testLogger)
		service := payment.NewService(repo, gateway, orders, fakeMethods{}, bus, 5*time.Second, testLogger)

		base := transport.NewBaseHandler(testLogger)
		handler := payment.NewHandler(base, service, testLogger)
		webhook := payment.NewWebhookHandler(base, service, testLogger)

		router = chi.NewRouter()
		router.Post("/api/v1/payments", handler.Submit)
		router.Get("/api/v1/payments/{id}", handler.Get)
		router.Get("/api/v1/orders/{orderID}/payment", handler.GetByOrder)
		router.Post("/api/v1/payments/{id}/refund", handler.Refund)
		router.Post("/api/v1/payments/{id}/cancel", handler.Cancel)
		router.Post("/api/v1/payments/resubmit", handler.Resubmit)
		router.Post("/payment/callback", webhook.HandleCallback)
	})

	submitBody := func() []byte {
		body, err := json.Marshal(map[string]interface{}{
			"order_id":            "order-1",
			"amount":              "250.00",
			"currency":            "USD",
			"payment_method_type": "credit_card",
			"card": map[string]string{
				"number":      "4242424242424242",
				"expiry":      "12/30",
				"cvv":         "123",
				"holder_name": "Test Customer",
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return body
	}

	doRequest := func(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	asCustomer := map[string]string{transport.CustomerIDHeader: "cust-1"}

	Describe("POST /api/v1/payments", func() {
		It("should return 201 with the completed payment", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}

			rec := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var resp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Data.Status).To(Equal("completed"))
			Expect(resp.Data.Amount).To(Equal("250.00"))
			Expect(resp.Data.ProcessingFee).To(Equal("7.55"))
			Expect(resp.Data.GatewayRawResponse).To(BeEmpty())
		})

		It("should return 200 for a duplicate submission", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}

			first := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)
			Expect(first.Code).To(Equal(http.StatusCreated))

			second := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)
			Expect(second.Code).To(Equal(http.StatusOK))
		})

		It("should return 202 when the gateway times out", func() {
			gateway.chargeResults = []chargeResult{{err: context.DeadlineExceeded}}

			rec := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)
			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var resp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Data.Status).To(Equal("processing"))
		})

		It("should return 400 without a customer identity", func() {
			rec := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 400 on a malformed body", func() {
			rec := doRequest(http.MethodPost, "/api/v1/payments", []byte(`{not json`), asCustomer)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/v1/payments/{id}", func() {
		It("should hide the raw gateway response from customers and show it to internal callers", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}
			created := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)

			var createdResp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(created.Body.Bytes(), &createdResp)).To(Succeed())
			id := createdResp.Data.ID

			customerView := doRequest(http.MethodGet, "/api/v1/payments/"+id, nil, asCustomer)
			Expect(customerView.Code).To(Equal(http.StatusOK))
			var customerResp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(customerView.Body.Bytes(), &customerResp)).To(Succeed())
			Expect(customerResp.Data.GatewayRawResponse).To(BeEmpty())

			internalView := doRequest(http.MethodGet, "/api/v1/payments/"+id, nil, map[string]string{
				transport.InternalCallHeader: "true",
			})
			Expect(internalView.Code).To(Equal(http.StatusOK))
			var internalResp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(internalView.Body.Bytes(), &internalResp)).To(Succeed())
			Expect(internalResp.Data.GatewayRawResponse).NotTo(BeEmpty())
		})

		It("should return 404 for another customer's payment", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}
			created := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)

			var createdResp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(created.Body.Bytes(), &createdResp)).To(Succeed())

			rec := doRequest(http.MethodGet, "/api/v1/payments/"+createdResp.Data.ID, nil, map[string]string{
				transport.CustomerIDHeader: "cust-other",
			})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/v1/orders/{orderID}/payment", func() {
		It("should return the order's payment", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}
			doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)

			rec := doRequest(http.MethodGet, "/api/v1/orders/order-1/payment", nil, asCustomer)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should return 404 when the order has no payment", func() {
			rec := doRequest(http.MethodGet, "/api/v1/orders/order-none/payment", nil, asCustomer)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/v1/payments/{id}/refund", func() {
		It("should refund a completed payment", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}
			gateway.refundResults = []refundResult{
				{outcome: &paymentgateway.RefundOutcome{Success: true, RefundID: "ref_1"}},
			}
			created := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)

			var createdResp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(created.Body.Bytes(), &createdResp)).To(Succeed())

			body, _ := json.Marshal(map[string]string{"amount": "100.00", "reason": "customer return"})
			rec := doRequest(http.MethodPost, "/api/v1/payments/"+createdResp.Data.ID+"/refund", body, asCustomer)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Data.RefundAmount).To(Equal("100.00"))
		})

		It("should return 400 when the refund exceeds the balance", func() {
			gateway.chargeResults = []chargeResult{{outcome: approvedOutcome("txn_1")}}
			created := doRequest(http.MethodPost, "/api/v1/payments", submitBody(), asCustomer)

			var createdResp struct {
				Data payment.PaymentResponse `json:"data"`
			}
			Expect(json.Unmarshal(created.Body.Bytes(), &createdResp)).To(Succeed())

			body, _ := json.Marshal(map[string]string{"amount": "300.00", "reason": "too much"})
			rec := doRequest(http.MethodPost, "/api/v1/payments/"+createdResp.Data.ID+"/refund", body, asCustomer)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /payment/callback", func() {
		It("should acknowledge a webhook for an unknown payment with 200", func() {
			body, _ := json.Marshal(map[string]string{
				"type":           "payment.completed",
				"payment_id":     "unknown",
				"transaction_id": "txn_x",
			})
			rec := doRequest(http.MethodPost, "/payment/callback", body, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should reject a malformed webhook with 400", func() {
			body, _ := json.Marshal(map[string]string{"type": ""})
			rec := doRequest(http.MethodPost, "/payment/callback", body, nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
