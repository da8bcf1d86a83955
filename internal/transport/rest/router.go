package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/payment-processing/internal/payment"
	"github.com/frahmantamala/payment-processing/internal/paymentmethod"
	"github.com/frahmantamala/payment-processing/internal/transport/middleware"
	"github.com/frahmantamala/payment-processing/internal/transport/swagger"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	paymentHandler *payment.Handler,
	webhookHandler *payment.WebhookHandler,
	methodHandler *paymentmethod.Handler,
	allowedOrigins string,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// OpenAPI spec and Swagger UI live outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	// gateway callbacks post to a fixed path outside the API prefix
	if webhookHandler != nil {
		router.Post("/payment/callback", webhookHandler.HandleCallback)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if paymentHandler != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Post("/", paymentHandler.Submit)
				pr.Post("/resubmit", paymentHandler.Resubmit)
				pr.Get("/{id}", paymentHandler.Get)
				pr.Post("/{id}/refund", paymentHandler.Refund)
				pr.Post("/{id}/cancel", paymentHandler.Cancel)
			})
			r.Get("/orders/{orderID}/payment", paymentHandler.GetByOrder)
		}

		if methodHandler != nil {
			r.Route("/payment-methods", func(mr chi.Router) {
				mr.Post("/", methodHandler.Add)
				mr.Get("/", methodHandler.List)
				mr.Post("/{id}/default", methodHandler.SetDefault)
				mr.Delete("/{id}", methodHandler.Deactivate)
			})
		}
	})
}
