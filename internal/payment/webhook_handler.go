package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/transport"
)

// WebhookHandler receives asynchronous gateway callbacks on
// POST /payment/callback. The gateway redelivers anything not acknowledged
// with 2xx, so only malformed payloads are rejected; unknown payments are
// acknowledged and logged.
type WebhookHandler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

const maxWebhookBody = 1 << 20 // 1 MiB

func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("webhook: failed to read body", "error", err)
		h.HandleError(w, errors.NewValidationError("could not read request body", errors.ErrCodeValidationFailed))
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("webhook: malformed payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid webhook payload", errors.ErrCodeValidationFailed))
		return
	}
	event.RawPayload = body

	h.logger.Info("webhook received",
		"event_type", event.Type,
		"payment_id", event.PaymentID,
		"transaction_id", event.TransactionID)

	if err := h.service.Reconcile(r.Context(), &event); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
