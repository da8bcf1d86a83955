package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// Submit handles POST /api/v1/payments. A repeat submission for the same
// order returns the existing payment with 200 instead of 201; a gateway
// timeout returns 202 with the payment still processing.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	if customerID == "" {
		h.HandleError(w, errors.NewValidationError("customer id is required", errors.ErrCodeValidationFailed))
		return
	}

	var req SubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Submit: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	req.CustomerID = customerID

	result, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.writeSubmitResult(w, r, result, http.StatusCreated)
}

// Resubmit handles POST /api/v1/payments/resubmit for a failed payment.
func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	if customerID == "" {
		h.HandleError(w, errors.NewValidationError("customer id is required", errors.ErrCodeValidationFailed))
		return
	}

	var req ResubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Resubmit: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	req.CustomerID = customerID

	result, err := h.service.Resubmit(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.writeSubmitResult(w, r, result, http.StatusOK)
}

func (h *Handler) writeSubmitResult(w http.ResponseWriter, r *http.Request, result *SubmitResult, createdStatus int) {
	status := createdStatus
	switch {
	case result.Duplicate:
		status = http.StatusOK
	case result.Pending:
		status = http.StatusAccepted
	}

	h.WriteJSON(w, status, map[string]interface{}{
		"data": ToResponse(result.Payment, transport.IsPrivilegedCall(r)),
	})
}

// Get handles GET /api/v1/payments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		h.HandleError(w, errors.NewValidationError("payment id is required", errors.ErrCodeValidationFailed))
		return
	}

	privileged := transport.IsPrivilegedCall(r)
	p, err := h.service.GetByID(r.Context(), id, customerID, privileged)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": ToResponse(p, privileged),
	})
}

// GetByOrder handles GET /api/v1/orders/{orderID}/payment.
func (h *Handler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		h.HandleError(w, errors.NewValidationError("order id is required", errors.ErrCodeValidationFailed))
		return
	}

	privileged := transport.IsPrivilegedCall(r)
	p, err := h.service.GetByOrderID(r.Context(), orderID, customerID, privileged)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": ToResponse(p, privileged),
	})
}

// Refund handles POST /api/v1/payments/{id}/refund.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	id := chi.URLParam(r, "id")
	if customerID == "" || id == "" {
		h.HandleError(w, errors.NewValidationError("customer id and payment id are required", errors.ErrCodeValidationFailed))
		return
	}

	var req RefundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Refund: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.service.Refund(r.Context(), id, customerID, &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": ToResponse(p, transport.IsPrivilegedCall(r)),
	})
}

// Cancel handles POST /api/v1/payments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	id := chi.URLParam(r, "id")
	if customerID == "" || id == "" {
		h.HandleError(w, errors.NewValidationError("customer id and payment id are required", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.service.Cancel(r.Context(), id, customerID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": ToResponse(p, transport.IsPrivilegedCall(r)),
	})
}
