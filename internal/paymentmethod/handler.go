package paymentmethod

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

// Add handles POST /api/v1/payment-methods
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	if customerID == "" {
		h.HandleError(w, errors.NewValidationError("customer id is required", errors.ErrCodeValidationFailed))
		return
	}

	var req AddPaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Add: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	method, err := h.service.Add(r.Context(), customerID, &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"data": ToResponse(method),
	})
}

// List handles GET /api/v1/payment-methods
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	if customerID == "" {
		h.HandleError(w, errors.NewValidationError("customer id is required", errors.ErrCodeValidationFailed))
		return
	}

	methods, err := h.service.ListActive(r.Context(), customerID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": ToResponseList(methods),
	})
}

// SetDefault handles POST /api/v1/payment-methods/{id}/default
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	id := chi.URLParam(r, "id")
	if customerID == "" || id == "" {
		h.HandleError(w, errors.NewValidationError("customer id and method id are required", errors.ErrCodeValidationFailed))
		return
	}

	if err := h.service.SetDefault(r.Context(), id, customerID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "default payment method updated"})
}

// Deactivate handles DELETE /api/v1/payment-methods/{id}
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	customerID := transport.CustomerIDFromRequest(r)
	id := chi.URLParam(r, "id")
	if customerID == "" || id == "" {
		h.HandleError(w, errors.NewValidationError("customer id and method id are required", errors.ErrCodeValidationFailed))
		return
	}

	if err := h.service.Deactivate(r.Context(), id, customerID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "payment method deactivated"})
}
