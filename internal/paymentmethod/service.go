package paymentmethod

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/core/datamodel/paymentmethod"
	"github.com/frahmantamala/payment-processing/internal/paymentgateway"
)

// Repository is the data access contract for stored payment methods. Create
// and SetDefault must run their clear-other-defaults step atomically with
// the write, serialized per customer.
type Repository interface {
	Create(m *paymentmethod.PaymentMethod, makeDefault bool) error
	GetByID(id, customerID string) (*paymentmethod.PaymentMethod, error)
	ListActive(customerID string) ([]*paymentmethod.PaymentMethod, error)
	HasDefault(customerID string) (bool, error)
	SetDefault(id, customerID string) error
	Deactivate(id, customerID string) error
}

type Service struct {
	repo    Repository
	gateway paymentgateway.Gateway
	logger  *slog.Logger
}

func NewService(repo Repository, gateway paymentgateway.Gateway, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
	}
}

// Add validates the instrument, obtains an opaque token from the gateway and
// persists the method. First method for a customer becomes the default even
// without makeDefault.
func (s *Service) Add(ctx context.Context, customerID string, req *AddPaymentMethodRequest) (*paymentmethod.PaymentMethod, error) {
	if err := req.Validate(); err != nil {
		s.logger.Error("payment method validation failed", "error", err, "customer_id", customerID)
		return nil, err
	}

	card := paymentgateway.CardDetails{
		Number:     req.CardNumber,
		CVV:        req.CVV,
		HolderName: req.HolderName,
	}
	if month, year, ok := parseExpiry(req.Expiry); ok {
		card.ExpiryMonth = month
		card.ExpiryYear = year
	}

	token, err := s.gateway.Tokenize(ctx, card)
	if err != nil {
		s.logger.Error("gateway tokenization failed", "error", err, "customer_id", customerID)
		return nil, errors.NewGatewayError("could not tokenize payment method", err).
			WithDetails(map[string]string{"code": string(errors.ErrCodeTokenizationFailed)})
	}

	method := &paymentmethod.PaymentMethod{
		ID:               uuid.New().String(),
		CustomerID:       customerID,
		Type:             paymentmethod.MethodType(req.Type),
		LastFour:         lastFour(req.CardNumber),
		Brand:            detectBrand(req.CardNumber),
		HolderName:       req.HolderName,
		BillingStreet:    req.Billing.Street,
		BillingCity:      req.Billing.City,
		BillingState:     req.Billing.State,
		BillingPostcode:  req.Billing.Postcode,
		BillingCountry:   req.Billing.Country,
		GatewayToken:     token,
		IsActive:         true,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	method.ExpiryMonth = card.ExpiryMonth
	method.ExpiryYear = card.ExpiryYear

	makeDefault := req.MakeDefault
	if !makeDefault {
		hasDefault, err := s.repo.HasDefault(customerID)
		if err != nil {
			s.logger.Error("failed to check existing default", "error", err, "customer_id", customerID)
			return nil, errors.NewInternalError("could not store payment method", err)
		}
		makeDefault = !hasDefault
	}

	if err := s.repo.Create(method, makeDefault); err != nil {
		s.logger.Error("failed to persist payment method", "error", err, "customer_id", customerID)
		return nil, errors.NewInternalError("could not store payment method", err)
	}
	method.IsDefault = makeDefault

	s.logger.Info("payment method added",
		"payment_method_id", method.ID,
		"customer_id", customerID,
		"type", method.Type,
		"is_default", method.IsDefault)

	return method, nil
}

// ListActive returns the customer's active methods, default first then
// newest first.
func (s *Service) ListActive(ctx context.Context, customerID string) ([]*paymentmethod.PaymentMethod, error) {
	methods, err := s.repo.ListActive(customerID)
	if err != nil {
		s.logger.Error("failed to list payment methods", "error", err, "customer_id", customerID)
		return nil, errors.NewInternalError("could not list payment methods", err)
	}
	return methods, nil
}

func (s *Service) SetDefault(ctx context.Context, id, customerID string) error {
	method, err := s.repo.GetByID(id, customerID)
	if err != nil {
		return errors.ErrPaymentMethodNotFound
	}
	if !method.IsActive {
		return errors.NewValidationError("cannot set an inactive method as default", errors.ErrCodeValidationFailed)
	}

	if err := s.repo.SetDefault(id, customerID); err != nil {
		s.logger.Error("failed to switch default payment method", "error", err, "payment_method_id", id)
		return errors.NewInternalError("could not set default payment method", err)
	}

	s.logger.Info("default payment method switched",
		"payment_method_id", id,
		"customer_id", customerID)

	return nil
}

// ResolveForCharge returns the gateway token and type of a stored method so
// the ledger can charge it. The token stays inside the process; it is never
// part of a response body.
func (s *Service) ResolveForCharge(ctx context.Context, id, customerID string) (token, methodType string, err error) {
	method, repoErr := s.repo.GetByID(id, customerID)
	if repoErr != nil {
		return "", "", errors.ErrPaymentMethodNotFound
	}
	if !method.IsActive {
		return "", "", errors.NewValidationError("payment method is inactive", errors.ErrCodeValidationFailed)
	}
	return method.GatewayToken, string(method.Type), nil
}

// Deactivate soft-deletes a method. Deactivating an already-inactive method
// is a no-op success.
func (s *Service) Deactivate(ctx context.Context, id, customerID string) error {
	method, err := s.repo.GetByID(id, customerID)
	if err != nil {
		return errors.ErrPaymentMethodNotFound
	}
	if !method.IsActive {
		return nil
	}

	if err := s.repo.Deactivate(id, customerID); err != nil {
		s.logger.Error("failed to deactivate payment method", "error", err, "payment_method_id", id)
		return errors.NewInternalError("could not deactivate payment method", err)
	}

	s.logger.Info("payment method deactivated",
		"payment_method_id", id,
		"customer_id", customerID)

	return nil
}

func lastFour(cardNumber string) string {
	if len(cardNumber) < 4 {
		return ""
	}
	return cardNumber[len(cardNumber)-4:]
}

func detectBrand(cardNumber string) string {
	switch {
	case cardNumber == "":
		return ""
	case strings.HasPrefix(cardNumber, "34"), strings.HasPrefix(cardNumber, "37"):
		return "amex"
	case strings.HasPrefix(cardNumber, "4"):
		return "visa"
	case strings.HasPrefix(cardNumber, "5"):
		return "mastercard"
	case strings.HasPrefix(cardNumber, "6"):
		return "discover"
	default:
		return "unknown"
	}
}

func parseExpiry(expiry string) (month, year int, ok bool) {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return m, 2000 + y, true
}
