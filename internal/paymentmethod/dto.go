package paymentmethod

import (
	"fmt"
	"time"

	errors "github.com/frahmantamala/payment-processing/internal"
	"github.com/frahmantamala/payment-processing/internal/core/common/validation"
	"github.com/frahmantamala/payment-processing/internal/core/datamodel/paymentmethod"
)

var allowedTypes = []string{
	string(paymentmethod.TypeCreditCard),
	string(paymentmethod.TypeDebitCard),
	string(paymentmethod.TypeWallet),
	string(paymentmethod.TypeBank),
}

type BillingAddressDTO struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type AddPaymentMethodRequest struct {
	Type        string            `json:"type"`
	CardNumber  string            `json:"card_number,omitempty"`
	Expiry      string            `json:"expiry,omitempty"` // MM/YY
	CVV         string            `json:"cvv,omitempty"`
	HolderName  string            `json:"holder_name,omitempty"`
	Billing     BillingAddressDTO `json:"billing_address"`
	MakeDefault bool              `json:"make_default"`
}

func (r *AddPaymentMethodRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("type", r.Type).Required().OneOf(allowedTypes, errors.ErrCodeValidationFailed)

	if r.Type == string(paymentmethod.TypeCreditCard) || r.Type == string(paymentmethod.TypeDebitCard) {
		validator.Field("card_number", r.CardNumber).Required().Digits(13, 19, errors.ErrCodeInvalidCard)
		validator.Field("expiry", r.Expiry).Required().Expiry(errors.ErrCodeInvalidExpiry)
		validator.Field("holder_name", r.HolderName).Required().MaxLength(100)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// PaymentMethodResponse is the read shape. It never carries the gateway
// token or a full card number.
type PaymentMethodResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	LastFour   string `json:"last_four,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Expiry     string `json:"expiry,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
	IsDefault  bool   `json:"is_default"`
	CreatedAt  string `json:"created_at"`
}

func ToResponse(m *paymentmethod.PaymentMethod) PaymentMethodResponse {
	resp := PaymentMethodResponse{
		ID:         m.ID,
		Type:       string(m.Type),
		LastFour:   m.LastFour,
		Brand:      m.Brand,
		HolderName: m.HolderName,
		IsDefault:  m.IsDefault,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
	if m.ExpiryMonth > 0 {
		resp.Expiry = fmt.Sprintf("%02d/%02d", m.ExpiryMonth, m.ExpiryYear%100)
	}
	return resp
}

func ToResponseList(methods []*paymentmethod.PaymentMethod) []PaymentMethodResponse {
	out := make([]PaymentMethodResponse, 0, len(methods))
	for _, m := range methods {
		out = append(out, ToResponse(m))
	}
	return out
}
