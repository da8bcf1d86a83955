package paymentmethod

import (
	"time"
)

type MethodType string

const (
	TypeCreditCard MethodType = "credit_card"
	TypeDebitCard  MethodType = "debit_card"
	TypeWallet     MethodType = "wallet"
	TypeBank       MethodType = "bank_transfer"
)

// PaymentMethod is a tokenized, reusable instrument. GatewayToken is the
// opaque handle issued at tokenization; the raw instrument is never
// persisted and the token never leaves the read path.
type PaymentMethod struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)"`
	CustomerID       string     `gorm:"column:customer_id;not null;index"`
	Type             MethodType `gorm:"column:type;not null"`
	LastFour         string     `gorm:"column:last_four;size:4"`
	Brand            string     `gorm:"column:brand"`
	ExpiryMonth      int        `gorm:"column:expiry_month"`
	ExpiryYear       int        `gorm:"column:expiry_year"`
	HolderName       string     `gorm:"column:holder_name"`
	BillingStreet    string     `gorm:"column:billing_street"`
	BillingCity      string     `gorm:"column:billing_city"`
	BillingState     string     `gorm:"column:billing_state"`
	BillingPostcode  string     `gorm:"column:billing_postcode"`
	BillingCountry   string     `gorm:"column:billing_country"`
	GatewayToken     string     `gorm:"column:gateway_token;not null" json:"-"`
	IsDefault        bool       `gorm:"column:is_default;not null;default:false"`
	IsActive         bool       `gorm:"column:is_active;not null;default:true;index"`
	CreatedAt        time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;default:now()"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}
