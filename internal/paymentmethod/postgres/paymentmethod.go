package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-processing/internal/core/datamodel/paymentmethod"
	methodpkg "github.com/frahmantamala/payment-processing/internal/paymentmethod"
)

type PaymentMethodRepository struct {
	db *gorm.DB
}

func NewPaymentMethodRepository(db *gorm.DB) methodpkg.Repository {
	return &PaymentMethodRepository{db: db}
}

// Create inserts the method; when makeDefault is set the existing defaults
// for the customer are cleared in the same transaction so the one-default
// invariant holds under concurrent writers.
func (r *PaymentMethodRepository) Create(m *paymentmethod.PaymentMethod, makeDefault bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if makeDefault {
			if err := clearDefaults(tx, m.CustomerID); err != nil {
				return err
			}
			m.IsDefault = true
		}
		return tx.Create(m).Error
	})
}

func (r *PaymentMethodRepository) GetByID(id, customerID string) (*paymentmethod.PaymentMethod, error) {
	var m paymentmethod.PaymentMethod
	err := r.db.Where("id = ? AND customer_id = ?", id, customerID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PaymentMethodRepository) ListActive(customerID string) ([]*paymentmethod.PaymentMethod, error) {
	var methods []*paymentmethod.PaymentMethod
	err := r.db.
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Order("is_default DESC, created_at DESC").
		Find(&methods).Error
	return methods, err
}

func (r *PaymentMethodRepository) HasDefault(customerID string) (bool, error) {
	var count int64
	err := r.db.Model(&paymentmethod.PaymentMethod{}).
		Where("customer_id = ? AND is_default = ? AND is_active = ?", customerID, true, true).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentMethodRepository) SetDefault(id, customerID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := clearDefaults(tx, customerID); err != nil {
			return err
		}
		result := tx.Model(&paymentmethod.PaymentMethod{}).
			Where("id = ? AND customer_id = ?", id, customerID).
			Updates(map[string]interface{}{
				"is_default": true,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Deactivate also clears is_default so an inactive method can never shadow
// the default selection.
func (r *PaymentMethodRepository) Deactivate(id, customerID string) error {
	return r.db.Model(&paymentmethod.PaymentMethod{}).
		Where("id = ? AND customer_id = ?", id, customerID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"is_default": false,
			"updated_at": time.Now().UTC(),
		}).Error
}

func clearDefaults(tx *gorm.DB, customerID string) error {
	return tx.Model(&paymentmethod.PaymentMethod{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Updates(map[string]interface{}{
			"is_default": false,
			"updated_at": time.Now().UTC(),
		}).Error
}
