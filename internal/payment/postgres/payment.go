package postgres

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pay "github.com/frahmantamala/payment-processing/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-processing/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.Repository {
	return &PaymentRepository{db: db}
}

// CreateOrGet leans on the unique index on order_id: the insert is attempted
// with ON CONFLICT DO NOTHING, and a conflict means another submission won,
// so that row is returned instead.
func (r *PaymentRepository) CreateOrGet(p *pay.Payment) (*pay.Payment, bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(p)
	if result.Error != nil {
		return nil, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.GetByOrderID(p.OrderID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return p, true, nil
}

func (r *PaymentRepository) GetByID(id string) (*pay.Payment, error) {
	var p pay.Payment
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByOrderID(orderID string) (*pay.Payment, error) {
	var p pay.Payment
	if err := r.db.Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByGatewayTransactionID(txnID string) (*pay.Payment, error) {
	var p pay.Payment
	if err := r.db.Where("gateway_transaction_id = ?", txnID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionStatus is an optimistic guarded update: the WHERE clause pins the
// expected current status, so of two concurrent writers only one sees
// RowsAffected > 0.
func (r *PaymentRepository) TransitionStatus(id string, from, to pay.Status, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := r.db.Model(&pay.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyChargeOutcome records the gateway transaction and settles the payment
// in one transaction. The applied-event insert uses ON CONFLICT DO NOTHING;
// a conflict means this transaction id was already applied and the whole
// operation becomes a no-op.
func (r *PaymentRepository) ApplyChargeOutcome(id, txnID string, to pay.Status, updates map[string]interface{}) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		event := &pay.AppliedEvent{
			PaymentID:  id,
			ExternalID: txnID,
			Kind:       pay.AppliedKindCharge,
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return nil
		}

		values := map[string]interface{}{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		}
		for k, v := range updates {
			values[k] = v
		}

		update := tx.Model(&pay.Payment{}).
			Where("id = ? AND status = ?", id, pay.StatusProcessing).
			Updates(values)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			// row already left processing; roll the event marker back too
			return gorm.ErrRecordNotFound
		}

		applied = true
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ApplyRefund accumulates a refund in one transaction: the applied-event
// marker dedupes the refund id, and the balance update is guarded by the
// version column so concurrent refunds cannot push the total past the
// payment amount.
func (r *PaymentRepository) ApplyRefund(id, refundID string, amount decimal.Decimal) (*pay.Payment, bool, error) {
	applied := false
	var current pay.Payment

	err := r.db.Transaction(func(tx *gorm.DB) error {
		event := &pay.AppliedEvent{
			PaymentID:  id,
			ExternalID: refundID,
			Kind:       pay.AppliedKindRefund,
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		if insert.Error != nil {
			return insert.Error
		}

		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			return err
		}

		if insert.RowsAffected == 0 {
			return nil
		}

		if current.Status != pay.StatusCompleted && current.Status != pay.StatusRefunded {
			return fmt.Errorf("payment %s is %s, not refundable", id, current.Status)
		}
		newTotal := current.RefundAmount.Add(amount)
		if newTotal.GreaterThan(current.Amount) {
			return fmt.Errorf("refund of %s exceeds remaining balance on payment %s", amount.String(), id)
		}

		values := map[string]interface{}{
			"refund_amount": newTotal,
			"version":       current.Version + 1,
			"updated_at":    time.Now().UTC(),
		}
		if newTotal.GreaterThanOrEqual(current.Amount) {
			values["status"] = pay.StatusRefunded
		}

		update := tx.Model(&pay.Payment{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(values)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			// another writer touched the row between read and write
			return fmt.Errorf("concurrent update on payment %s, retry the refund", id)
		}

		current.RefundAmount = newTotal
		current.Version++
		if newTotal.GreaterThanOrEqual(current.Amount) {
			current.Status = pay.StatusRefunded
		}

		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &current, applied, nil
}
