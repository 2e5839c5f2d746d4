package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yetkaz/internal/models"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

// Create persists a new payment row.
func (r *GORMPaymentRepository) Create(payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	if err := r.db.Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment, or nil when absent.
func (r *GORMPaymentRepository) GetByID(id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}
	return &payment, nil
}

// GetByExternalID resolves a payment by the provider's own transaction id.
func (r *GORMPaymentRepository) GetByExternalID(provider models.PaymentProvider, externalID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("provider = ? AND external_id = ?", provider, externalID).
		Order("created_at DESC").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment by external id %s: %w", externalID, err)
	}
	return &payment, nil
}

// LatestPending returns the most recent PENDING payment for the order+provider.
func (r *GORMPaymentRepository) LatestPending(orderID string, provider models.PaymentProvider) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("order_id = ? AND provider = ? AND status = ?",
		orderID, provider, models.PaymentStatusPending).
		Order("created_at DESC").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending payment for order %s: %w", orderID, err)
	}
	return &payment, nil
}

// LatestByOrder returns the most recent payment for the order.
func (r *GORMPaymentRepository) LatestByOrder(orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("order_id = ?", orderID).
		Order("created_at DESC").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest payment for order %s: %w", orderID, err)
	}
	return &payment, nil
}

// Update saves the whole payment row.
func (r *GORMPaymentRepository) Update(payment *models.Payment) error {
	if err := r.db.Save(payment).Error; err != nil {
		return fmt.Errorf("failed to update payment %s: %w", payment.ID, err)
	}
	return nil
}

// MarkPaid settles the payment and the owning order's payment_status in one
// transaction. Re-delivered provider callbacks hit the already-PAID branch
// and return the existing row untouched, so at-least-once webhook delivery
// is absorbed here rather than at every call site. The order row is checked
// under the same lock: a second PENDING payment (say, click and payme both
// initiated) cannot settle an order that another payment already paid.
func (r *GORMPaymentRepository) MarkPaid(id, externalID, metadata string) (*models.Payment, bool, error) {
	var payment models.Payment
	settled := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %s not found", id)
			}
			return fmt.Errorf("failed to load payment %s: %w", id, err)
		}
		if payment.Status == models.PaymentStatusPaid {
			return nil // idempotent no-op
		}
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "payment_status").
			First(&order, "id = ?", payment.OrderID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load order %s: %w", payment.OrderID, err)
			}
		} else if order.PaymentStatus == models.PaymentStatusPaid {
			return ErrOrderAlreadyPaid
		}
		now := time.Now()
		payment.Status = models.PaymentStatusPaid
		payment.PaidAt = &now
		if externalID != "" {
			payment.ExternalID = externalID
		}
		if metadata != "" {
			payment.Metadata = metadata
		}
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to settle payment %s: %w", id, err)
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", payment.OrderID).
			Updates(map[string]any{"payment_status": models.PaymentStatusPaid}).Error; err != nil {
			return fmt.Errorf("failed to settle order %s: %w", payment.OrderID, err)
		}
		settled = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &payment, settled, nil
}

// MarkFailed fails the payment together with the order's payment_status.
func (r *GORMPaymentRepository) MarkFailed(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %s not found", id)
			}
			return fmt.Errorf("failed to load payment %s: %w", id, err)
		}
		if payment.Status == models.PaymentStatusPaid {
			// A settled payment is final; a late failure callback is ignored.
			return nil
		}
		payment.Status = models.PaymentStatusFailed
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to fail payment %s: %w", id, err)
		}
		var order models.Order
		if err := tx.Select("id", "payment_status").
			First(&order, "id = ?", payment.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load order %s: %w", payment.OrderID, err)
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			// Another payment settled the order; failing this stale attempt
			// must not downgrade the mirror.
			return nil
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", payment.OrderID).
			Updates(map[string]any{"payment_status": models.PaymentStatusFailed}).Error; err != nil {
			return fmt.Errorf("failed to update order %s: %w", payment.OrderID, err)
		}
		return nil
	})
}
