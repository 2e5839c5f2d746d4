package repositories

import (
	"errors"

	"yetkaz/internal/models"
)

// ErrOrderAlreadyPaid is returned by MarkPaid when a different payment has
// already settled the owning order. The caller decides how to answer the
// provider; the rejected payment stays PENDING.
var ErrOrderAlreadyPaid = errors.New("order already settled by another payment")

// PaymentRepository defines the interface for payment data access.
//
// MarkPaid and MarkFailed touch both the payment row and the owning order's
// payment_status mirror; implementations must apply the two writes
// atomically. A paid payment on an unpaid order (or the reverse) is an
// observable financial inconsistency.
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id string) (*models.Payment, error)
	// GetByExternalID resolves a payment by the provider-assigned transaction id.
	GetByExternalID(provider models.PaymentProvider, externalID string) (*models.Payment, error)
	// LatestPending returns the most recent PENDING payment for the
	// order+provider pair, or nil when none exists.
	LatestPending(orderID string, provider models.PaymentProvider) (*models.Payment, error)
	// LatestByOrder returns the most recent payment for the order regardless
	// of status, or nil.
	LatestByOrder(orderID string) (*models.Payment, error)
	Update(payment *models.Payment) error
	// MarkPaid settles the payment. An already-PAID payment is returned
	// unchanged with settled=false (idempotent replay); an order that was
	// settled through a different payment yields ErrOrderAlreadyPaid, so at
	// most one payment per order ever reaches PAID. On first settlement the
	// payment becomes PAID (with paid_at, and the optional external id /
	// metadata) and the order's payment_status becomes PAID, both in the same
	// transaction, and settled=true is reported.
	MarkPaid(id, externalID, metadata string) (payment *models.Payment, settled bool, err error)
	// MarkFailed sets the payment to FAILED. The order's payment_status
	// mirror follows only while the order is not PAID: a stale failure never
	// downgrades a settled order.
	MarkFailed(id string) error
}
