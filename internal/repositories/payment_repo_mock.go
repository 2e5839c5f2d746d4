package repositories

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"yetkaz/internal/models"
)

// MockPaymentRepository is an in-memory implementation of PaymentRepository.
// It mirrors settlement results onto the given order repository the way the
// GORM implementation does inside a transaction.
type MockPaymentRepository struct {
	payments map[string]models.Payment
	orders   *MockOrderRepository
	mu       sync.Mutex
}

// NewMockPaymentRepository creates a new instance of MockPaymentRepository.
func NewMockPaymentRepository(orders *MockOrderRepository) *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]models.Payment),
		orders:   orders,
	}
}

// Create stores a new payment.
func (r *MockPaymentRepository) Create(payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	r.payments[payment.ID] = *payment
	return nil
}

// GetByID returns a copy of the payment, or nil.
func (r *MockPaymentRepository) GetByID(id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetByExternalID resolves a payment by provider transaction id.
func (r *MockPaymentRepository) GetByExternalID(provider models.PaymentProvider, externalID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Payment
	for _, p := range r.payments {
		if p.Provider == provider && p.ExternalID == externalID {
			cp := p
			if best == nil || cp.CreatedAt.After(best.CreatedAt) {
				best = &cp
			}
		}
	}
	return best, nil
}

// LatestPending returns the newest PENDING payment for the order+provider.
func (r *MockPaymentRepository) LatestPending(orderID string, provider models.PaymentProvider) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Provider == provider && p.Status == models.PaymentStatusPending {
			cp := p
			if best == nil || cp.CreatedAt.After(best.CreatedAt) {
				best = &cp
			}
		}
	}
	return best, nil
}

// LatestByOrder returns the newest payment for the order.
func (r *MockPaymentRepository) LatestByOrder(orderID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			cp := p
			if best == nil || cp.CreatedAt.After(best.CreatedAt) {
				best = &cp
			}
		}
	}
	return best, nil
}

// Update replaces the stored payment.
func (r *MockPaymentRepository) Update(payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; !ok {
		return fmt.Errorf("payment %s not found for update", payment.ID)
	}
	payment.UpdatedAt = time.Now()
	r.payments[payment.ID] = *payment
	return nil
}

// MarkPaid settles the payment and mirrors PAID onto the order. Idempotent
// per payment, and rejected outright when a different payment already paid
// the order.
func (r *MockPaymentRepository) MarkPaid(id, externalID, metadata string) (*models.Payment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, false, fmt.Errorf("payment %s not found", id)
	}
	if p.Status == models.PaymentStatusPaid {
		return &p, false, nil
	}
	order, err := r.orders.GetByID(p.OrderID)
	if err != nil {
		return nil, false, err
	}
	if order != nil && order.PaymentStatus == models.PaymentStatusPaid {
		return nil, false, ErrOrderAlreadyPaid
	}
	now := time.Now()
	p.Status = models.PaymentStatusPaid
	p.PaidAt = &now
	if externalID != "" {
		p.ExternalID = externalID
	}
	if metadata != "" {
		p.Metadata = metadata
	}
	p.UpdatedAt = now
	r.payments[id] = p
	if err := r.orders.SetPaymentStatus(p.OrderID, models.PaymentStatusPaid); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// MarkFailed fails the payment and mirrors FAILED onto the order unless the
// order already settled through another payment.
func (r *MockPaymentRepository) MarkFailed(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment %s not found", id)
	}
	if p.Status == models.PaymentStatusPaid {
		return nil
	}
	p.Status = models.PaymentStatusFailed
	p.UpdatedAt = time.Now()
	r.payments[id] = p
	order, err := r.orders.GetByID(p.OrderID)
	if err != nil {
		return err
	}
	if order != nil && order.PaymentStatus == models.PaymentStatusPaid {
		return nil
	}
	return r.orders.SetPaymentStatus(p.OrderID, models.PaymentStatusFailed)
}
