package repositories

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"yetkaz/internal/models"
)

// MockCouponRepository is an in-memory implementation of CouponRepository.
type MockCouponRepository struct {
	coupons map[string]models.Coupon // keyed by normalized code
	usages  []models.CouponUsage
	mu      sync.RWMutex
}

// NewMockCouponRepository creates a new instance of MockCouponRepository.
func NewMockCouponRepository() *MockCouponRepository {
	return &MockCouponRepository{coupons: make(map[string]models.Coupon)}
}

// GetByCode returns the coupon stored under the normalized code, or nil.
func (r *MockCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coupons[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CountUsage returns total redemptions of the coupon.
func (r *MockCouponRepository) CountUsage(couponID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.usages {
		if u.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

// CountUserUsage returns the user's redemptions of the coupon.
func (r *MockCouponRepository) CountUserUsage(couponID, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.usages {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

// RecordUsage appends a redemption row.
func (r *MockCouponRepository) RecordUsage(usage *models.CouponUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if usage.ID == "" {
		usage.ID = uuid.New().String()
	}
	usage.CreatedAt = time.Now()
	r.usages = append(r.usages, *usage)
	return nil
}

// Create stores a coupon under its code.
func (r *MockCouponRepository) Create(coupon *models.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	r.coupons[coupon.Code] = *coupon
	return nil
}
