package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yetkaz/internal/models"
)

// GORMCouponRepository is a GORM implementation of CouponRepository.
type GORMCouponRepository struct {
	db *gorm.DB
}

// NewGORMCouponRepository creates a new instance of GORMCouponRepository.
func NewGORMCouponRepository(db *gorm.DB) *GORMCouponRepository {
	return &GORMCouponRepository{db: db}
}

// GetByCode looks up a coupon by its normalized code, or nil when absent.
func (r *GORMCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.First(&coupon, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get coupon %s: %w", code, err)
	}
	return &coupon, nil
}

// CountUsage returns the total number of redemptions of the coupon.
func (r *GORMCouponRepository) CountUsage(couponID string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CouponUsage{}).
		Where("coupon_id = ?", couponID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count usage of coupon %s: %w", couponID, err)
	}
	return count, nil
}

// CountUserUsage returns how many times the user has redeemed the coupon.
func (r *GORMCouponRepository) CountUserUsage(couponID, userID string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count user usage of coupon %s: %w", couponID, err)
	}
	return count, nil
}

// RecordUsage writes one redemption row.
func (r *GORMCouponRepository) RecordUsage(usage *models.CouponUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.New().String()
	}
	if err := r.db.Create(usage).Error; err != nil {
		return fmt.Errorf("failed to record coupon usage: %w", err)
	}
	return nil
}

// Create inserts a coupon row (seeding and tests).
func (r *GORMCouponRepository) Create(coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	if err := r.db.Create(coupon).Error; err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}
