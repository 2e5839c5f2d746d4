package services

import (
	"fmt"
	"strings"
	"time"

	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
)

// CouponResult is the structured outcome of a coupon validation. A rejected
// coupon is a normal business answer, not an error: callers render Message
// directly.
type CouponResult struct {
	Valid          bool    `json:"valid"`
	Message        string  `json:"message,omitempty"`
	CouponID       string  `json:"coupon_id,omitempty"`
	Code           string  `json:"code,omitempty"`
	DiscountType   string  `json:"discount_type,omitempty"`
	DiscountValue  float64 `json:"discount_value,omitempty"`
	DiscountAmount float64 `json:"discount_amount,omitempty"`
}

// CouponService validates and prices discount codes.
type CouponService struct {
	repo repositories.CouponRepository
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo repositories.CouponRepository) *CouponService {
	return &CouponService{repo: repo}
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func invalid(message string) *CouponResult {
	return &CouponResult{Valid: false, Message: message}
}

// Validate checks a code against an order total and the usage history. The
// per-user limit is only enforced when a user identity is present. Errors are
// reserved for genuine faults (storage unreachable); every business rejection
// comes back as Valid:false with the reason.
func (s *CouponService) Validate(code string, orderTotal float64, userID string) (*CouponResult, error) {
	coupon, err := s.repo.GetByCode(NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if coupon == nil || !coupon.Active {
		return invalid("coupon is not valid"), nil
	}

	now := time.Now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return invalid("coupon is not active yet"), nil
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return invalid("coupon has expired"), nil
	}
	if coupon.MinOrderTotal != nil && orderTotal < *coupon.MinOrderTotal {
		return invalid(fmt.Sprintf("order total must be at least %.2f to use this coupon", *coupon.MinOrderTotal)), nil
	}
	if coupon.UsageLimit != nil {
		used, err := s.repo.CountUsage(coupon.ID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.UsageLimit) {
			return invalid("coupon usage limit reached"), nil
		}
	}
	if coupon.PerUserLimit != nil && userID != "" {
		used, err := s.repo.CountUserUsage(coupon.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.PerUserLimit) {
			return invalid("you have already used this coupon"), nil
		}
	}

	var discount float64
	if coupon.DiscountType == models.DiscountPercent {
		discount = orderTotal * coupon.DiscountValue / 100
	} else {
		discount = coupon.DiscountValue
	}
	// A discount never exceeds the subtotal, whatever the coupon says.
	discount = min(discount, orderTotal)

	return &CouponResult{
		Valid:          true,
		CouponID:       coupon.ID,
		Code:           coupon.Code,
		DiscountType:   coupon.DiscountType,
		DiscountValue:  coupon.DiscountValue,
		DiscountAmount: Round2(discount),
	}, nil
}

// RecordUsage writes one redemption row for limit counting.
func (s *CouponService) RecordUsage(couponID, userID, orderID string) error {
	return s.repo.RecordUsage(&models.CouponUsage{
		CouponID: couponID,
		UserID:   userID,
		OrderID:  orderID,
	})
}
