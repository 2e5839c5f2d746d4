package models

import "time"

// Discount types.
const (
	DiscountPercent = "PERCENT"
	DiscountFixed   = "FIXED"
)

// Coupon is a discount code. Codes are stored normalized (trimmed,
// upper-case) so lookups are effectively case-insensitive.
type Coupon struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code          string     `json:"code" gorm:"uniqueIndex;type:varchar(40)" validate:"required"`
	DiscountType  string     `json:"discount_type" validate:"required,oneof=PERCENT FIXED"`
	DiscountValue float64    `json:"discount_value" validate:"required,gt=0"`
	Active        bool       `json:"active" gorm:"default:true"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	MinOrderTotal *float64   `json:"min_order_total,omitempty"`
	UsageLimit    *int       `json:"usage_limit,omitempty"` // global redemption cap
	PerUserLimit  *int       `json:"per_user_limit,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CouponUsage links one redemption to a user and order. Only used for limit
// counting.
type CouponUsage struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CouponID  string    `json:"coupon_id" gorm:"index;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;type:varchar(36)"`
	OrderID   string    `json:"order_id" gorm:"type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
}
