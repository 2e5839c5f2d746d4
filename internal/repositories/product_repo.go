package repositories

import (
	"yetkaz/internal/models"
)

// ProductRepository defines the read access order creation needs into the
// catalog. Catalog CRUD itself is owned by the admin service.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error // seeding and tests
}

// UserRepository resolves user rows for ownership checks.
type UserRepository interface {
	GetByID(id string) (*models.User, error)
	Create(user *models.User) error
}

// BranchRepository lists fulfillment points for geo queries.
type BranchRepository interface {
	ListActive() ([]models.Branch, error)
	Create(branch *models.Branch) error
}

// CouponRepository defines coupon lookups and usage counting.
type CouponRepository interface {
	// GetByCode looks up a coupon by its normalized (upper-case) code.
	GetByCode(code string) (*models.Coupon, error)
	CountUsage(couponID string) (int64, error)
	CountUserUsage(couponID, userID string) (int64, error)
	RecordUsage(usage *models.CouponUsage) error
	Create(coupon *models.Coupon) error
}
