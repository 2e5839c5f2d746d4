package models

import "gorm.io/gorm"

// Role values carried in the verified token and mirrored on the user row.
const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

// User is a thin projection of the externally-managed identity. Registration,
// passwords and token issuance live in a separate service; this core only
// needs the row for ownership checks and driver assignment.
type User struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name       string `json:"name" gorm:"type:varchar(100)"`
	Phone      string `json:"phone" gorm:"type:varchar(20)"`
	Role       string `json:"role" gorm:"type:varchar(20);default:'customer'"`
	gorm.Model `json:"-"`
}
