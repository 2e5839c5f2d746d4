package models

import "gorm.io/gorm"

// Product represents a menu item. Catalog CRUD is owned by the admin service;
// order creation only reads products to snapshot live prices.
type Product struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Active      bool    `json:"active" gorm:"default:true"`
	gorm.Model  `json:"-"`
}
