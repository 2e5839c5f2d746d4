package repositories

import (
	"yetkaz/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create persists the order and its line items in one transaction and
	// assigns the next sequential order number.
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByUser(userID string) ([]models.Order, error)
	Update(order *models.Order) error
	// UpdateFields applies a partial update to the order row.
	UpdateFields(id string, fields map[string]any) error
	// Delete removes the order and cascades to its line items.
	Delete(id string) error
	// ActiveByDriver returns the driver's orders currently OUT_FOR_DELIVERY.
	ActiveByDriver(driverID string) ([]models.Order, error)
	// ActiveDeliveries returns every order currently OUT_FOR_DELIVERY.
	ActiveDeliveries() ([]models.Order, error)
}
