package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yetkaz/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create persists the order with its items and assigns the next order number.
// The number comes from a single counter row incremented under a row lock in
// the same transaction, so concurrent checkouts cannot race to the same
// number the way a read-highest-then-increment scheme would.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var counter models.OrderCounter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			FirstOrCreate(&counter, models.OrderCounter{ID: 1}).Error; err != nil {
			return fmt.Errorf("failed to lock order counter: %w", err)
		}
		counter.Value++
		if err := tx.Save(&counter).Error; err != nil {
			return fmt.Errorf("failed to advance order counter: %w", err)
		}
		order.Number = fmt.Sprintf("%04d", counter.Value)
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an order with its line items, or nil when absent.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// GetByUser retrieves a user's orders, newest first.
func (r *GORMOrderRepository) GetByUser(userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Where("user_id = ?", userID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// Update saves the whole order row.
func (r *GORMOrderRepository) Update(order *models.Order) error {
	if err := r.db.Save(order).Error; err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	return nil
}

// UpdateFields applies a partial update to the order row.
func (r *GORMOrderRepository) UpdateFields(id string, fields map[string]any) error {
	res := r.db.Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s not found for update", id)
	}
	return nil
}

// Delete removes the order and its line items in one transaction.
func (r *GORMOrderRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.OrderItem{}, "order_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete items of order %s: %w", id, err)
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %s not found for deletion", id)
		}
		return nil
	})
}

// ActiveByDriver returns the driver's OUT_FOR_DELIVERY orders.
func (r *GORMOrderRepository) ActiveByDriver(driverID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("driver_id = ? AND status = ?", driverID, models.OrderStatusOutForDelivery).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list active orders for driver %s: %w", driverID, err)
	}
	return orders, nil
}

// ActiveDeliveries returns every OUT_FOR_DELIVERY order.
func (r *GORMOrderRepository) ActiveDeliveries() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("status = ?", models.OrderStatusOutForDelivery).
		Order("delivery_started_at ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list active deliveries: %w", err)
	}
	return orders, nil
}
