package repositories

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"yetkaz/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	nextNo int64
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]models.Order)}
}

// Create stores the order and assigns the next sequential number.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	r.nextNo++
	order.Number = fmt.Sprintf("%04d", r.nextNo)
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	r.orders[order.ID] = *order
	return nil
}

// GetByID returns a copy of the stored order, or nil.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

// GetByUser returns the user's orders.
func (r *MockOrderRepository) GetByUser(userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// Update replaces the stored order.
func (r *MockOrderRepository) Update(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return fmt.Errorf("order %s not found for update", order.ID)
	}
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	return nil
}

// UpdateFields applies a partial update. Only the fields the services
// actually patch are recognized.
func (r *MockOrderRepository) UpdateFields(id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found for update", id)
	}
	for k, v := range fields {
		switch k {
		case "status":
			order.Status = v.(models.OrderStatus)
		case "payment_status":
			order.PaymentStatus = v.(models.PaymentStatus)
		case "payment_method":
			order.PaymentMethod = v.(string)
		case "driver_lat":
			f := v.(float64)
			order.DriverLat = &f
		case "driver_lng":
			f := v.(float64)
			order.DriverLng = &f
		default:
			return fmt.Errorf("unsupported field %q in mock update", k)
		}
	}
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// SetPaymentStatus mirrors a settlement result onto the order (used by the
// payment mock to keep the two-row write atomic under one lock ordering).
func (r *MockOrderRepository) SetPaymentStatus(orderID string, status models.PaymentStatus) error {
	return r.UpdateFields(orderID, map[string]any{"payment_status": status})
}

// Delete removes the order with its items.
func (r *MockOrderRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order %s not found for deletion", id)
	}
	delete(r.orders, id)
	return nil
}

// ActiveByDriver returns the driver's OUT_FOR_DELIVERY orders.
func (r *MockOrderRepository) ActiveByDriver(driverID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.DriverID != nil && *o.DriverID == driverID && o.Status == models.OrderStatusOutForDelivery {
			out = append(out, o)
		}
	}
	return out, nil
}

// ActiveDeliveries returns every OUT_FOR_DELIVERY order.
func (r *MockOrderRepository) ActiveDeliveries() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderStatusOutForDelivery {
			out = append(out, o)
		}
	}
	return out, nil
}
