package models

import "time"

// OrderStatus represents the current progress of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// orderStatusRank orders the forward-moving statuses. CANCELLED sits outside
// the chain and is handled separately by CanTransition.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusConfirmed:      1,
	OrderStatusPreparing:      2,
	OrderStatusOutForDelivery: 3,
	OrderStatusDelivered:      4,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition is the single gatekeeper for status changes: statuses only
// move forward along the chain, cancellation is reachable from PENDING only,
// and terminal statuses are frozen. Admin overrides that need to bypass this
// go through the explicit force path on the order service.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return s == OrderStatusPending
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	rank, ok := orderStatusRank[to]
	if !ok {
		return false
	}
	return rank > from
}

// PaymentStatus is shared by Payment rows and the order's payment_status mirror.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// GeoPoint is a latitude/longitude pair embedded into orders twice: once for
// the delivery destination and once for the live driver position mirror.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OrderItem is a line item with the unit price snapshotted at order time.
type OrderItem struct {
	ID        string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string  `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID string  `json:"product_id" gorm:"type:varchar(36)" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price"` // unit price at the time of order, never client-supplied
}

// Order is the aggregate this core exists for. TotalPrice is computed from
// live catalog prices with any coupon discount already applied, and is never
// taken from the client.
type Order struct {
	ID              string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Number          string        `json:"number" gorm:"uniqueIndex;type:varchar(8)"`
	UserID          string        `json:"user_id" gorm:"index;type:varchar(36)"`
	Items           []OrderItem   `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalPrice      float64       `json:"total_price"`
	Status          OrderStatus   `json:"status" gorm:"type:varchar(20);default:'PENDING'"`
	PaymentMethod   string        `json:"payment_method" gorm:"type:varchar(20)"`
	PaymentStatus   PaymentStatus `json:"payment_status" gorm:"type:varchar(10);default:'PENDING'"`
	DeliveryAddress string        `json:"delivery_address"`
	DeliveryPhone   string        `json:"delivery_phone"`

	// Destination and live driver position. Nullable; tracking is reported
	// as absent until both are known.
	DeliveryLat *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng *float64 `json:"delivery_lng,omitempty"`
	DriverLat   *float64 `json:"driver_lat,omitempty"`
	DriverLng   *float64 `json:"driver_lng,omitempty"`

	DriverID   *string `json:"driver_id,omitempty" gorm:"index;type:varchar(36)"`
	EtaMinutes *int    `json:"eta_minutes,omitempty"`

	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	TrackingStartedAt  *time.Time `json:"tracking_started_at,omitempty"`
	DeliveryStartedAt  *time.Time `json:"delivery_started_at,omitempty"`
	DeliveryFinishedAt *time.Time `json:"delivery_finished_at,omitempty"`
}

// DeliveryLocation returns the destination coordinates, or nil if not set yet.
func (o *Order) DeliveryLocation() *GeoPoint {
	if o.DeliveryLat == nil || o.DeliveryLng == nil {
		return nil
	}
	return &GeoPoint{Lat: *o.DeliveryLat, Lng: *o.DeliveryLng}
}

// DriverLocation returns the last mirrored driver position, or nil.
func (o *Order) DriverLocation() *GeoPoint {
	if o.DriverLat == nil || o.DriverLng == nil {
		return nil
	}
	return &GeoPoint{Lat: *o.DriverLat, Lng: *o.DriverLng}
}

// OrderCounter is a single-row table backing sequential order numbering.
// The row is incremented under a row lock inside the order-creation
// transaction so concurrent checkouts cannot race to the same number.
type OrderCounter struct {
	ID    int `gorm:"primaryKey"`
	Value int64
}
