package services

import (
	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
)

// OrderItemInput is one requested line item. Only the product reference and
// quantity are taken from the client; prices always come from the catalog.
type OrderItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput carries everything checkout submits.
type CreateOrderInput struct {
	UserID          string           `json:"-"`
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string           `json:"payment_method"`
	DeliveryAddress string           `json:"delivery_address" validate:"required"`
	DeliveryPhone   string           `json:"delivery_phone" validate:"required"`
	DeliveryLat     *float64         `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64         `json:"delivery_lng,omitempty"`
	CouponCode      string           `json:"coupon_code,omitempty"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	coupons     *CouponService
	log         *zap.SugaredLogger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	userRepo repositories.UserRepository,
	coupons *CouponService,
	log *zap.SugaredLogger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		coupons:     coupons,
		log:         log,
	}
}

// Create validates the requested items against the live catalog, recomputes
// every line price, applies an optional coupon and persists the order with
// its next sequential number. The order and its items are written in one
// transaction, so a rejected item never leaves partial line items behind.
func (s *OrderService) Create(in CreateOrderInput) (*models.Order, []Event, error) {
	if len(in.Items) == 0 {
		return nil, nil, apperrors.Validation("order must contain at least one item")
	}

	user, err := s.userRepo.GetByID(in.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperrors.NotFound("user")
	}

	var subtotal float64
	items := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, nil, apperrors.Validation("item quantity must be positive")
		}
		product, err := s.productRepo.GetByID(it.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if product == nil || !product.Active {
			return nil, nil, apperrors.Validation("product %s is not available", it.ProductID)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			Price:     product.Price, // snapshot of the live price
		})
		subtotal += product.Price * float64(it.Quantity)
	}
	subtotal = Round2(subtotal)

	total := subtotal
	var coupon *CouponResult
	if in.CouponCode != "" {
		coupon, err = s.coupons.Validate(in.CouponCode, subtotal, in.UserID)
		if err != nil {
			return nil, nil, err
		}
		if !coupon.Valid {
			return nil, nil, apperrors.Validation("coupon rejected: %s", coupon.Message)
		}
		total = Round2(subtotal - coupon.DiscountAmount)
		if total < 0 {
			total = 0
		}
	}

	order := &models.Order{
		UserID:          in.UserID,
		Items:           items,
		TotalPrice:      total,
		Status:          models.OrderStatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryPhone:   in.DeliveryPhone,
		DeliveryLat:     in.DeliveryLat,
		DeliveryLng:     in.DeliveryLng,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, nil, err
	}

	if coupon != nil && coupon.Valid {
		if err := s.coupons.RecordUsage(coupon.CouponID, in.UserID, order.ID); err != nil {
			// The order is already committed; losing one usage row only
			// loosens limit counting, so log instead of failing checkout.
			s.log.Warnw("failed to record coupon usage", "coupon", coupon.Code, "order_id", order.ID, "error", err)
		}
	}

	s.log.Infow("order created", "order_id", order.ID, "number", order.Number, "total", order.TotalPrice)
	events := []Event{{
		Type:    EventOrderCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
		Data:    map[string]any{"number": order.Number, "total": order.TotalPrice},
	}}
	return order, events, nil
}

// GetByID returns the order if the caller may see it: the owner, the assigned
// driver, or an admin. Ownership is re-checked on every request.
func (s *OrderService) GetByID(orderID, callerID, role string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}
	if !canAccessOrder(order, callerID, role) {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}
	return order, nil
}

// ListByUser returns the caller's orders.
func (s *OrderService) ListByUser(userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUser(userID)
}

// Delete removes an order that is still PENDING, together with its line
// items. Any other status is rejected.
func (s *OrderService) Delete(orderID, callerID, role string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return apperrors.NotFound("order")
	}
	if order.UserID != callerID && role != models.RoleAdmin {
		return apperrors.Forbidden("you do not have access to this order")
	}
	if order.Status != models.OrderStatusPending {
		return apperrors.InvalidState("only %s orders can be deleted, order is %s",
			models.OrderStatusPending, order.Status)
	}
	return s.orderRepo.Delete(orderID)
}

// UpdateStatus applies a partial status update. Both fields are optional and
// independently settable; status changes must pass the transition gatekeeper.
func (s *OrderService) UpdateStatus(orderID string, status *models.OrderStatus, paymentStatus *models.PaymentStatus) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}

	fields := map[string]any{}
	if status != nil {
		if !status.Valid() {
			return nil, apperrors.Validation("unknown order status %q", *status)
		}
		if !order.Status.CanTransition(*status) {
			return nil, apperrors.InvalidState("cannot transition order from %s to %s", order.Status, *status)
		}
		fields["status"] = *status
	}
	if paymentStatus != nil {
		switch *paymentStatus {
		case models.PaymentStatusPending, models.PaymentStatusPaid, models.PaymentStatusFailed:
		default:
			return nil, apperrors.Validation("unknown payment status %q", *paymentStatus)
		}
		fields["payment_status"] = *paymentStatus
	}
	if len(fields) == 0 {
		return order, nil
	}
	if err := s.orderRepo.UpdateFields(orderID, fields); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(orderID)
}

// ForceStatus sets any status value directly, bypassing the transition table.
// This is the explicit admin override path; every other caller goes through
// UpdateStatus.
func (s *OrderService) ForceStatus(orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.Validation("unknown order status %q", status)
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}
	s.log.Warnw("forcing order status", "order_id", orderID, "from", order.Status, "to", status)
	if err := s.orderRepo.UpdateFields(orderID, map[string]any{"status": status}); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(orderID)
}

// AssignDriver attaches a driver to the order (admin dispatch).
func (s *OrderService) AssignDriver(orderID, driverID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}
	if order.Status.Terminal() {
		return nil, apperrors.InvalidState("cannot assign a driver to a %s order", order.Status)
	}
	driver, err := s.userRepo.GetByID(driverID)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, apperrors.NotFound("driver")
	}
	if driver.Role != models.RoleDriver {
		return nil, apperrors.Validation("user %s is not a driver", driverID)
	}
	order.DriverID = &driverID
	if err := s.orderRepo.Update(order); err != nil {
		return nil, err
	}
	return order, nil
}

func canAccessOrder(order *models.Order, callerID, role string) bool {
	if role == models.RoleAdmin {
		return true
	}
	if order.UserID == callerID {
		return true
	}
	return order.DriverID != nil && *order.DriverID == callerID
}
