package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/middleware"
	"yetkaz/internal/models"
	"yetkaz/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service        *services.OrderService
	notifier       services.Notifier
	validate       *validator.Validate
	log            *zap.SugaredLogger
	exposeInternal bool
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, notifier services.Notifier, log *zap.SugaredLogger, exposeInternal bool) *OrderHandler {
	return &OrderHandler{
		service:        service,
		notifier:       notifier,
		validate:       validator.New(),
		log:            log,
		exposeInternal: exposeInternal,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orders := router.Group("/orders")
	orders.Post("/", h.HandleCreateOrder)
	orders.Get("/", h.HandleListMyOrders)
	orders.Get("/:id", h.HandleGetOrder)
	orders.Delete("/:id", h.HandleDeleteOrder)

	admin := orders.Group("", middleware.RequireRole(models.RoleAdmin))
	admin.Patch("/:id/status", h.HandleUpdateStatus)
	admin.Post("/:id/assign", h.HandleAssignDriver)
}

// HandleCreateOrder creates a new order for the calling user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var in services.CreateOrderInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationErrors(err))
	}
	userID, _ := caller(c)
	in.UserID = userID

	order, events, err := h.service.Create(in)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	dispatch(c, h.notifier, h.log, events)
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListMyOrders returns the calling user's orders.
func (h *OrderHandler) HandleListMyOrders(c *fiber.Ctx) error {
	userID, _ := caller(c)
	orders, err := h.service.ListByUser(userID)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(orders)
}

// HandleGetOrder returns one order, ownership-checked.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	userID, role := caller(c)
	order, err := h.service.GetByID(c.Params("id"), userID, role)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(order)
}

// HandleDeleteOrder removes a still-PENDING order.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	userID, role := caller(c)
	if err := h.service.Delete(c.Params("id"), userID, role); err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(fiber.Map{"message": "Order deleted"})
}

type updateStatusRequest struct {
	Status        *models.OrderStatus   `json:"status"`
	PaymentStatus *models.PaymentStatus `json:"payment_status"`
	Force         bool                  `json:"force"`
}

// HandleUpdateStatus applies a partial, validated status update. The force
// flag routes through the explicit override path instead of the transition
// table.
func (h *OrderHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if req.Status == nil && req.PaymentStatus == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "status or payment_status is required",
		})
	}

	var (
		order *models.Order
		err   error
	)
	if req.Force && req.Status != nil {
		order, err = h.service.ForceStatus(c.Params("id"), *req.Status)
	} else {
		order, err = h.service.UpdateStatus(c.Params("id"), req.Status, req.PaymentStatus)
	}
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(order)
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

// HandleAssignDriver attaches a driver to the order.
func (h *OrderHandler) HandleAssignDriver(c *fiber.Ctx) error {
	var req assignDriverRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationErrors(err))
	}
	order, err := h.service.AssignDriver(c.Params("id"), req.DriverID)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(order)
}
