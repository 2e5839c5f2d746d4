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

// TrackingHandler handles driver location pings and the delivery lifecycle.
type TrackingHandler struct {
	service        *services.TrackingService
	notifier       services.Notifier
	validate       *validator.Validate
	log            *zap.SugaredLogger
	exposeInternal bool
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(service *services.TrackingService, notifier services.Notifier, log *zap.SugaredLogger, exposeInternal bool) *TrackingHandler {
	return &TrackingHandler{
		service:        service,
		notifier:       notifier,
		validate:       validator.New(),
		log:            log,
		exposeInternal: exposeInternal,
	}
}

// RegisterRoutes registers the tracking routes with the Fiber app.
func (h *TrackingHandler) RegisterRoutes(router fiber.Router) {
	tracking := router.Group("/tracking")
	tracking.Post("/driver/location",
		middleware.RequireRole(models.RoleDriver), h.HandleDriverLocation)
	tracking.Post("/order/:id/start", h.HandleStartDelivery)
	tracking.Post("/order/:id/complete", h.HandleCompleteDelivery)
	tracking.Get("/order/:id", h.HandleGetTracking)
	tracking.Get("/active",
		middleware.RequireRole(models.RoleAdmin), h.HandleActiveDeliveries)
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HandleDriverLocation records one GPS ping for the calling driver.
func (h *TrackingHandler) HandleDriverLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	driverID, _ := caller(c)
	events, err := h.service.RecordDriverLocation(c.UserContext(), driverID, req.Lat, req.Lng)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	dispatch(c, h.notifier, h.log, events)
	return c.JSON(fiber.Map{"message": "Location recorded"})
}

// HandleStartDelivery moves the order out for delivery toward the given
// destination.
func (h *TrackingHandler) HandleStartDelivery(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	userID, role := caller(c)
	order, events, err := h.service.StartDelivery(c.UserContext(), c.Params("id"), userID, role,
		models.GeoPoint{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	dispatch(c, h.notifier, h.log, events)
	return c.JSON(order)
}

// HandleCompleteDelivery marks the order delivered.
func (h *TrackingHandler) HandleCompleteDelivery(c *fiber.Ctx) error {
	userID, role := caller(c)
	order, events, err := h.service.CompleteDelivery(c.Params("id"), userID, role)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	dispatch(c, h.notifier, h.log, events)
	return c.JSON(order)
}

// HandleGetTracking returns the live tracking composite for an order.
func (h *TrackingHandler) HandleGetTracking(c *fiber.Ctx) error {
	userID, role := caller(c)
	info, err := h.service.GetTracking(c.Params("id"), userID, role)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(info)
}

// HandleActiveDeliveries lists every order currently out for delivery.
func (h *TrackingHandler) HandleActiveDeliveries(c *fiber.Ctx) error {
	orders, err := h.service.ActiveDeliveries()
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(orders)
}
