package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/services"
)

// PromoHandler handles coupon validation requests.
type PromoHandler struct {
	service        *services.CouponService
	validate       *validator.Validate
	exposeInternal bool
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(service *services.CouponService, exposeInternal bool) *PromoHandler {
	return &PromoHandler{
		service:        service,
		validate:       validator.New(),
		exposeInternal: exposeInternal,
	}
}

// RegisterRoutes registers the promo routes with the Fiber app.
func (h *PromoHandler) RegisterRoutes(router fiber.Router) {
	promos := router.Group("/promos")
	promos.Post("/validate", h.HandleValidate)
}

type validatePromoRequest struct {
	Code       string  `json:"code" validate:"required"`
	OrderTotal float64 `json:"order_total" validate:"required,gt=0"`
}

// HandleValidate prices a coupon code against an order total. A rejected
// coupon is a normal response with valid:false, never an error status.
func (h *PromoHandler) HandleValidate(c *fiber.Ctx) error {
	var req validatePromoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationErrors(err))
	}

	userID, _ := caller(c)
	result, err := h.service.Validate(req.Code, req.OrderTotal, userID)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	if !result.Valid {
		return c.JSON(fiber.Map{"valid": false, "message": result.Message})
	}
	return c.JSON(fiber.Map{"valid": true, "data": result})
}
