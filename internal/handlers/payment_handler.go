package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/models"
	"yetkaz/internal/services"
)

// PaymentHandler handles HTTP requests for payments, including the provider
// callback endpoints.
type PaymentHandler struct {
	service        *services.PaymentService
	notifier       services.Notifier
	validate       *validator.Validate
	log            *zap.SugaredLogger
	exposeInternal bool
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService, notifier services.Notifier, log *zap.SugaredLogger, exposeInternal bool) *PaymentHandler {
	return &PaymentHandler{
		service:        service,
		notifier:       notifier,
		validate:       validator.New(),
		log:            log,
		exposeInternal: exposeInternal,
	}
}

// RegisterRoutes registers the authenticated payment routes.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	payments := router.Group("/payments")
	payments.Post("/initiate", h.HandleInitiate)
	payments.Get("/:orderId/status", h.HandleStatus)

	payment := router.Group("/payment")
	payment.Post("/create-intent", h.HandleCreateIntent)
}

// RegisterCallbackRoutes registers the endpoints called by providers and the
// simulator redirect. These authenticate by signature or merchant reference,
// not by bearer token.
func (h *PaymentHandler) RegisterCallbackRoutes(router fiber.Router) {
	payments := router.Group("/payments")
	payments.Get("/simulate/:paymentId/success", h.HandleSimulate)
	payments.Post("/callback/click", h.HandleClickCallback)
	payments.Post("/callback/payme", h.HandlePaymeCallback)

	router.Post("/payment/webhook", h.HandleStripeWebhook)
}

type initiateRequest struct {
	OrderID  string `json:"order_id" validate:"required"`
	Provider string `json:"provider" validate:"required"`
}

// HandleInitiate starts a checkout with the chosen provider.
func (h *PaymentHandler) HandleInitiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationErrors(err))
	}
	userID, _ := caller(c)
	result, err := h.service.Initiate(req.OrderID, userID, models.PaymentProvider(req.Provider))
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(result)
}

// HandleStatus returns the latest payment and the order's payment status.
func (h *PaymentHandler) HandleStatus(c *fiber.Ctx) error {
	userID, role := caller(c)
	result, err := h.service.Status(c.Params("orderId"), userID, role)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(result)
}

// HandleSimulate forces a payment to PAID and redirects with a success flag.
// The service 404s this entire path in production.
func (h *PaymentHandler) HandleSimulate(c *fiber.Ctx) error {
	redirectURL, events, err := h.service.Simulate(c.Params("paymentId"))
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	dispatch(c, h.notifier, h.log, events)
	return c.Redirect(redirectURL, fiber.StatusFound)
}

// HandleClickCallback ingests the form-encoded merchant callback. The
// provider's envelope is returned unconditionally; HTTP status stays 200.
func (h *PaymentHandler) HandleClickCallback(c *fiber.Ctx) error {
	var in services.ClickCallbackInput
	if err := c.BodyParser(&in); err != nil {
		return c.JSON(services.ClickResponse{Error: services.ClickCodeFailed, ErrorNote: "Malformed request"})
	}
	resp, events := h.service.HandleClickCallback(in)
	dispatch(c, h.notifier, h.log, events)
	return c.JSON(resp)
}

// HandlePaymeCallback ingests the JSON-RPC merchant callback. One endpoint,
// dispatched on the method field; the envelope always comes back. Merchant
// credentials are checked before the body is even parsed.
func (h *PaymentHandler) HandlePaymeCallback(c *fiber.Ctx) error {
	if !h.service.VerifyPaymeAuth(c.Get(fiber.HeaderAuthorization)) {
		return c.JSON(services.PaymeResponse{
			Error: &services.PaymeError{Code: services.PaymeErrUnauthorized, Message: "insufficient privileges"},
		})
	}
	var req services.PaymeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(services.PaymeResponse{
			Error: &services.PaymeError{Code: -32700, Message: "parse error"},
		})
	}
	resp, events := h.service.HandlePaymeRequest(req)
	dispatch(c, h.notifier, h.log, events)
	return c.JSON(resp)
}

type createIntentRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

// HandleCreateIntent creates a card-gateway payment intent for the order.
func (h *PaymentHandler) HandleCreateIntent(c *fiber.Ctx) error {
	var req createIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationErrors(err))
	}
	userID, _ := caller(c)
	result, err := h.service.CreateStripeIntent(req.OrderID, userID)
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	return c.JSON(fiber.Map{
		"clientSecret":    result.ClientSecret,
		"paymentIntentId": result.PaymentIntentID,
	})
}

// HandleStripeWebhook consumes the raw body plus signature header. Signature
// verification happens before anything in the payload is trusted.
func (h *PaymentHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	events, err := h.service.HandleStripeWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return apperrors.Respond(c, err, h.exposeInternal)
	}
	dispatch(c, h.notifier, h.log, events)
	return c.JSON(fiber.Map{"received": true})
}
