package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"yetkaz/internal/services"
)

// caller extracts the verified identity placed on the context by the auth
// middleware.
func caller(c *fiber.Ctx) (userID, role string) {
	userID, _ = c.Locals("user_id").(string)
	role, _ = c.Locals("role").(string)
	return userID, role
}

// validationErrors renders validator failures as a field→message map, the
// same shape everywhere.
func validationErrors(err error) fiber.Map {
	out := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range verrs {
			out[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return fiber.Map{"message": "Validation failed", "errors": out}
}

// dispatch forwards operation events to the notification collaborator,
// fire-and-forget.
func dispatch(c *fiber.Ctx, n services.Notifier, log *zap.SugaredLogger, events []services.Event) {
	services.Dispatch(c.UserContext(), n, log, events)
}
