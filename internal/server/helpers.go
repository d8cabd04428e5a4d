package server

import (
	"glimpse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps the application error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}
	if code := models.ErrorCode(err); code != "" {
		body["code"] = code
	}
	return c.Status(status).JSON(body)
}
