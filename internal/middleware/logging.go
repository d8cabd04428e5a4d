package middleware

import (
	"time"

	"glimpse/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// StructuredLogger logs one line per request with method, path, status,
// duration, and the requesting user when known.
func StructuredLogger(log *observability.Logger) fiber.Handler {
	if log == nil {
		log = observability.GlobalLogger
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.Locals("requestid"),
		}
		if uid := UserID(c); uid != "" {
			attrs = append(attrs, "user_id", uid)
		}

		if status >= 500 {
			log.Error("request", attrs...)
		} else {
			log.Info("request", attrs...)
		}
		return err
	}
}
