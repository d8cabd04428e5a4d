// Package middleware provides authentication and request logging middleware.
package middleware

import (
	"strings"

	"glimpse/internal/identity"

	"github.com/gofiber/fiber/v2"
)

// UserIDKey is the fiber locals key carrying the authenticated user id.
const UserIDKey = "userID"

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired enforces a valid bearer token and stores the user id in
// locals.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}
		uid, err := identity.FromToken(token, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}
		c.Locals(UserIDKey, uid)
		return c.Next()
	}
}

// AuthOptional resolves a bearer token when present but lets anonymous
// requests through. An invalid token is treated as anonymous, not rejected,
// so public reads keep working with an expired session.
func AuthOptional(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := bearerToken(c); ok {
			if uid, err := identity.FromToken(token, secret); err == nil {
				c.Locals(UserIDKey, uid)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id from locals, empty when the
// request is anonymous.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDKey).(string)
	return uid
}
