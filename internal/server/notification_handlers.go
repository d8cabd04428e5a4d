package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications returns the caller's newest notifications with actor and
// post enrichment.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	notifications, err := s.session(c).Queries.Notifications(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": notifications})
}

// MarkNotificationsRead flips the read flag on all of the caller's
// notifications.
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	if err := s.session(c).Mutations.MarkNotificationsRead(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
