package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetFeed returns the loaded feed snapshot, fetching the first page when
// nothing is loaded yet.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	sess := s.session(c)
	pager := sess.Feed

	if len(pager.Posts()) == 0 {
		if err := pager.LoadMore(c.UserContext()); err != nil {
			return respondError(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"posts": pager.Posts(),
		"state": pager.State().String(),
	})
}

// LoadMoreFeed fetches the next feed page. Calling it while a fetch is in
// flight or after the feed is exhausted is a cheap no-op.
func (s *Server) LoadMoreFeed(c *fiber.Ctx) error {
	sess := s.session(c)
	if err := sess.Feed.LoadMore(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"posts": sess.Feed.Posts(),
		"state": sess.Feed.State().String(),
	})
}
