package server

import (
	"io"

	"glimpse/internal/mutate"

	"github.com/gofiber/fiber/v2"
)

// GetPost returns one aggregated post.
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.session(c).Queries.Post(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetComments returns a post's comments oldest-first with author summaries.
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.session(c).Queries.Comments(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// CreatePost accepts a multipart form with an image file plus optional
// caption and location fields.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "An image file is required",
		})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.session(c).Mutations.CreatePost(c.UserContext(), mutate.CreatePostInput{
		Image:       data,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Caption:     c.FormValue("caption"),
		Location:    c.FormValue("location"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost removes the caller's own post.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	err := s.session(c).Mutations.DeletePost(c.UserContext(), mutate.DeletePostInput{
		PostID: c.Params("id"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type toggleLikeRequest struct {
	PostOwnerID string `json:"post_owner_id"`
	Liked       bool   `json:"liked"`
}

// ToggleLike flips the caller's like on a post. The body carries the like
// state as the caller currently sees it.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	var req toggleLikeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := s.session(c).Mutations.ToggleLike(c.UserContext(), mutate.ToggleLikeInput{
		PostID:      c.Params("id"),
		PostOwnerID: req.PostOwnerID,
		Liked:       req.Liked,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"liked": !req.Liked})
}

type addCommentRequest struct {
	PostOwnerID string `json:"post_owner_id"`
	Content     string `json:"content"`
}

// AddComment appends a comment to a post.
func (s *Server) AddComment(c *fiber.Ctx) error {
	var req addCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	comment, err := s.session(c).Mutations.AddComment(c.UserContext(), mutate.AddCommentInput{
		PostID:      c.Params("id"),
		PostOwnerID: req.PostOwnerID,
		Content:     req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}
