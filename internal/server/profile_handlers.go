package server

import (
	"io"

	"glimpse/internal/mutate"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the caller's own profile.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.session(c).Queries.CurrentProfile(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetProfileByUsername returns a profile by username.
func (s *Server) GetProfileByUsername(c *fiber.Ctx) error {
	profile, err := s.session(c).Queries.ProfileByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

type updateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	Website   *string `json:"website"`
	IsPrivate *bool   `json:"is_private"`
}

// UpdateMyProfile applies partial updates to the caller's profile. Absent
// fields are left unchanged.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := s.session(c).Mutations.UpdateProfile(c.UserContext(), mutate.UpdateProfileInput{
		FullName:  req.FullName,
		Bio:       req.Bio,
		Website:   req.Website,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadAvatar accepts a multipart image and points the caller's profile at
// the stored copy.
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "An avatar file is required",
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

	avatarURL, err := s.session(c).Mutations.UploadAvatar(
		c.UserContext(), data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"avatar_url": avatarURL})
}

// SearchProfiles matches profiles by username or full name.
func (s *Server) SearchProfiles(c *fiber.Ctx) error {
	profiles, err := s.session(c).Queries.SearchProfiles(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"profiles": profiles})
}

// GetUserPosts returns one owner's posts, newest first.
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	posts, err := s.session(c).Queries.UserPosts(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// GetFollowCounts returns the derived follower/following counts for a user.
func (s *Server) GetFollowCounts(c *fiber.Ctx) error {
	counts, err := s.session(c).Queries.FollowCounts(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(counts)
}

// GetIsFollowing reports whether the caller follows the given user.
func (s *Server) GetIsFollowing(c *fiber.Ctx) error {
	following, err := s.session(c).Queries.IsFollowing(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"is_following": following})
}

type toggleFollowRequest struct {
	Following bool `json:"following"`
}

// ToggleFollow flips the caller's follow edge toward the given user.
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	var req toggleFollowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := s.session(c).Mutations.ToggleFollow(c.UserContext(), mutate.ToggleFollowInput{
		TargetUserID: c.Params("id"),
		Following:    req.Following,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"following": !req.Following})
}
