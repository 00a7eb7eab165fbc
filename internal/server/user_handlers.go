package server

import (
	"opinara/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.GetUser(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, user)
}

type bioRequest struct {
	Bio string `json:"bio"`
}

// UpdateMe handles PATCH /api/users/me
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req bioRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.UpdateBio(c.UserContext(), userID, req.Bio)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, user)
}

// DeleteMe handles DELETE /api/users/me. Accounts without activity are
// removed outright; others are soft deleted together with their content.
func (s *Server) DeleteMe(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	mode, err := s.userService.DeleteUser(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"mode": mode})
}
