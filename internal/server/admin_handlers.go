package server

import (
	"opinara/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RecountPost handles POST /api/admin/posts/:id/recount and rebuilds the
// post's counters from the vote ledger and live comments.
func (s *Server) RecountPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	report, err := s.postService.RecountPost(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, report)
}
