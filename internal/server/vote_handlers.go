package server

import (
	"opinara/internal/models"
	"opinara/internal/service"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	Action models.VoteType `json:"action"`
}

// VotePost handles PATCH /api/posts/:id/vote
func (s *Server) VotePost(c *fiber.Ctx) error {
	return s.castVote(c, models.TargetPost)
}

// VoteComment handles PATCH /api/comments/:id/vote
func (s *Server) VoteComment(c *fiber.Ctx) error {
	return s.castVote(c, models.TargetComment)
}

// castVote applies the caller's vote toggle to the target named by :id.
func (s *Server) castVote(c *fiber.Ctx, targetType models.TargetType) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	targetID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.voteService.CastVote(c.UserContext(), service.CastVoteInput{
		UserID:     userID,
		TargetID:   targetID,
		TargetType: targetType,
		Action:     req.Action,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, result)
}
