package server

import (
	"opinara/internal/models"
	"opinara/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/posts/:id/comments. A parentCommentId makes
// the comment a reply.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		Text            string `json:"text"`
		ParentCommentID *uint  `json:"parentCommentId"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}
	if req.ParentCommentID != nil && *req.ParentCommentID == 0 {
		return models.RespondWithError(c, models.NewValidationError("Invalid parent comment ID"))
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:          userID,
		PostID:          postID,
		Text:            req.Text,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, comment)
}

// GetComments handles GET /api/posts/:id/comments?page=&limit=&sort=
// and returns one page of root comments, each with its replyCount.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}
	page, err := positiveQueryInt(c, "page")
	if err != nil {
		return models.RespondWithError(c, err)
	}
	limit, err := positiveQueryInt(c, "limit")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.commentService.ListRootComments(c.UserContext(), service.ListRootCommentsInput{
		PostID: postID,
		Page:   page,
		Limit:  limit,
		Sort:   c.Query("sort"),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, result)
}

// GetReplies handles GET /api/comments/:id/replies?sort=, one level deep.
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	replies, err := s.commentService.ListReplies(c.UserContext(), commentID, c.Query("sort"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, replies)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	commentID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.commentService.DeleteComment(c.UserContext(), userID, commentID); err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithMessage(c, fiber.StatusOK, "Comment deleted")
}
