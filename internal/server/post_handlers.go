package server

import (
	"opinara/internal/models"
	"opinara/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		WaveID  *uint                `json:"waveId"`
		Title   string               `json:"title"`
		Content string               `json:"content"`
		Media   []service.MediaInput `json:"media"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:  userID,
		WaveID:  req.WaveID,
		Title:   req.Title,
		Content: req.Content,
		Media:   req.Media,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, post)
}

// GetMyPosts handles GET /api/posts?page=, newest first.
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	page, err := positiveQueryInt(c, "page")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.postService.ListUserPosts(c.UserContext(), userID, page)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, result)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.GetPost(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	mode, err := s.postService.DeletePost(c.UserContext(), userID, postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"mode": mode})
}

// ClassifyPost handles POST /api/posts/:id/classify. The verdict is stored
// on the post and returned.
func (s *Server) ClassifyPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.postService.ClassifyPost(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, result)
}

// SummarizePost handles POST /api/posts/:id/summary
func (s *Server) SummarizePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	summary, err := s.postService.Summarize(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"postId": postID, "summary": summary})
}
