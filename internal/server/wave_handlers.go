package server

import (
	"opinara/internal/models"
	"opinara/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateWave handles POST /api/waves
func (s *Server) CreateWave(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		Summary       string `json:"summary"`
		CoverImageURL string `json:"coverImageUrl"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	wave, err := s.waveService.CreateWave(c.UserContext(), service.CreateWaveInput{
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		Summary:       req.Summary,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, wave)
}

// GetWave handles GET /api/waves/:id
func (s *Server) GetWave(c *fiber.Ctx) error {
	waveID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	wave, err := s.waveService.GetWave(c.UserContext(), waveID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, wave)
}

// GetWavePosts handles GET /api/waves/:id/posts?page=&sort=
func (s *Server) GetWavePosts(c *fiber.Ctx) error {
	waveID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}
	page, err := positiveQueryInt(c, "page")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.waveService.ListWavePosts(c.UserContext(), service.ListWavePostsInput{
		WaveID: waveID,
		Page:   page,
		Sort:   c.Query("sort"),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, result)
}

// DeleteWave handles DELETE /api/waves/:id
func (s *Server) DeleteWave(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	waveID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.waveService.DeleteWave(c.UserContext(), userID, waveID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, result)
}
