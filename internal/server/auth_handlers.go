package server

import (
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/service"

	"github.com/gofiber/fiber/v2"
)

// authResponse is returned by signup and login.
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Fullname string `json:"fullname"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Email:    req.Email,
		Fullname: req.Fullname,
		Password: req.Password,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	token, err := middleware.IssueToken(s.config.JWTSecret, user.ID, tokenTTL)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return models.RespondWithData(c, fiber.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	token, err := middleware.IssueToken(s.config.JWTSecret, user.ID, tokenTTL)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return models.RespondWithData(c, fiber.StatusOK, authResponse{Token: token, User: user})
}
