package models

import (
	"github.com/gofiber/fiber/v2"
)

// SuccessResponse is the JSON body written for successful requests.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// RespondWithData writes data inside the success envelope.
func RespondWithData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(SuccessResponse{Success: true, Data: data})
}

// RespondWithMessage writes a data-less success envelope.
func RespondWithMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(SuccessResponse{Success: true, Message: message})
}
