package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"opinara/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"postId", "post ID"},
		{"commentId", "comment ID"},
		{"parentCommentId", "parent comment ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParseID(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return models.RespondWithError(c, err)
		}
		return c.JSON(fiber.Map{"id": id})
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/items/42", fiber.StatusOK},
		{"/items/0", fiber.StatusBadRequest},
		{"/items/-3", fiber.StatusBadRequest},
		{"/items/abc", fiber.StatusBadRequest},
		{"/items/99999999999", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == fiber.StatusBadRequest {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.Equal(t, "Invalid ID", body.Message)
				assert.Equal(t, models.ErrCodeValidation, body.ErrorKind)
			}
		})
	}
}

func TestPositiveQueryInt(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		n, err := positiveQueryInt(c, "page")
		if err != nil {
			return models.RespondWithError(c, err)
		}
		return c.JSON(fiber.Map{"page": n})
	})

	tests := []struct {
		query  string
		status int
		page   int
	}{
		{"", fiber.StatusOK, 0},
		{"?page=3", fiber.StatusOK, 3},
		{"?page=0", fiber.StatusBadRequest, 0},
		{"?page=-1", fiber.StatusBadRequest, 0},
		{"?page=two", fiber.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			require.Equal(t, tt.status, resp.StatusCode)

			if tt.status == fiber.StatusOK {
				var body struct {
					Page int `json:"page"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.page, body.Page)
			}
		})
	}
}
