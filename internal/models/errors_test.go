package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Status(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewUnauthorizedError("who"), fiber.StatusUnauthorized},
		{NewForbiddenError("no"), fiber.StatusForbidden},
		{NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{NewConflictError("dup", nil), fiber.StatusConflict},
		{NewUpstreamError("llm", errors.New("boom")), fiber.StatusBadGateway},
		{NewInternalError(errors.New("db")), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Status())
		})
	}
}

func TestHasCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("cast vote: %w", NewForbiddenError("post is orphaned"))
	assert.True(t, HasCode(err, ErrCodeForbidden))
	assert.False(t, HasCode(err, ErrCodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeForbidden))
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, errors.New("pq: connection refused"))
	})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewConflictError("Wave name already taken", nil))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Success)
	assert.Equal(t, ErrCodeInternal, out.ErrorKind)
	assert.NotContains(t, out.Message, "connection refused")

	resp, err = app.Test(httptest.NewRequest("GET", "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Wave name already taken", out.Message)
	assert.Equal(t, ErrCodeConflict, out.ErrorKind)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRespondWithError_LogsInternalCause(t *testing.T) {
	logs := captureLogs(t)

	app := fiber.New()
	app.Get("/posts/:id", func(c *fiber.Ctx) error {
		return RespondWithError(c, fmt.Errorf("load post: %w", errors.New("pq: connection refused")))
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewNotFoundError("Post", 9))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/posts/3", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "connection refused")

	out := logs.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "path=/posts/3")
	assert.Contains(t, out, "method=GET")

	logs.Reset()
	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Empty(t, logs.String())
}

func TestRespondWithError_LogsUpstreamCause(t *testing.T) {
	logs := captureLogs(t)

	app := fiber.New()
	app.Post("/classify", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewUpstreamError("Moderation service unavailable", errors.New("429 too many requests")))
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/classify", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "429 too many requests")
}
