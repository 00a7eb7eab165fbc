package server

import (
	"net/http"
	"testing"

	"opinara/internal/models"
	"opinara/internal/service"
	"opinara/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentTreeEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Dependencies{})
	author := testutil.CreateUser(t, env.db, "author")
	reader := testutil.CreateUser(t, env.db, "reader")
	post := testutil.CreatePost(t, env.db, author.ID, nil, "thread")
	commentsPath := "/api/posts/" + itoa(post.ID) + "/comments"

	status, body := env.do(t, http.MethodPost, commentsPath, reader.ID, map[string]any{"text": "root"})
	require.Equal(t, fiber.StatusCreated, status, body.Message)
	root := decodeData[models.Comment](t, body)

	status, body = env.do(t, http.MethodPost, commentsPath, author.ID, map[string]any{
		"text": "reply", "parentCommentId": root.ID,
	})
	require.Equal(t, fiber.StatusCreated, status, body.Message)
	reply := decodeData[models.Comment](t, body)

	status, body = env.do(t, http.MethodGet, commentsPath, reader.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	page := decodeData[service.CommentPage](t, body)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, root.ID, page.Comments[0].ID)
	assert.EqualValues(t, 1, page.Comments[0].ReplyCount)
	assert.Equal(t, 2, testutil.Reload[models.Post](t, env.db, post.ID).CommentCount)

	status, body = env.do(t, http.MethodGet, "/api/comments/"+itoa(root.ID)+"/replies", reader.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	replies := decodeData[[]models.Comment](t, body)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	status, body = env.do(t, http.MethodDelete, "/api/comments/"+itoa(root.ID), author.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, models.ErrCodeForbidden, body.ErrorKind)

	status, _ = env.do(t, http.MethodDelete, "/api/comments/"+itoa(root.ID), reader.ID, nil)
	require.Equal(t, fiber.StatusOK, status)

	_, body = env.do(t, http.MethodGet, commentsPath, reader.ID, nil)
	page = decodeData[service.CommentPage](t, body)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, models.DeletedCommentText, page.Comments[0].Text)
	assert.EqualValues(t, 1, page.Comments[0].ReplyCount)
}

func TestCommentEndpointValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Dependencies{})
	user := testutil.CreateUser(t, env.db, "user")
	post := testutil.CreatePost(t, env.db, user.ID, nil, "thread")
	other := testutil.CreatePost(t, env.db, user.ID, nil, "elsewhere")
	foreign := testutil.CreateComment(t, env.db, other.ID, user.ID, nil, "foreign")
	commentsPath := "/api/posts/" + itoa(post.ID) + "/comments"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"empty text", http.MethodPost, commentsPath, map[string]any{"text": "   "}, fiber.StatusBadRequest, models.ErrCodeValidation},
		{"zero parent", http.MethodPost, commentsPath, map[string]any{"text": "hi", "parentCommentId": 0}, fiber.StatusBadRequest, models.ErrCodeValidation},
		{"parent on other post", http.MethodPost, commentsPath, map[string]any{"text": "hi", "parentCommentId": foreign.ID}, fiber.StatusBadRequest, models.ErrCodeValidation},
		{"missing parent", http.MethodPost, commentsPath, map[string]any{"text": "hi", "parentCommentId": 9999}, fiber.StatusNotFound, models.ErrCodeNotFound},
		{"missing post", http.MethodPost, "/api/posts/9999/comments", map[string]any{"text": "hi"}, fiber.StatusNotFound, models.ErrCodeNotFound},
		{"limit zero", http.MethodGet, commentsPath + "?limit=0", nil, fiber.StatusBadRequest, models.ErrCodeValidation},
		{"negative page", http.MethodGet, commentsPath + "?page=-2", nil, fiber.StatusBadRequest, models.ErrCodeValidation},
		{"unknown sort", http.MethodGet, commentsPath + "?sort=random", nil, fiber.StatusBadRequest, models.ErrCodeValidation},
		{"replies of missing comment", http.MethodGet, "/api/comments/9999/replies", nil, fiber.StatusNotFound, models.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, user.ID, tt.body)
			assert.Equal(t, tt.status, status, body.Message)
			assert.Equal(t, tt.kind, body.ErrorKind)
		})
	}

	status, body := env.do(t, http.MethodGet, commentsPath+"?limit=500&sort=new", user.ID, nil)
	require.Equal(t, fiber.StatusOK, status, body.Message)
	assert.Equal(t, 100, decodeData[service.CommentPage](t, body).Limit)
}
