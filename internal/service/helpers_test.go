package service

import (
	"context"
	"errors"
	"testing"

	"opinara/internal/cache"
	"opinara/internal/models"
	"opinara/internal/moderation"
	"opinara/internal/repository"
	"opinara/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*gorm.DB, repository.Store) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return db, repository.NewStore(db)
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// withMiniRedis installs a miniredis-backed cache client for the test.
// Callers must not run in parallel.
func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

// classifierStub is a func-field stub for TextClassifier.
type classifierStub struct {
	classifyFn func(ctx context.Context, text string) (moderation.Verdict, error)
}

func (s *classifierStub) ClassifyText(ctx context.Context, text string) (moderation.Verdict, error) {
	return s.classifyFn(ctx, text)
}

// summarizerStub is a func-field stub for Summarizer.
type summarizerStub struct {
	summarizeFn func(ctx context.Context, text string) (string, error)
}

func (s *summarizerStub) Summarize(ctx context.Context, text string) (string, error) {
	return s.summarizeFn(ctx, text)
}

func verdict(label moderation.Label, score int, top moderation.Category) moderation.Verdict {
	return moderation.Verdict{Score: score, Label: label, TopCategory: top}
}

func countVotes(t *testing.T, db *gorm.DB, targetType models.TargetType, targetID uint, voteType models.VoteType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Vote{}).
		Where("target_type = ? AND target_id = ? AND type = ?", targetType, targetID, voteType).
		Count(&n).Error)
	return n
}

func ptr[T any](v T) *T {
	return &v
}
