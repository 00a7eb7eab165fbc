package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"opinara/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestPostRepository_ApplyVoteDelta(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	t.Run("single atomic update", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "downvote_count"=downvote_count + $1,"upvote_count"=upvote_count + $2 WHERE id = $3`)).
			WithArgs(-1, 1, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.ApplyVoteDelta(ctx, 7, 1, -1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.ApplyVoteDelta(ctx, 99, 1, 0)
		assert.True(t, models.HasCode(err, models.ErrCodeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero delta issues no statement", func(t *testing.T) {
		require.NoError(t, repo.ApplyVoteDelta(ctx, 7, 0, 0))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCommentRepository_ReplyCounts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT parent_comment_id, COUNT(*) AS count FROM "comments" WHERE parent_comment_id IN ($1,$2)`)).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"parent_comment_id", "count"}).AddRow(1, 3))

	counts, err := repo.ReplyCounts(ctx, []uint{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[1])
	assert.Zero(t, counts[2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ReplyCounts_EmptyInput(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	counts, err := repo.ReplyCounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Find_NoVote(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "votes" WHERE user_id = $1 AND target_type = $2 AND target_id = $3`)).
		WithArgs(1, models.TargetComment, 5, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	vote, err := repo.Find(context.Background(), 1, models.TargetComment, 5)
	assert.NoError(t, err)
	assert.Nil(t, vote)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_WritesDetectConcurrentChange(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	t.Run("switch guarded by the type that was read", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "votes" SET .*"type"=.* WHERE id = .* AND type = `).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.UpdateType(ctx, 4, models.VoteUp, models.VoteDown))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("switch lost to another write", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "votes" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, repo.UpdateType(ctx, 4, models.VoteUp, models.VoteDown), ErrVoteChanged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete of an already removed vote", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "votes" WHERE "votes"."id" = $1`)).
			WithArgs(4).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, repo.Delete(ctx, 4), ErrVoteChanged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepository_OrphanByWave(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "posts" SET .*"is_orphaned"=.*"wave_id"=.* WHERE wave_id = `).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := repo.OrphanByWave(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert vote: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
