// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"opinara/internal/database"
	"opinara/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every statement on the same memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// CreateUser inserts a user with a unique email.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Fullname: name,
		Password: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateWave inserts a wave owned by ownerID.
func CreateWave(t testing.TB, db *gorm.DB, ownerID uint, name string) *models.Wave {
	t.Helper()
	wave := &models.Wave{Name: name, Description: models.DefaultWaveDescription(name), CreatedBy: ownerID}
	require.NoError(t, db.Create(wave).Error)
	return wave
}

// CreatePost inserts a post by authorID, optionally inside a wave.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, waveID *uint, title string) *models.Post {
	t.Helper()
	post := &models.Post{UserID: authorID, WaveID: waveID, Title: title, Content: title + " body"}
	require.NoError(t, db.Create(post).Error)
	if waveID != nil {
		require.NoError(t, db.Model(&models.Wave{}).Where("id = ?", *waveID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error)
	}
	return post
}

// CreateComment inserts a comment and bumps the post's comment_count like the service does.
func CreateComment(t testing.TB, db *gorm.DB, postID, authorID uint, parentID *uint, text string) *models.Comment {
	t.Helper()
	comment := &models.Comment{PostID: postID, UserID: authorID, ParentCommentID: parentID, Text: text}
	require.NoError(t, db.Create(comment).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error)
	return comment
}

// Reload re-reads dest by primary key.
func Reload[T any](t testing.TB, db *gorm.DB, id uint) *T {
	t.Helper()
	var dest T
	require.NoError(t, db.First(&dest, id).Error)
	return &dest
}

// Exists reports whether a row of T with id is present.
func Exists[T any](t testing.TB, db *gorm.DB, id uint) bool {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(new(T)).Where("id = ?", id).Count(&count).Error)
	return count > 0
}
