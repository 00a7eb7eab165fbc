package bootstrap

import (
	"context"
	"testing"

	"opinara/internal/config"
	"opinara/internal/models"
	"opinara/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureDevRootAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates admin once", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewTestDB(t)
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true, DevRootEmail: " Root@Opinara.Local ", DevRootPassword: "rootpass1"}

		require.NoError(t, EnsureDevRootAdmin(ctx, cfg, db))
		require.NoError(t, EnsureDevRootAdmin(ctx, cfg, db))

		var users []models.User
		require.NoError(t, db.Find(&users).Error)
		require.Len(t, users, 1)
		assert.Equal(t, "root@opinara.local", users[0].Email)
		assert.True(t, users[0].IsAdmin)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("rootpass1")))
	})

	t.Run("promotes existing account", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewTestDB(t)
		user := testutil.CreateUser(t, db, "someone")
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true, DevRootEmail: user.Email, DevRootPassword: "rootpass1"}

		require.NoError(t, EnsureDevRootAdmin(ctx, cfg, db))
		stored := testutil.Reload[models.User](t, db, user.ID)
		assert.True(t, stored.IsAdmin)
		assert.Equal(t, "x", stored.Password)
	})

	t.Run("disabled or production is a no-op", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewTestDB(t)
		for _, cfg := range []*config.Config{
			{Env: "development", DevRootEmail: "root@opinara.local", DevRootPassword: "rootpass1"},
			{Env: "production", DevBootstrapRoot: true, DevRootEmail: "root@opinara.local", DevRootPassword: "rootpass1"},
		} {
			require.NoError(t, EnsureDevRootAdmin(ctx, cfg, db))
		}
		var n int64
		require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("missing password", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewTestDB(t)
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true, DevRootEmail: "root@opinara.local"}
		assert.Error(t, EnsureDevRootAdmin(ctx, cfg, db))
	})
}
