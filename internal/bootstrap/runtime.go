// Package bootstrap wires the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"opinara/internal/cache"
	"opinara/internal/config"
	"opinara/internal/database"
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// EnsureDevRoot creates or promotes the development admin account when
	// DEV_BOOTSTRAP_ROOT is set.
	EnsureDevRoot bool
}

// InitRuntime connects to the database and Redis. Redis is optional and the
// returned client is nil when it cannot be reached.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.EnsureDevRoot {
		if err := EnsureDevRootAdmin(context.Background(), cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin makes sure an admin account with DEV_ROOT_EMAIL exists
// outside production. An existing account is promoted and keeps its password.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !cfg.DevBootstrapRoot || cfg.IsProduction() {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.DevRootEmail))
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("DEV_ROOT_EMAIL: %w", err)
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		err := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{Email: email, Fullname: "Opinara Root", Password: string(hash), IsAdmin: true}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&models.User{}).Where("id = ?", root.ID).
				Updates(map[string]any{"is_admin": true, "is_deleted": false, "deleted_at": nil}).Error; err != nil {
				return err
			}
		}
		middleware.Logger.InfoContext(ctx, "development root admin ensured",
			slog.Uint64("user_id", uint64(root.ID)), slog.String("email", email))
		return nil
	})
}
