package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"opinara/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// GetJSON decodes the cached value at key into dest. It reports false on a
// miss, a decode failure, or when no client is configured.
func GetJSON(ctx context.Context, key string, dest any) bool {
	if client == nil {
		return false
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		Invalidate(ctx, key)
		return false
	}
	return true
}

// SetJSON stores value at key for ttl. Failures are logged and otherwise ignored.
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Aside fills dest from the cache, or runs load and caches dest on success.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	if GetJSON(ctx, key, dest) {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	SetJSON(ctx, key, dest, ttl)
	return nil
}
