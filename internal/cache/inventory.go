package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix = "post:%d"
	WaveKeyPrefix = "wave:%d"
)

const (
	PostTTL = 10 * time.Minute
	WaveTTL = 30 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func WaveKey(waveID uint) string {
	return fmt.Sprintf(WaveKeyPrefix, waveID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePost drops the cached post so the next read sees fresh counters.
func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateWave(ctx context.Context, waveID uint) {
	Invalidate(ctx, WaveKey(waveID))
}
