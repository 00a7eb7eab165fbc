package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPost struct {
	ID          uint `json:"id"`
	UpvoteCount int  `json:"upvoteCount"`
}

func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		client = nil
	})
	return mr
}

func TestAside_LoadsOnceThenHits(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()

	loads := 0
	load := func(dest *cachedPost) func() error {
		return func() error {
			loads++
			*dest = cachedPost{ID: 7, UpvoteCount: 3}
			return nil
		}
	}

	var first cachedPost
	require.NoError(t, Aside(ctx, PostKey(7), &first, PostTTL, load(&first)))
	var second cachedPost
	require.NoError(t, Aside(ctx, PostKey(7), &second, PostTTL, load(&second)))

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("post:7"))

	InvalidatePost(ctx, 7)
	assert.False(t, mr.Exists("post:7"))
}

func TestAside_LoadErrorNotCached(t *testing.T) {
	mr := withMiniRedis(t)
	boom := errors.New("db down")

	var p cachedPost
	err := Aside(context.Background(), PostKey(9), &p, PostTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:9"))
}

func TestGetJSON_CorruptEntryEvicted(t *testing.T) {
	mr := withMiniRedis(t)
	require.NoError(t, mr.Set("post:3", "{not json"))

	var p cachedPost
	assert.False(t, GetJSON(context.Background(), PostKey(3), &p))
	assert.False(t, mr.Exists("post:3"))
}

func TestAside_NoClientFallsThrough(t *testing.T) {
	client = nil
	calls := 0
	var p cachedPost
	require.NoError(t, Aside(context.Background(), PostKey(1), &p, time.Minute, func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}
