// Package notifications publishes domain events to Redis channels for downstream real-time fan-out.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"opinara/internal/middleware"
	"opinara/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Event types published on a post's channel.
const (
	EventVoteUpdated    = "vote.updated"
	EventCommentCreated = "comment.created"
	EventPostClassified = "post.classified"
	EventPostDeleted    = "post.deleted"
)

// Event is the envelope written to Redis.
type Event struct {
	Type   string    `json:"type"`
	PostID uint      `json:"postId"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PostChannel is the channel carrying events about one post and its comments.
func PostChannel(postID uint) string {
	return fmt.Sprintf("events:post:%d", postID)
}

// Publish sends an event on the post's channel.
func (n *Notifier) Publish(ctx context.Context, eventType string, postID uint, data any) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(Event{Type: eventType, PostID: postID, Data: data, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, PostChannel(postID), payload).Err(); err != nil {
		observability.EventsPublished.WithLabelValues(eventType, "error").Inc()
		return err
	}
	observability.EventsPublished.WithLabelValues(eventType, "ok").Inc()
	return nil
}

// PublishAsync publishes without blocking the caller; failures are only logged.
func (n *Notifier) PublishAsync(ctx context.Context, eventType string, postID uint, data any) {
	if n == nil || n.rdb == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				middleware.Logger.Error("panic publishing event", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := n.Publish(ctx, eventType, postID, data); err != nil {
			middleware.Logger.WarnContext(ctx, "event publish failed",
				slog.String("event", eventType), slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		}
	}()
}

// Subscribe delivers events for one post to onEvent until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, postID uint, onEvent func(Event)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, PostChannel(postID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}
