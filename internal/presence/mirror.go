package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Mirror publishes presence changes to an external store so that other
// services can see who is connected. Mirrors are advisory: callers treat every
// error as best effort.
type Mirror interface {
	SessionOpened(ctx context.Context, userID, sessionID string) error
	SessionClosed(ctx context.Context, userID, sessionID string) error
}

// NopMirror discards every update.
type NopMirror struct{}

func (NopMirror) SessionOpened(context.Context, string, string) error { return nil }
func (NopMirror) SessionClosed(context.Context, string, string) error { return nil }

// RedisMirror keeps the set of live session ids of each user under
// "user:{id}:sockets".
type RedisMirror struct {
	client redis.UniversalClient
}

// NewRedisMirror wraps an existing client. Close closes the client.
func NewRedisMirror(client redis.UniversalClient) *RedisMirror {
	return &RedisMirror{client: client}
}

// NewRedisMirrorFromURL parses a redis:// URL and returns a connected mirror.
func NewRedisMirrorFromURL(ctx context.Context, rawURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisMirror(client), nil
}

func socketsKey(userID string) string {
	return "user:" + userID + ":sockets"
}

func (m *RedisMirror) SessionOpened(ctx context.Context, userID, sessionID string) error {
	return m.client.SAdd(ctx, socketsKey(userID), sessionID).Err()
}

func (m *RedisMirror) SessionClosed(ctx context.Context, userID, sessionID string) error {
	return m.client.SRem(ctx, socketsKey(userID), sessionID).Err()
}

// Close releases the underlying client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
