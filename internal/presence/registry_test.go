package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddAndRemove(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	entry := r.Add("u1", "s1")
	req.Equal("u1", entry.UserID)
	req.Equal("s1", entry.SessionID)
	req.False(entry.LastSeenAt.IsZero())
	req.True(r.IsOnline("u1"))
	req.True(r.HasSession("s1"))
	req.Equal(1, r.Len())

	removed, ok := r.Remove("s1")
	req.True(ok)
	req.Equal(entry.SessionID, removed.SessionID)
	req.False(r.IsOnline("u1"))
	req.False(r.HasSession("s1"))
	req.Zero(r.Len())
	req.Zero(r.OnlineUsers())

	_, ok = r.Remove("s1")
	req.False(ok)
}

func TestRegistry_MultiDevice(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.Add("u1", "phone")
	r.Add("u1", "laptop")
	r.Add("u2", "desktop")

	req.Len(r.Sessions("u1"), 2)
	req.Equal(3, r.Len())
	req.Equal(2, r.OnlineUsers())

	_, ok := r.Remove("phone")
	req.True(ok)
	req.True(r.IsOnline("u1"), "second device keeps the user online")
	req.True(r.IsOnline("u2"), "other users are untouched")
	req.Len(r.Sessions("u1"), 1)
}

func TestRegistry_AddIsIdempotentPerSession(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	r.Add("u1", "s1")
	clock = clock.Add(time.Minute)
	entry := r.Add("u1", "s1")

	req.Equal(1, r.Len())
	req.Equal(clock, entry.LastSeenAt)
}

func TestRegistry_Touch(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	r.Add("u1", "s1")

	clock = clock.Add(5 * time.Second)
	r.Touch("s1")
	r.Touch("unknown")

	sessions := r.Sessions("u1")
	req.Len(sessions, 1)
	req.Equal(clock, sessions[0].LastSeenAt)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", i)
			r.Add(fmt.Sprintf("u%d", i%5), sessionID)
			r.Touch(sessionID)
			if i%2 == 0 {
				r.Remove(sessionID)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 25, r.Len())
}

func TestNopMirror(t *testing.T) {
	var m Mirror = NopMirror{}
	require.NoError(t, m.SessionOpened(context.Background(), "u1", "s1"))
	require.NoError(t, m.SessionClosed(context.Background(), "u1", "s1"))
}
