package presence

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// recordingHook answers set commands from memory instead of a Redis server.
type recordingHook struct {
	mu       sync.Mutex
	commands [][]any
	sets     map[string]map[string]struct{}
	fail     error
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.commands = append(h.commands, cmd.Args())
		if h.fail != nil {
			cmd.SetErr(h.fail)
			return h.fail
		}

		args := cmd.Args()
		key, member := args[1].(string), args[2].(string)
		set := h.sets[key]
		switch cmd.Name() {
		case "sadd":
			if set == nil {
				set = map[string]struct{}{}
				h.sets[key] = set
			}
			set[member] = struct{}{}
		case "srem":
			delete(set, member)
			if len(set) == 0 {
				delete(h.sets, key)
			}
		}
		if intCmd, ok := cmd.(*redis.IntCmd); ok {
			intCmd.SetVal(1)
		}
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *recordingHook) members(key string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.sets[key]))
	for m := range h.sets[key] {
		out = append(out, m)
	}
	return out
}

func newRecordingMirror(t *testing.T) (*RedisMirror, *recordingHook) {
	t.Helper()
	hook := &recordingHook{sets: map[string]map[string]struct{}{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	client.AddHook(hook)
	m := NewRedisMirror(client)
	t.Cleanup(func() { _ = m.Close() })
	return m, hook
}

func TestRedisMirror_TracksSocketsPerUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, hook := newRecordingMirror(t)

	req.NoError(m.SessionOpened(ctx, "u1", "s1"))
	req.NoError(m.SessionOpened(ctx, "u1", "s2"))
	req.NoError(m.SessionOpened(ctx, "u2", "s3"))
	req.ElementsMatch([]string{"s1", "s2"}, hook.members("user:u1:sockets"))
	req.ElementsMatch([]string{"s3"}, hook.members("user:u2:sockets"))

	req.NoError(m.SessionClosed(ctx, "u1", "s1"))
	req.ElementsMatch([]string{"s2"}, hook.members("user:u1:sockets"))

	req.Equal([]any{"sadd", "user:u1:sockets", "s1"}, hook.commands[0])
	req.Equal([]any{"srem", "user:u1:sockets", "s1"}, hook.commands[3])
}

func TestRedisMirror_ReportsErrors(t *testing.T) {
	m, hook := newRecordingMirror(t)
	hook.fail = errors.New("connection refused")

	require.ErrorIs(t, m.SessionOpened(context.Background(), "u1", "s1"), hook.fail)
	require.ErrorIs(t, m.SessionClosed(context.Background(), "u1", "s1"), hook.fail)
}
