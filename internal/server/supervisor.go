package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/broadcast"
	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/Tyrowin/roomrelay/internal/presence"
	"github.com/gorilla/websocket"
)

// ErrShuttingDown is returned when a session is activated after Shutdown.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// Dependencies are the collaborators a Supervisor talks to. Presence, Mirror,
// Router and Seen are optional.
type Dependencies struct {
	Verifier auth.Verifier
	Rooms    chat.RoomStore
	Messages chat.MessagePersistor
	Seen     chat.SeenMarker
	Presence *presence.Registry
	Mirror   presence.Mirror
	Router   *broadcast.Router
}

// Supervisor owns every active Session. It activates sessions once their
// credential is verified, dispatches their events, and tears them down
// exactly once when the transport fails, the client leaves, delivery to them
// fails or the server shuts down.
type Supervisor struct {
	cfg      Config
	log      *slog.Logger
	verifier auth.Verifier
	rooms    chat.RoomStore
	messages chat.MessagePersistor
	seen     chat.SeenMarker
	presence *presence.Registry
	mirror   presence.Mirror
	router   *broadcast.Router
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
	closing  bool

	unregister chan *Session
	pumps      sync.WaitGroup
	effects    sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	now        func() time.Time
}

// NewSupervisor creates a Supervisor. Run must be started before sessions are
// activated.
func NewSupervisor(cfg Config, deps Dependencies, log *slog.Logger) *Supervisor {
	cfg = sanitizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{
		cfg:        cfg,
		log:        log,
		verifier:   deps.Verifier,
		rooms:      deps.Rooms,
		messages:   deps.Messages,
		seen:       deps.Seen,
		presence:   deps.Presence,
		mirror:     deps.Mirror,
		router:     deps.Router,
		sessions:   make(map[string]*Session),
		unregister: make(chan *Session),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	if s.presence == nil {
		s.presence = presence.NewRegistry()
	}
	if s.mirror == nil {
		s.mirror = presence.NopMirror{}
	}
	if s.router == nil {
		s.router = broadcast.NewRouter(log, nil)
	}
	s.router.SetFailureHandler(s.onDeliveryFailure)

	origins := NewOriginPolicy(cfg.AllowedOrigins, log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.CheckOrigin,
	}
	return s
}

// Presence returns the registry of connected users.
func (s *Supervisor) Presence() *presence.Registry { return s.presence }

// Router returns the room fan-out router.
func (s *Supervisor) Router() *broadcast.Router { return s.router }

// SessionCount returns the number of active sessions.
func (s *Supervisor) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Session returns an active session by id.
func (s *Supervisor) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Run processes session releases until Shutdown is called. It should be
// called in a separate goroutine.
func (s *Supervisor) Run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.shutdownSessions()
			return

		case sess := <-s.unregister:
			if sess == nil {
				s.log.Warn("Received nil session release; skipping")
				continue
			}
			s.teardown(sess, "released")
		}
	}
}

// Activate creates the session of a verified connection, registers it and
// starts its pumps. No event of the connection is processed before Activate
// returns.
func (s *Supervisor) Activate(conn *websocket.Conn, identity chat.Identity, addr, lastRoomID string) (*Session, error) {
	sess := newSession(s, conn, identity, addr, lastRoomID)
	if err := s.activate(sess); err != nil {
		return nil, err
	}
	if conn != nil {
		go func() {
			defer s.pumps.Done()
			sess.writePump()
		}()
		go func() {
			defer s.pumps.Done()
			sess.readPump()
		}()
	}
	return sess, nil
}

func (s *Supervisor) activate(sess *Session) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.sessions[sess.id] = sess
	s.presence.Add(sess.UserID(), sess.id)
	if !sess.transition(StateAuthenticated, StateActive) {
		delete(s.sessions, sess.id)
		s.presence.Remove(sess.id)
		s.mu.Unlock()
		return fmt.Errorf("activate session %s: state %s", sess.id, sess.State())
	}
	if sess.conn != nil {
		s.pumps.Add(2)
	}
	s.effects.Add(1)
	count := len(s.sessions)
	s.mu.Unlock()

	s.log.Info("Session activated",
		"session_id", sess.id,
		"user_id", sess.UserID(),
		"remote_addr", sess.addr,
		"devices", len(s.presence.Sessions(sess.UserID())),
		"total_sessions", count)

	go s.runSideEffect(sess, "session opened", func(ctx context.Context) error {
		if err := s.mirror.SessionOpened(ctx, sess.UserID(), sess.id); err != nil {
			return fmt.Errorf("mirror presence: %w", err)
		}
		return s.markSeen(ctx, sess.UserID())
	})
	return nil
}

func (s *Supervisor) markSeen(ctx context.Context, userID string) error {
	if s.seen == nil {
		return nil
	}
	if err := s.seen.MarkUserSeen(ctx, userID); err != nil {
		return fmt.Errorf("mark user seen: %w", err)
	}
	return nil
}

// runSideEffect runs a best-effort external update bounded by
// SideEffectTimeout. Failures are logged and never retried. The caller has
// already added to s.effects.
func (s *Supervisor) runSideEffect(sess *Session, name string, fn func(ctx context.Context) error) {
	defer s.effects.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SideEffectTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.log.Warn("Side effect failed", "effect", name, "session_id", sess.id, "user_id", sess.UserID(), "error", err)
	}
}

// release hands the session to the Run loop for teardown. After shutdown the
// teardown runs inline.
func (s *Supervisor) release(sess *Session) {
	select {
	case s.unregister <- sess:
	case <-s.done:
		s.teardown(sess, "released after shutdown")
	}
}

func (s *Supervisor) onDeliveryFailure(sub broadcast.Subscriber) {
	sess, ok := sub.(*Session)
	if !ok {
		s.log.Warn("Delivery failure reported for unknown subscriber", "subscriber_id", sub.ID())
		return
	}
	if sess.State() != StateActive {
		return
	}
	sess.log.Warn("Evicting session", "error", chat.ErrTransportFailure)
	s.release(sess)
}

// teardown moves the session to StateClosed and releases everything it holds:
// router subscriptions, then its presence entry, then the session itself.
// Only the first call for a session has any effect. It runs on the Run loop,
// or inline once Run has returned, so effects are never added after Shutdown
// starts waiting.
func (s *Supervisor) teardown(sess *Session, reason string) {
	if !sess.markClosed() {
		return
	}

	rooms := sess.JoinedRooms()
	unsubscribed := s.router.UnsubscribeAll(sess.id, rooms)

	if _, ok := s.presence.Remove(sess.id); !ok {
		s.log.Warn("Presence entry already gone at teardown", "session_id", sess.id, "user_id", sess.UserID())
	}

	s.mu.Lock()
	delete(s.sessions, sess.id)
	count := len(s.sessions)
	s.effects.Add(1)
	s.mu.Unlock()

	sess.closeSend()

	s.log.Info("Session closed",
		"session_id", sess.id,
		"user_id", sess.UserID(),
		"reason", reason,
		"rooms", unsubscribed,
		"total_sessions", count)

	go s.runSideEffect(sess, "session closed", func(ctx context.Context) error {
		if err := s.mirror.SessionClosed(ctx, sess.UserID(), sess.id); err != nil {
			return fmt.Errorf("clear mirrored presence: %w", err)
		}
		return s.markSeen(ctx, sess.UserID())
	})
}

// shutdownSessions stops accepting activations and tears every active
// session down.
func (s *Supervisor) shutdownSessions() {
	s.log.Info("Shutting down all sessions...")

	s.mu.Lock()
	s.closing = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		s.teardown(sess, "server shutdown")
	}

	s.log.Info("Closed sessions", "count", len(sessions))
}

// Shutdown initiates graceful shutdown of the supervisor and waits for every
// pump and side effect to complete, or for timeout.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	s.log.Info("Initiating supervisor shutdown...")

	s.cancel()
	<-s.done

	done := make(chan struct{})
	go func() {
		s.pumps.Wait()
		s.effects.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Supervisor shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		s.log.Warn("Supervisor shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
