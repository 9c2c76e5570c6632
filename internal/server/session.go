package server

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// State is the lifecycle stage of a connection. Sessions only exist from
// StateAuthenticated on; StateConnecting covers the handshake that precedes
// them.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one authenticated WebSocket connection. It is owned by the
// Supervisor, which alone moves it between states.
type Session struct {
	id       string
	identity chat.Identity
	conn     *websocket.Conn
	addr     string
	sup      *Supervisor
	log      *slog.Logger

	state        atomic.Int32
	lastActivity atomic.Int64

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	roomsMu sync.Mutex
	rooms   map[string]struct{}

	limiter *rate.Limiter
	// lastTyping is only touched by the read pump.
	lastTyping map[string]time.Time
	lastRoomID string
}

func newSession(sup *Supervisor, conn *websocket.Conn, identity chat.Identity, addr, lastRoomID string) *Session {
	id := uuid.NewString()
	sess := &Session{
		id:         id,
		identity:   identity,
		conn:       conn,
		addr:       addr,
		sup:        sup,
		log:        sup.log.With("session_id", id, "user_id", identity.UserID, "remote_addr", addr),
		send:       make(chan []byte, sup.cfg.SendBufferSize),
		rooms:      make(map[string]struct{}),
		limiter:    newRateLimiter(sup.cfg.RateLimit.Burst, sup.cfg.RateLimit.RefillInterval),
		lastTyping: make(map[string]time.Time),
		lastRoomID: lastRoomID,
	}
	sess.state.Store(int32(StateAuthenticated))
	sess.touch()
	return sess
}

func (s *Session) ID() string       { return s.id }
func (s *Session) UserID() string   { return s.identity.UserID }
func (s *Session) Username() string { return s.identity.Username }
func (s *Session) State() State     { return State(s.state.Load()) }

// RemoteAddr is the peer address seen at upgrade time.
func (s *Session) RemoteAddr() string { return s.addr }

func (s *Session) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// markClosed moves the session to StateClosed from any other state. Only the
// first caller gets true.
func (s *Session) markClosed() bool {
	for {
		current := s.state.Load()
		if State(current) == StateClosed {
			return false
		}
		if s.state.CompareAndSwap(current, int32(StateClosed)) {
			return true
		}
	}
}

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Deliver queues payload for the write pump without blocking. It returns
// false when the queue is closed or full.
func (s *Session) Deliver(payload []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue. The write pump flushes what is left,
// sends a close frame and closes the connection.
func (s *Session) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// emit sends an event to this session only. A full queue evicts the session.
func (s *Session) emit(event string, data any) bool {
	payload, err := encodeEvent(event, data)
	if err != nil {
		s.log.Error("Unable to encode event", "event", event, "error", err)
		return false
	}
	if s.Deliver(payload) {
		return true
	}
	if s.State() == StateActive {
		s.log.Warn("Send queue full, evicting session", "event", event, "error", chat.ErrTransportFailure)
		go s.sup.release(s)
	}
	return false
}

func (s *Session) emitError(message string) {
	s.emit(EventError, ErrorPayload{Message: message})
}

func (s *Session) addRoom(roomID string) bool {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

func (s *Session) removeRoom(roomID string) bool {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

func (s *Session) hasRoom(roomID string) bool {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	_, ok := s.rooms[roomID]
	return ok
}

// JoinedRooms returns the rooms this session is subscribed to, sorted.
func (s *Session) JoinedRooms() []string {
	s.roomsMu.Lock()
	rooms := lo.Keys(s.rooms)
	s.roomsMu.Unlock()

	sort.Strings(rooms)
	return rooms
}

// allowTyping reports whether a typing signal for roomID may be relayed now.
func (s *Session) allowTyping(roomID string, now time.Time, gap time.Duration) bool {
	if gap <= 0 {
		return true
	}
	if last, ok := s.lastTyping[roomID]; ok && now.Sub(last) < gap {
		return false
	}
	s.lastTyping[roomID] = now
	return true
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Warn("Unable to set initial read deadline", "error", err)
	}
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		s.sup.presence.Touch(s.id)
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// logReadError classifies the error that ended the read loop.
func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Warn("Frame exceeded maximum size", "max_bytes", s.sup.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		s.log.Debug("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		s.log.Debug("Connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		s.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		s.log.Debug("WebSocket read error", "error", err)
	}
}

// checkRateLimit verifies if the session has exceeded its event budget and
// returns true if the frame should be processed.
func (s *Session) checkRateLimit() bool {
	if s.limiter != nil && !s.limiter.Allow() {
		s.log.Debug("Rate limit exceeded; discarding frame",
			"burst", s.sup.cfg.RateLimit.Burst,
			"interval", s.sup.cfg.RateLimit.RefillInterval)
		return false
	}
	return true
}

func (s *Session) readPump() {
	defer func() {
		s.sup.release(s)
		s.closeConnection()
	}()

	s.setupReadConnection()

	if s.lastRoomID != "" {
		s.sup.rejoin(s, s.lastRoomID)
	}

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}

		s.touch()
		s.sup.presence.Touch(s.id)

		if !s.checkRateLimit() {
			s.emitError(errorMessage(chat.ErrRateLimited))
			continue
		}

		s.sup.dispatch(s, raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.closeConnection()
	}()

	for s.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (s *Session) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-s.send:
		return s.handleMessage(message, ok)
	case <-ticker.C:
		return s.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (s *Session) closeConnection() {
	if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Debug("Error closing connection", "error", err)
	}
}

// handleMessage writes one queued event per frame and returns false if the
// connection should be closed.
func (s *Session) handleMessage(message []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log.Debug("Unable to set write deadline", "error", err)
		return false
	}

	if !ok {
		return s.writeCloseMessage()
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			s.log.Debug("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close frame to the client
func (s *Session) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		s.log.Debug("Error writing close message", "error", err)
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (s *Session) handlePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log.Debug("Unable to set write deadline for ping", "error", err)
		return false
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.log.Debug("Error writing ping", "error", err)
		return false
	}
	return true
}
