package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/gorilla/websocket"
)

// requestCredential extracts a token supplied at upgrade time, from the
// Authorization header or the token query parameter. ok is false when the
// request carries neither, in which case the token must arrive in an
// authenticate frame.
func requestCredential(r *http.Request) (token string, ok bool, err error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, err := auth.BearerToken(header)
		return token, true, err
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, true, nil
	}
	return "", false, nil
}

// awaitAuthenticate reads the first frame, which must be an authenticate
// event, within HandshakeTimeout.
func (s *Supervisor) awaitAuthenticate(conn *websocket.Conn) (chat.Identity, string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		return chat.Identity{}, "", fmt.Errorf("%w: set handshake deadline: %w", chat.ErrUnauthenticated, err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return chat.Identity{}, "", fmt.Errorf("%w: no authenticate frame: %w", chat.ErrUnauthenticated, err)
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return chat.Identity{}, "", fmt.Errorf("%w: malformed frame", chat.ErrUnauthenticated)
	}
	if env.Event != EventAuthenticate {
		return chat.Identity{}, "", fmt.Errorf("%w: expected %s, got %q", chat.ErrUnauthenticated, EventAuthenticate, env.Event)
	}

	var p AuthenticatePayload
	if err := decodePayload(env.Data, &p); err != nil {
		return chat.Identity{}, "", fmt.Errorf("%w: %w", chat.ErrUnauthenticated, err)
	}

	identity, err := s.verifier.Verify(p.Token)
	if err != nil {
		return chat.Identity{}, "", err
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return chat.Identity{}, "", fmt.Errorf("%w: clear handshake deadline: %w", chat.ErrUnauthenticated, err)
	}
	return identity, p.LastRoomID, nil
}

// rejectHandshake closes an upgraded connection whose handshake failed with a
// policy-violation close frame.
func (s *Supervisor) rejectHandshake(conn *websocket.Conn, r *http.Request, err error) {
	s.log.Warn("WebSocket handshake rejected", "remote_addr", r.RemoteAddr, "error", err)

	code, reason := websocket.ClosePolicyViolation, "authentication failed"
	if errors.Is(err, ErrShuttingDown) {
		code, reason = websocket.CloseTryAgainLater, "server shutting down"
	}

	msg := websocket.FormatCloseMessage(code, reason)
	if werr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); werr != nil && !isExpectedCloseError(werr) {
		s.log.Debug("Error writing handshake close frame", "error", werr)
	}
	if cerr := conn.Close(); cerr != nil && !isExpectedCloseError(cerr) {
		s.log.Debug("Error closing rejected connection", "error", cerr)
	}
}
