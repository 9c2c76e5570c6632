package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// errorMessage is the text of the error event reported for err.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrInvalidPayload):
		return "Invalid payload"
	case errors.Is(err, chat.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, chat.ErrForbidden):
		return "You are not a member of this room"
	case errors.Is(err, chat.ErrPersistence):
		return "Failed to send message"
	case errors.Is(err, chat.ErrRateLimited):
		return "Rate limit exceeded"
	case errors.Is(err, chat.ErrUnauthenticated):
		return "Authentication failed"
	default:
		return "Internal server error"
	}
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", chat.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrInvalidPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrInvalidPayload, err)
	}
	return nil
}

// dispatch decodes one inbound frame and runs the matching operation. Every
// failure is reported to this session only.
func (s *Supervisor) dispatch(sess *Session, raw []byte) {
	if sess.State() != StateActive {
		return
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		sess.log.Debug("Invalid frame", "error", err)
		sess.emitError("Invalid message format")
		return
	}

	switch env.Event {
	case EventJoinRoom:
		var p RoomPayload
		if err = decodePayload(env.Data, &p); err == nil {
			err = s.JoinRoom(s.ctx, sess, p.RoomID)
		}
	case EventLeaveRoom:
		var p RoomPayload
		if err = decodePayload(env.Data, &p); err == nil {
			s.LeaveRoom(sess, p.RoomID)
		}
	case EventSendMessage:
		var p SendMessagePayload
		if err = decodePayload(env.Data, &p); err == nil {
			_, err = s.SendMessage(s.ctx, sess, p)
		}
	case EventTyping:
		var p RoomPayload
		if err = decodePayload(env.Data, &p); err == nil {
			s.Typing(sess, p.RoomID)
		}
	case EventAuthenticate:
		sess.emitError("Already authenticated")
		return
	default:
		sess.log.Debug("Unknown event", "event", env.Event)
		sess.emitError("Unknown event")
		return
	}

	if err != nil {
		sess.log.Debug("Event failed", "event", env.Event, "error", err)
		sess.emitError(errorMessage(err))
	}
}

// JoinRoom subscribes the session to a room's broadcasts. Public rooms are
// readable by anyone; private rooms need a durable membership. Joining twice
// is a no-op apart from the repeated acknowledgement.
func (s *Supervisor) JoinRoom(ctx context.Context, sess *Session, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PersistTimeout)
	defer cancel()

	room, err := s.rooms.FindRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if room.IsPrivate {
		member, err := s.rooms.IsMember(ctx, room.ID, sess.UserID())
		if err != nil {
			return fmt.Errorf("membership of %s: %w", room.ID, err)
		}
		if !member {
			return fmt.Errorf("private room %s: %w", room.ID, chat.ErrForbidden)
		}
	}

	if sess.addRoom(room.ID) {
		s.router.Subscribe(room.ID, sess)
		// Teardown may have read the room set before addRoom.
		if sess.State() == StateClosed {
			s.router.Unsubscribe(room.ID, sess.id)
			return nil
		}
		sess.log.Debug("Joined room", "room_id", room.ID)
	}

	sess.emit(EventRoomJoined, RoomJoinedPayload{RoomID: room.ID})
	return nil
}

// LeaveRoom stops the session's subscription to a room. Leaving a room that
// was never joined is a no-op.
func (s *Supervisor) LeaveRoom(sess *Session, roomID string) {
	if !sess.removeRoom(roomID) {
		return
	}
	s.router.Unsubscribe(roomID, sess.id)
	sess.log.Debug("Left room", "room_id", roomID)
}

// SendMessage persists a message from the session and broadcasts it to every
// subscriber of the room, the sender included. Nothing is broadcast unless
// the write succeeded.
func (s *Supervisor) SendMessage(ctx context.Context, sess *Session, p SendMessagePayload) (chat.Message, error) {
	if utf8.RuneCountInString(p.Content) > s.cfg.MaxContentLength {
		return chat.Message{}, fmt.Errorf("%w: content longer than %d characters", chat.ErrInvalidPayload, s.cfg.MaxContentLength)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.PersistTimeout)
	defer cancel()

	room, err := s.rooms.FindRoom(lookupCtx, p.RoomID)
	if err != nil {
		return chat.Message{}, err
	}

	member, err := s.rooms.IsMember(lookupCtx, room.ID, sess.UserID())
	if err != nil {
		return chat.Message{}, fmt.Errorf("membership of %s: %w", room.ID, err)
	}
	if !member {
		return chat.Message{}, fmt.Errorf("post to %s: %w", room.ID, chat.ErrForbidden)
	}

	draft := chat.MessageDraft{
		RoomID:        room.ID,
		SenderID:      sess.UserID(),
		Content:       p.Content,
		AttachmentRef: p.FileID,
		Kind:          chat.KindFor(p.FileID),
	}

	persistCtx, cancelPersist := context.WithTimeout(ctx, s.cfg.PersistTimeout)
	msg, err := s.messages.PersistMessage(persistCtx, draft)
	cancelPersist()
	if err != nil {
		if !errors.Is(err, chat.ErrPersistence) {
			err = fmt.Errorf("%w: %w", chat.ErrPersistence, err)
		}
		sess.log.Warn("Unable to persist message", "room_id", room.ID, "error", err)
		return chat.Message{}, err
	}

	payload, err := encodeEvent(EventNewMessage, newMessagePayload(msg, sess.Username(), s.cfg.FileURLPrefix))
	if err != nil {
		return chat.Message{}, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	delivered := s.router.Broadcast(room.ID, payload, "")
	sess.log.Debug("Message broadcast", "room_id", room.ID, "message_id", msg.ID, "kind", msg.Kind, "delivered", delivered)
	return msg, nil
}

// Typing relays a typing signal to the other subscribers of a room the
// session has joined. Signals from non-subscribers and signals inside the
// throttle window are dropped. It reports whether the signal was relayed.
func (s *Supervisor) Typing(sess *Session, roomID string) bool {
	if !sess.hasRoom(roomID) {
		return false
	}
	if !sess.allowTyping(roomID, s.now(), s.cfg.TypingThrottle) {
		return false
	}

	payload, err := encodeEvent(EventUserTyping, UserTypingPayload{
		UserID:   sess.UserID(),
		Username: sess.Username(),
	})
	if err != nil {
		sess.log.Error("Unable to encode typing signal", "error", err)
		return false
	}

	s.router.Broadcast(roomID, payload, sess.id)
	return true
}

// rejoin re-issues join-room for the room a reconnecting client was last in.
func (s *Supervisor) rejoin(sess *Session, roomID string) {
	if err := s.JoinRoom(s.ctx, sess, roomID); err != nil {
		sess.log.Debug("Rejoin failed", "room_id", roomID, "error", err)
		sess.emitError(errorMessage(err))
		return
	}
	sess.log.Debug("Rejoined last room", "room_id", roomID)
}
