package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Tyrowin/roomrelay/internal/chat"
)

// Event names carried in Envelope.Event.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventSendMessage  = "send-message"
	EventTyping       = "typing"

	EventRoomJoined = "room-joined"
	EventNewMessage = "new-message"
	EventUserTyping = "user-typing"
	EventError      = "error"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AuthenticatePayload is the first frame of a client that did not present a
// credential at upgrade.
type AuthenticatePayload struct {
	Token      string `json:"token" validate:"required"`
	LastRoomID string `json:"lastRoomId,omitempty"`
}

// RoomPayload names the room of a join-room, leave-room or typing event.
type RoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

// SendMessagePayload is an inbound message before validation.
type SendMessagePayload struct {
	RoomID  string `json:"roomId" validate:"required,max=128"`
	Content string `json:"content" validate:"required_without=FileID"`
	FileID  string `json:"fileId,omitempty" validate:"omitempty,max=128"`
}

// RoomJoinedPayload acknowledges a join-room.
type RoomJoinedPayload struct {
	RoomID string `json:"roomId"`
}

// NewMessagePayload is a persisted message decorated for delivery.
type NewMessagePayload struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	FileID      string    `json:"fileId,omitempty"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
	Username    string    `json:"username"`
	FileURL     string    `json:"fileUrl,omitempty"`
}

// UserTypingPayload is relayed to the other sessions in a room.
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ErrorPayload reports a failed request to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessagePayload(msg chat.Message, username, fileURLPrefix string) NewMessagePayload {
	payload := NewMessagePayload{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		FileID:      msg.AttachmentRef,
		MessageType: string(msg.Kind),
		CreatedAt:   msg.CreatedAt,
		Username:    username,
	}
	if msg.Kind == chat.KindImage && msg.AttachmentRef != "" {
		payload.FileURL = fileURLPrefix + msg.AttachmentRef
	}
	return payload
}

// encodeEvent marshals an outbound envelope.
func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// decodeEnvelope parses an inbound frame.
func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, chat.ErrInvalidPayload
	}
	return env, nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
