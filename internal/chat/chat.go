// Package chat holds the domain types shared by the relay engine and the
// durable store: rooms, messages, identities and the ports the engine consumes.
package chat

import "time"

// MessageKind distinguishes plain text messages from image messages.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
)

// KindFor derives the message kind from the attachment reference.
func KindFor(attachmentRef string) MessageKind {
	if attachmentRef != "" {
		return KindImage
	}
	return KindText
}

// Identity is the verified owner of a connection.
type Identity struct {
	UserID   string
	Username string
}

// Room is a named broadcast and persistence scope.
type Room struct {
	ID        string
	Name      string
	IsPrivate bool
	CreatedBy string
	CreatedAt time.Time
}

// MessageDraft is what a session submits for persistence. It carries no id
// and no timestamp; those are assigned by the persistor.
type MessageDraft struct {
	RoomID        string
	SenderID      string
	Content       string
	AttachmentRef string
	Kind          MessageKind
}

// Message is the canonical persisted record.
type Message struct {
	ID            string
	RoomID        string
	SenderID      string
	Content       string
	AttachmentRef string
	Kind          MessageKind
	CreatedAt     time.Time
}
