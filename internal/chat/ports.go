//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
package chat

import "context"

// RoomStore is the durable membership authority. FindRoom returns
// ErrRoomNotFound when the room does not exist.
type RoomStore interface {
	FindRoom(ctx context.Context, roomID string) (Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	AddMember(ctx context.Context, roomID, userID string) error
}

// MessagePersistor durably appends a message and returns the stored record.
type MessagePersistor interface {
	PersistMessage(ctx context.Context, draft MessageDraft) (Message, error)
}

// SeenMarker records the last time a user was seen online.
type SeenMarker interface {
	MarkUserSeen(ctx context.Context, userID string) error
}
