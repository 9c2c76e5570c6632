package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type messageRecord struct {
	ID            string `cbor:"id"`
	RoomID        string `cbor:"room_id"`
	SenderID      string `cbor:"sender_id"`
	Content       string `cbor:"content"`
	AttachmentRef string `cbor:"file_id,omitempty"`
	Kind          string `cbor:"kind"`
	CreatedAt     int64  `cbor:"created_at"`
}

func (r messageRecord) toMessage() chat.Message {
	return chat.Message{
		ID:            r.ID,
		RoomID:        r.RoomID,
		SenderID:      r.SenderID,
		Content:       r.Content,
		AttachmentRef: r.AttachmentRef,
		Kind:          chat.MessageKind(r.Kind),
		CreatedAt:     fromNanos(r.CreatedAt),
	}
}

func messagePrefix(roomID string) string { return "msg:" + roomID + ":" }

// messageKey is "msg:{room}:{timestamp}:{id}". The 19-digit zero padding keeps
// lexicographic order chronological and the id separates messages written in
// the same nanosecond.
func messageKey(rec messageRecord) string {
	return fmt.Sprintf("%s%019d:%s", messagePrefix(rec.RoomID), rec.CreatedAt, rec.ID)
}

// PersistMessage assigns the id and creation time of the draft and appends it
// to the room history. Every failure wraps chat.ErrPersistence.
func (s *Store) PersistMessage(ctx context.Context, draft chat.MessageDraft) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}

	kind := draft.Kind
	if kind == "" {
		kind = chat.KindFor(draft.AttachmentRef)
	}
	rec := messageRecord{
		ID:            uuid.NewString(),
		RoomID:        draft.RoomID,
		SenderID:      draft.SenderID,
		Content:       draft.Content,
		AttachmentRef: draft.AttachmentRef,
		Kind:          string(kind),
		CreatedAt:     s.now().UTC().UnixNano(),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return s.setRecord(txn, messageKey(rec), rec)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: room %s: %w", chat.ErrPersistence, draft.RoomID, err)
	}
	return rec.toMessage(), nil
}

// MessagesByRoom returns at most limit of the newest messages of a room in
// chronological order. A non-positive limit returns the whole history.
func (s *Store) MessagesByRoom(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []messageRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(roomID))
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Newest first: start past the largest possible timestamp.
		seek := append(slices.Clone(prefix), []byte("9999999999999999999")...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) == limit {
				break
			}
			var rec messageRecord
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("messages of room %s: %w", roomID, err)
	}

	slices.Reverse(records)
	return lo.Map(records, func(rec messageRecord, _ int) chat.Message {
		return rec.toMessage()
	}), nil
}
