package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var (
	_ chat.RoomStore        = (*Store)(nil)
	_ chat.MessagePersistor = (*Store)(nil)
	_ chat.SeenMarker       = (*Store)(nil)
)

type roomRecord struct {
	ID        string `cbor:"id"`
	Name      string `cbor:"name"`
	IsPrivate bool   `cbor:"is_private"`
	CreatedBy string `cbor:"created_by,omitempty"`
	CreatedAt int64  `cbor:"created_at"`
}

func (r roomRecord) toRoom() chat.Room {
	return chat.Room{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		CreatedBy: r.CreatedBy,
		CreatedAt: fromNanos(r.CreatedAt),
	}
}

func roomKey(id string) string { return "room:" + id }

func memberKey(roomID, userID string) string { return "member:" + roomID + ":" + userID }

func userMemberPrefix(userID string) string { return "umember:" + userID + ":" }

// CreateRoom stores a new room. A non-empty createdBy is added as the first
// member in the same transaction.
func (s *Store) CreateRoom(ctx context.Context, name string, isPrivate bool, createdBy string) (chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return chat.Room{}, err
	}

	rec := roomRecord{
		ID:        uuid.NewString(),
		Name:      name,
		IsPrivate: isPrivate,
		CreatedBy: createdBy,
		CreatedAt: s.now().UnixNano(),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.setRecord(txn, roomKey(rec.ID), rec); err != nil {
			return err
		}
		if createdBy == "" {
			return nil
		}
		return addMember(txn, rec.ID, createdBy)
	})
	if err != nil {
		return chat.Room{}, fmt.Errorf("create room: %w", err)
	}
	return rec.toRoom(), nil
}

// FindRoom returns chat.ErrRoomNotFound when no room has the given id.
func (s *Store) FindRoom(ctx context.Context, roomID string) (chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return chat.Room{}, err
	}

	var rec roomRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getRecord(txn, roomKey(roomID), &rec)
	})
	if errors.Is(err, ErrNotFound) {
		return chat.Room{}, fmt.Errorf("room %s: %w", roomID, chat.ErrRoomNotFound)
	}
	if err != nil {
		return chat.Room{}, fmt.Errorf("room %s: %w", roomID, err)
	}
	return rec.toRoom(), nil
}

// ListPublicRooms returns every non-private room, oldest first.
func (s *Store) ListPublicRooms(ctx context.Context) ([]chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []chat.Room
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("room:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec roomRecord
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !rec.IsPrivate {
				rooms = append(rooms, rec.toRoom())
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	sortRooms(rooms)
	return rooms, nil
}

// AddMember records a durable membership. It is idempotent.
func (s *Store) AddMember(ctx context.Context, roomID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, roomKey(roomID))
		if err != nil {
			return err
		}
		if !found {
			return chat.ErrRoomNotFound
		}
		return addMember(txn, roomID, userID)
	})
	if err != nil {
		return fmt.Errorf("add member %s to %s: %w", userID, roomID, err)
	}
	return nil
}

func addMember(txn *badger.Txn, roomID, userID string) error {
	if err := txn.Set([]byte(memberKey(roomID, userID)), nil); err != nil {
		return err
	}
	return txn.Set([]byte(userMemberPrefix(userID)+roomID), nil)
}

func (s *Store) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var member bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		member, err = exists(txn, memberKey(roomID, userID))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("membership %s in %s: %w", userID, roomID, err)
	}
	return member, nil
}

// RoomsForUser returns every room the user is a durable member of, public or
// private, oldest first.
func (s *Store) RoomsForUser(ctx context.Context, userID string) ([]chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []chat.Room
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := userMemberPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			roomID := strings.TrimPrefix(string(it.Item().Key()), prefix)
			var rec roomRecord
			err := s.getRecord(txn, roomKey(roomID), &rec)
			if errors.Is(err, ErrNotFound) {
				s.log.Warn("Membership points to a missing room", "room_id", roomID, "user_id", userID)
				continue
			}
			if err != nil {
				return err
			}
			rooms = append(rooms, rec.toRoom())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rooms for user %s: %w", userID, err)
	}
	sortRooms(rooms)
	return rooms, nil
}

func sortRooms(rooms []chat.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
}
