// Package store is the durable side of the relay: users, rooms, memberships,
// messages and file metadata kept in BadgerDB.
//
// Key layout:
//
//	user:{id}                      -> userRecord
//	user-email:{email}             -> user id
//	room:{id}                      -> roomRecord
//	member:{roomID}:{userID}       -> empty
//	umember:{userID}:{roomID}      -> empty
//	msg:{roomID}:{unixnano}:{id}   -> messageRecord (19-digit padded timestamp)
//	file:{id}                      -> fileRecord
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Store implements chat.RoomStore, chat.MessagePersistor and chat.SeenMarker
// on top of a badger database.
type Store struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

// Open opens the database at path. An empty path opens an in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return New(db, log), nil
}

// New wraps an already opened database.
func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getRecord(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, v)
	})
}

func (s *Store) setRecord(txn *badger.Txn, key string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
