package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// User is an account as seen by the REST layer.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

type userRecord struct {
	ID           string `cbor:"id"`
	Username     string `cbor:"username"`
	Email        string `cbor:"email"`
	PasswordHash string `cbor:"password_hash"`
	CreatedAt    int64  `cbor:"created_at"`
	LastSeenAt   int64  `cbor:"last_seen_at,omitempty"`
}

func (r userRecord) toUser() User {
	return User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    fromNanos(r.CreatedAt),
		LastSeenAt:   fromNanos(r.LastSeenAt),
	}
}

func userKey(id string) string { return "user:" + id }

func emailKey(email string) string {
	return "user-email:" + strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new account and returns it with its generated id. Emails
// are unique, compared case-insensitively.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	rec := userRecord{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UnixNano(),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		taken, err := exists(txn, emailKey(email))
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if err := txn.Set([]byte(emailKey(email)), []byte(rec.ID)); err != nil {
			return err
		}
		return s.setRecord(txn, userKey(rec.ID), rec)
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return rec.toUser(), nil
}

func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var rec userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getRecord(txn, userKey(id), &rec)
	})
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return rec.toUser(), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var rec userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailKey(email)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return s.getRecord(txn, userKey(string(id)), &rec)
	})
	if err != nil {
		return User{}, fmt.Errorf("user by email: %w", err)
	}
	return rec.toUser(), nil
}

// Usernames resolves a set of user ids to usernames. Unknown ids are left out
// of the result.
func (s *Store) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var rec userRecord
			err := s.getRecord(txn, userKey(id), &rec)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			names[id] = rec.Username
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve usernames: %w", err)
	}
	return names, nil
}

// MarkUserSeen stamps the user's last_seen_at with the current time.
func (s *Store) MarkUserSeen(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var rec userRecord
		if err := s.getRecord(txn, userKey(userID), &rec); err != nil {
			return err
		}
		rec.LastSeenAt = s.now().UnixNano()
		return s.setRecord(txn, userKey(userID), rec)
	})
	if err != nil {
		return fmt.Errorf("mark user %s seen: %w", userID, err)
	}
	return nil
}
