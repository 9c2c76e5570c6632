package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// File is the metadata of an uploaded attachment. The bytes live on disk under
// Filename.
type File struct {
	ID           string
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	OwnerID      string
	CreatedAt    time.Time
}

type fileRecord struct {
	ID           string `cbor:"id"`
	Filename     string `cbor:"filename"`
	OriginalName string `cbor:"original_name"`
	MimeType     string `cbor:"mime_type"`
	Size         int64  `cbor:"size"`
	OwnerID      string `cbor:"owner_id"`
	CreatedAt    int64  `cbor:"created_at"`
}

func fileKey(id string) string { return "file:" + id }

// SaveFile stores file metadata. CreatedAt is set when zero.
func (s *Store) SaveFile(ctx context.Context, f File) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now().UTC()
	}

	rec := fileRecord{
		ID:           f.ID,
		Filename:     f.Filename,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		OwnerID:      f.OwnerID,
		CreatedAt:    f.CreatedAt.UnixNano(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return s.setRecord(txn, fileKey(f.ID), rec)
	})
	if err != nil {
		return File{}, fmt.Errorf("save file %s: %w", f.ID, err)
	}
	return f, nil
}

func (s *Store) FileByID(ctx context.Context, id string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	var rec fileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getRecord(txn, fileKey(id), &rec)
	})
	if err != nil {
		return File{}, fmt.Errorf("file %s: %w", id, err)
	}
	return File{
		ID:           rec.ID,
		Filename:     rec.Filename,
		OriginalName: rec.OriginalName,
		MimeType:     rec.MimeType,
		Size:         rec.Size,
		OwnerID:      rec.OwnerID,
		CreatedAt:    fromNanos(rec.CreatedAt),
	}, nil
}

// DeleteFile removes file metadata. It returns ErrNotFound for unknown ids.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, fileKey(id))
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return txn.Delete([]byte(fileKey(id)))
	})
	if err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}
