// Package files stores image attachments on disk and their metadata in the
// store. Message payloads only carry the file id; clients fetch the bytes
// through the REST file routes.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Tyrowin/roomrelay/internal/store"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const DefaultMaxSize = 5 * 1024 * 1024

var (
	ErrTooLarge        = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("only jpeg, png and gif images are allowed")
	ErrEmpty           = errors.New("empty file")
	ErrNotFound        = errors.New("file not found")
	ErrNotOwner        = errors.New("file belongs to another user")
)

// allowedTypes maps the sniffed MIME type to the extension used on disk.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// MetadataStore persists file metadata. *store.Store implements it.
type MetadataStore interface {
	SaveFile(ctx context.Context, f store.File) (store.File, error)
	FileByID(ctx context.Context, id string) (store.File, error)
	DeleteFile(ctx context.Context, id string) error
}

// Service stores uploaded images on disk and their metadata in the store.
type Service struct {
	dir     string
	maxSize int64
	meta    MetadataStore
	log     *slog.Logger
}

// NewService creates dir if needed. A non-positive maxSize means
// DefaultMaxSize.
func NewService(dir string, maxSize int64, meta MetadataStore, log *slog.Logger) (*Service, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{dir: dir, maxSize: maxSize, meta: meta, log: log}, nil
}

func (s *Service) MaxSize() int64 { return s.maxSize }

// Save reads the whole upload, checks its size and sniffed type, writes it
// under a generated name and records its metadata.
func (s *Service) Save(ctx context.Context, ownerID, originalName string, r io.Reader) (store.File, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return store.File{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return store.File{}, ErrTooLarge
	}
	if len(data) == 0 {
		return store.File{}, ErrEmpty
	}

	mime := mimetype.Detect(data)
	ext, ok := allowedTypes[mime.String()]
	if !ok {
		s.log.Debug("Rejected upload", "owner_id", ownerID, "mime_type", mime.String())
		return store.File{}, ErrUnsupportedType
	}

	id := uuid.NewString()
	filename := id + ext
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o640); err != nil {
		return store.File{}, fmt.Errorf("write upload: %w", err)
	}

	saved, err := s.meta.SaveFile(ctx, store.File{
		ID:           id,
		Filename:     filename,
		OriginalName: lo.Ternary(originalName == "", filename, filepath.Base(originalName)),
		MimeType:     mime.String(),
		Size:         int64(len(data)),
		OwnerID:      ownerID,
	})
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, filename))
		return store.File{}, err
	}
	s.log.Info("File uploaded", "file_id", id, "owner_id", ownerID, "size", saved.Size)
	return saved, nil
}

// Open returns the metadata and a reader over the file bytes. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, id string) (store.File, io.ReadCloser, error) {
	meta, err := s.meta.FileByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.File{}, nil, ErrNotFound
	}
	if err != nil {
		return store.File{}, nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, meta.Filename))
	if errors.Is(err, os.ErrNotExist) {
		s.log.Warn("File metadata without bytes on disk", "file_id", id, "filename", meta.Filename)
		return store.File{}, nil, ErrNotFound
	}
	if err != nil {
		return store.File{}, nil, fmt.Errorf("open %s: %w", meta.Filename, err)
	}
	return meta, f, nil
}

// Delete removes a file owned by requesterID.
func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	meta, err := s.meta.FileByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if meta.OwnerID != requesterID {
		return ErrNotOwner
	}

	if err := os.Remove(filepath.Join(s.dir, meta.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", meta.Filename, err)
	}
	if err := s.meta.DeleteFile(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.log.Info("File deleted", "file_id", id, "owner_id", requesterID)
	return nil
}
