package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/Tyrowin/roomrelay/internal/files"
)

// multipartOverhead leaves room for boundaries and part headers on top of the
// file size limit.
const multipartOverhead = 64 << 10

type uploadResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxSize()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	saved, err := h.files.Save(r.Context(), identity.UserID, header.Filename, file)
	switch {
	case errors.Is(err, files.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	case errors.Is(err, files.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "Only image files are allowed!")
		return
	case errors.Is(err, files.ErrEmpty):
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	case err != nil:
		h.log.Error("File upload failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "File upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:           saved.ID,
		OriginalName: saved.OriginalName,
		MimeType:     saved.MimeType,
		Size:         saved.Size,
		URL:          h.cfg.FileURLPrefix + saved.ID,
	})
}

// downloadFile streams an attachment inline. File ids are unguessable and
// browsers fetch them from <img> tags, so the route is public.
func (h *Handler) downloadFile(w http.ResponseWriter, r *http.Request) {
	meta, rc, err := h.files.Open(r.Context(), r.PathValue("fileId"))
	if errors.Is(err, files.ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		h.log.Error("File fetch failed", "file_id", r.PathValue("fileId"), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": meta.OriginalName}))
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Debug("File stream interrupted", "file_id", meta.ID, "error", err)
	}
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	fileID := r.PathValue("fileId")

	err := h.files.Delete(r.Context(), fileID, identity.UserID)
	switch {
	case errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, files.ErrNotOwner):
		writeError(w, http.StatusForbidden, "You do not own this file")
	case err != nil:
		h.log.Error("File deletion failed", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
	default:
		writeJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
	}
}
