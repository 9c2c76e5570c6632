// Package api serves the REST side of roomrelay: account registration and
// login, room management, message history and image attachments. Every route
// lives under /api/ and answers JSON, except file downloads.
package api

import (
	"log/slog"
	"net/http"

	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/files"
	"github.com/Tyrowin/roomrelay/internal/store"
	"github.com/go-playground/validator/v10"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxJSONBody         = 1 << 20
)

var validate = validator.New()

// Config tunes the REST handlers. Zero values select the defaults.
type Config struct {
	// HistoryLimit is the page size of message history when the request
	// does not set one.
	HistoryLimit  int
	FileURLPrefix string
}

type Dependencies struct {
	Store  *store.Store
	Tokens *auth.JWT
	Files  *files.Service
}

// Handler serves the /api/ routes.
type Handler struct {
	cfg    Config
	store  *store.Store
	tokens *auth.JWT
	files  *files.Service
	log    *slog.Logger
	mux    *http.ServeMux
}

// New builds the API handler with its routes registered.
func New(cfg Config, deps Dependencies, log *slog.Logger) *Handler {
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.FileURLPrefix == "" {
		cfg.FileURLPrefix = "/api/files/"
	}

	h := &Handler{
		cfg:    cfg,
		store:  deps.Store,
		tokens: deps.Tokens,
		files:  deps.Files,
		log:    log,
		mux:    http.NewServeMux(),
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("POST /api/auth/register", h.register)
	h.mux.HandleFunc("POST /api/auth/login", h.login)
	h.mux.HandleFunc("POST /api/auth/validate", h.validateToken)

	h.mux.Handle("GET /api/chat/rooms", h.requireAuth(h.listRooms))
	h.mux.Handle("POST /api/chat/rooms", h.requireAuth(h.createRoom))
	h.mux.Handle("GET /api/chat/rooms/mine", h.requireAuth(h.myRooms))
	h.mux.Handle("POST /api/chat/rooms/{roomId}/join", h.requireAuth(h.joinRoom))
	h.mux.Handle("GET /api/chat/rooms/{roomId}/messages", h.requireAuth(h.roomMessages))

	h.mux.Handle("POST /api/files/upload", h.requireAuth(h.uploadFile))
	h.mux.HandleFunc("GET /api/files/{fileId}", h.downloadFile)
	h.mux.Handle("DELETE /api/files/{fileId}", h.requireAuth(h.deleteFile))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.log.Debug("API request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "remote_addr", r.RemoteAddr)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
