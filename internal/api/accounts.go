package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/store"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type sessionResponse struct {
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

type validateResponse struct {
	Valid bool         `json:"valid"`
	User  userResponse `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err, "All fields are required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("Unable to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, req.Email, hash)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		h.log.Error("Registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.log.Error("Unable to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.log.Info("User registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Message: "User created successfully",
		Token:   token,
		User:    userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err, "Email and password are required")
		return
	}

	user, err := h.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.log.Error("Login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	ok, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil {
		h.log.Error("Stored password hash is unreadable", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.store.MarkUserSeen(r.Context(), user.ID); err != nil {
		h.log.Warn("Unable to update last seen", "user_id", user.ID, "error", err)
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.log.Error("Unable to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token: token,
		User:  userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		writeError(w, http.StatusUnauthorized, "No token provided")
		return
	}
	token, err := auth.BearerToken(header)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	identity, err := h.tokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid: true,
		User:  userResponse{ID: identity.UserID, Username: identity.Username},
	})
}
