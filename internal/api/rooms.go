package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/roomrelay/internal/chat"
	"github.com/samber/lo"
)

type createRoomRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	IsPrivate bool   `json:"isPrivate"`
}

type roomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type historyMessage struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	FileID      string    `json:"fileId,omitempty"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
	Username    string    `json:"username"`
	FileURL     string    `json:"fileUrl,omitempty"`
}

func toRoomResponse(room chat.Room, _ int) roomResponse {
	return roomResponse{
		ID:        room.ID,
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
	}
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ListPublicRooms(r.Context())
	if err != nil {
		h.log.Error("Unable to list rooms", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(rooms, toRoomResponse))
}

func (h *Handler) myRooms(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	rooms, err := h.store.RoomsForUser(r.Context(), identity.UserID)
	if err != nil {
		h.log.Error("Unable to list member rooms", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(rooms, toRoomResponse))
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req createRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err, "Room name is required")
		return
	}

	room, err := h.store.CreateRoom(r.Context(), strings.TrimSpace(req.Name), req.IsPrivate, identity.UserID)
	if err != nil {
		h.log.Error("Unable to create room", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.log.Info("Room created", "room_id", room.ID, "user_id", identity.UserID, "private", room.IsPrivate)
	writeJSON(w, http.StatusCreated, toRoomResponse(room, 0))
}

// joinRoom records a durable membership. Private rooms are unlisted, not
// closed: anyone holding the room id can join.
func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	roomID := r.PathValue("roomId")

	room, ok := h.findRoom(w, r, roomID)
	if !ok {
		return
	}

	if err := h.store.AddMember(r.Context(), room.ID, identity.UserID); err != nil {
		h.log.Error("Unable to join room", "room_id", room.ID, "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Joined room successfully"})
}

// roomMessages returns the latest messages of a room in chronological order,
// each with the sender's username. Private room history is members only.
func (h *Handler) roomMessages(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	roomID := r.PathValue("roomId")

	room, ok := h.findRoom(w, r, roomID)
	if !ok {
		return
	}

	if room.IsPrivate {
		member, err := h.store.IsMember(r.Context(), room.ID, identity.UserID)
		if err != nil {
			h.log.Error("Membership lookup failed", "room_id", room.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !member {
			writeError(w, http.StatusForbidden, "You are not a member of this room")
			return
		}
	}

	messages, err := h.store.MessagesByRoom(r.Context(), room.ID, h.historyLimit(r))
	if err != nil {
		h.log.Error("Unable to load history", "room_id", room.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	senders := lo.Uniq(lo.Map(messages, func(m chat.Message, _ int) string { return m.SenderID }))
	names, err := h.store.Usernames(r.Context(), senders)
	if err != nil {
		h.log.Error("Unable to resolve senders", "room_id", room.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(messages, func(m chat.Message, _ int) historyMessage {
		out := historyMessage{
			ID:          m.ID,
			RoomID:      m.RoomID,
			SenderID:    m.SenderID,
			Content:     m.Content,
			FileID:      m.AttachmentRef,
			MessageType: string(m.Kind),
			CreatedAt:   m.CreatedAt,
			Username:    names[m.SenderID],
		}
		if m.Kind == chat.KindImage && m.AttachmentRef != "" {
			out.FileURL = h.cfg.FileURLPrefix + m.AttachmentRef
		}
		return out
	}))
}

// historyLimit reads ?limit=, falling back to the configured page size for
// missing or invalid values.
func (h *Handler) historyLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.cfg.HistoryLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return h.cfg.HistoryLimit
	}
	return min(n, maxHistoryLimit)
}

func (h *Handler) findRoom(w http.ResponseWriter, r *http.Request, roomID string) (chat.Room, bool) {
	room, err := h.store.FindRoom(r.Context(), roomID)
	if errors.Is(err, chat.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "Room not found")
		return chat.Room{}, false
	}
	if err != nil {
		h.log.Error("Room lookup failed", "room_id", roomID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return chat.Room{}, false
	}
	return room, true
}
