// Package presence tracks which users currently hold at least one active
// session. A user may be connected from several devices at once; the user is
// offline when no entry remains.
package presence

import (
	"sync"
	"time"
)

// Entry is one active session of a user.
type Entry struct {
	UserID     string
	SessionID  string
	LastSeenAt time.Time
}

// Registry is an in-process userID -> sessions index. All methods are safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]map[string]*Entry
	bySession map[string]*Entry
	now       func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]map[string]*Entry),
		bySession: make(map[string]*Entry),
		now:       time.Now,
	}
}

// Add records a session for a user. Adding an already known sessionID only
// refreshes its LastSeenAt.
func (r *Registry) Add(userID, sessionID string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bySession[sessionID]; ok {
		existing.LastSeenAt = r.now()
		return *existing
	}

	entry := &Entry{UserID: userID, SessionID: sessionID, LastSeenAt: r.now()}
	sessions := r.byUser[userID]
	if sessions == nil {
		sessions = make(map[string]*Entry)
		r.byUser[userID] = sessions
	}
	sessions[sessionID] = entry
	r.bySession[sessionID] = entry
	return *entry
}

// Touch refreshes LastSeenAt for an active session.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.bySession[sessionID]; ok {
		entry.LastSeenAt = r.now()
	}
}

// Remove drops the entry of one session. Other sessions of the same user are
// left untouched. It reports whether an entry was removed.
func (r *Registry) Remove(sessionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.bySession[sessionID]
	if !ok {
		return Entry{}, false
	}
	delete(r.bySession, sessionID)

	if sessions := r.byUser[entry.UserID]; sessions != nil {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.byUser, entry.UserID)
		}
	}
	return *entry, true
}

// HasSession reports whether sessionID is registered.
func (r *Registry) HasSession(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.bySession[sessionID]
	return ok
}

// IsOnline reports whether the user has at least one active session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userID]) > 0
}

// Sessions returns a snapshot of the user's active sessions.
func (r *Registry) Sessions(userID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.byUser[userID]
	out := make([]Entry, 0, len(sessions))
	for _, entry := range sessions {
		out = append(out, *entry)
	}
	return out
}

// Len returns the number of active sessions across all users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bySession)
}

// OnlineUsers returns the number of distinct users with at least one session.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}
