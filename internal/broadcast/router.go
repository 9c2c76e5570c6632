// Package broadcast fans room events out to the sessions subscribed to each
// room.
//
// Every room has its own lock. Subscribe, Unsubscribe and Broadcast on the same
// room are serialized by that lock, and payloads are handed to subscribers
// through non-blocking enqueues while it is held, so all subscribers of a room
// observe the same order of events. Different rooms never contend.
package broadcast

import (
	"log/slog"
	"sync"
)

// Subscriber is a receiving end of room broadcasts. Deliver must not block; it
// returns false when the payload could not be queued (closed transport or full
// buffer).
type Subscriber interface {
	ID() string
	Deliver(payload []byte) bool
}

type room struct {
	mu          sync.Mutex
	subscribers map[string]Subscriber
}

// Router maps room ids to their subscribers.
type Router struct {
	mu    sync.RWMutex
	rooms map[string]*room
	log   *slog.Logger

	// onFailure is told about subscribers whose delivery failed. It runs on
	// its own goroutine, outside any room lock.
	onFailure func(Subscriber)
}

// NewRouter returns an empty router. onFailure may be nil.
func NewRouter(log *slog.Logger, onFailure func(Subscriber)) *Router {
	return &Router{
		rooms:     make(map[string]*room),
		log:       log,
		onFailure: onFailure,
	}
}

// SetFailureHandler replaces the delivery-failure callback.
func (r *Router) SetFailureHandler(fn func(Subscriber)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailure = fn
}

// lockRoom returns the locked room entry, creating it when create is true. The
// returned room is guaranteed to still be in the table while locked.
func (r *Router) lockRoom(roomID string, create bool) *room {
	for {
		r.mu.RLock()
		rm := r.rooms[roomID]
		r.mu.RUnlock()

		if rm == nil {
			if !create {
				return nil
			}
			r.mu.Lock()
			rm = r.rooms[roomID]
			if rm == nil {
				rm = &room{subscribers: make(map[string]Subscriber)}
				r.rooms[roomID] = rm
			}
			r.mu.Unlock()
		}

		rm.mu.Lock()
		r.mu.RLock()
		current := r.rooms[roomID]
		r.mu.RUnlock()
		if current == rm {
			return rm
		}
		// The room was dropped while we waited for its lock; retry.
		rm.mu.Unlock()
	}
}

// dropIfEmpty removes an empty room from the table. Caller holds rm.mu.
func (r *Router) dropIfEmpty(roomID string, rm *room) {
	if len(rm.subscribers) > 0 {
		return
	}
	r.mu.Lock()
	if r.rooms[roomID] == rm {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()
}

// Subscribe adds sub to roomID. It reports false when sub was already
// subscribed.
func (r *Router) Subscribe(roomID string, sub Subscriber) bool {
	rm := r.lockRoom(roomID, true)
	defer rm.mu.Unlock()

	if _, exists := rm.subscribers[sub.ID()]; exists {
		return false
	}
	rm.subscribers[sub.ID()] = sub
	return true
}

// Unsubscribe removes the subscriber from roomID. It reports whether a
// subscription existed.
func (r *Router) Unsubscribe(roomID, subscriberID string) bool {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return false
	}
	defer rm.mu.Unlock()

	if _, exists := rm.subscribers[subscriberID]; !exists {
		return false
	}
	delete(rm.subscribers, subscriberID)
	r.dropIfEmpty(roomID, rm)
	return true
}

// UnsubscribeAll removes the subscriber from every listed room.
func (r *Router) UnsubscribeAll(subscriberID string, roomIDs []string) int {
	removed := 0
	for _, roomID := range roomIDs {
		if r.Unsubscribe(roomID, subscriberID) {
			removed++
		}
	}
	return removed
}

// Broadcast delivers payload to every subscriber of roomID except the one whose
// id equals exclude (pass "" to exclude nobody). It returns the number of
// subscribers that accepted the payload. Subscribers that fail are dropped
// from the room and reported to the failure handler.
func (r *Router) Broadcast(roomID string, payload []byte, exclude string) int {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return 0
	}

	delivered := 0
	var failed []Subscriber
	for id, sub := range rm.subscribers {
		if exclude != "" && id == exclude {
			continue
		}
		if sub.Deliver(payload) {
			delivered++
			continue
		}
		failed = append(failed, sub)
	}
	for _, sub := range failed {
		delete(rm.subscribers, sub.ID())
	}
	r.dropIfEmpty(roomID, rm)
	rm.mu.Unlock()

	r.reportFailures(roomID, failed)
	return delivered
}

func (r *Router) reportFailures(roomID string, failed []Subscriber) {
	if len(failed) == 0 {
		return
	}

	r.mu.RLock()
	onFailure := r.onFailure
	r.mu.RUnlock()

	for _, sub := range failed {
		r.log.Debug("Dropping subscriber after failed delivery", "room_id", roomID, "session_id", sub.ID())
		if onFailure != nil {
			go onFailure(sub)
		}
	}
}

// SubscriberCount returns the number of subscribers of roomID.
func (r *Router) SubscriberCount(roomID string) int {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return 0
	}
	defer rm.mu.Unlock()
	return len(rm.subscribers)
}

// IsSubscribed reports whether subscriberID receives broadcasts of roomID.
func (r *Router) IsSubscribed(roomID, subscriberID string) bool {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return false
	}
	defer rm.mu.Unlock()
	_, ok := rm.subscribers[subscriberID]
	return ok
}

// RoomCount returns the number of rooms with at least one subscriber.
func (r *Router) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
