package hub

import (
	"sync"

	"github.com/samber/lo"

	"github.com/bookswap/realtime/internal/domain/notification"
)

// Registry maps user ids to their live connection handles.
// A handle is owned by at most one user; a user with no handles has no entry.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]notification.Handle
	owner  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]notification.Handle),
		owner:  make(map[string]string),
	}
}

// Register adds h under userID. Registering the same handle twice is a no-op;
// registering it under a different user moves it.
func (r *Registry) Register(userID string, h notification.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.owner[h.ID()]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(prev, h.ID())
	}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]notification.Handle)
		r.byUser[userID] = set
	}
	set[h.ID()] = h
	r.owner[h.ID()] = userID
}

// Unregister removes h from userID. It does not close the handle.
func (r *Registry) Unregister(userID string, h notification.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner[h.ID()] != userID {
		return
	}
	r.removeLocked(userID, h.ID())
}

func (r *Registry) removeLocked(userID, handleID string) {
	delete(r.owner, handleID)
	set, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(set, handleID)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// HandlesFor returns a snapshot of the user's handles; empty when offline.
func (r *Registry) HandlesFor(userID string) []notification.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.byUser[userID])
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// OnlineUsers returns the ids of every user with at least one live handle.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.byUser)
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

// All returns a snapshot of every live handle.
func (r *Registry) All() []notification.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]notification.Handle, 0, len(r.owner))
	for _, set := range r.byUser {
		out = append(out, lo.Values(set)...)
	}
	return out
}

// Close closes every handle and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	handles := make([]notification.Handle, 0, len(r.owner))
	for _, set := range r.byUser {
		handles = append(handles, lo.Values(set)...)
	}
	r.byUser = make(map[string]map[string]notification.Handle)
	r.owner = make(map[string]string)
	r.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}
