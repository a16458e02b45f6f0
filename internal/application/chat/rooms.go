package chat

import (
	"sync"

	"github.com/samber/lo"

	"github.com/bookswap/realtime/internal/domain/notification"
)

type member struct {
	userID string
	handle notification.Handle
}

// Rooms tracks which connections joined which rooms. Empty rooms are dropped.
type Rooms struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]member
	byHandle map[string]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:    make(map[string]map[string]member),
		byHandle: make(map[string]map[string]struct{}),
	}
}

// Join adds h to room and reports whether it was not already a member.
func (r *Rooms) Join(room, userID string, h notification.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]member)
		r.rooms[room] = members
	}
	if _, exists := members[h.ID()]; exists {
		return false
	}
	members[h.ID()] = member{userID: userID, handle: h}
	joined, ok := r.byHandle[h.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.byHandle[h.ID()] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes h from room and reports whether it was a member.
func (r *Rooms) Leave(room string, h notification.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, h.ID())
}

// LeaveAll removes h from every room and returns the rooms it left.
func (r *Rooms) LeaveAll(h notification.Handle) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	left := lo.Keys(r.byHandle[h.ID()])
	for _, room := range left {
		r.leaveLocked(room, h.ID())
	}
	return left
}

func (r *Rooms) leaveLocked(room, handleID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[handleID]; !ok {
		return false
	}
	delete(members, handleID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	if joined, ok := r.byHandle[handleID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byHandle, handleID)
		}
	}
	return true
}

// HandlesIn implements hub.GroupResolver.
func (r *Rooms) HandlesIn(room string) []notification.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.rooms[room], func(_ string, m member) notification.Handle {
		return m.handle
	})
}

// Members returns the distinct users present in room.
func (r *Rooms) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Uniq(lo.MapToSlice(r.rooms[room], func(_ string, m member) string {
		return m.userID
	}))
}

// IsMember reports whether h joined room.
func (r *Rooms) IsMember(room string, h notification.Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][h.ID()]
	return ok
}

// Count returns the number of non-empty rooms.
func (r *Rooms) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
