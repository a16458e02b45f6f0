package hub

import (
	"github.com/rs/zerolog"

	"github.com/bookswap/realtime/internal/domain/notification"
)

// Directory is the read side of the connection registry.
type Directory interface {
	HandlesFor(userID string) []notification.Handle
	All() []notification.Handle
}

// GroupResolver resolves the handles currently joined to a group.
type GroupResolver interface {
	HandlesIn(groupID string) []notification.Handle
}

// Broadcaster delivers events to users, groups or every connection.
// Sends never block and are never queued for offline targets.
type Broadcaster struct {
	dir    Directory
	groups GroupResolver
	logger zerolog.Logger
}

func NewBroadcaster(dir Directory, groups GroupResolver, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		dir:    dir,
		groups: groups,
		logger: logger.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) SendToUser(userID, event string, payload any) {
	handles := b.dir.HandlesFor(userID)
	if len(handles) == 0 {
		return
	}
	b.deliver(handles, event, payload)
}

func (b *Broadcaster) SendToGroup(groupID, event string, payload any) {
	b.SendToGroupExcept(groupID, "", event, payload)
}

// SendToGroupExcept skips the handle with exceptHandleID, typically the originator.
func (b *Broadcaster) SendToGroupExcept(groupID, exceptHandleID, event string, payload any) {
	if b.groups == nil {
		return
	}
	handles := b.groups.HandlesIn(groupID)
	if exceptHandleID != "" {
		filtered := handles[:0]
		for _, h := range handles {
			if h.ID() != exceptHandleID {
				filtered = append(filtered, h)
			}
		}
		handles = filtered
	}
	if len(handles) == 0 {
		return
	}
	b.deliver(handles, event, payload)
}

func (b *Broadcaster) SendToHandle(h notification.Handle, event string, payload any) {
	if h == nil {
		return
	}
	b.deliver([]notification.Handle{h}, event, payload)
}

func (b *Broadcaster) BroadcastAll(event string, payload any) {
	handles := b.dir.All()
	if len(handles) == 0 {
		return
	}
	b.deliver(handles, event, payload)
}

func (b *Broadcaster) deliver(handles []notification.Handle, event string, payload any) {
	msg, err := notification.NewMessage(event, payload)
	if err != nil {
		b.logger.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}
	for _, h := range handles {
		if !h.Send(msg) {
			b.logger.Warn().Str("event", event).Str("handle_id", h.ID()).Msg("dropped event for slow connection")
		}
	}
}
