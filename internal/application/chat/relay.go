package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookswap/realtime/internal/domain/notification"
	"github.com/bookswap/realtime/internal/domain/user"
)

var (
	ErrMissingRoom   = errors.New("room id is required")
	ErrMissingTarget = errors.New("room id or recipient is required")
	ErrNotInRoom     = errors.New("connection has not joined the room")
)

// SignalInput addresses a typing indicator to a room or a single user.
type SignalInput struct {
	RoomID   string
	ToUserID string
}

// ReceiptInput acknowledges a chat message as read or delivered.
type ReceiptInput struct {
	MessageID string
	RoomID    string
	ToUserID  string
}

// PresenceEvent is emitted to a room when a member joins or leaves.
type PresenceEvent struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

// RoomJoinedEvent acknowledges a join to the joining connection.
type RoomJoinedEvent struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

// SignalEvent carries typing and stop-typing indicators.
type SignalEvent struct {
	RoomID      string `json:"roomId,omitempty"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

// ReceiptEvent carries message-read and message-delivered receipts.
type ReceiptEvent struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId,omitempty"`
	UserID    string    `json:"userId"`
	At        time.Time `json:"at"`
}

// Relay forwards ephemeral chat signals. It persists nothing besides room membership.
type Relay struct {
	rooms    *Rooms
	notifier notification.Broadcaster
	logger   zerolog.Logger
}

func NewRelay(rooms *Rooms, notifier notification.Broadcaster, logger zerolog.Logger) *Relay {
	return &Relay{
		rooms:    rooms,
		notifier: notifier,
		logger:   logger.With().Str("service", "chat").Logger(),
	}
}

// Join adds the connection to roomID and announces it to the other members.
func (r *Relay) Join(id *user.Identity, h notification.Handle, roomID string) (*RoomJoinedEvent, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrMissingRoom
	}
	if r.rooms.Join(roomID, id.ID, h) {
		r.notifier.SendToGroupExcept(roomID, h.ID(), notification.EventUserJoined, PresenceEvent{
			RoomID:      roomID,
			UserID:      id.ID,
			DisplayName: id.DisplayName,
		})
		r.logger.Debug().Str("room", roomID).Str("user_id", id.ID).Msg("joined room")
	}
	return &RoomJoinedEvent{RoomID: roomID, Members: r.rooms.Members(roomID)}, nil
}

// Leave removes the connection from roomID and announces it to the remaining members.
func (r *Relay) Leave(id *user.Identity, h notification.Handle, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrMissingRoom
	}
	if !r.rooms.Leave(roomID, h) {
		return ErrNotInRoom
	}
	r.announceLeft(id, roomID)
	return nil
}

// LeaveAll is called when a connection closes.
func (r *Relay) LeaveAll(id *user.Identity, h notification.Handle) {
	for _, roomID := range r.rooms.LeaveAll(h) {
		r.announceLeft(id, roomID)
	}
}

func (r *Relay) announceLeft(id *user.Identity, roomID string) {
	r.notifier.SendToGroup(roomID, notification.EventUserLeft, PresenceEvent{
		RoomID:      roomID,
		UserID:      id.ID,
		DisplayName: id.DisplayName,
	})
	r.logger.Debug().Str("room", roomID).Str("user_id", id.ID).Msg("left room")
}

// Typing relays a typing indicator. stop selects stop-typing.
func (r *Relay) Typing(id *user.Identity, h notification.Handle, in SignalInput, stop bool) error {
	event := notification.EventTyping
	if stop {
		event = notification.EventStopTyping
	}
	ev := SignalEvent{RoomID: strings.TrimSpace(in.RoomID), UserID: id.ID, DisplayName: id.DisplayName}
	return r.route(h, ev.RoomID, in.ToUserID, event, ev)
}

// Receipt relays a message-read or message-delivered receipt.
func (r *Relay) Receipt(id *user.Identity, h notification.Handle, in ReceiptInput, read bool) error {
	event := notification.EventMessageDelivered
	if read {
		event = notification.EventMessageRead
	}
	ev := ReceiptEvent{
		MessageID: in.MessageID,
		RoomID:    strings.TrimSpace(in.RoomID),
		UserID:    id.ID,
		At:        time.Now().UTC(),
	}
	return r.route(h, ev.RoomID, in.ToUserID, event, ev)
}

// route sends to the room (excluding the originator) or to a single user.
func (r *Relay) route(h notification.Handle, roomID, toUserID, event string, payload any) error {
	toUserID = strings.TrimSpace(toUserID)
	switch {
	case roomID != "":
		if !r.rooms.IsMember(roomID, h) {
			return ErrNotInRoom
		}
		r.notifier.SendToGroupExcept(roomID, h.ID(), event, payload)
	case toUserID != "":
		r.notifier.SendToUser(toUserID, event, payload)
	default:
		return ErrMissingTarget
	}
	return nil
}
