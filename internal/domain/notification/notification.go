package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outbound event names.
const (
	EventNewInvitation      = "new-invitation"
	EventInvitationAccepted = "invitation-accepted"
	EventInvitationRefused  = "invitation-refused"
	EventInvitationCanceled = "invitation-canceled"
	EventInvitationExpired  = "invitation-expired"
	EventPendingInvitations = "pending-invitations"
	EventOperationUpdated   = "operation-updated"
	EventAck                = "ack"
	EventError              = "error"

	EventUserJoined       = "user-joined"
	EventRoomJoined       = "room-joined"
	EventUserLeft         = "user-left"
	EventTyping           = "typing"
	EventStopTyping       = "stop-typing"
	EventMessageRead      = "message-read"
	EventMessageDelivered = "message-delivered"
)

var reservedEvents = map[string]struct{}{
	EventNewInvitation:      {},
	EventInvitationAccepted: {},
	EventInvitationRefused:  {},
	EventInvitationCanceled: {},
	EventInvitationExpired:  {},
	EventPendingInvitations: {},
	EventOperationUpdated:   {},
	EventAck:                {},
	EventError:              {},
	EventUserJoined:         {},
	EventRoomJoined:         {},
	EventUserLeft:           {},
	EventTyping:             {},
	EventStopTyping:         {},
	EventMessageRead:        {},
	EventMessageDelivered:   {},
}

// IsReserved reports whether event is one the service emits itself.
func IsReserved(event string) bool {
	_, ok := reservedEvents[event]
	return ok
}

// Message is the envelope written to a live connection.
type Message struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage marshals payload into a message for event.
func NewMessage(event string, payload any) (*Message, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return &Message{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ErrorPayload is sent only to the originating connection.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Handle is an addressable live connection.
type Handle interface {
	ID() string
	// Send enqueues without blocking and reports whether the message was accepted.
	Send(msg *Message) bool
	Close()
}
