package invitation

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle status of an invitation.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRefused  Status = "REFUSED"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
)

// Kind describes what the sender proposes.
type Kind string

const (
	KindGeneric  Kind = "generic"
	KindBorrow   Kind = "borrow"
	KindBuy      Kind = "buy"
	KindExchange Kind = "exchange"
)

// Metadata keys that may carry the backing operation id.
const (
	MetaExternalRef = "externalRef"
	MetaOperationID = "operationId"
)

var (
	ErrNotFound                  = errors.New("invitation not found")
	ErrNotFoundOrNotOwner        = errors.New("invitation not found or not owned by caller")
	ErrMissingOperationReference = errors.New("no invitation id or operation id supplied")
	ErrReconciliation            = errors.New("operation reconciliation failed")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrMissingRecipient          = errors.New("recipient is required")
	ErrSelfInvitation            = errors.New("cannot invite yourself")
)

// Invitation is a pending cross-user proposal awaiting a response.
type Invitation struct {
	ID            uuid.UUID      `json:"id"`
	FromUserID    string         `json:"fromUserId"`
	ToUserID      string         `json:"toUserId"`
	Kind          Kind           `json:"kind"`
	Message       string         `json:"message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	RespondedAt   *time.Time     `json:"respondedAt,omitempty"`
	RefusalReason *string        `json:"refusalReason,omitempty"`
}

// NewInvitation builds a pending invitation. The id is assigned by the store.
func NewInvitation(fromUserID, toUserID string, kind Kind, message string, metadata map[string]any) (*Invitation, error) {
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return nil, ErrMissingRecipient
	}
	if toUserID == fromUserID {
		return nil, ErrSelfInvitation
	}
	if kind == "" {
		kind = KindGeneric
	}
	return &Invitation{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Kind:       kind,
		Message:    message,
		Metadata:   maps.Clone(metadata),
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ExternalRef returns the operation id carried in metadata, if any.
func (i *Invitation) ExternalRef() (string, bool) {
	for _, key := range []string{MetaExternalRef, MetaOperationID} {
		if v, ok := i.Metadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// CanTransitionTo checks if a transition to the target status is valid.
func (i *Invitation) CanTransitionTo(target Status) bool {
	if i.Status != StatusPending {
		return false
	}
	switch target {
	case StatusAccepted, StatusRefused, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the invitation left Pending.
func (i *Invitation) IsTerminal() bool {
	return i.Status != StatusPending
}

// IsExpired reports whether the invitation is at least ttl old at now.
func (i *Invitation) IsExpired(ttl time.Duration, now time.Time) bool {
	return now.Sub(i.CreatedAt) >= ttl
}

// MarkAccepted marks the invitation as accepted.
func (i *Invitation) MarkAccepted(now time.Time) error {
	return i.respond(StatusAccepted, now)
}

// MarkRefused marks the invitation as refused with an optional reason.
func (i *Invitation) MarkRefused(reason string, now time.Time) error {
	if err := i.respond(StatusRefused, now); err != nil {
		return err
	}
	if reason != "" {
		i.RefusalReason = &reason
	}
	return nil
}

// MarkCanceled marks the invitation as canceled by its sender.
func (i *Invitation) MarkCanceled(now time.Time) error {
	return i.respond(StatusCanceled, now)
}

// MarkExpired marks the invitation as expired.
func (i *Invitation) MarkExpired(now time.Time) error {
	return i.respond(StatusExpired, now)
}

func (i *Invitation) respond(target Status, now time.Time) error {
	if !i.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	i.Status = target
	t := now.UTC()
	i.RespondedAt = &t
	return nil
}

// Clone returns a copy that shares no mutable state with i.
func (i *Invitation) Clone() *Invitation {
	if i == nil {
		return nil
	}
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	if i.RespondedAt != nil {
		t := *i.RespondedAt
		c.RespondedAt = &t
	}
	if i.RefusalReason != nil {
		r := *i.RefusalReason
		c.RefusalReason = &r
	}
	return &c
}
