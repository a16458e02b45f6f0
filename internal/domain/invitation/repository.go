package invitation

import (
	"time"

	"github.com/google/uuid"
)

// Store owns pending invitations, indexed by recipient.
// Implementations must be safe for concurrent use and must return copies.
type Store interface {
	// Create assigns a unique id, appends to the recipient's list and returns the id.
	Create(inv *Invitation) (uuid.UUID, error)
	Find(id uuid.UUID, recipientID string) (*Invitation, bool)
	// FindBySender locates an invitation in any recipient's list, returning the recipient id.
	FindBySender(id uuid.UUID, senderID string) (*Invitation, string, bool)
	Remove(id uuid.UUID, recipientID string)
	// Take atomically finds and removes the invitation held for recipientID.
	Take(id uuid.UUID, recipientID string) (*Invitation, bool)
	// TakeBySender atomically finds and removes an invitation sent by senderID.
	TakeBySender(id uuid.UUID, senderID string) (*Invitation, bool)
	// ListPending returns the recipient's invitations in insertion order.
	ListPending(recipientID string) []*Invitation
	// SweepExpired removes and returns every invitation with now-createdAt >= ttl.
	SweepExpired(ttl time.Duration, now time.Time) []*Invitation
}
