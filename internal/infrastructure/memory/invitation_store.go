package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/bookswap/realtime/internal/domain/invitation"
)

const maxIDAttempts = 8

var errIDSpaceExhausted = errors.New("could not allocate a unique invitation id")

// InvitationStore implements invitation.Store in process memory.
// Every invitation lives in exactly one recipient list; owner indexes id -> recipient.
type InvitationStore struct {
	mu          sync.Mutex
	byRecipient map[string][]*invitation.Invitation
	owner       map[uuid.UUID]string
	newID       func() (uuid.UUID, error)
}

func NewInvitationStore() *InvitationStore {
	return &InvitationStore{
		byRecipient: make(map[string][]*invitation.Invitation),
		owner:       make(map[uuid.UUID]string),
		newID:       uuid.NewRandom,
	}
}

func (s *InvitationStore) Create(inv *invitation.Invitation) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id uuid.UUID
	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			return uuid.Nil, errIDSpaceExhausted
		}
		candidate, err := s.newID()
		if err != nil {
			return uuid.Nil, err
		}
		if _, taken := s.owner[candidate]; !taken && candidate != uuid.Nil {
			id = candidate
			break
		}
	}

	stored := inv.Clone()
	stored.ID = id
	s.byRecipient[stored.ToUserID] = append(s.byRecipient[stored.ToUserID], stored)
	s.owner[id] = stored.ToUserID
	inv.ID = id
	return id, nil
}

func (s *InvitationStore) Find(id uuid.UUID, recipientID string) (*invitation.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inv, ok := s.locateLocked(id, recipientID)
	if !ok {
		return nil, false
	}
	return inv.Clone(), true
}

func (s *InvitationStore) FindBySender(id uuid.UUID, senderID string) (*invitation.Invitation, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipientID, ok := s.owner[id]
	if !ok {
		return nil, "", false
	}
	_, inv, ok := s.locateLocked(id, recipientID)
	if !ok || inv.FromUserID != senderID {
		return nil, "", false
	}
	return inv.Clone(), recipientID, true
}

func (s *InvitationStore) Remove(id uuid.UUID, recipientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, _, ok := s.locateLocked(id, recipientID); ok {
		s.removeAtLocked(recipientID, idx)
	}
}

func (s *InvitationStore) Take(id uuid.UUID, recipientID string) (*invitation.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, inv, ok := s.locateLocked(id, recipientID)
	if !ok {
		return nil, false
	}
	s.removeAtLocked(recipientID, idx)
	return inv, true
}

func (s *InvitationStore) TakeBySender(id uuid.UUID, senderID string) (*invitation.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipientID, ok := s.owner[id]
	if !ok {
		return nil, false
	}
	idx, inv, ok := s.locateLocked(id, recipientID)
	if !ok || inv.FromUserID != senderID {
		return nil, false
	}
	s.removeAtLocked(recipientID, idx)
	return inv, true
}

func (s *InvitationStore) ListPending(recipientID string) []*invitation.Invitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.byRecipient[recipientID], func(inv *invitation.Invitation, _ int) *invitation.Invitation {
		return inv.Clone()
	})
}

func (s *InvitationStore) SweepExpired(ttl time.Duration, now time.Time) []*invitation.Invitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []*invitation.Invitation
	for recipientID, list := range s.byRecipient {
		expired, kept := lo.FilterReject(list, func(inv *invitation.Invitation, _ int) bool {
			return inv.IsExpired(ttl, now)
		})
		if len(expired) == 0 {
			continue
		}
		for _, inv := range expired {
			delete(s.owner, inv.ID)
		}
		removed = append(removed, expired...)
		if len(kept) == 0 {
			delete(s.byRecipient, recipientID)
		} else {
			s.byRecipient[recipientID] = kept
		}
	}
	return removed
}

// Len returns the number of stored invitations.
func (s *InvitationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owner)
}

func (s *InvitationStore) locateLocked(id uuid.UUID, recipientID string) (int, *invitation.Invitation, bool) {
	if s.owner[id] != recipientID {
		return -1, nil, false
	}
	inv, idx, ok := lo.FindIndexOf(s.byRecipient[recipientID], func(inv *invitation.Invitation) bool {
		return inv.ID == id
	})
	return idx, inv, ok
}

func (s *InvitationStore) removeAtLocked(recipientID string, idx int) {
	list := s.byRecipient[recipientID]
	delete(s.owner, list[idx].ID)
	list = append(list[:idx:idx], list[idx+1:]...)
	if len(list) == 0 {
		delete(s.byRecipient, recipientID)
		return
	}
	s.byRecipient[recipientID] = list
}
