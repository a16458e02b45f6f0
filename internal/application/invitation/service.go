package invitation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainInvitation "github.com/bookswap/realtime/internal/domain/invitation"
	"github.com/bookswap/realtime/internal/domain/notification"
	"github.com/bookswap/realtime/internal/domain/operation"
)

// SendInput carries a new invitation request.
type SendInput struct {
	ToUserID string
	Kind     domainInvitation.Kind
	Message  string
	Metadata map[string]any
}

// RespondInput carries an accept or refuse request. Either field may be empty,
// but not both.
type RespondInput struct {
	InvitationID string
	OperationID  string
	Reason       string
}

// Result is returned to the acting user after a state transition.
type Result struct {
	InvitationID string                  `json:"invitationId,omitempty"`
	Status       domainInvitation.Status `json:"status"`
	OperationID  string                  `json:"operationId,omitempty"`
	// Reconciled reports whether the external operation was updated.
	Reconciled bool `json:"reconciled"`
	// ReconcileOnly is set when no pending invitation was resolved and only
	// the operation named by the caller was updated.
	ReconcileOnly bool `json:"reconcileOnly"`
}

// Options tunes the service.
type Options struct {
	OperationTimeout time.Duration
	NotifyOnExpire   bool
}

// Service drives invitations through Pending -> {Accepted, Refused, Canceled, Expired}.
type Service struct {
	store      domainInvitation.Store
	operations operation.Updater
	notifier   notification.Broadcaster
	opts       Options
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates an invitation service.
func NewService(
	store domainInvitation.Store,
	operations operation.Updater,
	notifier notification.Broadcaster,
	opts Options,
	logger zerolog.Logger,
) *Service {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 5 * time.Second
	}
	return &Service{
		store:      store,
		operations: operations,
		notifier:   notifier,
		opts:       opts,
		now:        time.Now,
		logger:     logger.With().Str("service", "invitation").Logger(),
	}
}

// Send stores a pending invitation and notifies the recipient if online.
// Offline recipients receive it through ListPending on their next connection.
func (s *Service) Send(ctx context.Context, fromUserID string, in SendInput) (*domainInvitation.Invitation, error) {
	inv, err := domainInvitation.NewInvitation(fromUserID, in.ToUserID, in.Kind, in.Message, in.Metadata)
	if err != nil {
		return nil, err
	}
	inv.CreatedAt = s.now().UTC()
	if _, err := s.store.Create(inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	s.notifier.SendToUser(inv.ToUserID, notification.EventNewInvitation, inv)
	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("from", inv.FromUserID).
		Str("to", inv.ToUserID).
		Str("kind", string(inv.Kind)).
		Msg("invitation sent")
	return inv, nil
}

// Accept resolves an invitation held for actingUserID and marks the backing
// operation completed.
func (s *Service) Accept(ctx context.Context, actingUserID string, in RespondInput) (*Result, error) {
	return s.respond(ctx, actingUserID, in, domainInvitation.StatusAccepted)
}

// Refuse resolves an invitation held for actingUserID and marks the backing
// operation rejected.
func (s *Service) Refuse(ctx context.Context, actingUserID string, in RespondInput) (*Result, error) {
	return s.respond(ctx, actingUserID, in, domainInvitation.StatusRefused)
}

func (s *Service) respond(ctx context.Context, actingUserID string, in RespondInput, target domainInvitation.Status) (*Result, error) {
	invitationID := strings.TrimSpace(in.InvitationID)
	opRef := strings.TrimSpace(in.OperationID)
	if invitationID == "" && opRef == "" {
		return nil, domainInvitation.ErrMissingOperationReference
	}

	// Take removes the record atomically so a concurrent accept, refuse or
	// cancel of the same id observes NotFound.
	var inv *domainInvitation.Invitation
	if id, err := uuid.Parse(invitationID); err == nil {
		inv, _ = s.store.Take(id, actingUserID)
	}
	if opRef == "" && inv != nil {
		opRef, _ = inv.ExternalRef()
	}
	if inv == nil && opRef == "" {
		return nil, domainInvitation.ErrNotFound
	}

	now := s.now()
	result := &Result{InvitationID: invitationID, Status: target, OperationID: opRef, ReconcileOnly: inv == nil}
	if inv != nil {
		var err error
		if target == domainInvitation.StatusAccepted {
			err = inv.MarkAccepted(now)
		} else {
			err = inv.MarkRefused(in.Reason, now)
		}
		if err != nil {
			return nil, err
		}
		result.InvitationID = inv.ID.String()
	}

	// The local transition is already committed and is not rolled back when
	// the operation update fails: the invitation outcome is authoritative for
	// the interactive exchange and the operation is reconciled out of band.
	if opRef != "" {
		op, err := s.updateOperation(ctx, opRef, operationStatusFor(target))
		if err != nil {
			s.logger.Error().Err(err).
				Str("invitation_id", result.InvitationID).
				Str("operation_id", opRef).
				Str("status", string(target)).
				Msg("operation reconciliation failed")
			if inv == nil {
				return nil, err
			}
		} else {
			result.Reconciled = true
			s.notifier.SendToUser(actingUserID, notification.EventOperationUpdated, op)
			if inv != nil && inv.FromUserID != actingUserID {
				s.notifier.SendToUser(inv.FromUserID, notification.EventOperationUpdated, op)
			}
		}
	}

	if inv != nil {
		ev := ResponseEvent{
			InvitationID: inv.ID.String(),
			ActorID:      actingUserID,
			Invitation:   inv,
			OperationID:  opRef,
		}
		event := notification.EventInvitationAccepted
		if target == domainInvitation.StatusRefused {
			event = notification.EventInvitationRefused
			ev.Reason = in.Reason
		}
		s.notifier.SendToUser(inv.FromUserID, event, ev)
	}

	s.logger.Info().
		Str("invitation_id", result.InvitationID).
		Str("actor", actingUserID).
		Str("status", string(target)).
		Bool("found", inv != nil).
		Bool("reconciled", result.Reconciled).
		Msg("invitation resolved")
	return result, nil
}

// Cancel withdraws a pending invitation. Only its sender may cancel it.
func (s *Service) Cancel(ctx context.Context, actingUserID, invitationID string) (*Result, error) {
	id, err := uuid.Parse(strings.TrimSpace(invitationID))
	if err != nil {
		return nil, domainInvitation.ErrNotFoundOrNotOwner
	}
	inv, ok := s.store.TakeBySender(id, actingUserID)
	if !ok {
		return nil, domainInvitation.ErrNotFoundOrNotOwner
	}
	if err := inv.MarkCanceled(s.now()); err != nil {
		return nil, err
	}

	s.notifier.SendToUser(inv.ToUserID, notification.EventInvitationCanceled, ResponseEvent{
		InvitationID: inv.ID.String(),
		ActorID:      actingUserID,
		Invitation:   inv,
	})
	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("actor", actingUserID).
		Msg("invitation canceled")
	return &Result{InvitationID: inv.ID.String(), Status: domainInvitation.StatusCanceled}, nil
}

// ListPending returns the invitations waiting for userID, oldest first.
func (s *Service) ListPending(ctx context.Context, userID string) []*domainInvitation.Invitation {
	pending := s.store.ListPending(userID)
	if pending == nil {
		pending = []*domainInvitation.Invitation{}
	}
	return pending
}

// SendPending delivers the pending list to a single freshly connected handle.
func (s *Service) SendPending(ctx context.Context, userID string, h notification.Handle) {
	s.notifier.SendToHandle(h, notification.EventPendingInvitations, PendingEvent{
		Invitations: s.ListPending(ctx, userID),
	})
}

// SweepExpired drops invitations older than ttl and returns how many were removed.
func (s *Service) SweepExpired(ctx context.Context, ttl time.Duration) int {
	now := s.now()
	expired := s.store.SweepExpired(ttl, now)
	if len(expired) == 0 {
		return 0
	}
	if s.opts.NotifyOnExpire {
		for _, inv := range expired {
			if err := inv.MarkExpired(now); err != nil {
				continue
			}
			ev := ExpiredEvent{InvitationID: inv.ID.String(), Invitation: inv}
			s.notifier.SendToUser(inv.FromUserID, notification.EventInvitationExpired, ev)
			s.notifier.SendToUser(inv.ToUserID, notification.EventInvitationExpired, ev)
		}
	}
	s.logger.Info().Int("count", len(expired)).Dur("ttl", ttl).Msg("expired invitations swept")
	return len(expired)
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(ctx, ttl)
		}
	}
}

func (s *Service) updateOperation(ctx context.Context, operationID string, status operation.Status) (*operation.Operation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()
	op, err := s.operations.UpdateStatus(ctx, operationID, status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s -> %s: %w", domainInvitation.ErrReconciliation, operationID, status, err)
	}
	return op, nil
}

func operationStatusFor(target domainInvitation.Status) operation.Status {
	if target == domainInvitation.StatusAccepted {
		return operation.StatusCompleted
	}
	return operation.StatusRejected
}
