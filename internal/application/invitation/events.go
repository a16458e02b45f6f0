package invitation

import (
	domainInvitation "github.com/bookswap/realtime/internal/domain/invitation"
)

// ResponseEvent is emitted to the counterpart when an invitation is resolved.
type ResponseEvent struct {
	InvitationID string                       `json:"invitationId"`
	ActorID      string                       `json:"actorId"`
	Invitation   *domainInvitation.Invitation `json:"invitation,omitempty"`
	Reason       string                       `json:"reason,omitempty"`
	OperationID  string                       `json:"operationId,omitempty"`
}

// PendingEvent is the reply to a pending-invitations request.
type PendingEvent struct {
	Invitations []*domainInvitation.Invitation `json:"invitations"`
}

// ExpiredEvent notifies both parties that an invitation aged out.
type ExpiredEvent struct {
	InvitationID string                       `json:"invitationId"`
	Invitation   *domainInvitation.Invitation `json:"invitation"`
}
