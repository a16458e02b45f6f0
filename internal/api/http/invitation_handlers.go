package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookswap/realtime/internal/api/ws"
	appInvitation "github.com/bookswap/realtime/internal/application/invitation"
	"github.com/bookswap/realtime/internal/domain/invitation"
	"github.com/bookswap/realtime/internal/infrastructure/sse"
)

type respondInvitationRequest struct {
	OperationID string `json:"operationId" validate:"max=128"`
	Reason      string `json:"reason" validate:"max=500"`
}

type broadcastRequest struct {
	Event string          `json:"event" validate:"required,max=64,unreserved_event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) listPendingInvitations(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	respondJSON(w, http.StatusOK, appInvitation.PendingEvent{
		Invitations: s.invitations.ListPending(r.Context(), id.ID),
	})
}

func (s *Server) sendInvitation(w http.ResponseWriter, r *http.Request) {
	var req ws.SendInvitationPayload
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ws.CodeInvalidPayload, err.Error())
		return
	}
	id := identityFromContext(r.Context())
	inv, err := s.invitations.Send(r.Context(), id.ID, appInvitation.SendInput{
		ToUserID: req.ToUserID,
		Kind:     invitation.Kind(req.Kind),
		Message:  req.Message,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	s.respondToInvitation(w, r, true)
}

func (s *Server) refuseInvitation(w http.ResponseWriter, r *http.Request) {
	s.respondToInvitation(w, r, false)
}

func (s *Server) respondToInvitation(w http.ResponseWriter, r *http.Request, accept bool) {
	var req respondInvitationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ws.CodeInvalidPayload, err.Error())
		return
	}
	id := identityFromContext(r.Context())
	in := appInvitation.RespondInput{
		InvitationID: chi.URLParam(r, "invitationId"),
		OperationID:  req.OperationID,
		Reason:       req.Reason,
	}
	var (
		res *appInvitation.Result
		err error
	)
	if accept {
		res, err = s.invitations.Accept(r.Context(), id.ID, in)
	} else {
		res, err = s.invitations.Refuse(r.Context(), id.ID, in)
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) cancelInvitation(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	res, err := s.invitations.Cancel(r.Context(), id.ID, chi.URLParam(r, "invitationId"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) presence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	respondJSON(w, http.StatusOK, map[string]any{
		"userId": userID,
		"online": s.registry.IsOnline(userID),
	})
}

func (s *Server) adminBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ws.CodeInvalidPayload, err.Error())
		return
	}
	s.notifier.BroadcastAll(req.Event, req.Data)
	s.logger.Info().Str("event", req.Event).Str("admin", identityFromContext(r.Context()).ID).Msg("admin broadcast")
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}

// eventStream serves a receive-only feed for clients that cannot open a websocket.
func (s *Server) eventStream(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	stream := sse.NewStream(s.sseBuffer)
	s.registry.Register(id.ID, stream)
	defer func() {
		s.registry.Unregister(id.ID, stream)
		stream.Close()
	}()

	s.invitations.SendPending(r.Context(), id.ID, stream)
	if err := stream.Serve(w, r); err != nil {
		s.logger.Debug().Err(err).Str("user_id", id.ID).Msg("event stream ended")
	}
}
