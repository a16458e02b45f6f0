package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	appInvitation "github.com/bookswap/realtime/internal/application/invitation"
	"github.com/bookswap/realtime/internal/application/chat"
	"github.com/bookswap/realtime/internal/domain/invitation"
	"github.com/bookswap/realtime/internal/domain/notification"
	"github.com/bookswap/realtime/internal/domain/user"
)

// Inbound command names.
const (
	CmdSendInvitation        = "send-invitation"
	CmdAcceptInvitation      = "accept-invitation"
	CmdRefuseInvitation      = "refuse-invitation"
	CmdCancelInvitation      = "cancel-invitation"
	CmdGetPendingInvitations = "get-pending-invitations"
	CmdJoinRoom              = "join-room"
	CmdLeaveRoom             = "leave-room"
	CmdTyping                = "typing"
	CmdStopTyping            = "stop-typing"
	CmdMessageRead           = "message-read"
	CmdMessageDelivered      = "message-delivered"
)

var validate = validator.New()

// Envelope is the inbound frame.
type Envelope struct {
	Event     string          `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// AckPayload answers a mutating command.
type AckPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Event     string `json:"event"`
	Result    any    `json:"result,omitempty"`
}

// Session is what a command handler may see of its connection.
type Session struct {
	Identity *user.Identity
	Handle   notification.Handle
}

type SendInvitationPayload struct {
	ToUserID string         `json:"toUserId" validate:"required,max=128"`
	Kind     string         `json:"kind" validate:"omitempty,oneof=generic borrow buy exchange"`
	Message  string         `json:"message" validate:"max=2000"`
	Metadata map[string]any `json:"metadata"`
}

type AcceptInvitationPayload struct {
	InvitationID string `json:"invitationId" validate:"max=64"`
	OperationID  string `json:"operationId" validate:"max=128"`
}

type RefuseInvitationPayload struct {
	InvitationID string `json:"invitationId" validate:"max=64"`
	Reason       string `json:"reason" validate:"max=500"`
	OperationID  string `json:"operationId" validate:"max=128"`
}

type CancelInvitationPayload struct {
	InvitationID string `json:"invitationId" validate:"required,max=64"`
}

type RoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type SignalPayload struct {
	RoomID   string `json:"roomId" validate:"max=128"`
	ToUserID string `json:"toUserId" validate:"required_without=RoomID,max=128"`
}

type ReceiptPayload struct {
	MessageID string `json:"messageId" validate:"required,max=128"`
	RoomID    string `json:"roomId" validate:"max=128"`
	ToUserID  string `json:"toUserId" validate:"required_without=RoomID,max=128"`
}

type handlerFunc func(ctx context.Context, s *Session, data json.RawMessage) (any, error)

type command struct {
	// reply is the event answering the caller; EventAck wraps the result.
	reply  string
	handle handlerFunc
}

// typed decodes and validates the payload before calling fn.
func typed[T any](fn func(ctx context.Context, s *Session, in T) (any, error)) handlerFunc {
	return func(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
		var in T
		if len(data) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&in); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		if err := validate.Struct(in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return fn(ctx, s, in)
	}
}

// Dispatcher routes inbound frames to typed command handlers.
type Dispatcher struct {
	commands map[string]command
	notifier notification.Broadcaster
	logger   zerolog.Logger
}

func NewDispatcher(invitations *appInvitation.Service, relay *chat.Relay, notifier notification.Broadcaster, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger.With().Str("component", "ws_dispatcher").Logger(),
	}
	d.commands = map[string]command{
		CmdSendInvitation: {reply: notification.EventAck, handle: typed(func(ctx context.Context, s *Session, in SendInvitationPayload) (any, error) {
			return invitations.Send(ctx, s.Identity.ID, appInvitation.SendInput{
				ToUserID: in.ToUserID,
				Kind:     invitation.Kind(in.Kind),
				Message:  in.Message,
				Metadata: in.Metadata,
			})
		})},
		CmdAcceptInvitation: {reply: notification.EventAck, handle: typed(func(ctx context.Context, s *Session, in AcceptInvitationPayload) (any, error) {
			return invitations.Accept(ctx, s.Identity.ID, appInvitation.RespondInput{
				InvitationID: in.InvitationID,
				OperationID:  in.OperationID,
			})
		})},
		CmdRefuseInvitation: {reply: notification.EventAck, handle: typed(func(ctx context.Context, s *Session, in RefuseInvitationPayload) (any, error) {
			return invitations.Refuse(ctx, s.Identity.ID, appInvitation.RespondInput{
				InvitationID: in.InvitationID,
				OperationID:  in.OperationID,
				Reason:       in.Reason,
			})
		})},
		CmdCancelInvitation: {reply: notification.EventAck, handle: typed(func(ctx context.Context, s *Session, in CancelInvitationPayload) (any, error) {
			return invitations.Cancel(ctx, s.Identity.ID, in.InvitationID)
		})},
		CmdGetPendingInvitations: {reply: notification.EventPendingInvitations, handle: typed(func(ctx context.Context, s *Session, _ struct{}) (any, error) {
			return appInvitation.PendingEvent{Invitations: invitations.ListPending(ctx, s.Identity.ID)}, nil
		})},
		CmdJoinRoom: {reply: notification.EventRoomJoined, handle: typed(func(_ context.Context, s *Session, in RoomPayload) (any, error) {
			return relay.Join(s.Identity, s.Handle, in.RoomID)
		})},
		CmdLeaveRoom: {reply: notification.EventAck, handle: typed(func(_ context.Context, s *Session, in RoomPayload) (any, error) {
			return nil, relay.Leave(s.Identity, s.Handle, in.RoomID)
		})},
		CmdTyping: {handle: typed(func(_ context.Context, s *Session, in SignalPayload) (any, error) {
			return nil, relay.Typing(s.Identity, s.Handle, chat.SignalInput{RoomID: in.RoomID, ToUserID: in.ToUserID}, false)
		})},
		CmdStopTyping: {handle: typed(func(_ context.Context, s *Session, in SignalPayload) (any, error) {
			return nil, relay.Typing(s.Identity, s.Handle, chat.SignalInput{RoomID: in.RoomID, ToUserID: in.ToUserID}, true)
		})},
		CmdMessageRead: {handle: typed(func(_ context.Context, s *Session, in ReceiptPayload) (any, error) {
			return nil, relay.Receipt(s.Identity, s.Handle, chat.ReceiptInput{MessageID: in.MessageID, RoomID: in.RoomID, ToUserID: in.ToUserID}, true)
		})},
		CmdMessageDelivered: {handle: typed(func(_ context.Context, s *Session, in ReceiptPayload) (any, error) {
			return nil, relay.Receipt(s.Identity, s.Handle, chat.ReceiptInput{MessageID: in.MessageID, RoomID: in.RoomID, ToUserID: in.ToUserID}, false)
		})},
	}
	return d
}

// Dispatch handles one inbound frame. Errors are sent only to s.Handle.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.fail(s, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		return
	}
	cmd, ok := d.commands[env.Event]
	if !ok {
		d.fail(s, env.RequestID, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Event))
		return
	}

	result, err := cmd.handle(ctx, s, env.Data)
	if err != nil {
		d.fail(s, env.RequestID, err)
		return
	}
	switch cmd.reply {
	case "":
	case notification.EventAck:
		d.notifier.SendToHandle(s.Handle, notification.EventAck, AckPayload{
			RequestID: env.RequestID,
			Event:     env.Event,
			Result:    result,
		})
	default:
		d.notifier.SendToHandle(s.Handle, cmd.reply, result)
	}
}

func (d *Dispatcher) fail(s *Session, requestID string, err error) {
	code := ErrorCode(err)
	if code == CodeInternal {
		d.logger.Error().Err(err).Str("user_id", s.Identity.ID).Msg("command failed")
	} else {
		d.logger.Debug().Err(err).Str("user_id", s.Identity.ID).Str("code", code).Msg("command rejected")
	}
	d.notifier.SendToHandle(s.Handle, notification.EventError, notification.ErrorPayload{
		Code:      code,
		Message:   errorMessage(err),
		RequestID: requestID,
	})
}
