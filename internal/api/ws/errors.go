package ws

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/bookswap/realtime/internal/application/auth"
	"github.com/bookswap/realtime/internal/application/chat"
	"github.com/bookswap/realtime/internal/domain/invitation"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrUnknownCommand = errors.New("unknown command")
)

// Wire error codes.
const (
	CodeNotFound                  = "NOT_FOUND"
	CodeNotFoundOrNotOwner        = "NOT_FOUND_OR_NOT_OWNER"
	CodeMissingOperationReference = "MISSING_OPERATION_REFERENCE"
	CodeReconciliationFailed      = "RECONCILIATION_FAILED"
	CodeInvalidPayload            = "INVALID_PAYLOAD"
	CodeUnknownCommand            = "UNKNOWN_COMMAND"
	CodeNotInRoom                 = "NOT_IN_ROOM"
	CodeInternal                  = "INTERNAL_ERROR"
)

// ErrorCode maps an error to its stable wire code.
func ErrorCode(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, invitation.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, invitation.ErrNotFoundOrNotOwner):
		return CodeNotFoundOrNotOwner
	case errors.Is(err, invitation.ErrMissingOperationReference):
		return CodeMissingOperationReference
	case errors.Is(err, invitation.ErrReconciliation):
		return CodeReconciliationFailed
	case errors.Is(err, ErrUnknownCommand):
		return CodeUnknownCommand
	case errors.Is(err, chat.ErrNotInRoom):
		return CodeNotInRoom
	case errors.Is(err, ErrInvalidPayload),
		errors.As(err, &verrs),
		errors.Is(err, invitation.ErrMissingRecipient),
		errors.Is(err, invitation.ErrSelfInvitation),
		errors.Is(err, chat.ErrMissingRoom),
		errors.Is(err, chat.ErrMissingTarget):
		return CodeInvalidPayload
	}
	if code := auth.RejectionCode(err); code != "" {
		return code
	}
	return CodeInternal
}

// errorMessage hides internal details from clients.
func errorMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return "internal error"
	}
	return err.Error()
}
