package auth

import "errors"

// ErrConnectionRejected matches every authentication failure.
var ErrConnectionRejected = errors.New("connection rejected")

// RejectionError is an authentication failure with a stable wire code.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrConnectionRejected
}

var (
	ErrMissingCredential        = &RejectionError{Code: "MISSING_CREDENTIAL", Message: "missing credential"}
	ErrUnknownScheme            = &RejectionError{Code: "UNKNOWN_SCHEME", Message: "unknown credential scheme"}
	ErrExpired                  = &RejectionError{Code: "TOKEN_EXPIRED", Message: "token expired"}
	ErrMalformed                = &RejectionError{Code: "TOKEN_MALFORMED", Message: "token malformed"}
	ErrNotYetValid              = &RejectionError{Code: "TOKEN_NOT_YET_VALID", Message: "token not yet valid"}
	ErrVerificationFailed       = &RejectionError{Code: "VERIFICATION_FAILED", Message: "token verification failed"}
	ErrUnknownOrUnconfirmedUser = &RejectionError{Code: "UNKNOWN_OR_UNCONFIRMED_USER", Message: "unknown or unconfirmed user"}
)

// RejectionCode returns the wire code for err, or "" if err is not a rejection.
func RejectionCode(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Code
	}
	return ""
}
