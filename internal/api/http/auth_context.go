package httpapi

import (
	"context"

	"github.com/bookswap/realtime/internal/domain/user"
)

type authContextKey string

const authIdentityKey authContextKey = "authIdentity"

func withIdentity(ctx context.Context, id *user.Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, authIdentityKey, id)
}

func identityFromContext(ctx context.Context) *user.Identity {
	val := ctx.Value(authIdentityKey)
	if v, ok := val.(*user.Identity); ok {
		return v
	}
	return nil
}
