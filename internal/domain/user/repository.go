package user

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_resolver.go -package=mocks . Resolver

import "context"

// Resolver looks up canonical user records by subject id.
type Resolver interface {
	// Resolve returns ErrNotFound when no account exists for the id.
	Resolve(ctx context.Context, userID string) (*User, error)
}
