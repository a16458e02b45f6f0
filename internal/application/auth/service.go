package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	domainUser "github.com/bookswap/realtime/internal/domain/user"
	"github.com/bookswap/realtime/internal/infrastructure/keystore"
)

// HandshakeCredentials carries the credential candidates of an inbound connection.
type HandshakeCredentials struct {
	// Authorization is the raw Authorization header, "<Scheme> <token>".
	Authorization string
	// Token is the token query parameter; a bare token implies the Bearer scheme.
	Token string
}

// KeyProvider selects the verification keys bound to a scheme.
type KeyProvider interface {
	KeySet(scheme domainUser.Scheme) (*keystore.KeySet, bool)
}

// Service authenticates connections and resolves them to identities.
// It never touches the connection registry.
type Service struct {
	keys     KeyProvider
	verifier TokenVerifier
	users    domainUser.Resolver
	logger   zerolog.Logger
}

// NewService creates an auth service.
func NewService(keys KeyProvider, verifier TokenVerifier, users domainUser.Resolver, logger zerolog.Logger) *Service {
	return &Service{
		keys:     keys,
		verifier: verifier,
		users:    users,
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// Authenticate verifies the handshake credential and returns the caller's identity.
func (s *Service) Authenticate(ctx context.Context, creds HandshakeCredentials) (*domainUser.Identity, error) {
	scheme, token, err := ParseCredential(creds)
	if err != nil {
		return nil, err
	}
	keys, ok := s.keys.KeySet(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: no keys configured for scheme %s", ErrVerificationFailed, scheme)
	}
	sub, err := s.verifier.Verify(token, keys)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Resolve(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, domainUser.ErrNotFound) {
			return nil, ErrUnknownOrUnconfirmedUser
		}
		return nil, fmt.Errorf("resolve user %s: %w", sub.ID, err)
	}
	if u == nil || !u.IsConfirmed() {
		return nil, ErrUnknownOrUnconfirmedUser
	}
	if scheme == domainUser.SchemeAdmin && u.Role != domainUser.RoleAdmin {
		s.logger.Warn().Str("user_id", u.ID).Msg("admin credential presented by non-admin account")
		return nil, fmt.Errorf("%w: account is not an administrator", ErrVerificationFailed)
	}

	name := u.DisplayName
	if name == "" {
		name = sub.Name
	}
	if name == "" {
		name = u.ID
	}
	return &domainUser.Identity{
		ID:          u.ID,
		DisplayName: name,
		Role:        domainUser.RoleFor(scheme),
		Scheme:      scheme,
	}, nil
}

// ParseCredential extracts the scheme and token from the handshake.
func ParseCredential(creds HandshakeCredentials) (domainUser.Scheme, string, error) {
	raw := strings.TrimSpace(creds.Authorization)
	fromQuery := false
	if raw == "" {
		raw = strings.TrimSpace(creds.Token)
		fromQuery = true
	}
	if raw == "" {
		return "", "", ErrMissingCredential
	}

	prefix, token, hasPrefix := strings.Cut(raw, " ")
	if !hasPrefix {
		if _, ok := domainUser.ParseScheme(raw); ok {
			return "", "", ErrMissingCredential
		}
		if fromQuery {
			return domainUser.SchemeUser, raw, nil
		}
		return "", "", ErrUnknownScheme
	}
	scheme, ok := domainUser.ParseScheme(prefix)
	if !ok {
		return "", "", ErrUnknownScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", ErrMissingCredential
	}
	return scheme, token, nil
}
