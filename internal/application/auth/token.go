package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookswap/realtime/internal/infrastructure/keystore"
)

// Subject is the verified principal carried by a token.
type Subject struct {
	ID        string
	Name      string
	ExpiresAt time.Time
}

// TokenVerifier checks a token's signature and validity window against a key set.
type TokenVerifier interface {
	Verify(token string, keys *keystore.KeySet) (*Subject, error)
}

// Claims are the JWT claims issued by the account service.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HMAC-signed JWTs. The header kid selects the key.
type JWTVerifier struct {
	issuer string
	now    func() time.Time
}

func NewJWTVerifier(issuer string) *JWTVerifier {
	return &JWTVerifier{issuer: issuer}
}

func (v *JWTVerifier) Verify(token string, keys *keystore.KeySet) (*Subject, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.now))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := keys.Key(kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	}, opts...)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrMalformed)
	}
	sub := &Subject{ID: claims.Subject, Name: claims.Name}
	if claims.ExpiresAt != nil {
		sub.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return sub, nil
}

// mapJWTError translates jwt library errors to rejection errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	default:
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
}
