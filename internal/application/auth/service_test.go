package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainUser "github.com/bookswap/realtime/internal/domain/user"
	"github.com/bookswap/realtime/internal/domain/user/mocks"
	"github.com/bookswap/realtime/internal/infrastructure/keystore"
)

const (
	userKeyHex  = "757365722d7369676e696e672d6b65792d303030303030303030303030303030"
	adminKeyHex = "61646d696e2d7369676e696e672d6b65792d3030303030303030303030303030"
)

var (
	userKey  = mustHex(userKeyHex)
	adminKey = mustHex(adminKeyHex)
)

func mustHex(s string) []byte {
	keys, err := keystore.ParseKeys("k:" + s)
	if err != nil {
		panic(err)
	}
	return keys["k"]
}

func newKeys(t *testing.T) *keystore.StaticKeyStore {
	t.Helper()
	ks := keystore.New()
	require.NoError(t, ks.Add(domainUser.SchemeUser, "u1:"+userKeyHex, ""))
	require.NoError(t, ks.Add(domainUser.SchemeAdmin, "a1:"+adminKeyHex, ""))
	return ks
}

func sign(t *testing.T, key []byte, kid string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) Claims {
	now := time.Now()
	return Claims{
		Name: "Token Name",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func confirmed(id, name string, role domainUser.Role) *domainUser.User {
	return &domainUser.User{ID: id, DisplayName: name, Role: role, Status: domainUser.StatusConfirmed}
}

func newTestService(t *testing.T) (*Service, *mocks.MockResolver) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockResolver(ctrl)
	return NewService(newKeys(t), NewJWTVerifier(""), users, zerolog.Nop()), users
}

func TestAuthenticateBearerHeader(t *testing.T) {
	svc, users := newTestService(t)
	users.EXPECT().Resolve(gomock.Any(), "alice").Return(confirmed("alice", "Alice", domainUser.RoleUser), nil)

	token := sign(t, userKey, "u1", validClaims("alice"))
	id, err := svc.Authenticate(context.Background(), HandshakeCredentials{Authorization: "Bearer " + token})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.ID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, domainUser.RoleUser, id.Role)
	assert.Equal(t, domainUser.SchemeUser, id.Scheme)
}

func TestAuthenticateQueryTokenImpliesBearer(t *testing.T) {
	svc, users := newTestService(t)
	users.EXPECT().Resolve(gomock.Any(), "alice").Return(confirmed("alice", "", domainUser.RoleUser), nil)

	token := sign(t, userKey, "", validClaims("alice"))
	id, err := svc.Authenticate(context.Background(), HandshakeCredentials{Token: token})
	require.NoError(t, err)
	assert.Equal(t, domainUser.SchemeUser, id.Scheme)
	assert.Equal(t, "Token Name", id.DisplayName)
}

func TestAuthenticateAdminScheme(t *testing.T) {
	svc, users := newTestService(t)
	users.EXPECT().Resolve(gomock.Any(), "root").Return(confirmed("root", "", domainUser.RoleAdmin), nil)

	claims := validClaims("root")
	claims.Name = ""
	token := sign(t, adminKey, "a1", claims)
	id, err := svc.Authenticate(context.Background(), HandshakeCredentials{Authorization: "admin " + token})
	require.NoError(t, err)
	assert.Equal(t, domainUser.RoleAdmin, id.Role)
	assert.True(t, id.IsAdmin())
	assert.Equal(t, "root", id.DisplayName)
}

func TestAuthenticateAdminSchemeRequiresAdminAccount(t *testing.T) {
	svc, users := newTestService(t)
	users.EXPECT().Resolve(gomock.Any(), "alice").Return(confirmed("alice", "Alice", domainUser.RoleUser), nil)

	token := sign(t, adminKey, "a1", validClaims("alice"))
	_, err := svc.Authenticate(context.Background(), HandshakeCredentials{Authorization: "Admin " + token})
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestAuthenticateUserTokenUnderAdminScheme(t *testing.T) {
	svc, _ := newTestService(t)

	token := sign(t, userKey, "", validClaims("alice"))
	_, err := svc.Authenticate(context.Background(), HandshakeCredentials{Authorization: "Admin " + token})
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestAuthenticateRejections(t *testing.T) {
	expired := validClaims("alice")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	future := validClaims("alice")
	future.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))
	noSub := validClaims("")
	noExp := validClaims("alice")
	noExp.ExpiresAt = nil

	cases := []struct {
		name  string
		creds HandshakeCredentials
		want  *RejectionError
	}{
		{"missing", HandshakeCredentials{}, ErrMissingCredential},
		{"blank header", HandshakeCredentials{Authorization: "   "}, ErrMissingCredential},
		{"scheme without token", HandshakeCredentials{Authorization: "Bearer  "}, ErrMissingCredential},
		{"unknown scheme", HandshakeCredentials{Authorization: "Basic abc"}, ErrUnknownScheme},
		{"header without scheme", HandshakeCredentials{Authorization: "abc"}, ErrUnknownScheme},
		{"garbage", HandshakeCredentials{Authorization: "Bearer not-a-jwt"}, ErrMalformed},
		{"expired", HandshakeCredentials{Authorization: "Bearer " + sign(t, userKey, "", expired)}, ErrExpired},
		{"not yet valid", HandshakeCredentials{Authorization: "Bearer " + sign(t, userKey, "", future)}, ErrNotYetValid},
		{"missing subject", HandshakeCredentials{Authorization: "Bearer " + sign(t, userKey, "", noSub)}, ErrMalformed},
		{"missing expiry", HandshakeCredentials{Authorization: "Bearer " + sign(t, userKey, "", noExp)}, ErrMalformed},
		{"wrong key", HandshakeCredentials{Authorization: "Bearer " + sign(t, adminKey, "", validClaims("alice"))}, ErrVerificationFailed},
		{"unknown kid", HandshakeCredentials{Authorization: "Bearer " + sign(t, userKey, "zz", validClaims("alice"))}, ErrVerificationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			_, err := svc.Authenticate(context.Background(), tc.creds)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrConnectionRejected)
			assert.Equal(t, tc.want.Code, RejectionCode(err))
		})
	}
}

func TestAuthenticateUnknownOrUnconfirmedUser(t *testing.T) {
	token := sign(t, userKey, "", validClaims("ghost"))

	t.Run("unknown", func(t *testing.T) {
		svc, users := newTestService(t)
		users.EXPECT().Resolve(gomock.Any(), "ghost").Return(nil, domainUser.ErrNotFound)
		_, err := svc.Authenticate(context.Background(), HandshakeCredentials{Token: token})
		assert.ErrorIs(t, err, ErrUnknownOrUnconfirmedUser)
	})

	t.Run("unconfirmed", func(t *testing.T) {
		svc, users := newTestService(t)
		u := confirmed("ghost", "Ghost", domainUser.RoleUser)
		u.Status = domainUser.StatusPending
		users.EXPECT().Resolve(gomock.Any(), "ghost").Return(u, nil)
		_, err := svc.Authenticate(context.Background(), HandshakeCredentials{Token: token})
		assert.ErrorIs(t, err, ErrUnknownOrUnconfirmedUser)
	})

	t.Run("store failure is not a rejection", func(t *testing.T) {
		svc, users := newTestService(t)
		boom := errors.New("db down")
		users.EXPECT().Resolve(gomock.Any(), "ghost").Return(nil, boom)
		_, err := svc.Authenticate(context.Background(), HandshakeCredentials{Token: token})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrConnectionRejected)
	})
}

func TestAuthenticateSchemeWithoutKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	ks := keystore.New()
	require.NoError(t, ks.Add(domainUser.SchemeUser, "u1:"+userKeyHex, ""))
	svc := NewService(ks, NewJWTVerifier(""), mocks.NewMockResolver(ctrl), zerolog.Nop())

	token := sign(t, adminKey, "", validClaims("root"))
	_, err := svc.Authenticate(context.Background(), HandshakeCredentials{Authorization: "Admin " + token})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestJWTVerifierIssuer(t *testing.T) {
	ks := newKeys(t)
	set, ok := ks.KeySet(domainUser.SchemeUser)
	require.True(t, ok)

	claims := validClaims("alice")
	claims.Issuer = "other"
	v := NewJWTVerifier("bookswap")
	_, err := v.Verify(sign(t, userKey, "", claims), set)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	claims.Issuer = "bookswap"
	sub, err := v.Verify(sign(t, userKey, "", claims), set)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub.ID)
	assert.False(t, sub.ExpiresAt.IsZero())
}

func TestJWTVerifierClock(t *testing.T) {
	ks := newKeys(t)
	set, _ := ks.KeySet(domainUser.SchemeUser)
	token := sign(t, userKey, "", validClaims("alice"))

	v := NewJWTVerifier("")
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := v.Verify(token, set)
	assert.ErrorIs(t, err, ErrExpired)
}
