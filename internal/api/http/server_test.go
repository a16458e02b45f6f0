package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bookswap/realtime/internal/api/ws"
	"github.com/bookswap/realtime/internal/application/auth"
	"github.com/bookswap/realtime/internal/application/chat"
	appInvitation "github.com/bookswap/realtime/internal/application/invitation"
	"github.com/bookswap/realtime/internal/domain/invitation"
	"github.com/bookswap/realtime/internal/domain/notification"
	"github.com/bookswap/realtime/internal/domain/operation"
	"github.com/bookswap/realtime/internal/domain/operation/mocks"
	"github.com/bookswap/realtime/internal/domain/user"
	"github.com/bookswap/realtime/internal/infrastructure/hub"
	"github.com/bookswap/realtime/internal/infrastructure/hub/hubtest"
	"github.com/bookswap/realtime/internal/infrastructure/memory"
)

// stubAuth maps "Bearer <id>" to a user and "Admin <id>" to an administrator.
type stubAuth struct{ err error }

func (s stubAuth) Authenticate(_ context.Context, creds auth.HandshakeCredentials) (*user.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	scheme, token, ok := strings.Cut(creds.Authorization, " ")
	if !ok || token == "" {
		return nil, auth.ErrMissingCredential
	}
	switch scheme {
	case "Bearer":
		return &user.Identity{ID: token, DisplayName: token, Role: user.RoleUser, Scheme: user.SchemeUser}, nil
	case "Admin":
		return &user.Identity{ID: token, DisplayName: token, Role: user.RoleAdmin, Scheme: user.SchemeAdmin}, nil
	}
	return nil, auth.ErrUnknownScheme
}

type testServer struct {
	srv      *Server
	handler  http.Handler
	registry *hub.Registry
	store    *memory.InvitationStore
	ops      *mocks.MockUpdater
	svc      *appInvitation.Service
}

func newTestServer(t *testing.T, authenticator ws.Authenticator) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	registry := hub.NewRegistry()
	rooms := chat.NewRooms()
	b := hub.NewBroadcaster(registry, rooms, zerolog.Nop())
	store := memory.NewInvitationStore()
	ops := mocks.NewMockUpdater(ctrl)
	svc := appInvitation.NewService(store, ops, b, appInvitation.Options{}, zerolog.Nop())
	srv := NewServer(authenticator, svc, registry, b, http.NotFoundHandler(), 8, zerolog.Nop())
	return &testServer{srv: srv, handler: srv.Router(), registry: registry, store: store, ops: ops, svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Code
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, stubAuth{})
	rec := ts.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t, stubAuth{})
	rec := ts.do(t, http.MethodGet, "/v1/invitations/pending", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_CREDENTIAL", decodeError(t, rec))

	rec = ts.do(t, http.MethodGet, "/v1/invitations/pending", "Basic x", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNKNOWN_SCHEME", decodeError(t, rec))

	down := newTestServer(t, stubAuth{err: errors.New("db down")})
	rec = down.do(t, http.MethodGet, "/v1/invitations/pending", "Bearer bob", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInvitationRoutes(t *testing.T) {
	ts := newTestServer(t, stubAuth{})
	alice := hubtest.NewRecorder()
	ts.registry.Register("alice", alice)

	rec := ts.do(t, http.MethodPost, "/v1/invitations", "Bearer alice",
		`{"toUserId":"bob","kind":"exchange","metadata":{"externalRef":"op1"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var inv invitation.Invitation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&inv))
	assert.Equal(t, invitation.KindExchange, inv.Kind)

	rec = ts.do(t, http.MethodGet, "/v1/invitations/pending", "Bearer bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending appInvitation.PendingEvent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pending))
	require.Len(t, pending.Invitations, 1)

	ts.ops.EXPECT().UpdateStatus(gomock.Any(), "op1", operation.StatusRejected).
		Return(&operation.Operation{ID: "op1", Status: operation.StatusRejected}, nil)

	rec = ts.do(t, http.MethodPost, "/v1/invitations/"+inv.ID.String()+"/refuse", "Bearer bob", `{"reason":"busy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res appInvitation.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, invitation.StatusRefused, res.Status)
	assert.True(t, res.Reconciled)

	var ev appInvitation.ResponseEvent
	require.True(t, alice.Last(notification.EventInvitationRefused, &ev))
	assert.Equal(t, "busy", ev.Reason)
	assert.Zero(t, ts.store.Len())
}

func TestInvitationRouteErrors(t *testing.T) {
	ts := newTestServer(t, stubAuth{})

	rec := ts.do(t, http.MethodPost, "/v1/invitations", "Bearer alice", `{"toUserId":"bob","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ws.CodeInvalidPayload, decodeError(t, rec))

	rec = ts.do(t, http.MethodPost, "/v1/invitations", "Bearer alice", `{"toUserId":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/invitations/5d1f0a36-6c0e-4b8e-9a52-0d4a0a0f7c11/accept", "Bearer bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ws.CodeNotFound, decodeError(t, rec))

	inv, err := ts.svc.Send(context.Background(), "alice", appInvitation.SendInput{ToUserID: "bob"})
	require.NoError(t, err)

	rec = ts.do(t, http.MethodDelete, "/v1/invitations/"+inv.ID.String(), "Bearer bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ws.CodeNotFoundOrNotOwner, decodeError(t, rec))

	rec = ts.do(t, http.MethodDelete, "/v1/invitations/"+inv.ID.String(), "Bearer alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPresence(t *testing.T) {
	ts := newTestServer(t, stubAuth{})
	ts.registry.Register("bob", hubtest.NewRecorder())

	var body struct {
		Online bool `json:"online"`
	}
	rec := ts.do(t, http.MethodGet, "/v1/presence/bob", "Bearer alice", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Online)

	rec = ts.do(t, http.MethodGet, "/v1/presence/carol", "Bearer alice", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Online)
}

func TestAdminBroadcast(t *testing.T) {
	ts := newTestServer(t, stubAuth{})
	a := hubtest.NewRecorder()
	b := hubtest.NewRecorder()
	ts.registry.Register("alice", a)
	ts.registry.Register("bob", b)

	rec := ts.do(t, http.MethodPost, "/v1/admin/broadcast", "Bearer alice", `{"event":"maintenance"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, a.Messages())

	for _, event := range []string{notification.EventInvitationAccepted, notification.EventError} {
		rec = ts.do(t, http.MethodPost, "/v1/admin/broadcast", "Admin root", `{"event":"`+event+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, event)
		assert.Equal(t, ws.CodeInvalidPayload, decodeError(t, rec))
	}
	assert.Empty(t, a.Messages())

	rec = ts.do(t, http.MethodPost, "/v1/admin/broadcast", "Admin root", `{"event":"maintenance","data":{"in":"5m"}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, a.Count("maintenance"))
	assert.Equal(t, 1, b.Count("maintenance"))
}

func TestHTTPServer_ShutdownEndsEventStreams(t *testing.T) {
	ts := newTestServer(t, stubAuth{})
	httpSrv := ts.srv.HTTPServer("", ts.registry.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- httpSrv.Serve(ln) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer bob")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	require.True(t, ts.registry.IsOnline("bob"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, httpSrv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
	assert.False(t, ts.registry.IsOnline("bob"))
}
