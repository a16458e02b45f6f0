package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/bookswap/realtime/internal/application/auth"
	"github.com/bookswap/realtime/internal/domain/notification"
	"github.com/bookswap/realtime/internal/domain/user"
)

// Authenticator resolves handshake credentials to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.HandshakeCredentials) (*user.Identity, error)
}

// PendingSender replays pending invitations to a new connection.
type PendingSender interface {
	SendPending(ctx context.Context, userID string, h notification.Handle)
}

// RoomLeaver drops a closing connection from its rooms.
type RoomLeaver interface {
	LeaveAll(id *user.Identity, h notification.Handle)
}

// Handler accepts websocket connections.
type Handler struct {
	auth       Authenticator
	registry   notification.Registry
	pending    PendingSender
	rooms      RoomLeaver
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       Options
	logger     zerolog.Logger
}

func NewHandler(
	authenticator Authenticator,
	registry notification.Registry,
	pending PendingSender,
	rooms RoomLeaver,
	dispatcher *Dispatcher,
	opts Options,
	allowedOrigins []string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		auth:       authenticator,
		registry:   registry,
		pending:    pending,
		rooms:      rooms,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		return lo.Contains(allowed, strings.TrimRight(origin, "/"))
	}
}

// Credentials extracts the handshake credential from the header or the token query parameter.
func Credentials(r *http.Request) auth.HandshakeCredentials {
	return auth.HandshakeCredentials{
		Authorization: r.Header.Get("Authorization"),
		Token:         r.URL.Query().Get("token"),
	}
}

// ServeHTTP authenticates, upgrades and serves one connection. Rejected
// handshakes never reach the registry.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.auth.Authenticate(ctx, Credentials(r))
	if err != nil {
		h.reject(w, err)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", id.ID).Msg("websocket upgrade failed")
		return
	}
	conn := NewConn(wsConn, h.opts, h.logger)
	h.registry.Register(id.ID, conn)
	go conn.WritePump()

	log := h.logger.With().Str("user_id", id.ID).Str("conn_id", conn.ID()).Logger()
	log.Info().Str("scheme", string(id.Scheme)).Msg("connection accepted")

	h.pending.SendPending(ctx, id.ID, conn)

	session := &Session{Identity: id, Handle: conn}
	conn.ReadPump(func(data []byte) {
		h.dispatcher.Dispatch(ctx, session, data)
	})

	h.rooms.LeaveAll(id, conn)
	h.registry.Unregister(id.ID, conn)
	conn.Close()
	log.Info().Msg("connection closed")
}

func (h *Handler) reject(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	code := auth.RejectionCode(err)
	msg := err.Error()
	if !errors.Is(err, auth.ErrConnectionRejected) {
		status = http.StatusServiceUnavailable
		code = CodeInternal
		msg = "authentication unavailable"
		h.logger.Error().Err(err).Msg("authentication failed")
	} else {
		h.logger.Info().Str("code", code).Msg("connection rejected")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(notification.ErrorPayload{Code: code, Message: msg})
}
