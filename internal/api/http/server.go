package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/bookswap/realtime/internal/api/ws"
	appInvitation "github.com/bookswap/realtime/internal/application/invitation"
	"github.com/bookswap/realtime/internal/domain/notification"
	domainUser "github.com/bookswap/realtime/internal/domain/user"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("unreserved_event", func(fl validator.FieldLevel) bool {
		return !notification.IsReserved(fl.Field().String())
	})
	return v
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	auth        ws.Authenticator
	invitations *appInvitation.Service
	registry    notification.Registry
	notifier    notification.Broadcaster
	wsHandler   http.Handler
	sseBuffer   int
	logger      zerolog.Logger
}

func NewServer(
	authenticator ws.Authenticator,
	invitations *appInvitation.Service,
	registry notification.Registry,
	notifier notification.Broadcaster,
	wsHandler http.Handler,
	sseBuffer int,
	logger zerolog.Logger,
) *Server {
	return &Server{
		auth:        authenticator,
		invitations: invitations,
		registry:    registry,
		notifier:    notifier,
		wsHandler:   wsHandler,
		sseBuffer:   sseBuffer,
		logger:      logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		// Long-lived streams stay outside the request timeout.
		r.Handle("/ws", s.wsHandler)
		r.With(s.requireAuth).Get("/events", s.eventStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(s.requireAuth)

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/pending", s.listPendingInvitations)
				r.Post("/", s.sendInvitation)
				r.Post("/{invitationId}/accept", s.acceptInvitation)
				r.Post("/{invitationId}/refuse", s.refuseInvitation)
				r.Delete("/{invitationId}", s.cancelInvitation)
			})

			r.Get("/presence/{userId}", s.presence)

			r.Route("/admin", func(r chi.Router) {
				r.With(s.requireRole(string(domainUser.RoleAdmin))).Post("/broadcast", s.adminBroadcast)
			})
		})
	})

	return r
}

// HTTPServer wraps the router for addr. onShutdown runs as soon as Shutdown
// starts; it must close the live connection handles or open event streams keep
// Shutdown waiting until its deadline.
func (s *Server) HTTPServer(addr string, onShutdown func()) *http.Server {
	// WriteTimeout stays unset: the event stream is long-lived and REST
	// routes are bounded by the router's timeout middleware.
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if onShutdown != nil {
		srv.RegisterOnShutdown(onShutdown)
	}
	return srv
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the same {code, message} body the websocket handshake uses.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, notification.ErrorPayload{Code: code, Message: message})
}

// respondServiceError maps a service error to its wire code and HTTP status.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	code := ws.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case ws.CodeNotFound, ws.CodeNotFoundOrNotOwner:
		status = http.StatusNotFound
	case ws.CodeInvalidPayload, ws.CodeMissingOperationReference:
		status = http.StatusBadRequest
	case ws.CodeReconciliationFailed:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", code).Msg("request failed")
	}
	msg := err.Error()
	if code == ws.CodeInternal {
		msg = "internal error"
	}
	respondError(w, status, code, msg)
}

// decodeBody decodes and validates a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return validate.Struct(v)
}
