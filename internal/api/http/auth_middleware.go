package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bookswap/realtime/internal/api/ws"
	"github.com/bookswap/realtime/internal/application/auth"
)

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Authenticate(r.Context(), ws.Credentials(r))
		if err != nil {
			if !errors.Is(err, auth.ErrConnectionRejected) {
				s.logger.Error().Err(err).Msg("authentication failed")
				respondError(w, http.StatusServiceUnavailable, ws.CodeInternal, "authentication unavailable")
				return
			}
			respondError(w, http.StatusUnauthorized, auth.RejectionCode(err), err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFromContext(r.Context())
			if id == nil {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
				return
			}
			if _, ok := allowed[strings.ToUpper(string(id.Role))]; !ok {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
