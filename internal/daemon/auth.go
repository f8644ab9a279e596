package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"summify/internal/logging"
	"summify/internal/services"
)

// requireToken guards every route with a bearer token. An empty token leaves
// the API open, which is only sensible on a loopback bind.
func (s *apiServer) requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	expected := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(bearerToken(r)), expected) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		logging.WithContext(r.Context(), s.log()).Warn("rejected api request",
			logging.String(logging.FieldEventType, "api_unauthorized"),
			logging.String("path", r.URL.Path),
			logging.String("remote", r.RemoteAddr))
		s.writeJSON(w, http.StatusUnauthorized, services.Details{
			Code:    services.CodeInvalidArgs,
			Message: "unauthorized",
			Details: "missing or invalid bearer token",
		})
	})
}

func bearerToken(r *http.Request) string {
	scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
