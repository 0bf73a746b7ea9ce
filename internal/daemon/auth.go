package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"galleryvault/internal/logging"
)

// requireToken guards next with the configured API token. An empty token
// leaves the API open, which is only sensible on a loopback bind.
func (s *apiServer) requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, presented, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		if !strings.EqualFold(scheme, "Bearer") || subtle.ConstantTimeCompare([]byte(presented), want) != 1 {
			logging.WithContext(r.Context(), s.logger).Debug("api request rejected",
				logging.String("path", r.URL.Path),
				logging.String("remote", r.RemoteAddr),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="galleryvault"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
