package httpapi

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// bearerAuthMiddleware rejects any request whose Authorization header does
// not carry a token from the registry's configured access-token set. Only
// routes registered on the authenticated subrouter pass through this; the
// overview endpoint is intentionally left unauthenticated, mirroring
// original_source's `web::scope(&web_path).wrap(auth)` which leaves
// `GET /` outside the wrapped scope.
func (s *Server) bearerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || !s.registry.Authenticate(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="min-creds"`)
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	return strings.TrimPrefix(h, bearerPrefix), true
}
