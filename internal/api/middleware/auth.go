package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mcoot/tablesync/internal/api/apierr"
)

// Auth guards the local API with a static bearer token. An empty token
// leaves the API open, which is only sensible on a loopback listener.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(extractToken(r))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the bearer token, falling back to the access_token
// query parameter for EventSource clients that cannot set headers
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
