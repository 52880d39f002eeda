package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/tubedigest/internal/secrets"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":                 true,
	"/.well-known/agent.json": true,
}

// minRefreshAge keeps a flood of bad tokens from hammering the secret backend.
const minRefreshAge = 10 * time.Second

// Bearer returns middleware requiring "Authorization: Bearer <token>" equal
// to the secret called name. A mismatch against a cached value older than
// minRefreshAge refreshes the secret once, so rotated tokens are accepted
// without a restart. An empty name disables the check.
func Bearer(creds *secrets.Cache, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if name == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			want, err := creds.Get(r.Context(), name)
			if err != nil {
				slog.ErrorContext(r.Context(), "auth secret unavailable", "secret", name, "error", err)
				http.Error(w, `{"error":"authorization unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if !equal(token, want) && stale(creds, name) {
				if fresh, err := creds.Refresh(r.Context(), name); err == nil {
					want = fresh
				}
			}
			if !equal(token, want) {
				http.Error(w, `{"error":"invalid credentials"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func equal(token string, want secrets.Value) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(want.Reveal())) == 1
}

func stale(creds *secrets.Cache, name string) bool {
	e, ok := creds.Entries()[name]
	return !ok || time.Since(e.FetchedAt) >= minRefreshAge
}
