package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// headerAPIKey is accepted as an alternative to a bearer token, for MCP
// clients that cannot set Authorization.
const headerAPIKey = "X-API-Key"

// requireKey admits requests presenting key as a bearer token or in
// X-API-Key. An empty key admits everything.
func requireKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	want := []byte(key)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(headerAPIKey)
		if auth := r.Header.Get("Authorization"); got == "" && auth != "" {
			got = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
		}
		switch {
		case got == "":
			http.Error(w, "missing credentials", http.StatusUnauthorized)
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			http.Error(w, "invalid credentials", http.StatusForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
