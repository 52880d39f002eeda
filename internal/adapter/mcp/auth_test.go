package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	tests := []struct {
		name   string
		key    string
		header string
		value  string
		want   int
	}{
		{"disabled", "", "", "", http.StatusNoContent},
		{"missing", "k", "", "", http.StatusUnauthorized},
		{"bearer", "k", "Authorization", "Bearer k", http.StatusNoContent},
		{"raw authorization", "k", "Authorization", "k", http.StatusNoContent},
		{"api key header", "k", headerAPIKey, "k", http.StatusNoContent},
		{"wrong", "k", "Authorization", "Bearer x", http.StatusForbidden},
		{"wrong api key", "k", headerAPIKey, "kk", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			requireKey(tt.key, ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	tests := map[string]bool{
		"request failed with status 403: invalid credentials": true,
		"request failed with status 401":                      true,
		"Unauthorized":                                        true,
		"connection refused":                                  false,
		"dial tcp 127.0.0.1:40312: connection refused":        false,
	}
	for msg, want := range tests {
		if got := isAuthError(errString(msg)); got != want {
			t.Errorf("isAuthError(%q) = %v, want %v", msg, got, want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
