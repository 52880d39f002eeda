package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/tubedigest/internal/adapter/otel"
	"github.com/Strob0t/tubedigest/internal/middleware"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/secrets"
)

// RouterConfig configures an agent router.
type RouterConfig struct {
	Agent string
	// Credentials and AuthSecret require a bearer token on protocol routes.
	Credentials *secrets.Cache
	AuthSecret  string
	Tracing     bool
}

// NewRouter builds the chi router of one agent: shared middleware, a health
// probe and the protocol routes of srv.
func NewRouter(cfg RouterConfig, srv *a2a.Server) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(SecurityHeaders)
	if cfg.Tracing {
		r.Use(otel.HTTPMiddleware(cfg.Agent))
	}
	if cfg.Credentials != nil {
		r.Use(middleware.Bearer(cfg.Credentials, cfg.AuthSecret))
	}

	r.Get("/health", healthHandler(cfg.Agent, srv))
	srv.MountRoutes(r)

	return r
}

// healthHandler reports liveness and the number of running tasks.
func healthHandler(agent string, srv *a2a.Server) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Agent    string `json:"agent"`
		InFlight int    `json:"in_flight"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthStatus{
			Status:   "ok",
			Agent:    agent,
			InFlight: srv.InFlight(),
		})
	}
}
