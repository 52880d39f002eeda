package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware returns a chi-compatible middleware that creates spans for
// protocol requests, named after the agent.
func HTTPMiddleware(agent string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, agent,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return agent + " " + r.Method + " " + r.URL.Path
			}),
		)
	}
}
