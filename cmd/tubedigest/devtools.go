package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	httpadapter "github.com/Strob0t/tubedigest/internal/adapter/http"
	"github.com/Strob0t/tubedigest/internal/adapter/mcp"
	"github.com/Strob0t/tubedigest/internal/middleware"
)

func devtoolsCmd(cfgPath *string) *cobra.Command {
	var port, keySecret string
	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Serve deterministic fake YouTube and summary tools over MCP at /mcp",
		Long: "Serves the four tools the agents call, backed by deterministic fakes.\n" +
			"Video ids starting with \"" + mcp.FailPrefix + "\" make summarize_video fail.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), *cfgPath, "devtools", port)
			if err != nil {
				return err
			}
			defer rt.close()

			var apiKey string
			if keySecret != "" {
				v, err := rt.creds.Get(cmd.Context(), keySecret)
				if err != nil {
					return fmt.Errorf("devtools key: %w", err)
				}
				apiKey = v.Reveal()
			}

			r := chi.NewRouter()
			r.Use(chimw.Recoverer)
			r.Use(middleware.RequestID)
			r.Use(httpadapter.Logger)
			r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			r.Handle("/mcp", mcp.NewDevServer("tubedigest-devtools", version).Handler(apiKey))

			return rt.serve(r, nil)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides server.port)")
	cmd.Flags().StringVar(&keySecret, "key-secret", "", "secret name of the bearer token clients must send")
	return cmd
}
