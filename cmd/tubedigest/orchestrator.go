package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/Strob0t/tubedigest/internal/adapter/http"
	"github.com/Strob0t/tubedigest/internal/adapter/natskv"
	oteladapter "github.com/Strob0t/tubedigest/internal/adapter/otel"
	"github.com/Strob0t/tubedigest/internal/adapter/ristretto"
	"github.com/Strob0t/tubedigest/internal/adapter/tiered"
	"github.com/Strob0t/tubedigest/internal/middleware"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/cache"
	"github.com/Strob0t/tubedigest/internal/service"
)

const agentOrchestrator = "orchestrator"

func orchestratorCmd(cfgPath *string) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Run the orchestrator agent: delegates lookup, summarizes and combines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), *cfgPath, agentOrchestrator, port)
			if err != nil {
				return err
			}
			defer rt.close()

			tools, err := rt.tools()
			if err != nil {
				return err
			}
			summaries, err := rt.summaryCache(cmd.Context())
			if err != nil {
				return err
			}

			client := a2a.NewClient(a2a.ClientConfig{
				Peer:        agentFinder,
				BaseURL:     rt.cfg.Finder.URL,
				Timeout:     rt.cfg.Protocol.DelegationTimeout,
				Credentials: rt.creds,
				AuthSecret:  rt.cfg.Protocol.AuthSecret,
				HTTPClient: &http.Client{
					Transport: middleware.PropagateRequestID(oteladapter.HTTPTransport(http.DefaultTransport)),
				},
			})
			if card, err := client.Card(cmd.Context()); err != nil {
				slog.Warn("finder agent card unavailable", "url", rt.cfg.Finder.URL, "error", err)
			} else {
				slog.Info("finder agent discovered", "name", card.Name, "version", card.Version)
			}

			orch := service.NewOrchestratorService(
				oteladapter.NewDelegator(agentFinder, client, rt.metrics),
				tools,
				rt.intents(),
				summaries,
				service.OrchestratorConfig{
					MaxParallel:       rt.cfg.Orchestrator.MaxParallel,
					SummarizeTool:     rt.cfg.Orchestrator.SummarizeTool,
					CombineTool:       rt.cfg.Orchestrator.CombineTool,
					DelegationTimeout: rt.cfg.Protocol.DelegationTimeout,
				},
			)

			srv := a2a.NewServer(
				oteladapter.Executor(agentOrchestrator, orch, rt.metrics),
				rt.serverConfig(service.OrchestratorCard(version)),
			)
			router := httpadapter.NewRouter(httpadapter.RouterConfig{
				Agent:       agentOrchestrator,
				Credentials: rt.creds,
				AuthSecret:  rt.cfg.Protocol.AuthSecret,
				Tracing:     rt.cfg.OTel.Enabled,
			}, srv)

			return rt.serve(router, srv)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides server.port)")
	return cmd
}

// summaryCache builds the per-video summary cache: ristretto in process,
// backed by a JetStream KV bucket when NATS is configured. A disabled cache
// is nil.
func (rt *runtime) summaryCache(ctx context.Context) (*service.SummaryCache, error) {
	cc := rt.cfg.Cache
	if !cc.Enabled {
		return nil, nil
	}
	l1, err := ristretto.New(cc.L1MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("summary cache: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error {
		l1.Close()
		return nil
	})

	var c cache.Cache = l1
	if rt.nats != nil {
		kv, err := rt.nats.KeyValue(ctx, cc.Bucket, cc.TTL)
		if err != nil {
			return nil, fmt.Errorf("summary cache: %w", err)
		}
		c = tiered.New(l1, natskv.New(kv, 0), cc.TTL)
	}
	slog.Info("summary cache enabled", "l1_mb", cc.L1MaxSizeMB, "l2", rt.nats != nil, "ttl", cc.TTL)
	return service.NewSummaryCache(c, cc.TTL), nil
}
