package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/Strob0t/tubedigest/internal/adapter/mcp"
	natsadapter "github.com/Strob0t/tubedigest/internal/adapter/nats"
	"github.com/Strob0t/tubedigest/internal/adapter/openai"
	oteladapter "github.com/Strob0t/tubedigest/internal/adapter/otel"
	"github.com/Strob0t/tubedigest/internal/config"
	"github.com/Strob0t/tubedigest/internal/logger"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/broadcast"
	"github.com/Strob0t/tubedigest/internal/port/intent"
	"github.com/Strob0t/tubedigest/internal/port/tool"
	"github.com/Strob0t/tubedigest/internal/secrets"
	"github.com/Strob0t/tubedigest/internal/service"
)

const shutdownTimeout = 30 * time.Second

// defaultPorts apply when neither the flag nor the config picked a port.
var defaultPorts = map[string]string{
	"finder":       "10003",
	"orchestrator": "10002",
	"devtools":     "10004",
}

// runtime holds what every agent process needs.
type runtime struct {
	agent   string
	cfg     *config.Config
	creds   *secrets.Cache
	metrics *oteladapter.Metrics
	nats    *natsadapter.Conn // nil without cache.nats_url

	closers []func(context.Context) error
}

// bootstrap loads config, installs the global logger and telemetry, and
// builds the credential cache. port overrides server.port when set; an
// untouched default port is replaced by the agent's own.
func bootstrap(ctx context.Context, cfgPath, agent, port string) (*runtime, error) {
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	switch {
	case port != "":
		cfg.Server.Port = port
	case cfg.Server.Port == config.Defaults().Server.Port && defaultPorts[agent] != "":
		cfg.Server.Port = defaultPorts[agent]
	}
	if cfg.Logging.Service == config.Defaults().Logging.Service {
		cfg.Logging.Service += "-" + agent
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)

	rt := &runtime{
		agent: agent,
		cfg:   cfg,
		creds: newCredentials(cfg.Secrets),
	}
	rt.closers = append(rt.closers, func(context.Context) error {
		logCloser.Close()
		return nil
	})

	shutdownOTel, err := oteladapter.Setup(ctx, oteladapter.Config{
		Enabled:        cfg.OTel.Enabled,
		Endpoint:       cfg.OTel.Endpoint,
		Insecure:       cfg.OTel.Insecure,
		ServiceName:    cfg.Logging.Service,
		ServiceVersion: version,
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	rt.closers = append(rt.closers, shutdownOTel)

	rt.metrics, err = oteladapter.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("otel metrics: %w", err)
	}

	if cfg.Cache.NATSURL != "" {
		nc, err := natsadapter.Connect(ctx, cfg.Cache.NATSURL, cfg.Logging.Service)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.nats = nc
		rt.closers = append(rt.closers, func(context.Context) error { return nc.Close() })
	}

	slog.Info("config loaded",
		"agent", agent,
		"port", cfg.Server.Port,
		"otel", cfg.OTel.Enabled,
		"nats", rt.nats != nil,
	)
	return rt, nil
}

// newCredentials builds the credential cache: env vars first, then the
// secrets directory when one is configured.
func newCredentials(cfg config.Secrets) *secrets.Cache {
	resolvers := []secrets.Resolver{secrets.EnvResolver(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		resolvers = append(resolvers, secrets.FileResolver(cfg.Dir))
	}
	return secrets.NewCache(secrets.ChainResolver(resolvers...))
}

// close runs the closers in reverse order of registration.
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
}

// baseURL is the URL advertised in the agent card.
func (rt *runtime) baseURL() string {
	if rt.cfg.Server.PublicURL != "" {
		return rt.cfg.Server.PublicURL
	}
	return "http://" + net.JoinHostPort("localhost", rt.cfg.Server.Port)
}

// broadcaster mirrors events to NATS when connected.
func (rt *runtime) broadcaster() broadcast.Broadcaster {
	if rt.nats == nil {
		return broadcast.Nop{}
	}
	return rt.nats
}

// serverConfig is the protocol server configuration shared by both agents.
func (rt *runtime) serverConfig(card a2a.CardInfo) a2a.ServerConfig {
	return a2a.ServerConfig{
		Agent:        rt.agent,
		BaseURL:      rt.baseURL(),
		Card:         card,
		AckTimeout:   rt.cfg.Protocol.AckTimeout,
		MaxBodyBytes: rt.cfg.Protocol.MaxBodyBytes,
		Broadcast:    rt.broadcaster(),
	}
}

// tools builds the instrumented MCP tool invoker.
func (rt *runtime) tools() (tool.Invoker, error) {
	endpoints := make([]mcp.Endpoint, 0, len(rt.cfg.Tools.Endpoints))
	for _, ep := range rt.cfg.Tools.Endpoints {
		endpoints = append(endpoints, mcp.Endpoint{
			Name:      ep.Name,
			Transport: ep.Transport,
			URL:       ep.URL,
			Command:   ep.Command,
			Args:      ep.Args,
			Secret:    ep.Secret,
			Tools:     ep.Tools,
		})
	}
	inv, err := mcp.NewInvoker(endpoints, rt.creds, mcp.Options{
		ClientName:      rt.cfg.Logging.Service,
		ClientVersion:   version,
		CallTimeout:     rt.cfg.Tools.CallTimeout,
		BreakerFailures: rt.cfg.Breaker.MaxFailures,
		BreakerTimeout:  rt.cfg.Breaker.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("tool invoker: %w", err)
	}
	slog.Info("tools registered", "tools", inv.Tools())
	return oteladapter.Invoker(inv, rt.metrics), nil
}

// intents returns the configured free-text resolver.
func (rt *runtime) intents() intent.Resolver {
	if rt.cfg.Intent.Provider == "openai" {
		return openai.NewIntentResolver(openai.Options{
			Model:        rt.cfg.Intent.Model,
			BaseURL:      rt.cfg.Intent.BaseURL,
			APIKeySecret: rt.cfg.Intent.APIKeySecret,
		}, rt.creds)
	}
	return service.NewPatternResolver()
}

// serve runs handler until SIGINT/SIGTERM, then stops accepting requests and
// waits for the running tasks of srv.
func (rt *runtime) serve(handler http.Handler, srv *a2a.Server) error {
	httpSrv := &http.Server{
		Addr:              ":" + rt.cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server", "agent", rt.agent, "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("shutting down server", "agent", rt.agent)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if srv != nil {
		if err := srv.Wait(shutdownCtx); err != nil {
			slog.Warn("tasks still running at shutdown", "in_flight", srv.InFlight(), "error", err)
		}
	}
	return nil
}
