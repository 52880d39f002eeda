// Package mcp adapts MCP tool servers to the tool.Invoker port and hosts
// a development tool server.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/tubedigest/internal/port/tool"
	"github.com/Strob0t/tubedigest/internal/resilience"
	"github.com/Strob0t/tubedigest/internal/secrets"
)

// Transport names accepted in Endpoint.Transport.
const (
	TransportStreamableHTTP = "streamable_http"
	TransportSSE            = "sse"
	TransportStdio          = "stdio"
)

// TokenEnv carries the bearer token to stdio tool servers.
const TokenEnv = "MCP_BEARER_TOKEN"

const defaultCallTimeout = 90 * time.Second

// Endpoint is one MCP server and the tools routed to it.
type Endpoint struct {
	Name      string
	Transport string
	URL       string
	Command   string
	Args      []string
	Env       map[string]string
	Secret    string // credential name of the bearer token; empty disables auth
	Tools     []string
}

// Options tune an Invoker.
type Options struct {
	ClientName      string
	ClientVersion   string
	CallTimeout     time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

type route struct {
	ep      Endpoint
	breaker *resilience.Breaker
}

// Invoker calls tools on MCP servers. Every call opens a fresh session:
// connect, initialize, call, close.
type Invoker struct {
	routes map[string]*route
	creds  *secrets.Cache
	opts   Options
}

// NewInvoker builds an Invoker routing each listed tool to its endpoint.
// A tool may be served by only one endpoint.
func NewInvoker(endpoints []Endpoint, creds *secrets.Cache, opts Options) (*Invoker, error) {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "tubedigest"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "0.1.0"
	}
	if opts.BreakerFailures < 1 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	inv := &Invoker{routes: make(map[string]*route), creds: creds, opts: opts}
	for i := range endpoints {
		ep := endpoints[i]
		switch ep.Transport {
		case TransportStreamableHTTP, TransportSSE, TransportStdio:
		default:
			return nil, fmt.Errorf("endpoint %s: unsupported transport %q", ep.Name, ep.Transport)
		}
		if ep.Secret != "" && creds == nil {
			return nil, fmt.Errorf("endpoint %s: secret %q needs a credential cache", ep.Name, ep.Secret)
		}
		r := &route{ep: ep, breaker: newBreaker(ep.Name, opts)}
		for _, name := range ep.Tools {
			if prev, dup := inv.routes[name]; dup {
				return nil, fmt.Errorf("tool %s served by both %s and %s", name, prev.ep.Name, ep.Name)
			}
			inv.routes[name] = r
		}
	}
	return inv, nil
}

func newBreaker(name string, opts Options) *resilience.Breaker {
	b := resilience.NewBreaker(name, opts.BreakerFailures, opts.BreakerTimeout)
	b.Trips = func(err error) bool {
		var te *tool.Error
		return errors.As(err, &te) && te.Kind == tool.KindUnavailable
	}
	b.OnStateChange = func(name string, from, to resilience.State) {
		slog.Warn("tool endpoint breaker", "endpoint", name, "from", from.String(), "to", to.String())
	}
	return b
}

// Tools lists every routed tool name.
func (inv *Invoker) Tools() []string {
	out := make([]string, 0, len(inv.routes))
	for name := range inv.routes {
		out = append(out, name)
	}
	return out
}

// Invoke calls the named tool on its endpoint.
func (inv *Invoker) Invoke(ctx context.Context, call tool.Call) (*tool.Result, error) {
	r, ok := inv.routes[call.Tool]
	if !ok {
		return nil, &tool.Error{Tool: call.Tool, Kind: tool.KindUnavailable, Message: "no endpoint serves this tool"}
	}

	ctx, cancel := context.WithTimeout(ctx, inv.opts.CallTimeout)
	defer cancel()

	var res *tool.Result
	err := r.breaker.Execute(func() error {
		var callErr error
		res, callErr = secrets.WithAuthRetry(ctx, inv.creds, r.ep.Secret,
			func(ctx context.Context, token secrets.Value) (*tool.Result, error) {
				return inv.callOnce(ctx, &r.ep, call, token.Reveal())
			})
		return callErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, &tool.Error{Tool: call.Tool, Kind: tool.KindUnavailable, Message: fmt.Sprintf("endpoint %s: %v", r.ep.Name, err)}
	}
	var te *tool.Error
	if err != nil && !errors.As(err, &te) {
		// Credential lookup failures surface from WithAuthRetry unwrapped.
		return nil, &tool.Error{Tool: call.Tool, Kind: tool.KindAuth, Message: err.Error()}
	}
	return res, err
}

func (inv *Invoker) callOnce(ctx context.Context, ep *Endpoint, call tool.Call, token string) (*tool.Result, error) {
	c, err := createClient(ep, token)
	if err != nil {
		return nil, &tool.Error{Tool: call.Tool, Kind: tool.KindUnavailable, Message: err.Error()}
	}
	defer c.Close() //nolint:errcheck // best-effort cleanup

	if ep.Transport != TransportStdio {
		if err := c.Start(ctx); err != nil {
			return nil, classify(call.Tool, "start", err, tool.KindUnavailable)
		}
	}

	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{
		Name:    inv.opts.ClientName,
		Version: inv.opts.ClientVersion,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, classify(call.Tool, "initialize", err, tool.KindUnavailable)
	}

	req := mcplib.CallToolRequest{}
	req.Params.Name = call.Tool
	req.Params.Arguments = call.Args
	out, err := c.CallTool(ctx, req)
	if err != nil {
		kind := tool.KindFailure
		if ctx.Err() != nil {
			kind = tool.KindUnavailable
		}
		return nil, classify(call.Tool, "call", err, kind)
	}
	return convertResult(call.Tool, out)
}

// createClient builds an mcp-go client for the endpoint's transport.
func createClient(ep *Endpoint, token string) (*mcpclient.Client, error) {
	switch ep.Transport {
	case TransportStdio:
		env := envMapToSlice(ep.Env)
		if token != "" {
			env = append(env, TokenEnv+"="+token)
		}
		return mcpclient.NewStdioMCPClient(ep.Command, env, ep.Args...)

	case TransportSSE:
		var opts []transport.ClientOption
		if token != "" {
			opts = append(opts, transport.WithHeaders(bearer(token)))
		}
		return mcpclient.NewSSEMCPClient(ep.URL, opts...)

	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if token != "" {
			opts = append(opts, transport.WithHTTPHeaders(bearer(token)))
		}
		return mcpclient.NewStreamableHttpClient(ep.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", ep.Transport)
	}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// envMapToSlice converts a map to KEY=VALUE pairs on top of the process env.
func envMapToSlice(m map[string]string) []string {
	env := os.Environ()
	for k, v := range m {
		env = append(env, k+"="+v)
	}
	return env
}

// convertResult maps an MCP tool result onto the port's Result. A result
// flagged IsError is a tool failure carrying its text.
func convertResult(name string, out *mcplib.CallToolResult) (*tool.Result, error) {
	if out == nil {
		return nil, tool.Failure(name, "empty response")
	}
	res := &tool.Result{Structured: out.StructuredContent}
	for _, c := range out.Content {
		switch tc := c.(type) {
		case mcplib.TextContent:
			res.Texts = append(res.Texts, tc.Text)
		case *mcplib.TextContent:
			res.Texts = append(res.Texts, tc.Text)
		}
	}
	if out.IsError {
		msg := strings.TrimSpace(res.Text())
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, tool.Failure(name, "%s", msg)
	}
	return res, nil
}

// classify turns a transport error into a tool error, recognizing
// rejected credentials by the HTTP status the transports report.
func classify(name, op string, err error, fallback tool.Kind) *tool.Error {
	kind := fallback
	if isAuthError(err) {
		kind = tool.KindAuth
	}
	return &tool.Error{Tool: name, Kind: kind, Message: fmt.Sprintf("%s: %v", op, err)}
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"status 401", "status 403", "unauthorized", "forbidden"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
