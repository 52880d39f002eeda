// Package config provides hierarchical configuration loading for tubedigest.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for one tubedigest agent process.
type Config struct {
	Server       Server       `yaml:"server"`
	Logging      Logging      `yaml:"logging"`
	Protocol     Protocol     `yaml:"protocol"`
	Finder       Finder       `yaml:"finder"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Tools        Tools        `yaml:"tools"`
	Secrets      Secrets      `yaml:"secrets"`
	Intent       Intent       `yaml:"intent"`
	Cache        Cache        `yaml:"cache"`
	Breaker      Breaker      `yaml:"breaker"`
	OTel         OTel         `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port      string `yaml:"port"`
	PublicURL string `yaml:"public_url"` // advertised in the agent card
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Protocol holds agent protocol client/server settings.
type Protocol struct {
	DelegationTimeout time.Duration `yaml:"delegation_timeout"` // client-side deadline for a delegation
	AckTimeout        time.Duration `yaml:"ack_timeout"`        // server waits this long for a stream ack
	AuthSecret        string        `yaml:"auth_secret"`        // secret name of the bearer token shared by the agents (sent and required)
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
}

// Finder holds the finder agent's settings, and the orchestrator's view of it.
type Finder struct {
	URL          string `yaml:"url"` // base URL of the finder agent (orchestrator side)
	ChannelTool  string `yaml:"channel_tool"`
	PlaylistTool string `yaml:"playlist_tool"`
}

// Orchestrator holds fan-out and tool settings of the orchestrator agent.
type Orchestrator struct {
	MaxParallel   int    `yaml:"max_parallel"` // fan-out concurrency (default: 8, capped at 16)
	SummarizeTool string `yaml:"summarize_tool"`
	CombineTool   string `yaml:"combine_tool"`
}

// Tools lists the MCP tool endpoints this process may call.
type Tools struct {
	Endpoints   []ToolEndpoint `yaml:"endpoints"`
	CallTimeout time.Duration  `yaml:"call_timeout"`
}

// ToolEndpoint describes one MCP server and the tools routed to it.
type ToolEndpoint struct {
	Name      string   `yaml:"name"`
	Transport string   `yaml:"transport"` // "streamable_http" | "sse" | "stdio"
	URL       string   `yaml:"url"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	Secret    string   `yaml:"secret"` // secret name of the bearer token, optional
	Tools     []string `yaml:"tools"`
}

// Secrets configures the secret backends consulted by the credential cache.
type Secrets struct {
	Dir       string `yaml:"dir"`        // directory of files named after secrets
	EnvPrefix string `yaml:"env_prefix"` // prefix for env-var lookups
}

// Intent configures the free-text intent resolver.
type Intent struct {
	Provider     string `yaml:"provider"` // "pattern" | "openai"
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKeySecret string `yaml:"api_key_secret"`
}

// Cache configures the summary cache.
type Cache struct {
	Enabled     bool          `yaml:"enabled"`
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	TTL         time.Duration `yaml:"ttl"`
	NATSURL     string        `yaml:"nats_url"` // enables the JetStream KV L2 when set
	Bucket      string        `yaml:"bucket"`
}

// Breaker holds circuit breaker configuration for tool endpoints.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OTel holds OpenTelemetry exporter configuration.
type OTel struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "10003",
		},
		Logging: Logging{
			Level:   "info",
			Service: "tubedigest",
		},
		Protocol: Protocol{
			DelegationTimeout: 2 * time.Minute,
			AckTimeout:        30 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Finder: Finder{
			URL:          "http://localhost:10003",
			ChannelTool:  "get_channel_videos_by_date",
			PlaylistTool: "get_playlist_videos",
		},
		Orchestrator: Orchestrator{
			MaxParallel:   8,
			SummarizeTool: "summarize_video",
			CombineTool:   "combine_summaries",
		},
		Tools: Tools{
			CallTimeout: 90 * time.Second,
		},
		Secrets: Secrets{
			EnvPrefix: "TUBEDIGEST_SECRET_",
		},
		Intent: Intent{
			Provider: "pattern",
			Model:    "gpt-4o-mini",
		},
		Cache: Cache{
			Enabled:     true,
			L1MaxSizeMB: 32,
			TTL:         24 * time.Hour,
			Bucket:      "TUBEDIGEST_SUMMARIES",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		OTel: OTel{
			Endpoint: "localhost:4317",
			Insecure: true,
		},
	}
}
