package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tubedigest.yaml"

// MaxParallelCeiling caps fan-out concurrency regardless of configuration.
const MaxParallelCeiling = 16

var validTransports = map[string]bool{
	"streamable_http": true,
	"sse":             true,
	"stdio":           true,
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TUBEDIGEST_PORT")
	setString(&cfg.Server.PublicURL, "TUBEDIGEST_PUBLIC_URL")
	setString(&cfg.Logging.Level, "TUBEDIGEST_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TUBEDIGEST_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TUBEDIGEST_LOG_ASYNC")

	// Protocol
	setDuration(&cfg.Protocol.DelegationTimeout, "TUBEDIGEST_DELEGATION_TIMEOUT")
	setDuration(&cfg.Protocol.AckTimeout, "TUBEDIGEST_ACK_TIMEOUT")
	setString(&cfg.Protocol.AuthSecret, "TUBEDIGEST_AUTH_SECRET")
	setInt64(&cfg.Protocol.MaxBodyBytes, "TUBEDIGEST_MAX_BODY_BYTES")

	// Finder
	setString(&cfg.Finder.URL, "TUBEDIGEST_FINDER_URL")
	setString(&cfg.Finder.ChannelTool, "TUBEDIGEST_FINDER_CHANNEL_TOOL")
	setString(&cfg.Finder.PlaylistTool, "TUBEDIGEST_FINDER_PLAYLIST_TOOL")

	// Orchestrator
	setInt(&cfg.Orchestrator.MaxParallel, "TUBEDIGEST_MAX_PARALLEL")
	setString(&cfg.Orchestrator.SummarizeTool, "TUBEDIGEST_SUMMARIZE_TOOL")
	setString(&cfg.Orchestrator.CombineTool, "TUBEDIGEST_COMBINE_TOOL")
	setDuration(&cfg.Tools.CallTimeout, "TUBEDIGEST_TOOL_CALL_TIMEOUT")

	// Secrets
	setString(&cfg.Secrets.Dir, "TUBEDIGEST_SECRETS_DIR")
	setString(&cfg.Secrets.EnvPrefix, "TUBEDIGEST_SECRETS_ENV_PREFIX")

	// Intent
	setString(&cfg.Intent.Provider, "TUBEDIGEST_INTENT_PROVIDER")
	setString(&cfg.Intent.Model, "TUBEDIGEST_INTENT_MODEL")
	setString(&cfg.Intent.BaseURL, "TUBEDIGEST_INTENT_BASE_URL")
	setString(&cfg.Intent.APIKeySecret, "TUBEDIGEST_INTENT_API_KEY_SECRET")

	// Cache
	setBool(&cfg.Cache.Enabled, "TUBEDIGEST_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "TUBEDIGEST_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "TUBEDIGEST_CACHE_TTL")
	setString(&cfg.Cache.NATSURL, "NATS_URL")
	setString(&cfg.Cache.Bucket, "TUBEDIGEST_CACHE_BUCKET")

	// Breaker
	setInt(&cfg.Breaker.MaxFailures, "TUBEDIGEST_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TUBEDIGEST_BREAKER_TIMEOUT")

	// OTel
	setBool(&cfg.OTel.Enabled, "TUBEDIGEST_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTel.Insecure, "TUBEDIGEST_OTEL_INSECURE")
}

// validate checks that required fields are set and clamps fan-out concurrency.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Protocol.DelegationTimeout <= 0 {
		return errors.New("protocol.delegation_timeout must be > 0")
	}
	if cfg.Protocol.AckTimeout <= 0 {
		return errors.New("protocol.ack_timeout must be > 0")
	}
	if cfg.Orchestrator.MaxParallel < 1 {
		return errors.New("orchestrator.max_parallel must be >= 1")
	}
	if cfg.Orchestrator.MaxParallel > MaxParallelCeiling {
		cfg.Orchestrator.MaxParallel = MaxParallelCeiling
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	switch cfg.Intent.Provider {
	case "pattern", "openai":
	default:
		return fmt.Errorf("intent.provider %q must be \"pattern\" or \"openai\"", cfg.Intent.Provider)
	}
	for i := range cfg.Tools.Endpoints {
		ep := &cfg.Tools.Endpoints[i]
		if ep.Name == "" {
			return fmt.Errorf("tools.endpoints[%d].name is required", i)
		}
		if !validTransports[ep.Transport] {
			return fmt.Errorf("tools.endpoints[%d].transport %q is invalid", i, ep.Transport)
		}
		if ep.Transport == "stdio" && ep.Command == "" {
			return fmt.Errorf("tools.endpoints[%d].command is required for stdio", i)
		}
		if ep.Transport != "stdio" && ep.URL == "" {
			return fmt.Errorf("tools.endpoints[%d].url is required for %s", i, ep.Transport)
		}
		if len(ep.Tools) == 0 {
			return fmt.Errorf("tools.endpoints[%d].tools must list at least one tool", i)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
