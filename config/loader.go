package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. AGENTEXEC_AGENT_MODEL.
const EnvPrefix = "AGENTEXEC"

var defaults = map[string]any{
	"log.backend": "slog",
	"log.level":   "info",
	"log.format":  "text",
	"log.pretty":  false,

	"agent.name":           "assistant",
	"agent.backend":        "native",
	"agent.provider":       "openai",
	"agent.model":          "gpt-4o-mini",
	"agent.api_key":        "",
	"agent.base_url":       "",
	"agent.temperature":    0.7,
	"agent.max_tokens":     1024,
	"agent.preamble":       "",
	"agent.human":          "",
	"agent.variables":      []string{},
	"agent.max_iterations": 10,
	"agent.streaming":      true,
	"agent.tool_timeout":   "15s",

	"memory.type":             "inprocess",
	"memory.session_ttl":      "30m",
	"memory.redis.addr":       "localhost:6379",
	"memory.redis.password":   "",
	"memory.redis.db":         0,
	"memory.redis.key_prefix": "agentexec:history:",
	"memory.redis.ttl":        "0s",

	"server.addr":             ":8080",
	"server.websocket_path":   "/ws",
	"server.shutdown_timeout": "10s",
	"server.write_timeout":    "10s",

	"metrics.enabled": true,
	"metrics.path":    "/metrics",

	"tracing.enabled":      false,
	"tracing.service_name": "agentexec",
	"tracing.endpoint":     "",
}

// Load reads the configuration. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
