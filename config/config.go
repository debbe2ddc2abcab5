// Package config loads the agentexec configuration from a YAML or JSON file,
// AGENTEXEC_* environment variables and built-in defaults.
package config

import (
	"time"

	"github.com/hupe1980/agentexec/prompt"
)

// Config represents the main agentexec configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LogConfig selects the logger backend.
type LogConfig struct {
	Backend string `mapstructure:"backend"` // slog, zerolog
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"` // text, json
	Pretty  bool   `mapstructure:"pretty"`
}

// AgentConfig describes the capability driven by the executor.
type AgentConfig struct {
	Name          string        `mapstructure:"name"`
	Backend       string        `mapstructure:"backend"`  // native, langchain
	Provider      string        `mapstructure:"provider"` // openai, anthropic, mock
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Preamble      string        `mapstructure:"preamble"`
	Human         string        `mapstructure:"human"`
	Variables     []string      `mapstructure:"variables"`
	MaxIterations int           `mapstructure:"max_iterations"`
	Streaming     bool          `mapstructure:"streaming"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
}

// Template builds the prompt template. Variables default to the
// placeholders of the human template.
func (c AgentConfig) Template() (prompt.Template, error) {
	if len(c.Variables) == 0 {
		return prompt.NewTemplate(c.Preamble, c.Human)
	}
	t := prompt.Template{
		Variables: append([]string(nil), c.Variables...),
		Preamble:  c.Preamble,
		Human:     c.Human,
	}
	if err := t.Validate(); err != nil {
		return prompt.Template{}, err
	}
	return t, nil
}

// MemoryConfig selects the conversation memory.
type MemoryConfig struct {
	Type       string        `mapstructure:"type"` // inprocess, redis
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the redis backed memory.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the prediction API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	WebsocketPath   string        `mapstructure:"websocket_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// MetricsConfig enables Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig enables OpenTelemetry spans for agent runs.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	// Endpoint is the OTLP/HTTP collector URL. Empty uses the
	// OTEL_EXPORTER_OTLP_* environment.
	Endpoint string `mapstructure:"endpoint"`
}
