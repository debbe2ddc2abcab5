package config

import (
	"errors"
	"fmt"
)

// Validate checks enumerations and limits.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Log.Backend, "slog", "zerolog") {
		errs = append(errs, fmt.Errorf("log.backend: unsupported value %q", c.Log.Backend))
	}
	if !oneOf(c.Log.Format, "text", "json") {
		errs = append(errs, fmt.Errorf("log.format: unsupported value %q", c.Log.Format))
	}

	if !oneOf(c.Agent.Backend, "native", "langchain") {
		errs = append(errs, fmt.Errorf("agent.backend: unsupported value %q", c.Agent.Backend))
	}
	if !oneOf(c.Agent.Provider, "openai", "anthropic", "mock") {
		errs = append(errs, fmt.Errorf("agent.provider: unsupported value %q", c.Agent.Provider))
	}
	if c.Agent.Backend == "langchain" && c.Agent.Provider == "anthropic" {
		errs = append(errs, fmt.Errorf("agent.provider: anthropic is not available for the langchain backend"))
	}
	if c.Agent.Model == "" && c.Agent.Provider != "mock" {
		errs = append(errs, fmt.Errorf("agent.model: cannot be empty"))
	}
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations: must be positive"))
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature: must be between 0 and 2"))
	}
	if _, err := c.Agent.Template(); err != nil {
		errs = append(errs, fmt.Errorf("agent template: %w", err))
	}

	if !oneOf(c.Memory.Type, "inprocess", "redis") {
		errs = append(errs, fmt.Errorf("memory.type: unsupported value %q", c.Memory.Type))
	}
	if c.Memory.Type == "redis" && c.Memory.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("memory.redis.addr: cannot be empty"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr: cannot be empty"))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
