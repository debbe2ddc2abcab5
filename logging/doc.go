// Package logging provides a minimal logging interface and adapters for agentexec.
//
// The Logger interface defines the four leveled methods (Debug, Info, Warn,
// Error) used by the executor, agents, observers and the server. Arguments
// after the message are slog style key/value pairs. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZerologAdapter wrapping github.com/rs/zerolog
//   - ExecLogger, a contextual slog logger with run/session helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	exec := executor.New(capability, func(o *executor.Options) { o.Logger = logger })
package logging
