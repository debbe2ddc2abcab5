// Package app wires configuration into loggers, models, memories and
// capabilities for the command line and the server.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/config"
	"github.com/hupe1980/agentexec/langchain"
	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/model"
	"github.com/hupe1980/agentexec/model/anthropic"
	"github.com/hupe1980/agentexec/model/openai"
	"github.com/hupe1980/agentexec/session"
	"github.com/hupe1980/agentexec/tool"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// NewLogger builds the configured logger writing to w.
func NewLogger(cfg config.LogConfig, w io.Writer) logging.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Backend == "zerolog" {
		return logging.NewZerolog(cfg.Level, cfg.Pretty, w)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Level),
		Format: cfg.Format,
		Output: w,
	})
}

// NewModel builds the native model for the configured provider.
func NewModel(cfg config.AgentConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Model
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Model, "mock"), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// NewLLM builds the langchaingo model for the configured provider.
func NewLLM(cfg config.AgentConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []lcopenai.Option{lcopenai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, lcopenai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
		}
		return lcopenai.New(opts...)
	case "mock":
		return fake.NewFakeLLM([]string{"This is a mock response."}), nil
	default:
		return nil, fmt.Errorf("provider %q is not supported by the langchain backend", cfg.Provider)
	}
}

// Builder creates capabilities around a given memory.
type Builder struct {
	cfg    config.AgentConfig
	tools  []tool.Tool
	logger logging.Logger

	native model.Model
	llm    llms.Model
}

// NewBuilder validates the agent configuration and creates the shared model
// client.
func NewBuilder(cfg config.AgentConfig, tools []tool.Tool, logger logging.Logger) (*Builder, error) {
	b := &Builder{cfg: cfg, tools: tools, logger: logging.OrNoOp(logger)}
	if _, err := cfg.Template(); err != nil {
		return nil, err
	}

	var err error
	switch cfg.Backend {
	case "langchain":
		b.llm, err = NewLLM(cfg)
	default:
		b.native, err = NewModel(cfg)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Capability builds a capability using mem as its conversation memory.
func (b *Builder) Capability(mem memory.Conversation) (agent.Capability, error) {
	tmpl, err := b.cfg.Template()
	if err != nil {
		return nil, err
	}

	if b.cfg.Backend == "langchain" {
		return langchain.NewAgent(b.llm, tmpl, b.tools, func(o *langchain.Options) {
			o.Name = b.cfg.Name
			o.ModelName = b.cfg.Model
			o.MaxIterations = b.cfg.MaxIterations
			o.Memory = mem
			o.Logger = b.logger
			o.CallOptions = []llms.CallOption{
				llms.WithTemperature(b.cfg.Temperature),
				llms.WithMaxTokens(b.cfg.MaxTokens),
			}
		})
	}

	return agent.NewFunctionAgent(b.cfg.Name, b.native, tmpl, func(o *agent.FunctionAgentOptions) {
		o.EnableStreaming = b.cfg.Streaming
		o.MaxIterations = b.cfg.MaxIterations
		o.ToolTimeout = b.cfg.ToolTimeout
		o.Tools = b.tools
		o.Memory = mem
		o.Logger = b.logger
	})
}

// MemoryFactory returns the session memory factory for the configured
// memory type. The returned close function releases backend clients.
func MemoryFactory(cfg config.MemoryConfig) (session.MemoryFactory, func() error, error) {
	switch cfg.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		factory := func(_ context.Context, sessionID string) (memory.Conversation, error) {
			return memory.NewRedis(client, sessionID, func(o *memory.RedisOptions) {
				if cfg.Redis.KeyPrefix != "" {
					o.KeyPrefix = cfg.Redis.KeyPrefix
				}
				o.TTL = cfg.Redis.TTL
			}), nil
		}
		return factory, client.Close, nil
	case "inprocess", "":
		return session.InProcessFactory(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported memory type %q", cfg.Type)
	}
}
