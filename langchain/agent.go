package langchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/hupe1980/agentexec/tool"
	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	lcmemory "github.com/tmc/langchaingo/memory"
	"github.com/tmc/langchaingo/tools"
)

// Options configures an Agent.
type Options struct {
	Name          string
	ModelName     string
	MaxIterations int
	Memory        memory.Conversation
	// CallOptions are passed to every GenerateContent call.
	CallOptions []llms.CallOption
	Logger      logging.Logger
}

// Agent is an agent.Capability backed by a langchaingo agents.Executor.
type Agent struct {
	llm   llms.Model
	tmpl  prompt.Template
	tools []tool.Tool
	opts  Options

	mu     sync.RWMutex
	memory memory.Conversation
}

var _ agent.Capability = (*Agent)(nil)

// NewAgent creates a langchaingo backed capability.
func NewAgent(llm llms.Model, tmpl prompt.Template, ts []tool.Tool, optFns ...func(o *Options)) (*Agent, error) {
	if llm == nil {
		return nil, agent.ErrNoModel
	}
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	opts := Options{
		Name:          "langchain",
		ModelName:     "llm",
		MaxIterations: 10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInProcess()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Agent{
		llm:    llm,
		tmpl:   tmpl,
		tools:  ts,
		opts:   opts,
		memory: opts.Memory,
	}, nil
}

// Template implements agent.Capability.
func (a *Agent) Template() prompt.Template { return a.tmpl }

// Memory implements agent.Capability.
func (a *Agent) Memory() memory.Conversation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.memory
}

// SetMemory implements agent.Capability.
func (a *Agent) SetMemory(m memory.Conversation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = m
}

// Invoke implements agent.Capability using chains.Run.
func (a *Agent) Invoke(ctx context.Context, input string, cb *callback.Pipeline) (string, error) {
	executor := a.executor(nil, cb)
	out, err := chains.Run(ctx, executor, input)
	if err != nil {
		return "", a.wrap(err)
	}
	if err := a.save(ctx, input, out); err != nil {
		return "", err
	}
	return out, nil
}

// InvokeWithTemplate implements agent.Capability using chains.Call on the
// rendered human template. The output map carries the answer under "text".
func (a *Agent) InvokeWithTemplate(ctx context.Context, values map[string]string, cb *callback.Pipeline) (map[string]any, error) {
	input, err := a.tmpl.RenderHuman(values)
	if err != nil {
		return nil, err
	}
	executor := a.executor(values, cb)
	out, err := chains.Call(ctx, executor, map[string]any{inputKey: input})
	if err != nil {
		return nil, a.wrap(err)
	}
	text, _ := out[outputKey].(string)
	if err := a.save(ctx, input, text); err != nil {
		return nil, err
	}
	result := make(map[string]any, len(out)+1)
	for k, v := range out {
		result[k] = v
	}
	result["text"] = text
	return result, nil
}

func (a *Agent) executor(values map[string]string, cb *callback.Pipeline) *agents.Executor {
	b := newBridge(a.opts.Name, a.opts.ModelName, cb)

	lcTools := make([]tools.Tool, 0, len(a.tools))
	for _, t := range a.tools {
		lcTools = append(lcTools, &toolAdapter{tool: t, bridge: b})
	}

	p := &planner{
		llm:      a.llm,
		tmpl:     a.tmpl,
		data:     values,
		memory:   a.Memory(),
		tools:    lcTools,
		defs:     toolDefinitions(a.tools),
		bridge:   b,
		callOpts: a.opts.CallOptions,
	}

	return agents.NewExecutor(p,
		agents.WithMaxIterations(a.opts.MaxIterations),
		agents.WithMemory(lcmemory.NewSimple()),
		agents.WithCallbacksHandler(b),
	)
}

func (a *Agent) save(ctx context.Context, input, output string) error {
	mem := a.Memory()
	if mem == nil {
		return nil
	}
	if err := mem.Save(ctx, input, output); err != nil {
		a.opts.Logger.Error("langchain.memory.save_failed", "error", err.Error())
		return err
	}
	return nil
}

func (a *Agent) wrap(err error) error {
	if errors.Is(err, agents.ErrNotFinished) {
		return fmt.Errorf("%w: %w", agent.ErrMaxIterations, err)
	}
	return err
}
