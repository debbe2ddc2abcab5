package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/model"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/hupe1980/agentexec/tool"
)

// FunctionAgentOptions configures a FunctionAgent instance.
//
// Use functional options with NewFunctionAgent to override defaults.
type FunctionAgentOptions struct {
	// Instruction overrides the system instruction. Defaults to the template
	// preamble.
	Instruction        Instruction
	EnableStreaming    bool
	ToolTimeout        time.Duration
	MaxIterations      int
	MaxHistoryMessages int
	// MaxParallelTools bounds concurrent tool calls within one model turn.
	MaxParallelTools int
	Tools            []tool.Tool
	Memory           memory.Conversation
	Logger           logging.Logger
}

// FunctionAgent drives a model.Model with native function calling.
type FunctionAgent struct {
	name string
	llm  model.Model
	tmpl prompt.Template

	instruction        Instruction
	enableStreaming    bool
	toolTimeout        time.Duration
	maxIterations      int
	maxHistoryMessages int
	maxParallelTools   int
	logger             logging.Logger

	mu     sync.RWMutex
	tools  map[string]tool.Tool
	memory memory.Conversation
}

// NewFunctionAgent creates a new function calling agent.
//
// Defaults:
//   - streaming enabled
//   - 15 second tool timeout
//   - 10 model iterations
//   - 20 history messages
//   - sequential tool execution
//   - in-process memory
func NewFunctionAgent(name string, llm model.Model, tmpl prompt.Template, optFns ...func(o *FunctionAgentOptions)) (*FunctionAgent, error) {
	if llm == nil {
		return nil, ErrNoModel
	}
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	opts := FunctionAgentOptions{
		EnableStreaming:    true,
		ToolTimeout:        15 * time.Second,
		MaxIterations:      10,
		MaxHistoryMessages: 20,
		MaxParallelTools:   1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Instruction.IsZero() {
		if tmpl.Preamble != "" {
			opts.Instruction = NewInstructionFromText(tmpl.Preamble)
		} else {
			opts.Instruction = NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name))
		}
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInProcess()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 1
	}

	a := &FunctionAgent{
		name:               name,
		llm:                llm,
		tmpl:               tmpl,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		toolTimeout:        opts.ToolTimeout,
		maxIterations:      opts.MaxIterations,
		maxHistoryMessages: opts.MaxHistoryMessages,
		maxParallelTools:   opts.MaxParallelTools,
		logger:             logging.OrNoOp(opts.Logger),
		tools:              make(map[string]tool.Tool),
		memory:             opts.Memory,
	}
	a.RegisterTools(opts.Tools...)
	return a, nil
}

// Name returns the agent name.
func (a *FunctionAgent) Name() string { return a.name }

// Template implements Capability.
func (a *FunctionAgent) Template() prompt.Template { return a.tmpl }

// Memory implements Capability.
func (a *FunctionAgent) Memory() memory.Conversation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.memory
}

// SetMemory implements Capability.
func (a *FunctionAgent) SetMemory(m memory.Conversation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = m
}

// RegisterTool adds or replaces a tool by name.
func (a *FunctionAgent) RegisterTool(t tool.Tool) {
	if t == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools.
func (a *FunctionAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// HasTool reports whether a tool with the given name is registered.
func (a *FunctionAgent) HasTool(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.tools[name]
	return ok
}

// ListTools returns the registered tool names, sorted.
func (a *FunctionAgent) ListTools() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.tools))
	for n := range a.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke implements Capability.
func (a *FunctionAgent) Invoke(ctx context.Context, input string, cb *callback.Pipeline) (string, error) {
	res, err := a.run(ctx, input, nil, cb)
	if err != nil {
		return "", err
	}
	return res.text, nil
}

// InvokeWithTemplate implements Capability. The human template is rendered
// with values and the preamble sees them as template data.
func (a *FunctionAgent) InvokeWithTemplate(ctx context.Context, values map[string]string, cb *callback.Pipeline) (map[string]any, error) {
	input, err := a.tmpl.RenderHuman(values)
	if err != nil {
		return nil, err
	}
	data := make(map[string]any, len(values))
	for k, v := range values {
		data[k] = v
	}
	res, err := a.run(ctx, input, data, cb)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"text":       res.text,
		"output":     res.text,
		"iterations": res.iterations,
	}, nil
}

func (a *FunctionAgent) snapshotTools() map[string]tool.Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]tool.Tool, len(a.tools))
	for k, v := range a.tools {
		out[k] = v
	}
	return out
}

func (a *FunctionAgent) toolDefinitions(tools map[string]tool.Tool) []model.ToolDefinition {
	names := make([]string, 0, len(tools))
	for n := range tools {
		names = append(names, n)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, n := range names {
		t := tools[n]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
