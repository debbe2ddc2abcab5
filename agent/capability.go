package agent

import (
	"context"
	"errors"

	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/prompt"
)

var (
	// ErrNoModel is returned by constructors when no model is configured.
	ErrNoModel = errors.New("agent: no model configured")
	// ErrMaxIterations is returned when the model keeps requesting tools.
	ErrMaxIterations = errors.New("agent: max iterations reached")
)

// Capability is an invocable agent.
type Capability interface {
	// Invoke runs the agent on raw input and returns the answer as is.
	Invoke(ctx context.Context, input string, cb *callback.Pipeline) (string, error)
	// InvokeWithTemplate runs the agent on the human template rendered with
	// values. The result map carries the answer under "text".
	InvokeWithTemplate(ctx context.Context, values map[string]string, cb *callback.Pipeline) (map[string]any, error)
	Template() prompt.Template
	Memory() memory.Conversation
	SetMemory(m memory.Conversation)
}
