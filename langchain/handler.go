package langchain

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentexec/callback"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// bridge forwards langchaingo callbacks to a callback.Pipeline. One bridge
// serves exactly one invocation.
type bridge struct {
	callbacks.SimpleHandler

	name     string
	model    string
	pipeline *callback.Pipeline

	mu       sync.Mutex
	chainAt  time.Time
	llmAt    time.Time
	toolAt   time.Time
	callID   string
	toolName string
	streamed bool
}

var _ callbacks.Handler = (*bridge)(nil)

func newBridge(name, model string, p *callback.Pipeline) *bridge {
	return &bridge{name: name, model: model, pipeline: p}
}

func (b *bridge) HandleChainStart(ctx context.Context, inputs map[string]any) {
	b.mu.Lock()
	b.chainAt = time.Now()
	b.mu.Unlock()
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventChainStart, Name: b.name, Input: stringValue(inputs, inputKey)})
}

func (b *bridge) HandleChainEnd(ctx context.Context, outputs map[string]any) {
	b.pipeline.Emit(ctx, callback.Event{
		Type:     callback.EventChainEnd,
		Name:     b.name,
		Output:   stringValue(outputs, outputKey),
		Duration: b.since(&b.chainAt),
	})
}

func (b *bridge) HandleChainError(ctx context.Context, err error) {
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventChainError, Name: b.name, Err: err, Duration: b.since(&b.chainAt)})
}

func (b *bridge) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	b.mu.Lock()
	b.llmAt = time.Now()
	b.streamed = false
	b.mu.Unlock()
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventLLMStart, Name: b.model, Metadata: map[string]any{"messages": len(ms)}})
}

func (b *bridge) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	ev := callback.Event{Type: callback.EventLLMEnd, Name: b.model, Duration: b.since(&b.llmAt)}
	if res != nil && len(res.Choices) > 0 {
		ev.Output = res.Choices[0].Content
		ev.Metadata = map[string]any{"finish_reason": res.Choices[0].StopReason}
	}
	b.pipeline.Emit(ctx, ev)
}

func (b *bridge) HandleLLMError(ctx context.Context, err error) {
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventLLMError, Name: b.model, Err: err, Duration: b.since(&b.llmAt)})
}

func (b *bridge) HandleStreamingFunc(ctx context.Context, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	b.streamed = true
	b.mu.Unlock()
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventToken, Name: b.model, Token: string(chunk)})
}

func (b *bridge) HandleAgentAction(ctx context.Context, action schema.AgentAction) {
	b.mu.Lock()
	b.callID = action.ToolID
	b.toolName = action.Tool
	b.mu.Unlock()
	b.pipeline.Emit(ctx, callback.Event{
		Type:       callback.EventAgentAction,
		Name:       action.Tool,
		Input:      action.ToolInput,
		ToolCallID: action.ToolID,
	})
}

func (b *bridge) HandleAgentFinish(ctx context.Context, finish schema.AgentFinish) {
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventAgentFinish, Name: b.name, Output: stringValue(finish.ReturnValues, outputKey)})
}

func (b *bridge) HandleToolStart(ctx context.Context, input string) {
	b.mu.Lock()
	b.toolAt = time.Now()
	name, id := b.toolName, b.callID
	b.mu.Unlock()
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventToolStart, Name: name, Input: input, ToolCallID: id})
}

func (b *bridge) HandleToolEnd(ctx context.Context, output string) {
	name, id := b.currentCall()
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventToolEnd, Name: name, Output: output, ToolCallID: id, Duration: b.since(&b.toolAt)})
}

func (b *bridge) HandleToolError(ctx context.Context, err error) {
	name, id := b.currentCall()
	b.pipeline.Emit(ctx, callback.Event{Type: callback.EventToolError, Name: name, Err: err, ToolCallID: id, Duration: b.since(&b.toolAt)})
}

// currentCall returns the tool name and call id of the last agent action.
func (b *bridge) currentCall() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.toolName, b.callID
}

// didStream reports whether tokens arrived since the last model call started.
func (b *bridge) didStream() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streamed
}

func (b *bridge) since(t *time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.IsZero() {
		return 0
	}
	return time.Since(*t)
}

func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
