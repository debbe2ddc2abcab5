package langchain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/hupe1980/agentexec/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

// scriptedLLM replays choices in order and streams their content rune by rune.
type scriptedLLM struct {
	mu      sync.Mutex
	choices []*llms.ContentChoice
	calls   [][]llms.MessageContent
	err     error
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, msgs)
	if s.err != nil {
		s.mu.Unlock()
		return nil, s.err
	}
	if len(s.choices) == 0 {
		s.mu.Unlock()
		return nil, errors.New("script exhausted")
	}
	choice := s.choices[0]
	s.choices = s.choices[1:]
	s.mu.Unlock()

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, r := range choice.Content {
			if err := opts.StreamingFunc(ctx, []byte(string(r))); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func (s *scriptedLLM) Call(ctx context.Context, p string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, p, options...)
}

func (s *scriptedLLM) requests() [][]llms.MessageContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]llms.MessageContent(nil), s.calls...)
}

type recorder struct {
	mu     sync.Mutex
	events []callback.Event
}

func (r *recorder) Observe(_ context.Context, ev callback.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) tokens() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sb strings.Builder
	for _, ev := range r.events {
		if ev.Type == callback.EventToken {
			sb.WriteString(ev.Token)
		}
	}
	return sb.String()
}

func (r *recorder) count(t callback.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) first(t callback.EventType) callback.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == t {
			return ev
		}
	}
	return callback.Event{}
}

func textPart(t *testing.T, mc llms.MessageContent) string {
	t.Helper()
	require.Len(t, mc.Parts, 1)
	tc, ok := mc.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return tc.Text
}

func lookupTool() tool.Tool {
	return tool.NewFunctionTool("lookup", "Looks up a fact", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"q": map[string]any{"type": "string"},
		},
		"required": []string{"q"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"fact": "answer to " + args["q"].(string)}, nil
	})
}

func TestNewAgent_NoModel(t *testing.T) {
	_, err := NewAgent(nil, prompt.Template{}, nil)
	assert.ErrorIs(t, err, agent.ErrNoModel)
}

func TestAgent_InvokeStreamsAndSaves(t *testing.T) {
	llm := &scriptedLLM{choices: []*llms.ContentChoice{{Content: "Hi {there}"}}}
	a, err := NewAgent(llm, prompt.Template{Preamble: "Be kind."}, nil)
	require.NoError(t, err)

	rec := &recorder{}
	out, err := a.Invoke(context.Background(), "hello", callback.NewPipeline(rec))
	require.NoError(t, err)
	assert.Equal(t, "Hi {there}", out)
	assert.Equal(t, out, rec.tokens())
	assert.Equal(t, 1, rec.count(callback.EventChainStart))
	assert.Equal(t, 1, rec.count(callback.EventChainEnd))
	assert.Equal(t, 1, rec.count(callback.EventAgentFinish))
	assert.Equal(t, "hello", rec.first(callback.EventChainStart).Input)

	reqs := llm.requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0], 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, reqs[0][0].Role)
	assert.Equal(t, "Be kind.", textPart(t, reqs[0][0]))
	assert.Equal(t, "hello", textPart(t, reqs[0][1]))

	turns, err := a.Memory().History(context.Background())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Hi {there}", turns[1].Text)
}

func TestAgent_NonStreamingModelEmitsSingleToken(t *testing.T) {
	a, err := NewAgent(fake.NewFakeLLM([]string{"canned"}), prompt.Template{}, nil)
	require.NoError(t, err)

	rec := &recorder{}
	out, err := a.Invoke(context.Background(), "q", callback.NewPipeline(rec))
	require.NoError(t, err)
	assert.Equal(t, "canned", out)
	assert.Equal(t, 1, rec.count(callback.EventToken))
	assert.Equal(t, "canned", rec.tokens())
}

func TestAgent_ToolCalls(t *testing.T) {
	llm := &scriptedLLM{choices: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{{
			ID:           "call-1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "lookup", Arguments: `{"q":"life"}`},
		}}},
		{Content: "42"},
	}}
	a, err := NewAgent(llm, prompt.Template{}, []tool.Tool{lookupTool()})
	require.NoError(t, err)

	rec := &recorder{}
	out, err := a.Invoke(context.Background(), "what is it?", callback.NewPipeline(rec))
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, "42", rec.tokens())

	action := rec.first(callback.EventAgentAction)
	assert.Equal(t, "lookup", action.Name)
	assert.Equal(t, "call-1", action.ToolCallID)

	end := rec.first(callback.EventToolEnd)
	assert.Equal(t, "call-1", end.ToolCallID)
	assert.JSONEq(t, `{"fact":"answer to life"}`, end.Output)

	reqs := llm.requests()
	require.Len(t, reqs, 2)
	second := reqs[1]
	last := second[len(second)-1]
	assert.Equal(t, llms.ChatMessageTypeTool, last.Role)
	resp, ok := last.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call-1", resp.ToolCallID)
	assert.JSONEq(t, `{"fact":"answer to life"}`, resp.Content)
}

func TestAgent_TextBeforeToolCallStaysInAnswer(t *testing.T) {
	llm := &scriptedLLM{choices: []*llms.ContentChoice{
		{Content: "Checking. ", ToolCalls: []llms.ToolCall{{
			ID:           "call-1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "lookup", Arguments: `{"q":"life"}`},
		}}},
		{Content: "42"},
	}}
	a, err := NewAgent(llm, prompt.Template{}, []tool.Tool{lookupTool()})
	require.NoError(t, err)

	rec := &recorder{}
	out, err := a.Invoke(context.Background(), "what is it?", callback.NewPipeline(rec))
	require.NoError(t, err)
	assert.Equal(t, "Checking. 42", out)
	assert.Equal(t, out, rec.tokens())
}

func TestAgent_ToolValidationBecomesObservation(t *testing.T) {
	llm := &scriptedLLM{choices: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{{
			ID:           "bad",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "lookup", Arguments: `{}`},
		}}},
		{Content: "sorry"},
	}}
	a, err := NewAgent(llm, prompt.Template{}, []tool.Tool{lookupTool()})
	require.NoError(t, err)

	rec := &recorder{}
	out, err := a.Invoke(context.Background(), "x", callback.NewPipeline(rec))
	require.NoError(t, err)
	assert.Equal(t, "sorry", out)
	assert.Equal(t, 1, rec.count(callback.EventToolError))

	second := llm.requests()[1]
	resp := second[len(second)-1].Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, resp.Content, tool.CodeValidation)
}

func TestAgent_InvokeWithTemplate(t *testing.T) {
	tmpl, err := prompt.NewTemplate("Speak as {{ .persona }}.", "Summarize {topic}")
	require.NoError(t, err)

	llm := &scriptedLLM{choices: []*llms.ContentChoice{{Content: "summary of {x}"}}}
	a, err := NewAgent(llm, tmpl, nil)
	require.NoError(t, err)

	out, err := a.InvokeWithTemplate(context.Background(), map[string]string{"topic": "{braces}", "persona": "a pirate"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "summary of {x}", out["text"])
	assert.Equal(t, "summary of {x}", out["output"])

	req := llm.requests()[0]
	assert.Equal(t, "Speak as a pirate.", textPart(t, req[0]))
	assert.Equal(t, "Summarize {braces}", textPart(t, req[len(req)-1]))
}

func TestAgent_StructuredHistory(t *testing.T) {
	mem := memory.NewInProcess(func(o *memory.Options) {
		o.OutputMode = memory.OutputStructured
	})
	require.NoError(t, mem.Save(context.Background(), "earlier", "reply"))

	llm := &scriptedLLM{choices: []*llms.ContentChoice{{Content: "ok"}}}
	a, err := NewAgent(llm, prompt.Template{}, nil, func(o *Options) { o.Memory = mem })
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), "now", nil)
	require.NoError(t, err)

	req := llm.requests()[0]
	require.Len(t, req, 3)
	assert.Equal(t, llms.ChatMessageTypeHuman, req[0].Role)
	assert.Equal(t, "earlier", textPart(t, req[0]))
	assert.Equal(t, llms.ChatMessageTypeAI, req[1].Role)
	assert.Equal(t, "now", textPart(t, req[2]))
}

func TestAgent_ErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	a, err := NewAgent(&scriptedLLM{err: boom}, prompt.Template{}, nil)
	require.NoError(t, err)

	rec := &recorder{}
	_, err = a.Invoke(context.Background(), "x", callback.NewPipeline(rec))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rec.count(callback.EventLLMError))
	assert.Equal(t, 1, rec.count(callback.EventChainError))
}

func TestAgent_MaxIterations(t *testing.T) {
	call := func(id string) *llms.ContentChoice {
		return &llms.ContentChoice{ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "lookup", Arguments: `{"q":"again"}`},
		}}}
	}
	llm := &scriptedLLM{choices: []*llms.ContentChoice{call("1"), call("2")}}
	a, err := NewAgent(llm, prompt.Template{}, []tool.Tool{lookupTool()}, func(o *Options) { o.MaxIterations = 2 })
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), "loop", nil)
	assert.ErrorIs(t, err, agent.ErrMaxIterations)
}
