package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/core"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/model"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/hupe1980/agentexec/stream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	lcmemory "github.com/tmc/langchaingo/memory"
)

type mockCapability struct {
	mock.Mock
	tmpl prompt.Template
	mem  memory.Conversation
}

func (m *mockCapability) Invoke(ctx context.Context, input string, cb *callback.Pipeline) (string, error) {
	args := m.Called(ctx, input, cb)
	return args.String(0), args.Error(1)
}

func (m *mockCapability) InvokeWithTemplate(ctx context.Context, values map[string]string, cb *callback.Pipeline) (map[string]any, error) {
	args := m.Called(ctx, values, cb)
	out, _ := args.Get(0).(map[string]any)
	return out, args.Error(1)
}

func (m *mockCapability) Template() prompt.Template { return m.tmpl }

func (m *mockCapability) Memory() memory.Conversation { return m.mem }

func (m *mockCapability) SetMemory(c memory.Conversation) { m.mem = c }

func newMockCapability(vars ...string) *mockCapability {
	return &mockCapability{
		tmpl: prompt.Template{Variables: vars},
		mem:  memory.NewInProcess(),
	}
}

func newExecutor(t *testing.T, c agent.Capability, optFns ...func(o *Options)) *Executor {
	t.Helper()
	e, err := New(c, optFns...)
	require.NoError(t, err)
	return e
}

func TestNew_NilCapability(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilCapability)
}

func TestRun_FreeFormWithoutValues(t *testing.T) {
	c := newMockCapability("topic")
	c.On("Invoke", mock.Anything, "Tell me about cats", mock.Anything).Return("Cats are great", nil).Once()

	resp, err := newExecutor(t, c).Run(context.Background(), Request{
		Input:        "Tell me about cats",
		PromptValues: prompt.Values{},
	})
	require.NoError(t, err)
	assert.Equal(t, prompt.ModeFreeForm, resp.Mode)
	assert.Equal(t, "Cats are great", resp.Value())
	c.AssertExpectations(t)
	c.AssertNotCalled(t, "InvokeWithTemplate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_FreeFormResultIsNotReformatted(t *testing.T) {
	c := newMockCapability()
	c.On("Invoke", mock.Anything, "x", mock.Anything).Return("raw {{kept}}", nil)

	resp, err := newExecutor(t, c).Run(context.Background(), Request{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "raw {{kept}}", resp.Text)
}

func TestRun_SingleMissingBindsInput(t *testing.T) {
	c := newMockCapability("topic", "tone")
	c.On("InvokeWithTemplate", mock.Anything, map[string]string{"topic": "cats", "tone": "playful please"}, mock.Anything).
		Return(map[string]any{"text": "Meow {{ok}}"}, nil).Once()

	values := prompt.Values{"topic": "cats"}
	resp, err := newExecutor(t, c).Run(context.Background(), Request{
		Input:        "playful please",
		PromptValues: values,
	})
	require.NoError(t, err)
	assert.Equal(t, prompt.ModeTemplated, resp.Mode)
	assert.Equal(t, "Meow {{ok}}", resp.Text)
	assert.Equal(t, prompt.Values{"topic": "cats"}, values)
	c.AssertExpectations(t)
}

func TestRun_MissingVariables(t *testing.T) {
	c := newMockCapability("topic", "tone", "length")

	_, err := newExecutor(t, c).Run(context.Background(), Request{
		Input:        "anything",
		PromptValues: prompt.Values{},
	})
	var missing *MissingVariablesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"topic", "tone", "length"}, missing.Missing)
	assert.Equal(t, "missing prompt values: topic, tone, length", err.Error())
	c.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "InvokeWithTemplate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_StreamingMatchesResult(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.Enqueue(core.NewTextContent("", "Streaming works {really}"))
	a, err := agent.NewFunctionAgent("streamer", llm, prompt.Template{})
	require.NoError(t, err)

	rec := stream.NewRecorder()
	target := &stream.Target{ChannelID: "client-1", SessionID: "s-1"}
	resp, err := newExecutor(t, a, func(o *Options) { o.Channel = rec }).Run(context.Background(), Request{
		Input:  "go",
		Target: target,
	})
	require.NoError(t, err)
	assert.Equal(t, "Streaming works {really}", resp.Text)
	assert.Equal(t, resp.Text, rec.Text())

	deliveries := rec.Deliveries()
	require.NotEmpty(t, deliveries)
	for i, d := range deliveries {
		assert.Equal(t, *target, d.Target)
		assert.Equal(t, i, d.Chunk.Seq)
	}
}

func TestRun_NoChannelMeansNoStreaming(t *testing.T) {
	c := newMockCapability()
	c.On("Invoke", mock.Anything, "x", mock.MatchedBy(func(p *callback.Pipeline) bool {
		for _, o := range p.Observers() {
			if _, ok := o.(*callback.StreamingObserver); ok {
				return false
			}
		}
		return true
	})).Return("ok", nil)

	_, err := newExecutor(t, c).Run(context.Background(), Request{Input: "x", Target: &stream.Target{ChannelID: "c"}})
	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestRun_AllBound(t *testing.T) {
	c := newMockCapability("topic", "tone")
	bound := map[string]string{"topic": "dogs", "tone": "dry"}
	c.On("InvokeWithTemplate", mock.Anything, bound, mock.Anything).
		Return(map[string]any{"text": "Dogs."}, nil).Once()

	resp, err := newExecutor(t, c).Run(context.Background(), Request{
		Input:        "ignored",
		PromptValues: prompt.Values{"topic": "dogs", "tone": "dry"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dogs.", resp.Value())
	c.AssertExpectations(t)
}

func TestRun_TemplatedWithoutTextReturnsStructured(t *testing.T) {
	c := newMockCapability("topic")
	out := map[string]any{"answer": 42}
	c.On("InvokeWithTemplate", mock.Anything, mock.Anything, mock.Anything).Return(out, nil)

	resp, err := newExecutor(t, c).Run(context.Background(), Request{PromptValues: prompt.Values{"topic": "x"}})
	require.NoError(t, err)
	assert.Equal(t, out, resp.Value())
	assert.Empty(t, resp.Text)
}

func TestRun_TemplatedTextKeepsBraces(t *testing.T) {
	c := newMockCapability("topic")
	c.On("InvokeWithTemplate", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]any{"text": `{"a":{"b":1}}`}, nil).Once()

	resp, err := newExecutor(t, c).Run(context.Background(), Request{PromptValues: prompt.Values{"topic": "json"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":1}}`, resp.Value())
	c.AssertExpectations(t)
}

func TestRun_FreeFormPassesRawInputThrough(t *testing.T) {
	c := newMockCapability()
	c.On("Invoke", mock.Anything, "say {{name}}", mock.Anything).Return("hi", nil).Once()

	resp, err := newExecutor(t, c).Run(context.Background(), Request{
		Input:        "say {{name}}",
		PromptValues: prompt.Values{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, prompt.ModeFreeForm, resp.Mode)
	c.AssertExpectations(t)
}

func TestRun_HistoryReplacesInProcessMemory(t *testing.T) {
	c := newMockCapability()
	c.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	history := []core.Turn{core.UserTurn("hi"), core.AssistantTurn("hello")}
	_, err := newExecutor(t, c).Run(context.Background(), Request{Input: "x", History: history})
	require.NoError(t, err)

	turns, err := c.mem.History(context.Background())
	require.NoError(t, err)
	assert.Equal(t, history, turns)
	assert.Equal(t, memory.OutputStructured, c.mem.OutputMode())
}

func TestRun_HistoryWithoutMemoryIsScopedToRun(t *testing.T) {
	ctx := context.Background()
	c := newMockCapability()
	c.mem = nil

	history := []core.Turn{core.UserTurn("hi"), core.AssistantTurn("hello")}
	var seen []core.Turn
	c.On("Invoke", mock.Anything, "x", mock.Anything).Run(func(mock.Arguments) {
		require.NotNil(t, c.mem)
		turns, err := c.mem.History(ctx)
		require.NoError(t, err)
		seen = turns
	}).Return("ok", nil)

	_, err := newExecutor(t, c).Run(ctx, Request{Input: "x", History: history})
	require.NoError(t, err)
	assert.Equal(t, history, seen)
	assert.Nil(t, c.mem)
}

func TestRun_HistoryLeavesExternalMemory(t *testing.T) {
	ctx := context.Background()
	ext := memory.New(memory.KindExternal, lcmemory.NewChatMessageHistory())
	require.NoError(t, ext.Save(ctx, "persisted", "answer"))

	c := newMockCapability()
	c.mem = ext
	c.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	_, err := newExecutor(t, c).Run(ctx, Request{Input: "x", History: []core.Turn{core.UserTurn("override")}})
	require.NoError(t, err)

	turns, err := ext.History(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "persisted", turns[0].Text)
	assert.Equal(t, memory.OutputStructured, ext.OutputMode())
}

func TestRun_CapabilityErrorUnchanged(t *testing.T) {
	boom := errors.New("model unavailable")
	c := newMockCapability()
	c.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return("", boom)

	_, err := newExecutor(t, c).Run(context.Background(), Request{Input: "x"})
	assert.Same(t, boom, err)
}

func TestRun_PipelineSealedAfterReturn(t *testing.T) {
	var captured *callback.Pipeline
	c := newMockCapability()
	c.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(*callback.Pipeline)
			assert.False(t, captured.Sealed())
		}).
		Return("ok", nil)

	_, err := newExecutor(t, c).Run(context.Background(), Request{Input: "x"})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.True(t, captured.Sealed())
}

func TestRun_ExternalObserversAndMetrics(t *testing.T) {
	var seen []callback.EventType
	obs := callback.FuncObserver(func(_ context.Context, ev callback.Event) { seen = append(seen, ev.Type) })
	metrics := callback.NewMetrics()

	c := newMockCapability()
	c.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			p := args.Get(2).(*callback.Pipeline)
			p.Emit(context.Background(), callback.Event{Type: callback.EventChainStart})
		}).
		Return("ok", nil)

	e := newExecutor(t, c, func(o *Options) {
		o.Observers = []callback.Observer{obs}
		o.Metrics = metrics
	})
	_, err := e.Run(context.Background(), Request{Input: "x"})
	require.NoError(t, err)

	assert.Equal(t, []callback.EventType{callback.EventChainStart}, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("free_form", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTotal.WithLabelValues(string(callback.EventChainStart))))
}
