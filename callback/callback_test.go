package callback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/stream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func TestPipeline_EmitInOrder(t *testing.T) {
	var order []string
	first := FuncObserver(func(_ context.Context, ev Event) { order = append(order, "first:"+string(ev.Type)) })
	second := FuncObserver(func(_ context.Context, ev Event) { order = append(order, "second:"+string(ev.Type)) })

	p := NewPipeline(first, second)
	p.Emit(context.Background(), Event{Type: EventChainStart})
	p.Emit(context.Background(), Event{Type: EventChainEnd})

	assert.Equal(t, []string{
		"first:chain.start", "second:chain.start",
		"first:chain.end", "second:chain.end",
	}, order)
}

func TestPipeline_FillsRunID(t *testing.T) {
	var got []string
	p := NewPipeline(FuncObserver(func(_ context.Context, ev Event) { got = append(got, ev.RunID) }))
	p.Emit(context.Background(), Event{Type: EventToken})
	p.Emit(context.Background(), Event{Type: EventToken, RunID: "explicit"})

	require.Len(t, got, 2)
	assert.Equal(t, p.RunID(), got[0])
	assert.NotEmpty(t, got[0])
	assert.Equal(t, "explicit", got[1])
}

func TestPipeline_Seal(t *testing.T) {
	count := 0
	p := NewPipeline(FuncObserver(func(context.Context, Event) { count++ }))
	p.Emit(context.Background(), Event{Type: EventToken})
	p.Seal()
	p.Emit(context.Background(), Event{Type: EventToken})

	assert.Equal(t, 1, count)
	assert.True(t, p.Sealed())
}

func TestPipeline_Nil(t *testing.T) {
	var p *Pipeline
	assert.NotPanics(t, func() {
		p.Emit(context.Background(), Event{Type: EventToken})
		p.Seal()
	})
	assert.Nil(t, p.Observers())
	assert.Empty(t, p.RunID())
}

func TestBuild_Order(t *testing.T) {
	logger := logging.NoOpLogger{}
	rec := stream.NewRecorder()
	ext := NewMetricsObserver(NewMetrics())

	p := Build(logger, nil, rec, ext)
	obs := p.Observers()
	require.Len(t, obs, 2)
	assert.IsType(t, &LoggingObserver{}, obs[0])
	assert.Same(t, ext, obs[1])

	target := &stream.Target{ChannelID: "c1"}
	p = Build(logger, target, rec, ext)
	obs = p.Observers()
	require.Len(t, obs, 3)
	assert.IsType(t, &LoggingObserver{}, obs[0])
	require.IsType(t, &StreamingObserver{}, obs[1])
	assert.Equal(t, *target, obs[1].(*StreamingObserver).Target())
	assert.Same(t, ext, obs[2])
}

func TestBuild_Idempotent(t *testing.T) {
	logger := logging.NoOpLogger{}
	rec := stream.NewRecorder()
	target := &stream.Target{ChannelID: "c1", SessionID: "s"}

	a := Build(logger, target, rec)
	b := Build(logger, target, rec)
	assert.Equal(t, a.Observers(), b.Observers())
}

func TestBuild_ObserversIsCopy(t *testing.T) {
	p := Build(nil, nil, nil)
	obs := p.Observers()
	obs[0] = nil
	assert.NotNil(t, p.Observers()[0])
}

func TestStreamingObserver_ForwardsTokens(t *testing.T) {
	rec := stream.NewRecorder()
	target := stream.Target{ChannelID: "c1", SessionID: "s1"}
	p := Build(nil, &target, rec)

	for _, tok := range []string{"He", "llo", "", "!"} {
		p.Emit(context.Background(), Event{Type: EventToken, Token: tok})
	}
	p.Emit(context.Background(), Event{Type: EventChainEnd, Output: "Hello!"})

	d := rec.Deliveries()
	require.Len(t, d, 3)
	for i, del := range d {
		assert.Equal(t, i, del.Chunk.Seq)
		assert.Equal(t, target, del.Target)
	}
	assert.Equal(t, "Hello!", rec.Text())
}

func TestStreamingObserver_SendFailureIsLogged(t *testing.T) {
	logger := &captureLogger{}
	failing := stream.ChannelFunc(func(context.Context, stream.Target, stream.Chunk) error {
		return stream.ErrUnknownChannel
	})
	o := NewStreamingObserver(stream.Target{ChannelID: "gone"}, failing, logger)

	assert.NotPanics(t, func() {
		o.Observe(context.Background(), Event{Type: EventToken, Token: "x"})
	})
	require.Len(t, logger.entries, 1)
	assert.Equal(t, "warn", logger.entries[0].level)
	assert.Equal(t, "stream.send.failed", logger.entries[0].msg)
}

func TestLoggingObserver_Levels(t *testing.T) {
	logger := &captureLogger{}
	o := NewLoggingObserver(logger)

	o.Observe(context.Background(), Event{Type: EventChainStart, RunID: "r", Input: "hi"})
	o.Observe(context.Background(), Event{Type: EventToken, RunID: "r", Token: "h"})
	o.Observe(context.Background(), Event{Type: EventToolError, RunID: "r", Name: "calc", Err: errors.New("boom")})
	o.Observe(context.Background(), Event{Type: EventChainEnd, RunID: "r", Output: "done"})

	require.Len(t, logger.entries, 4)
	assert.Equal(t, "info", logger.entries[0].level)
	assert.Equal(t, "chain.start", logger.entries[0].msg)
	assert.Equal(t, "debug", logger.entries[1].level)
	assert.Equal(t, "error", logger.entries[2].level)
	assert.Contains(t, logger.entries[2].args, "boom")
	assert.Equal(t, "info", logger.entries[3].level)
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.Observe(context.Background(), Event{Type: EventToken, Token: "a"})
	o.Observe(context.Background(), Event{Type: EventToken, Token: "b"})
	o.Observe(context.Background(), Event{Type: EventToolEnd, Name: "calc", Duration: 20 * time.Millisecond})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokensTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("token")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ToolDuration))

	m.ObserveRun("templated", time.Second, nil)
	m.ObserveRun("templated", time.Second, errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("templated", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("templated", "error")))
	assert.NotNil(t, m.Handler())
}

func TestTracingObserver_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	o := NewTracingObserver(func(opts *TracingOptions) { opts.TracerProvider = tp })
	p := NewPipeline(o)
	ctx := context.Background()

	p.Emit(ctx, Event{Type: EventChainStart, Name: "agent"})
	p.Emit(ctx, Event{Type: EventLLMStart, Name: "mock"})
	p.Emit(ctx, Event{Type: EventLLMEnd, Name: "mock"})
	p.Emit(ctx, Event{Type: EventToolStart, Name: "calc", ToolCallID: "fc1"})
	p.Emit(ctx, Event{Type: EventToolError, Name: "calc", ToolCallID: "fc1", Err: errors.New("boom")})
	p.Emit(ctx, Event{Type: EventChainEnd, Name: "agent"})

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	chain := byName[traceSpanChain]
	require.NotNil(t, chain)
	assert.Equal(t, codes.Ok, chain.Status().Code)

	tool := byName[traceSpanTool]
	require.NotNil(t, tool)
	assert.Equal(t, codes.Error, tool.Status().Code)
	assert.Equal(t, chain.SpanContext().SpanID(), tool.Parent().SpanID())
	assert.Equal(t, chain.SpanContext().SpanID(), byName[traceSpanLLM].Parent().SpanID())
}
