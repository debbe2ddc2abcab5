package callback

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "agentexec.callback"

	traceSpanChain = "agentexec.chain"
	traceSpanLLM   = "agentexec.llm.generate"
	traceSpanTool  = "agentexec.tool.execute"

	traceAttrRunID    = "agentexec.run_id"
	traceAttrName     = "agentexec.name"
	traceAttrToolCall = "agentexec.tool_call_id"
	traceAttrStatus   = "agentexec.status"
)

// TracingOptions configures a TracingObserver.
type TracingOptions struct {
	// TracerProvider defaults to the global provider at observe time.
	TracerProvider trace.TracerProvider
}

type openSpan struct {
	ctx  context.Context
	span trace.Span
}

// TracingObserver turns chain, llm and tool events into OpenTelemetry spans.
// LLM and tool spans are children of the chain span of the same run.
type TracingObserver struct {
	provider trace.TracerProvider

	mu    sync.Mutex
	spans map[string]openSpan
}

// NewTracingObserver creates a TracingObserver.
func NewTracingObserver(optFns ...func(o *TracingOptions)) *TracingObserver {
	opts := TracingOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &TracingObserver{
		provider: opts.TracerProvider,
		spans:    make(map[string]openSpan),
	}
}

func (o *TracingObserver) tracer() trace.Tracer {
	if o.provider != nil {
		return o.provider.Tracer(traceScope)
	}
	return otel.Tracer(traceScope)
}

// Observe implements Observer.
func (o *TracingObserver) Observe(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventChainStart:
		o.start(ctx, "chain:"+ev.RunID, "", traceSpanChain, ev)
	case EventChainEnd, EventChainError:
		o.end("chain:"+ev.RunID, ev)
	case EventLLMStart:
		o.start(ctx, "llm:"+ev.RunID, "chain:"+ev.RunID, traceSpanLLM, ev)
	case EventLLMEnd, EventLLMError:
		o.end("llm:"+ev.RunID, ev)
	case EventToolStart:
		o.start(ctx, toolKey(ev), "chain:"+ev.RunID, traceSpanTool, ev)
	case EventToolEnd, EventToolError:
		o.end(toolKey(ev), ev)
	case EventAgentAction, EventAgentFinish:
		o.mu.Lock()
		s, ok := o.spans["chain:"+ev.RunID]
		o.mu.Unlock()
		if ok {
			s.span.AddEvent(string(ev.Type), trace.WithAttributes(attribute.String(traceAttrName, ev.Name)))
		}
	}
}

func toolKey(ev Event) string {
	if ev.ToolCallID != "" {
		return "tool:" + ev.RunID + ":" + ev.ToolCallID
	}
	return "tool:" + ev.RunID + ":" + ev.Name
}

func (o *TracingObserver) start(ctx context.Context, key, parentKey, spanName string, ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if parent, ok := o.spans[parentKey]; ok && parentKey != "" {
		ctx = parent.ctx
	}

	attrs := []attribute.KeyValue{attribute.String(traceAttrRunID, ev.RunID)}
	if ev.Name != "" {
		attrs = append(attrs, attribute.String(traceAttrName, ev.Name))
	}
	if ev.ToolCallID != "" {
		attrs = append(attrs, attribute.String(traceAttrToolCall, ev.ToolCallID))
	}

	spanCtx, span := o.tracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
	o.spans[key] = openSpan{ctx: spanCtx, span: span}
}

func (o *TracingObserver) end(key string, ev Event) {
	o.mu.Lock()
	s, ok := o.spans[key]
	delete(o.spans, key)
	o.mu.Unlock()
	if !ok {
		return
	}

	if ev.Type.IsError() {
		if ev.Err != nil {
			s.span.RecordError(ev.Err)
			s.span.SetStatus(codes.Error, ev.Err.Error())
		} else {
			s.span.SetStatus(codes.Error, string(ev.Type))
		}
		s.span.SetAttributes(attribute.String(traceAttrStatus, "error"))
	} else {
		s.span.SetStatus(codes.Ok, "")
		s.span.SetAttributes(attribute.String(traceAttrStatus, "success"))
	}
	s.span.End()
}
