package callback

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/agentexec/core"
	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/stream"
)

// Observer receives pipeline events. Observe must not block for long; it runs
// on the agent's goroutine.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// FuncObserver adapts a function to Observer.
type FuncObserver func(ctx context.Context, ev Event)

// Observe implements Observer.
func (f FuncObserver) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Pipeline fans events out to an ordered list of observers. A Pipeline
// belongs to one invocation; once sealed further events are dropped.
// A nil *Pipeline is valid and drops every event.
type Pipeline struct {
	runID     string
	observers []Observer
	sealed    atomic.Bool
}

// NewPipeline creates a pipeline delivering to observers in the given order.
func NewPipeline(observers ...Observer) *Pipeline {
	return &Pipeline{
		runID:     core.NewID(),
		observers: append([]Observer(nil), observers...),
	}
}

// Build assembles the invocation pipeline: logging observer first, streaming
// observer second when target is non-nil, then external observers in order.
func Build(logger logging.Logger, target *stream.Target, channel stream.Channel, external ...Observer) *Pipeline {
	logger = logging.OrNoOp(logger)

	observers := make([]Observer, 0, 2+len(external))
	observers = append(observers, NewLoggingObserver(logger))
	if target != nil && channel != nil {
		observers = append(observers, NewStreamingObserver(*target, channel, logger))
	}
	for _, o := range external {
		if o != nil {
			observers = append(observers, o)
		}
	}
	return NewPipeline(observers...)
}

// RunID identifies the invocation this pipeline belongs to.
func (p *Pipeline) RunID() string {
	if p == nil {
		return ""
	}
	return p.runID
}

// Emit delivers ev to every observer in order. RunID is filled in when empty.
func (p *Pipeline) Emit(ctx context.Context, ev Event) {
	if p == nil || p.sealed.Load() {
		return
	}
	if ev.RunID == "" {
		ev.RunID = p.runID
	}
	for _, o := range p.observers {
		o.Observe(ctx, ev)
	}
}

// Observers returns a copy of the observer list.
func (p *Pipeline) Observers() []Observer {
	if p == nil {
		return nil
	}
	return append([]Observer(nil), p.observers...)
}

// Seal stops delivery. It is called when the invocation returns.
func (p *Pipeline) Seal() {
	if p != nil {
		p.sealed.Store(true)
	}
}

// Sealed reports whether Seal was called.
func (p *Pipeline) Sealed() bool {
	return p != nil && p.sealed.Load()
}
