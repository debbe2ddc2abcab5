package executor

import (
	"context"
	"time"

	"github.com/hupe1980/agentexec/agent"
	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/core"
	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/hupe1980/agentexec/stream"
)

// Options configures an Executor.
type Options struct {
	Logger logging.Logger
	// Channel receives streamed tokens for requests that carry a Target.
	Channel stream.Channel
	// Observers are appended after the built-in observers, in order.
	Observers []callback.Observer
	Metrics   *callback.Metrics
}

// Request is one prediction request.
type Request struct {
	Input        string
	PromptValues prompt.Values
	// Target enables streaming when set and a Channel is configured.
	Target *stream.Target
	// History replaces the memory of an in-process capability when non-nil.
	// A capability without memory sees it for the duration of the run.
	History []core.Turn
}

// Response is the normalized result of a run.
type Response struct {
	RunID string
	Mode  prompt.Mode
	// Text is set for free-form runs and for templated runs whose result
	// carries a text field.
	Text string
	// Structured is the full templated result when it has no text field.
	Structured map[string]any
}

// Value returns the externally visible result.
func (r *Response) Value() any {
	if r.Structured != nil {
		return r.Structured
	}
	return r.Text
}

// Executor runs requests against one capability.
type Executor struct {
	cap       agent.Capability
	logger    logging.Logger
	channel   stream.Channel
	observers []callback.Observer
	metrics   *callback.Metrics
}

// New creates an Executor.
func New(capability agent.Capability, optFns ...func(o *Options)) (*Executor, error) {
	if capability == nil {
		return nil, ErrNilCapability
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	observers := append([]callback.Observer(nil), opts.Observers...)
	if opts.Metrics != nil {
		observers = append(observers, callback.NewMetricsObserver(opts.Metrics))
	}

	return &Executor{
		cap:       capability,
		logger:    logging.OrNoOp(opts.Logger),
		channel:   opts.Channel,
		observers: observers,
		metrics:   opts.Metrics,
	}, nil
}

// Capability returns the capability driven by the executor.
func (e *Executor) Capability() agent.Capability { return e.cap }

// Run executes one request.
func (e *Executor) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	mem := e.cap.Memory()
	if req.History != nil && mem == nil {
		// A capability without memory gets a scratch buffer for this run only.
		mem = memory.NewInProcess()
		e.cap.SetMemory(mem)
		defer e.cap.SetMemory(nil)
	}
	if req.History != nil && mem != nil && mem.Kind() == memory.KindInProcess {
		if err := mem.SetHistory(ctx, req.History); err != nil {
			return nil, err
		}
	}
	if mem != nil {
		mem.SetOutputMode(memory.OutputStructured)
	}

	var channel stream.Channel
	if req.Target != nil {
		channel = e.channel
	}
	pipeline := callback.Build(e.logger, req.Target, channel, e.observers...)
	defer pipeline.Seal()

	tmpl := e.cap.Template()
	res := prompt.Resolve(tmpl.Variables, req.PromptValues, req.Input)

	e.logger.Debug("executor.run.start",
		"run_id", pipeline.RunID(),
		"mode", res.Mode.String(),
		"streaming", channel != nil,
	)

	resp, err := e.dispatch(ctx, req, res, pipeline)
	if e.metrics != nil {
		e.metrics.ObserveRun(res.Mode.String(), time.Since(start), err)
	}
	if err != nil {
		e.logger.Error("executor.run.error", "run_id", pipeline.RunID(), "mode", res.Mode.String(), "error", err.Error())
		return nil, err
	}

	e.logger.Info("executor.result",
		"run_id", resp.RunID,
		"mode", resp.Mode.String(),
		"result", resp.Value(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (e *Executor) dispatch(ctx context.Context, req Request, res prompt.Resolution, pipeline *callback.Pipeline) (*Response, error) {
	resp := &Response{RunID: pipeline.RunID(), Mode: res.Mode}

	switch res.Mode {
	case prompt.ModeError:
		return nil, &MissingVariablesError{Missing: res.Missing}
	case prompt.ModeTemplated:
		out, err := e.cap.InvokeWithTemplate(ctx, res.Bound, pipeline)
		if err != nil {
			return nil, err
		}
		if text, ok := out["text"].(string); ok {
			resp.Text = prompt.FormatResponse(text)
		} else {
			resp.Structured = out
		}
		return resp, nil
	default:
		out, err := e.cap.Invoke(ctx, req.Input, pipeline)
		if err != nil {
			return nil, err
		}
		resp.Text = out
		return resp, nil
	}
}
