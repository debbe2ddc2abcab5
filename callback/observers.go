package callback

import (
	"context"
	"sync"

	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/stream"
)

// LoggingObserver writes every event to a structured logger. Tokens are
// logged at debug level, errors at error level, everything else at info.
type LoggingObserver struct {
	logger logging.Logger
}

// NewLoggingObserver creates a LoggingObserver.
func NewLoggingObserver(logger logging.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logging.OrNoOp(logger)}
}

// Observe implements Observer.
func (o *LoggingObserver) Observe(_ context.Context, ev Event) {
	args := []any{"run_id", ev.RunID}
	if ev.Name != "" {
		args = append(args, "name", ev.Name)
	}
	if ev.ToolCallID != "" {
		args = append(args, "fc_id", ev.ToolCallID)
	}
	if ev.Duration > 0 {
		args = append(args, "duration_ms", ev.Duration.Milliseconds())
	}

	switch {
	case ev.Type == EventToken:
		o.logger.Debug(string(ev.Type), append(args, "token", ev.Token)...)
	case ev.Type.IsError():
		o.logger.Error(string(ev.Type), append(args, "error", errString(ev.Err))...)
	case ev.Type == EventChainStart || ev.Type == EventLLMStart || ev.Type == EventToolStart || ev.Type == EventAgentAction:
		o.logger.Info(string(ev.Type), append(args, "input", ev.Input)...)
	default:
		o.logger.Info(string(ev.Type), append(args, "output", ev.Output)...)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// StreamingObserver forwards token events to a stream channel as soon as
// they arrive. Delivery failures are logged and never fail the invocation.
type StreamingObserver struct {
	target  stream.Target
	channel stream.Channel
	logger  logging.Logger

	mu  sync.Mutex
	seq int
}

// NewStreamingObserver creates a StreamingObserver for target.
func NewStreamingObserver(target stream.Target, channel stream.Channel, logger logging.Logger) *StreamingObserver {
	return &StreamingObserver{
		target:  target,
		channel: channel,
		logger:  logging.OrNoOp(logger),
	}
}

// Target returns the stream target.
func (o *StreamingObserver) Target() stream.Target { return o.target }

// Observe implements Observer.
func (o *StreamingObserver) Observe(ctx context.Context, ev Event) {
	if ev.Type != EventToken || ev.Token == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	chunk := stream.Chunk{Seq: o.seq, Text: ev.Token}
	o.seq++
	if err := o.channel.Send(ctx, o.target, chunk); err != nil {
		o.logger.Warn("stream.send.failed", "run_id", ev.RunID, "channel_id", o.target.ChannelID, "seq", chunk.Seq, "error", err)
	}
}
