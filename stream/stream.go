package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrUnknownChannel is returned by Send when no client is connected under the
// target's channel id.
var ErrUnknownChannel = errors.New("unknown stream channel")

// Target addresses the live channel of a single invocation.
type Target struct {
	ChannelID string `json:"channelId"`
	SessionID string `json:"sessionId,omitempty"`
}

// Chunk is one piece of generated text. Seq starts at 0 and increases by one
// per chunk within an invocation.
type Chunk struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

// Channel pushes chunks to a target.
type Channel interface {
	Send(ctx context.Context, target Target, chunk Chunk) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, target Target, chunk Chunk) error

// Send implements Channel.
func (f ChannelFunc) Send(ctx context.Context, target Target, chunk Chunk) error {
	return f(ctx, target, chunk)
}

// Delivery is a chunk recorded together with its target.
type Delivery struct {
	Target Target
	Chunk  Chunk
}

// Recorder is an in-memory Channel that keeps every delivery.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Send implements Channel.
func (r *Recorder) Send(_ context.Context, target Target, chunk Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Target: target, Chunk: chunk})
	return nil
}

// Deliveries returns a copy of all recorded deliveries in arrival order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Text concatenates the recorded chunk texts in arrival order.
func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var text string
	for _, d := range r.deliveries {
		text += d.Chunk.Text
	}
	return text
}

// WriterChannel writes chunk text to an io.Writer, ignoring the target.
type WriterChannel struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterChannel creates a WriterChannel writing to w.
func NewWriterChannel(w io.Writer) *WriterChannel { return &WriterChannel{w: w} }

// Send implements Channel.
func (c *WriterChannel) Send(_ context.Context, _ Target, chunk Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, chunk.Text); err != nil {
		return fmt.Errorf("write chunk %d: %w", chunk.Seq, err)
	}
	return nil
}
