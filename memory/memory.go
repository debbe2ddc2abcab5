package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentexec/core"
	"github.com/tmc/langchaingo/llms"
	lcmemory "github.com/tmc/langchaingo/memory"
	"github.com/tmc/langchaingo/schema"
)

// Kind distinguishes memories whose history lives in the process from those
// backed by an external store.
type Kind int

const (
	KindInProcess Kind = iota
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindInProcess:
		return "in_process"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// OutputMode selects the shape returned by Load.
type OutputMode int

const (
	// OutputFlattened renders the history into one "Human: ...\nAI: ..." string.
	OutputFlattened OutputMode = iota
	// OutputStructured returns the history as []llms.ChatMessage.
	OutputStructured
)

func (m OutputMode) String() string {
	if m == OutputStructured {
		return "structured"
	}
	return "flattened"
}

// Conversation is the memory contract used by agents and the executor.
type Conversation interface {
	Kind() Kind
	History(ctx context.Context) ([]core.Turn, error)
	SetHistory(ctx context.Context, turns []core.Turn) error
	SetOutputMode(mode OutputMode)
	OutputMode() OutputMode
	// Load returns the history in the current output mode.
	Load(ctx context.Context) (any, error)
	// Save appends one user/assistant exchange.
	Save(ctx context.Context, input, output string) error
}

// Options configures a Conversation.
type Options struct {
	MemoryKey   string
	HumanPrefix string
	AIPrefix    string
	OutputMode  OutputMode
	// Turns seeds an in-process history.
	Turns []core.Turn
}

func defaultOptions() Options {
	return Options{
		MemoryKey:   "history",
		HumanPrefix: "Human",
		AIPrefix:    "AI",
		OutputMode:  OutputFlattened,
	}
}

// Buffer is a Conversation on top of a langchaingo ConversationBuffer.
type Buffer struct {
	kind Kind

	mu  sync.Mutex
	buf *lcmemory.ConversationBuffer
}

var _ Conversation = (*Buffer)(nil)

// NewInProcess creates an in-process conversation memory.
func NewInProcess(optFns ...func(o *Options)) *Buffer {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	history := lcmemory.NewChatMessageHistory(
		lcmemory.WithPreviousMessages(TurnsToMessages(opts.Turns)),
	)
	return newBuffer(KindInProcess, history, opts)
}

// New creates a conversation memory of the given kind over any langchaingo
// chat message history.
func New(kind Kind, history schema.ChatMessageHistory, optFns ...func(o *Options)) *Buffer {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newBuffer(kind, history, opts)
}

func newBuffer(kind Kind, history schema.ChatMessageHistory, opts Options) *Buffer {
	buf := lcmemory.NewConversationBuffer(
		lcmemory.WithChatHistory(history),
		lcmemory.WithMemoryKey(opts.MemoryKey),
		lcmemory.WithHumanPrefix(opts.HumanPrefix),
		lcmemory.WithAIPrefix(opts.AIPrefix),
		lcmemory.WithInputKey("input"),
		lcmemory.WithOutputKey("output"),
		lcmemory.WithReturnMessages(opts.OutputMode == OutputStructured),
	)
	return &Buffer{kind: kind, buf: buf}
}

// Kind implements Conversation.
func (b *Buffer) Kind() Kind { return b.kind }

// MemoryKey is the variable name the history is loaded under.
func (b *Buffer) MemoryKey() string { return b.buf.MemoryKey }

// History implements Conversation.
func (b *Buffer) History(ctx context.Context) ([]core.Turn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs, err := b.buf.ChatHistory.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return MessagesToTurns(msgs), nil
}

// SetHistory implements Conversation. It replaces the stored history.
func (b *Buffer) SetHistory(ctx context.Context, turns []core.Turn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.buf.ChatHistory.SetMessages(ctx, TurnsToMessages(turns)); err != nil {
		return fmt.Errorf("set history: %w", err)
	}
	return nil
}

// SetOutputMode implements Conversation.
func (b *Buffer) SetOutputMode(mode OutputMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.ReturnMessages = mode == OutputStructured
}

// OutputMode implements Conversation.
func (b *Buffer) OutputMode() OutputMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.ReturnMessages {
		return OutputStructured
	}
	return OutputFlattened
}

// Load implements Conversation.
func (b *Buffer) Load(ctx context.Context) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	vars, err := b.buf.LoadMemoryVariables(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load memory variables: %w", err)
	}
	return vars[b.buf.MemoryKey], nil
}

// Save implements Conversation.
func (b *Buffer) Save(ctx context.Context, input, output string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.buf.SaveContext(ctx, map[string]any{"input": input}, map[string]any{"output": output})
	if err != nil {
		return fmt.Errorf("save context: %w", err)
	}
	return nil
}

// Clear removes all stored messages.
func (b *Buffer) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Clear(ctx)
}

// TurnsToMessages converts turns to langchaingo chat messages.
func TurnsToMessages(turns []core.Turn) []llms.ChatMessage {
	msgs := make([]llms.ChatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, turnToMessage(t))
	}
	return msgs
}

func turnToMessage(t core.Turn) llms.ChatMessage {
	switch t.Role {
	case core.RoleAssistant:
		return llms.AIChatMessage{Content: t.Text}
	case core.RoleSystem:
		return llms.SystemChatMessage{Content: t.Text}
	default:
		return llms.HumanChatMessage{Content: t.Text}
	}
}

// MessagesToTurns converts langchaingo chat messages to turns. Function and
// tool messages are skipped.
func MessagesToTurns(msgs []llms.ChatMessage) []core.Turn {
	turns := make([]core.Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.GetType() {
		case llms.ChatMessageTypeHuman, llms.ChatMessageTypeGeneric:
			turns = append(turns, core.UserTurn(m.GetContent()))
		case llms.ChatMessageTypeAI:
			turns = append(turns, core.AssistantTurn(m.GetContent()))
		case llms.ChatMessageTypeSystem:
			turns = append(turns, core.Turn{Role: core.RoleSystem, Text: m.GetContent()})
		}
	}
	return turns
}
