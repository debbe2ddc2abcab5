package callback

import "time"

// EventType identifies a lifecycle point reported by an agent.
type EventType string

const (
	EventChainStart  EventType = "chain.start"
	EventChainEnd    EventType = "chain.end"
	EventChainError  EventType = "chain.error"
	EventLLMStart    EventType = "llm.start"
	EventLLMEnd      EventType = "llm.end"
	EventLLMError    EventType = "llm.error"
	EventToken       EventType = "token"
	EventToolStart   EventType = "tool.start"
	EventToolEnd     EventType = "tool.end"
	EventToolError   EventType = "tool.error"
	EventAgentAction EventType = "agent.action"
	EventAgentFinish EventType = "agent.finish"
)

// IsError reports whether t is one of the error events.
func (t EventType) IsError() bool {
	return t == EventChainError || t == EventLLMError || t == EventToolError
}

// Event is a single lifecycle notification. Only the fields relevant to the
// event type are set.
type Event struct {
	Type  EventType
	RunID string
	// Name is the agent, model or tool the event refers to.
	Name   string
	Input  string
	Output string
	// Token is the generated text fragment of an EventToken.
	Token string
	// ToolCallID correlates tool start/end/error and agent action events.
	ToolCallID string
	Err        error
	Duration   time.Duration
	Metadata   map[string]any
}
