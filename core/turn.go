package core

import "fmt"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry of a conversation history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserTurn returns a user authored turn.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// AssistantTurn returns an assistant authored turn.
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// Content converts the turn into a single text content.
func (t Turn) Content() Content { return NewTextContent(string(t.Role), t.Text) }

// ChatHistoryEntry is the wire shape used by prediction clients to pass a
// request scoped history: {"type": "userMessage"|"apiMessage", "message": "..."}.
type ChatHistoryEntry struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	chatHistoryUser = "userMessage"
	chatHistoryAPI  = "apiMessage"
)

// TurnsFromChatHistory maps wire entries onto turns. Unknown entry types are
// rejected so that a malformed history never reaches the agent silently.
func TurnsFromChatHistory(entries []ChatHistoryEntry) ([]Turn, error) {
	turns := make([]Turn, 0, len(entries))
	for i, e := range entries {
		switch e.Type {
		case chatHistoryUser:
			turns = append(turns, UserTurn(e.Message))
		case chatHistoryAPI:
			turns = append(turns, AssistantTurn(e.Message))
		default:
			return nil, fmt.Errorf("chat history entry %d: unknown type %q", i, e.Type)
		}
	}
	return turns, nil
}
