package server

import "github.com/hupe1980/agentexec/core"

// PredictionRequest is the body of POST /api/v1/prediction.
type PredictionRequest struct {
	Question string `json:"question"`
	// PromptValues binds template variables. An absent field and an empty
	// object are distinguished.
	PromptValues   map[string]string       `json:"promptValues"`
	History        []core.ChatHistoryEntry `json:"history"`
	SocketClientID string                  `json:"socketClientId"`
	SessionID      string                  `json:"sessionId"`
}

// PredictionResponse is returned on success.
type PredictionResponse struct {
	RunID     string         `json:"runId"`
	SessionID string         `json:"sessionId,omitempty"`
	Mode      string         `json:"mode"`
	Text      string         `json:"text,omitempty"`
	JSON      map[string]any `json:"json,omitempty"`
}

// ErrorResponse is returned on failure.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}
