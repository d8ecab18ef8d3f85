// internal/models/conversation.go
package models

import (
	"encoding/json"
	"time"
)

// ToolUse is one agent tool invocation reported alongside an answer.
type ToolUse struct {
	Tool   string          `json:"tool"`
	Input  json.RawMessage `json:"input,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// AskResponse is the backend reply to a question. Commands stay raw so each
// one can be decoded and rejected on its own.
type AskResponse struct {
	Answer      string            `json:"answer"`
	ToolUses    []ToolUse         `json:"tool_uses"`
	MapCommands []json.RawMessage `json:"map_commands"`
	Tokens      int               `json:"tokens"`
}

type ConversationTurn struct {
	ID        string            `json:"id"`
	Question  string            `json:"question"`
	Answer    string            `json:"answer,omitempty"`
	ToolUses  []ToolUse         `json:"tool_uses,omitempty"`
	Commands  []json.RawMessage `json:"commands,omitempty"`
	Tokens    int               `json:"tokens,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
