// Package model defines data structures for the support assistant.
package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one role-tagged unit of conversation context.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationPayload is the structured raw response recorded for every
// generated reply. It is persisted verbatim as the message's llm_response
// column and echoed back to the caller.
type GenerationPayload struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	MessageID string `json:"message_id"`
}

// Encode serializes the payload to its stored JSON form.
func (p GenerationPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeGenerationPayload parses a stored raw response. The second return
// value is false when the payload is not structured JSON; callers fall back
// to the raw text in that case.
func DecodeGenerationPayload(raw []byte) (GenerationPayload, bool) {
	var p GenerationPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Response == "" {
		return GenerationPayload{}, false
	}
	return p, true
}

// Message is one durable record pairing a user turn with its generated reply.
type Message struct {
	MessageID       string    `json:"message_id"`
	ConversationID  string    `json:"conversation_id"`
	UserText        string    `json:"user_text"`
	RawResponse     []byte    `json:"llm_response"`
	ModelUsed       string    `json:"model_used"`
	UserTokens      int       `json:"user_tokens"`
	AssistantTokens int       `json:"assistant_tokens"`
	TotalTokens     int       `json:"total_tokens"`
	CreatedAt       time.Time `json:"created_at"`
}

// Reply is the result of one completed chat turn.
type Reply struct {
	Payload   GenerationPayload
	SessionID string
}

// ChatRequest is the inbound body for POST /api/v1/chat.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse is the outbound body for a successful chat turn.
type ChatResponse struct {
	Reply     GenerationPayload `json:"reply"`
	SessionID string            `json:"sessionId"`
}
