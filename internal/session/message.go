package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// Tokens is nil until known: estimated for user turns at send time,
	// reported by the provider for assistant turns.
	Tokens *int `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	// Failed marks both halves of an exchange whose response stream broke.
	// Failed messages are shown but never counted or sent to the model.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

// TokenCount returns the authoritative count when known, else the estimate.
func (m Message) TokenCount() int {
	if m.Tokens != nil {
		return *m.Tokens
	}
	return EstimateTokens(m.Content)
}

// CloneMessages returns a deep copy of msgs that shares no memory with it.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.Tokens != nil {
			n := *m.Tokens
			out[i].Tokens = &n
		}
	}
	return out
}

func intPtr(n int) *int { return &n }
