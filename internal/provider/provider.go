// Package provider defines the streaming interface shared by all LLM
// backends. Each adapter (anthropic.go, openai.go) turns its API's streaming
// response into the same Event sequence.
package provider

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is the provider-neutral request.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
}

type EventType int

const (
	// EventTextDelta carries an incremental piece of the reply.
	EventTextDelta EventType = iota

	// EventUsageStart reports the input token count when the reply starts.
	EventUsageStart

	// EventUsageDelta reports the cumulative output token count.
	EventUsageDelta

	// EventDone ends a successful stream.
	EventDone

	// EventError ends a failed stream.
	EventError
)

// Event is one item of a provider stream.
type Event struct {
	Type EventType

	// EventTextDelta
	TextDelta string

	// EventUsageStart: input tokens. EventUsageDelta: output tokens.
	Tokens int

	// EventError
	Error error
}

// Provider is implemented by every model backend.
type Provider interface {
	// Chat starts a streaming reply. The channel emits events until
	// EventDone or EventError and is then closed. Callers must drain it.
	Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error)

	// Name returns the provider identifier, e.g. "anthropic" or "deepseek".
	Name() string

	DefaultModel() string
}

// New builds a provider by name. Anything other than "anthropic" is treated
// as an OpenAI-compatible endpoint.
func New(name, apiKey, baseURL, model string) Provider {
	if name == "anthropic" {
		return NewAnthropicProvider(apiKey, baseURL, model)
	}
	return NewOpenAIProvider(apiKey, baseURL, model)
}
