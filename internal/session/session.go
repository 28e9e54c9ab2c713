package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the live conversation a user is interacting with. It is owned by
// a single controller and is not safe for concurrent mutation.
type State struct {
	ID        string
	Messages  []Message
	Usage     TokenUsage
	CreatedAt time.Time

	limits Limits
}

// New creates an empty session for model with a fresh ID.
func New(model string, limits Limits) *State {
	return &State{
		ID:        uuid.NewString(),
		Usage:     Accumulate(TokenUsage{Model: model}, 0, 0, limits),
		CreatedAt: time.Now(),
		limits:    limits,
	}
}

// Restore builds a session from a snapshot. Messages are deep-copied.
func Restore(id string, messages []Message, usage TokenUsage, limits Limits) *State {
	return &State{
		ID:        id,
		Messages:  CloneMessages(messages),
		Usage:     usage,
		CreatedAt: time.Now(),
		limits:    limits,
	}
}

// Limits returns the limit table used for percentUsed.
func (s *State) Limits() Limits { return s.limits }

// Status derives the session status from current usage.
func (s *State) Status() Status { return StatusOf(s.Usage) }

// SetModel switches the model used to resolve the limit and refreshes
// PercentUsed without touching the counters.
func (s *State) SetModel(model string) {
	s.Usage.Model = model
	s.Usage = Accumulate(s.Usage, 0, 0, s.limits)
}

// Live returns the messages that belong in the model's context, i.e. all
// messages except those of failed exchanges.
func (s *State) Live() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if !m.Failed {
			out = append(out, m)
		}
	}
	return out
}

// LastFailedUserMessage returns the most recent user message of a failed
// exchange that has not been retried successfully since.
func (s *State) LastFailedUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role != RoleUser {
			continue
		}
		return m, m.Failed
	}
	return Message{}, false
}

// Turn is an exchange in progress. The user message is appended as soon as
// the turn begins so it is never lost; the turn is then either committed
// with the assistant reply or marked failed.
type Turn struct {
	state   *State
	userIdx int
	done    bool
}

// Begin soft-appends a user message with an estimated token count.
func (s *State) Begin(text string, at time.Time) *Turn {
	msg := NewMessage(RoleUser, text, at)
	msg.Tokens = intPtr(EstimateTokens(text))
	s.Messages = append(s.Messages, msg)
	return &Turn{state: s, userIdx: len(s.Messages) - 1}
}

// User returns the turn's user message.
func (t *Turn) User() Message { return t.state.Messages[t.userIdx] }

// Commit appends the completed assistant reply and advances usage.
// outputTokens is the provider's count; nil means unknown and the reply is
// estimated instead.
func (t *Turn) Commit(content string, outputTokens *int, at time.Time) Message {
	t.finish()
	msg := NewMessage(RoleAssistant, content, at)
	if outputTokens != nil {
		msg.Tokens = intPtr(*outputTokens)
	} else {
		msg.Tokens = intPtr(EstimateTokens(content))
	}
	s := t.state
	s.Messages = append(s.Messages, msg)
	s.Usage = Accumulate(s.Usage, s.Messages[t.userIdx].TokenCount(), *msg.Tokens, s.limits)
	return msg
}

// Fail keeps whatever the assistant produced, appends an error marker, and
// flags the exchange so it is excluded from accounting. Usage is unchanged.
func (t *Turn) Fail(partial string, cause error, at time.Time) Message {
	t.finish()
	s := t.state
	s.Messages[t.userIdx].Failed = true
	marker := errorMarker(cause)
	if partial == "" {
		marker = strings.TrimLeft(marker, "\n")
	}
	msg := NewMessage(RoleAssistant, partial+marker, at)
	msg.Failed = true
	s.Messages = append(s.Messages, msg)
	return msg
}

func (t *Turn) finish() {
	if t.done {
		panic("session: turn finished twice")
	}
	t.done = true
}

func errorMarker(cause error) string {
	if cause == nil {
		return "\n\n[error: response interrupted]"
	}
	return fmt.Sprintf("\n\n[error: %v]", cause)
}
