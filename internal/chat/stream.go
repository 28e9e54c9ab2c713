package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/apexion-ai/relaychat/internal/provider"
	"github.com/apexion-ai/relaychat/internal/session"
)

// exchange sends text with the live history and consumes the reply stream.
// The user message is in the session before the request goes out, so a
// failure never loses it.
func (c *Controller) exchange(ctx context.Context, text string) (session.Message, error) {
	history := toProviderMessages(c.state.Live())
	turn := c.state.Begin(text, c.now())

	req := &provider.ChatRequest{
		Model:        c.Model(),
		Messages:     append(history, provider.Message{Role: provider.RoleUser, Content: text}),
		SystemPrompt: c.systemPrompt,
		MaxTokens:    c.maxTokens,
	}

	events, err := c.provider.Chat(ctx, req)
	if err != nil {
		msg := turn.Fail("", err, c.now())
		c.log.Warn("chat request failed", "session", c.state.ID, "err", err)
		return msg, fmt.Errorf("LLM call failed: %w", err)
	}

	c.io.ThinkingStart()

	var (
		reply        strings.Builder
		outputTokens *int
		streamErr    error
		done         bool
	)
	for event := range events {
		switch event.Type {
		case provider.EventTextDelta:
			c.io.TextDelta(event.TextDelta)
			reply.WriteString(event.TextDelta)

		case provider.EventUsageStart:
			c.log.Debug("provider input tokens", "tokens", event.Tokens)

		case provider.EventUsageDelta:
			n := event.Tokens
			outputTokens = &n

		case provider.EventDone:
			done = true

		case provider.EventError:
			streamErr = event.Error
		}
	}
	if streamErr == nil && !done {
		streamErr = ErrStreamInterrupted
	}

	full := reply.String()
	c.io.TextDone(full)

	if streamErr != nil {
		msg := turn.Fail(full, streamErr, c.now())
		c.log.Warn("stream failed",
			"session", c.state.ID,
			"partial_chars", len(full),
			"err", streamErr)
		return msg, fmt.Errorf("stream error: %w", streamErr)
	}

	msg := turn.Commit(full, outputTokens, c.now())
	u := c.state.Usage
	c.io.SetUsage(u.TotalTokens, c.limits.For(u.Model))
	c.log.Debug("exchange committed",
		"session", c.state.ID,
		"input_tokens", u.InputTokens,
		"output_tokens", u.OutputTokens,
		"percent_used", u.PercentUsed,
		"estimated", outputTokens == nil)
	return msg, nil
}

func toProviderMessages(msgs []session.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs)+1)
	for _, m := range msgs {
		role := provider.RoleUser
		if m.Role == session.RoleAssistant {
			role = provider.RoleAssistant
		}
		out = append(out, provider.Message{Role: role, Content: m.Content})
	}
	return out
}
