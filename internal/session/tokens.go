package session

import "unicode/utf8"

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded up. It is a fixed rule, not a model tokenizer, and is
// only used when the provider has not reported an authoritative count.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	tokens := n / 4
	if n%4 != 0 {
		tokens++
	}
	return tokens
}

// TokenUsage holds the running token counters of a session.
// TotalTokens always equals InputTokens + OutputTokens.
type TokenUsage struct {
	InputTokens  int     `json:"inputTokens" yaml:"inputTokens"`
	OutputTokens int     `json:"outputTokens" yaml:"outputTokens"`
	TotalTokens  int     `json:"totalTokens" yaml:"totalTokens"`
	PercentUsed  float64 `json:"percentUsed" yaml:"percentUsed"`
	Model        string  `json:"model" yaml:"model"`
}

// Accumulate returns u advanced by one exchange. Deltas must not be
// negative; a negative delta is clamped to zero so counters never go down.
// PercentUsed is recomputed against the model's limit and is not capped.
func Accumulate(u TokenUsage, inputDelta, outputDelta int, limits Limits) TokenUsage {
	inputDelta = max(inputDelta, 0)
	outputDelta = max(outputDelta, 0)

	u.InputTokens += inputDelta
	u.OutputTokens += outputDelta
	u.TotalTokens = u.InputTokens + u.OutputTokens
	u.PercentUsed = percentOf(u.TotalTokens, limits.For(u.Model))
	return u
}

// Recompute rebuilds usage for model from a full message list in one pass.
// User messages count as input, assistant messages as output; failed
// messages are skipped. The result matches turn-by-turn Accumulate calls
// over the same messages.
func Recompute(messages []Message, model string, limits Limits) TokenUsage {
	u := TokenUsage{Model: model}
	for _, m := range messages {
		if m.Failed {
			continue
		}
		switch m.Role {
		case RoleUser:
			u.InputTokens += m.TokenCount()
		case RoleAssistant:
			u.OutputTokens += m.TokenCount()
		}
	}
	u.TotalTokens = u.InputTokens + u.OutputTokens
	u.PercentUsed = percentOf(u.TotalTokens, limits.For(model))
	return u
}

func percentOf(total, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(total) / float64(limit)
}
