package session

import "maps"

// DefaultLimitKey is the entry used for models missing from a Limits table.
const DefaultLimitKey = "default"

const (
	baselineLimit = 150000
	claudeLimit   = 180000
)

// Limits maps model identifiers to context-window token limits.
type Limits map[string]int

// DefaultLimits returns the built-in table. Known Claude models are capped
// at 180k in this deployment; everything else falls back to 150k.
func DefaultLimits() Limits {
	return Limits{
		DefaultLimitKey:              baselineLimit,
		"claude-sonnet-4-20250514":   claudeLimit,
		"claude-opus-4-20250514":     claudeLimit,
		"claude-haiku-4-5-20251001":  claudeLimit,
		"claude-3-7-sonnet-20250219": claudeLimit,
		"claude-3-5-sonnet-20241022": claudeLimit,
		"claude-3-5-haiku-20241022":  claudeLimit,
	}
}

// With returns a copy of l with overrides applied. Non-positive override
// values are ignored.
func (l Limits) With(overrides map[string]int) Limits {
	out := maps.Clone(l)
	if out == nil {
		out = Limits{}
	}
	for model, limit := range overrides {
		if limit > 0 {
			out[model] = limit
		}
	}
	return out
}

// For returns the limit for model, falling back to the default entry.
func (l Limits) For(model string) int {
	if n, ok := l[model]; ok && n > 0 {
		return n
	}
	if n, ok := l[DefaultLimitKey]; ok && n > 0 {
		return n
	}
	return baselineLimit
}
