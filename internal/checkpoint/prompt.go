package checkpoint

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/apexion-ai/relaychat/internal/session"
)

const (
	defaultTailMessages = 5
	defaultTruncateAt   = 200
)

// PromptRenderer renders the brief that is replayed as the first user turn
// of a resumed session. TailMessages is how many recent messages are
// quoted; TruncateAt caps each quoted message, in characters.
type PromptRenderer struct {
	TailMessages int
	TruncateAt   int
}

// DefaultPromptRenderer quotes the last 5 messages, 200 characters each.
func DefaultPromptRenderer() PromptRenderer {
	return PromptRenderer{TailMessages: defaultTailMessages, TruncateAt: defaultTruncateAt}
}

// Render is a pure function of cp's fields.
func (r PromptRenderer) Render(cp *Checkpoint) string {
	tail := r.TailMessages
	if tail <= 0 {
		tail = defaultTailMessages
	}
	width := r.TruncateAt
	if width <= 0 {
		width = defaultTruncateAt
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Resuming checkpoint: %s\n", cp.TaskDescription)
	fmt.Fprintf(&sb, "Checkpoint ID: %s\n\n", cp.ID)

	fmt.Fprintf(&sb, "## Task\n%s\n\n", cp.TaskDescription)

	sb.WriteString("## Completed steps\n")
	writeList(&sb, "- [x] ", cp.CompletedSteps)

	current := cp.CurrentStep
	if current == "" {
		current = "(not specified)"
	}
	fmt.Fprintf(&sb, "## Current step\n%s\n\n", current)

	sb.WriteString("## Next steps\n")
	writeList(&sb, "- [ ] ", cp.NextSteps)

	if len(cp.ContextVariables) > 0 {
		sb.WriteString("## Context\n")
		keys := make([]string, 0, len(cp.ContextVariables))
		for k := range cp.ContextVariables {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, formatValue(cp.ContextVariables[k]))
		}
		sb.WriteString("\n")
	}

	recent := lastMessages(cp.Messages, tail)
	if len(recent) > 0 {
		fmt.Fprintf(&sb, "## Recent conversation (last %d messages)\n", len(recent))
		for _, m := range recent {
			fmt.Fprintf(&sb, "**%s:** %s\n", speaker(m.Role), truncate(m.Content, width))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Continue from the current step right away. Do not ask for confirmation or restate the plan; pick up exactly where we left off.")
	return sb.String()
}

func writeList(sb *strings.Builder, prefix string, items []string) {
	if len(items) == 0 {
		sb.WriteString("(none)\n\n")
		return
	}
	for _, it := range items {
		sb.WriteString(prefix)
		sb.WriteString(it)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// lastMessages returns up to n trailing messages, skipping failed exchanges.
func lastMessages(msgs []session.Message, n int) []session.Message {
	var out []session.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		if !msgs[i].Failed {
			out = append(out, msgs[i])
		}
	}
	slices.Reverse(out)
	return out
}

func speaker(r session.Role) string {
	if r == session.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// truncate cuts s to width characters, appending "..." when it had to cut.
func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width]) + "..."
}
