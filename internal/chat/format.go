package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/apexion-ai/relaychat/internal/checkpoint"
	"github.com/apexion-ai/relaychat/internal/session"
)

func formatTokens(n int) string { return humanize.Comma(int64(n)) }

func formatPercent(f float64) string {
	return humanize.FtoaWithDigits(f*100, 1) + "%"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatStatus(s *session.State, limits session.Limits) string {
	u := s.Usage
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session:  %s\n", shortID(s.ID))
	fmt.Fprintf(&sb, "Model:    %s\n", u.Model)
	fmt.Fprintf(&sb, "Messages: %d\n", len(s.Messages))
	fmt.Fprintf(&sb, "Tokens:   %s in / %s out / %s total of %s\n",
		formatTokens(u.InputTokens), formatTokens(u.OutputTokens),
		formatTokens(u.TotalTokens), formatTokens(limits.For(u.Model)))
	fmt.Fprintf(&sb, "Used:     %s (%s)", formatPercent(u.PercentUsed), s.Status())
	return sb.String()
}

func formatHistory(msgs []session.Message) string {
	if len(msgs) == 0 {
		return "No messages yet."
	}
	var sb strings.Builder
	for i, m := range msgs {
		marker := ""
		if m.Failed {
			marker = " [failed]"
		}
		fmt.Fprintf(&sb, "%3d. %-9s%s %s\n", i+1, m.Role, marker, preview(m.Content, 80))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatCheckpointList renders checkpoints one per line, most recent first.
func FormatCheckpointList(cps []checkpoint.Checkpoint) string {
	return formatCheckpointList(cps, time.Now())
}

func formatCheckpointList(cps []checkpoint.Checkpoint, now time.Time) string {
	var sb strings.Builder
	for _, cp := range cps {
		fmt.Fprintf(&sb, "%s  %-10s  %-5s  %s  (%s)\n",
			shortID(cp.ID), cp.Status, formatPercent(cp.TokenUsage.PercentUsed),
			preview(cp.TaskDescription, 50), humanize.RelTime(cp.CreatedAt, now, "ago", "from now"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describeCheckpoint(cp *checkpoint.Checkpoint) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found an unfinished checkpoint from %s:\n", humanize.Time(cp.CreatedAt))
	fmt.Fprintf(&sb, "  Task:     %s\n", cp.TaskDescription)
	if cp.CurrentStep != "" {
		fmt.Fprintf(&sb, "  Current:  %s\n", cp.CurrentStep)
	}
	fmt.Fprintf(&sb, "  Messages: %d, %s tokens (%s)",
		len(cp.Messages), formatTokens(cp.TokenUsage.TotalTokens), formatPercent(cp.TokenUsage.PercentUsed))
	return sb.String()
}

func preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width]) + "..."
}
