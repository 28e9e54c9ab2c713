package checkpoint

import (
	"strings"
	"testing"
	"time"

	"github.com/apexion-ai/relaychat/internal/session"
)

func promptCheckpoint(msgs ...session.Message) *Checkpoint {
	return &Checkpoint{
		ID:              "cp-1",
		TaskDescription: "Fix billing bug",
		CompletedSteps:  []string{"Reproduce"},
		CurrentStep:     "Debugging invoice calc",
		NextSteps:       []string{"Write test", "Deploy"},
		Messages:        msgs,
	}
}

func conversation(n int) []session.Message {
	var msgs []session.Message
	for i := 0; i < n; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		msgs = append(msgs, session.NewMessage(role, "message-"+string(rune('a'+i)), time.Now()))
	}
	return msgs
}

func TestRender_SectionOrder(t *testing.T) {
	cp := promptCheckpoint(conversation(2)...)
	cp.ContextVariables = map[string]any{"repo": "billing"}
	out := DefaultPromptRenderer().Render(cp)

	order := []string{
		"# Resuming checkpoint: Fix billing bug",
		"## Task\nFix billing bug",
		"## Completed steps\n- [x] Reproduce",
		"## Current step\nDebugging invoice calc",
		"## Next steps\n- [ ] Write test\n- [ ] Deploy",
		"## Context\n- repo: billing",
		"## Recent conversation",
		"**User:** message-a",
		"**Assistant:** message-b",
		"Continue from the current step right away.",
	}
	pos := -1
	for _, part := range order {
		i := strings.Index(out, part)
		if i < 0 {
			t.Fatalf("missing %q in prompt:\n%s", part, out)
		}
		if i < pos {
			t.Errorf("%q out of order", part)
		}
		pos = i
	}
	if !strings.HasSuffix(out, "pick up exactly where we left off.") {
		t.Error("instruction line should come last")
	}
}

func TestRender_TailLimit(t *testing.T) {
	out := DefaultPromptRenderer().Render(promptCheckpoint(conversation(8)...))
	for _, old := range []string{"message-a", "message-b", "message-c"} {
		if strings.Contains(out, old) {
			t.Errorf("prompt should not include %q (older than last 5)", old)
		}
	}
	for _, recent := range []string{"message-d", "message-h"} {
		if !strings.Contains(out, recent) {
			t.Errorf("prompt should include %q", recent)
		}
	}

	wide := PromptRenderer{TailMessages: 6, TruncateAt: 150}.Render(promptCheckpoint(conversation(8)...))
	if !strings.Contains(wide, "message-c") || strings.Contains(wide, "message-b") {
		t.Error("TailMessages=6 should include exactly the last six messages")
	}
}

func TestRender_Truncation(t *testing.T) {
	long := session.NewMessage(session.RoleUser, strings.Repeat("é", 250), time.Now())
	short := session.NewMessage(session.RoleAssistant, strings.Repeat("s", 200), time.Now())
	out := DefaultPromptRenderer().Render(promptCheckpoint(long, short))

	if !strings.Contains(out, "**User:** "+strings.Repeat("é", 200)+"...\n") {
		t.Error("long message should be cut at 200 characters with ellipsis")
	}
	if !strings.Contains(out, "**Assistant:** "+strings.Repeat("s", 200)+"\n") {
		t.Error("message at exactly the limit should not be cut")
	}
}

func TestRender_SkipsFailedAndEmpty(t *testing.T) {
	failed := session.NewMessage(session.RoleUser, "never answered", time.Now())
	failed.Failed = true
	cp := &Checkpoint{ID: "x", TaskDescription: "t", Messages: []session.Message{failed}}
	out := DefaultPromptRenderer().Render(cp)
	if strings.Contains(out, "never answered") {
		t.Error("failed messages should not be quoted")
	}
	if strings.Contains(out, "## Recent conversation") {
		t.Error("no conversation section expected without live messages")
	}
	if !strings.Contains(out, "## Completed steps\n(none)") {
		t.Error("empty step list should render (none)")
	}
	if !strings.Contains(out, "(not specified)") {
		t.Error("empty current step should render placeholder")
	}
}

func TestRender_Deterministic(t *testing.T) {
	cp := promptCheckpoint(conversation(3)...)
	cp.ContextVariables = map[string]any{"b": 2, "a": map[string]any{"y": 1, "x": true}}
	r := DefaultPromptRenderer()
	first := r.Render(cp)
	for i := 0; i < 10; i++ {
		if r.Render(cp) != first {
			t.Fatal("Render is not deterministic")
		}
	}
	if !strings.Contains(first, "- a: {\"x\":true,\"y\":1}\n- b: 2") {
		t.Errorf("context variables not sorted/encoded:\n%s", first)
	}
}
