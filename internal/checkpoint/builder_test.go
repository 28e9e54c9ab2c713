package checkpoint

import (
	"strings"
	"testing"
	"time"

	"github.com/apexion-ai/relaychat/internal/session"
)

func testState(t *testing.T, exchanges int) *session.State {
	t.Helper()
	st := session.New("claude-sonnet-4-20250514", session.DefaultLimits())
	for i := 0; i < exchanges; i++ {
		out := 50 + i
		turn := st.Begin("question "+strings.Repeat("q", i), time.Now())
		turn.Commit("answer "+strings.Repeat("a", i), &out, time.Now())
	}
	return st
}

func TestBuild_Basics(t *testing.T) {
	st := testState(t, 3)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cp := NewBuilder().Build(st, Details{
		TaskDescription: "  Fix billing bug ",
		CompletedSteps:  []string{"Reproduce", " ", "Find root cause"},
		CurrentStep:     "Debugging invoice calc",
		NextSteps:       []string{"Write test", "Deploy"},
	}, at)

	if cp.ID == "" {
		t.Error("expected checkpoint ID")
	}
	if cp.SessionID != st.ID {
		t.Errorf("SessionID = %q, want %q", cp.SessionID, st.ID)
	}
	if cp.Status != StatusActive {
		t.Errorf("Status = %s, want active", cp.Status)
	}
	if cp.TaskDescription != "Fix billing bug" {
		t.Errorf("TaskDescription = %q", cp.TaskDescription)
	}
	if len(cp.CompletedSteps) != 2 {
		t.Errorf("blank steps should be dropped, got %v", cp.CompletedSteps)
	}
	if !cp.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", cp.CreatedAt, at)
	}
	if cp.TokenUsage != st.Usage {
		t.Errorf("TokenUsage = %+v, want %+v", cp.TokenUsage, st.Usage)
	}
	if len(cp.Messages) != 6 {
		t.Errorf("Messages len = %d, want 6", len(cp.Messages))
	}
	if cp.ContinuationPrompt == "" {
		t.Error("continuation prompt must not be blank")
	}
	if cp.ContinuationPrompt != NewBuilder().Renderer.Render(cp) {
		t.Error("stored prompt should equal a fresh render of the same fields")
	}
}

func TestBuild_DefaultTask(t *testing.T) {
	cp := NewBuilder().Build(testState(t, 0), Details{}, time.Now())
	if cp.TaskDescription != DefaultTaskDescription {
		t.Errorf("TaskDescription = %q, want default", cp.TaskDescription)
	}
	if cp.Messages == nil || cp.CompletedSteps == nil || cp.NextSteps == nil || cp.ContextVariables == nil {
		t.Error("empty collections should be non-nil")
	}

	b := NewBuilder()
	b.DefaultTask = "Pick up where we stopped"
	if got := b.Build(testState(t, 0), Details{}, time.Now()).TaskDescription; got != "Pick up where we stopped" {
		t.Errorf("custom default task = %q", got)
	}
}

func TestBuild_NoAliasing(t *testing.T) {
	st := testState(t, 2)
	vars := map[string]any{"repo": "billing", "files": []any{"a.go"}, "nested": map[string]any{"k": "v"}}
	cp := NewBuilder().Build(st, Details{ContextVariables: vars}, time.Now())

	st.Messages[0].Content = "mutated"
	*st.Messages[1].Tokens = 9999
	st.Messages = append(st.Messages, session.NewMessage(session.RoleUser, "later", time.Now()))
	vars["repo"] = "other"
	vars["files"].([]any)[0] = "b.go"
	vars["nested"].(map[string]any)["k"] = "changed"

	if cp.Messages[0].Content == "mutated" {
		t.Error("checkpoint message aliased live session content")
	}
	if *cp.Messages[1].Tokens == 9999 {
		t.Error("checkpoint message aliased live session tokens")
	}
	if len(cp.Messages) != 4 {
		t.Errorf("Messages len = %d, want 4", len(cp.Messages))
	}
	if cp.ContextVariables["repo"] != "billing" {
		t.Error("context variables aliased caller map")
	}
	if cp.ContextVariables["files"].([]any)[0] != "a.go" {
		t.Error("context variable slice aliased")
	}
	if cp.ContextVariables["nested"].(map[string]any)["k"] != "v" {
		t.Error("nested context variable aliased")
	}
}

func TestParseSteps(t *testing.T) {
	got := ParseSteps("Write test, Deploy ;; Monitor ,")
	want := []string{"Write test", "Deploy", "Monitor"}
	if len(got) != len(want) {
		t.Fatalf("ParseSteps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(ParseSteps("  ")) != 0 {
		t.Error("blank input should give no steps")
	}
}

func TestStatus_CanTransition(t *testing.T) {
	all := []Status{StatusActive, StatusCompleted, StatusAbandoned, StatusResumed, StatusSuperseded}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusActive && to != StatusActive
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
	if Status("bogus").Valid() {
		t.Error("unknown status should not be valid")
	}
}
