package checkpoint

import (
	"slices"
	"strings"
	"time"

	"github.com/apexion-ai/relaychat/internal/session"
	"github.com/google/uuid"
)

// DefaultTaskDescription labels checkpoints saved without a task.
const DefaultTaskDescription = "Continue previous conversation"

// Builder turns live session state into checkpoints.
type Builder struct {
	Renderer    PromptRenderer
	DefaultTask string
}

// NewBuilder returns a Builder using the default prompt renderer.
func NewBuilder() *Builder {
	return &Builder{Renderer: DefaultPromptRenderer(), DefaultTask: DefaultTaskDescription}
}

// Build snapshots state at time at. The result is always active, shares no
// memory with state or d, and carries its continuation prompt.
func (b *Builder) Build(state *session.State, d Details, at time.Time) *Checkpoint {
	task := strings.TrimSpace(d.TaskDescription)
	if task == "" {
		task = b.DefaultTask
	}
	if task == "" {
		task = DefaultTaskDescription
	}

	cp := &Checkpoint{
		ID:               uuid.NewString(),
		SessionID:        state.ID,
		TaskDescription:  task,
		CompletedSteps:   cleanSteps(d.CompletedSteps),
		CurrentStep:      strings.TrimSpace(d.CurrentStep),
		NextSteps:        cleanSteps(d.NextSteps),
		Messages:         session.CloneMessages(state.Messages),
		TokenUsage:       state.Usage,
		ContextVariables: cloneVars(d.ContextVariables),
		Status:           StatusActive,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
	if cp.Messages == nil {
		cp.Messages = []session.Message{}
	}
	cp.ContinuationPrompt = b.Renderer.Render(cp)
	return cp
}

// cleanSteps trims items and drops blanks. The result is never nil so the
// stored list is always a JSON array.
func cleanSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseSteps splits a comma- or semicolon-separated list typed by a user.
func ParseSteps(s string) []string {
	return cleanSteps(strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }))
}

func cloneVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneVars(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
