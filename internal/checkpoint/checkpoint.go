// Package checkpoint snapshots a conversation so a later session can resume
// it after the context window fills up. A checkpoint is immutable once
// built; only its status moves, along the transitions in CanTransition.
package checkpoint

import (
	"errors"
	"time"

	"github.com/apexion-ai/relaychat/internal/session"
)

var (
	// ErrNotFound is returned when no checkpoint matches a lookup. It is an
	// expected outcome (e.g. no active checkpoint yet), not a backend failure.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid checkpoint status transition")
)

// Status is the lifecycle state of a checkpoint.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
	StatusResumed    Status = "resumed"
	StatusSuperseded Status = "superseded"
)

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusAbandoned, StatusResumed, StatusSuperseded:
		return true
	}
	return false
}

// CanTransition reports whether a checkpoint in status s may move to next.
// Only active checkpoints move; every other status is terminal.
// Completed is reserved for caller-driven workflows and is never set by the
// chat loop itself.
func (s Status) CanTransition(next Status) bool {
	if s != StatusActive {
		return false
	}
	switch next {
	case StatusSuperseded, StatusResumed, StatusAbandoned, StatusCompleted:
		return true
	}
	return false
}

// Checkpoint is a snapshot of a conversation at a point in time.
type Checkpoint struct {
	ID                 string             `json:"id" yaml:"id"`
	SessionID          string             `json:"sessionId" yaml:"sessionId"`
	TaskDescription    string             `json:"taskDescription" yaml:"taskDescription"`
	CompletedSteps     []string           `json:"completedSteps" yaml:"completedSteps"`
	CurrentStep        string             `json:"currentStep" yaml:"currentStep"`
	NextSteps          []string           `json:"nextSteps" yaml:"nextSteps"`
	Messages           []session.Message  `json:"messages" yaml:"messages"`
	TokenUsage         session.TokenUsage `json:"tokenUsage" yaml:"tokenUsage"`
	ContextVariables   map[string]any     `json:"contextVariables" yaml:"contextVariables"`
	ContinuationPrompt string             `json:"continuationPrompt" yaml:"continuationPrompt"`
	Status             Status             `json:"status" yaml:"status"`
	CreatedAt          time.Time          `json:"createdAt" yaml:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" yaml:"updatedAt"`
}

// Details is the user-supplied task metadata attached to a checkpoint.
type Details struct {
	TaskDescription  string
	CompletedSteps   []string
	CurrentStep      string
	NextSteps        []string
	ContextVariables map[string]any
}
