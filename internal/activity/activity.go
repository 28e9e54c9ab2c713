// Package activity records best-effort usage events (such as a checkpoint
// being saved) to a tracking sink that is separate from checkpoint storage.
// Callers must treat a failing Record as non-fatal.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TypeCheckpointSaved is recorded each time a checkpoint is persisted.
const TypeCheckpointSaved = "checkpoint_saved"

// Activity is one tracked event.
type Activity struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Tracker stores activities.
type Tracker interface {
	Record(ctx context.Context, a Activity) error
	Close() error
}

// Reader lists recorded activities, newest first. n <= 0 means the
// default of 20.
type Reader interface {
	Recent(ctx context.Context, n int) ([]Activity, error)
}

const defaultRecent = 20

// NullTracker drops everything.
type NullTracker struct{}

func (NullTracker) Record(context.Context, Activity) error          { return nil }
func (NullTracker) Recent(context.Context, int) ([]Activity, error) { return nil, nil }
func (NullTracker) Close() error                                    { return nil }

// CheckpointSaved builds the activity for a saved checkpoint. percentUsed is
// a fraction of the model limit and is stored as a whole percentage.
func CheckpointSaved(checkpointID, task string, percentUsed float64, at time.Time) (Activity, error) {
	payload, err := json.Marshal(struct {
		CheckpointID string `json:"checkpointId"`
		Task         string `json:"task"`
		PercentUsed  int    `json:"percentUsed"`
	}{checkpointID, task, int(math.Round(percentUsed * 100))})
	if err != nil {
		return Activity{}, fmt.Errorf("marshal activity payload: %w", err)
	}
	return Activity{Type: TypeCheckpointSaved, Timestamp: at, Payload: payload}, nil
}
