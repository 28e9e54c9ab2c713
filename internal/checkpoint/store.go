package checkpoint

import "context"

// Store persists checkpoints. Implementations must keep at most one active
// checkpoint per session: Insert demotes the session's current active
// checkpoint to superseded before the new one becomes durable.
type Store interface {
	// Get returns the checkpoint with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Checkpoint, error)

	// GetActive returns the most recently created active checkpoint across
	// all sessions, or ErrNotFound when there is none.
	GetActive(ctx context.Context) (*Checkpoint, error)

	// List returns up to limit checkpoints, most recent first.
	List(ctx context.Context, limit int) ([]Checkpoint, error)

	// Insert stores cp as active and returns the persisted record.
	Insert(ctx context.Context, cp *Checkpoint) (*Checkpoint, error)

	// UpdateStatus moves checkpoint id to status and stamps UpdatedAt.
	// Returns ErrNotFound or ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, status Status) (*Checkpoint, error)

	Close() error
}
