package session

// Fractions of the model limit at which the session changes status.
const (
	CheckpointThreshold = 0.70
	WarningThreshold    = 0.85
)

// Status is the derived health of a live session.
type Status string

const (
	StatusActive   Status = "active"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// NeedsCheckpoint reports whether usage has reached the checkpoint zone.
func NeedsCheckpoint(u TokenUsage) bool {
	return u.PercentUsed >= CheckpointThreshold
}

// IsCritical reports whether usage has reached the critical zone.
func IsCritical(u TokenUsage) bool {
	return u.PercentUsed >= WarningThreshold
}

// StatusOf classifies usage. Both boundaries are inclusive.
func StatusOf(u TokenUsage) Status {
	switch {
	case IsCritical(u):
		return StatusCritical
	case NeedsCheckpoint(u):
		return StatusWarning
	default:
		return StatusActive
	}
}
