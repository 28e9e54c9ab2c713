// Package chat owns the live conversation: it relays exchanges to the model
// provider, keeps token usage current, and moves the conversation in and out
// of checkpoints.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/apexion-ai/relaychat/internal/activity"
	"github.com/apexion-ai/relaychat/internal/checkpoint"
	"github.com/apexion-ai/relaychat/internal/provider"
	"github.com/apexion-ai/relaychat/internal/session"
	"github.com/apexion-ai/relaychat/internal/tui"
)

var (
	// ErrStreamInFlight is returned when an operation is attempted while a
	// reply is still streaming.
	ErrStreamInFlight = errors.New("a response is already streaming")

	// ErrStreamInterrupted is the cause recorded when a stream ends without
	// a completion or error marker.
	ErrStreamInterrupted = errors.New("response stream interrupted")

	// ErrNothingToRetry is returned by Retry when the last exchange did not fail.
	ErrNothingToRetry = errors.New("no failed message to retry")

	// ErrEmptySession is returned by SaveCheckpoint when there is nothing to save.
	ErrEmptySession = errors.New("nothing to checkpoint: the conversation is empty")
)

// Signal tells the UI whether to surface the save-checkpoint affordance.
type Signal int

const (
	SignalNone Signal = iota
	// SignalSuggest is the soft, dismissible hint shown once per session.
	SignalSuggest
	// SignalRequire is shown after every exchange while usage is critical.
	SignalRequire
)

// ResumeMode controls the startup offer to resume a pending checkpoint.
type ResumeMode string

const (
	ResumeAsk ResumeMode = "ask"
	ResumeYes ResumeMode = "yes"
	ResumeNo  ResumeMode = "no"
)

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Limits       session.Limits
	Builder      *checkpoint.Builder
	Activity     activity.Tracker
	Logger       *slog.Logger
	Resume       ResumeMode

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// Controller drives a single conversation. Its methods must be called from
// one goroutine; the busy flag only guards against re-entry while a stream
// or a checkpoint operation is running.
type Controller struct {
	provider provider.Provider
	store    checkpoint.Store
	tracker  activity.Tracker
	builder  *checkpoint.Builder
	io       tui.IO
	log      *slog.Logger

	systemPrompt string
	maxTokens    int
	limits       session.Limits
	resume       ResumeMode
	now          func() time.Time

	state     *session.State
	suggested bool
	busy      atomic.Bool
}

// New creates a Controller with a fresh session.
func New(p provider.Provider, store checkpoint.Store, ui tui.IO, opts Options) *Controller {
	c := &Controller{
		provider:     p,
		store:        store,
		tracker:      opts.Activity,
		builder:      opts.Builder,
		io:           ui,
		log:          opts.Logger,
		systemPrompt: opts.SystemPrompt,
		maxTokens:    opts.MaxTokens,
		limits:       opts.Limits,
		resume:       opts.Resume,
		now:          opts.Now,
	}
	if c.tracker == nil {
		c.tracker = activity.NullTracker{}
	}
	if c.builder == nil {
		c.builder = checkpoint.NewBuilder()
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.limits == nil {
		c.limits = session.DefaultLimits()
	}
	if c.resume == "" {
		c.resume = ResumeAsk
	}
	if c.now == nil {
		c.now = time.Now
	}

	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}
	c.state = session.New(model, c.limits)
	return c
}

// State returns the live session. Callers must not mutate it.
func (c *Controller) State() *session.State { return c.state }

// Model returns the model used for new exchanges.
func (c *Controller) Model() string { return c.state.Usage.Model }

// SetModel switches the model. Counters are kept; percentUsed follows the
// new model's limit.
func (c *Controller) SetModel(model string) {
	c.state.SetModel(model)
	c.io.SetUsage(c.state.Usage.TotalTokens, c.limits.For(model))
}

// NewSession discards the live conversation and starts an empty one.
func (c *Controller) NewSession() {
	c.state = session.New(c.Model(), c.limits)
	c.suggested = false
	c.io.SetUsage(0, c.limits.For(c.Model()))
	c.log.Debug("session started", "session", c.state.ID)
}

// Signal evaluates the thresholds against current usage.
func (c *Controller) Signal() Signal {
	switch {
	case session.IsCritical(c.state.Usage):
		return SignalRequire
	case session.NeedsCheckpoint(c.state.Usage) && !c.suggested:
		return SignalSuggest
	}
	return SignalNone
}

// DismissSuggestion records that the soft hint was shown for this session.
func (c *Controller) DismissSuggestion() { c.suggested = true }

// Send runs one exchange. The returned message is the assistant reply, or
// the failed placeholder carrying the error marker when err is non-nil.
func (c *Controller) Send(ctx context.Context, text string) (session.Message, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return session.Message{}, ErrStreamInFlight
	}
	defer c.busy.Store(false)
	return c.exchange(ctx, text)
}

// Retry resends the user message of the most recent failed exchange.
func (c *Controller) Retry(ctx context.Context) (session.Message, error) {
	msg, ok := c.state.LastFailedUserMessage()
	if !ok {
		return session.Message{}, ErrNothingToRetry
	}
	return c.Send(ctx, msg.Content)
}

// SaveCheckpoint snapshots the session, persists it, and starts a fresh
// session. If the store rejects the checkpoint nothing changes.
func (c *Controller) SaveCheckpoint(ctx context.Context, d checkpoint.Details) (*checkpoint.Checkpoint, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrStreamInFlight
	}
	defer c.busy.Store(false)

	if len(c.state.Messages) == 0 {
		return nil, ErrEmptySession
	}

	cp := c.builder.Build(c.state, d, c.now())
	saved, err := c.store.Insert(ctx, cp)
	if err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	c.log.Info("checkpoint saved",
		"checkpoint", saved.ID,
		"session", saved.SessionID,
		"messages", len(saved.Messages),
		"total_tokens", saved.TokenUsage.TotalTokens)

	c.recordSaved(ctx, saved)
	c.NewSession()
	return saved, nil
}

func (c *Controller) recordSaved(ctx context.Context, cp *checkpoint.Checkpoint) {
	a, err := activity.CheckpointSaved(cp.ID, cp.TaskDescription, cp.TokenUsage.PercentUsed, c.now())
	if err == nil {
		err = c.tracker.Record(ctx, a)
	}
	if err != nil {
		c.log.Warn("record checkpoint activity failed", "checkpoint", cp.ID, "err", err)
	}
}

// PendingCheckpoint returns the most recent active checkpoint, or nil when
// there is none.
func (c *Controller) PendingCheckpoint(ctx context.Context) (*checkpoint.Checkpoint, error) {
	cp, err := c.store.GetActive(ctx)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up active checkpoint: %w", err)
	}
	return cp, nil
}

// Resume marks cp resumed, rehydrates the session from it, and submits its
// continuation prompt as the first new turn. If the status update fails the
// live session is left as it was.
func (c *Controller) Resume(ctx context.Context, cp *checkpoint.Checkpoint) (session.Message, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return session.Message{}, ErrStreamInFlight
	}
	defer c.busy.Store(false)

	resumed, err := c.store.UpdateStatus(ctx, cp.ID, checkpoint.StatusResumed)
	if err != nil {
		return session.Message{}, fmt.Errorf("resume checkpoint %s: %w", cp.ID, err)
	}

	model := c.Model()
	c.state = session.Restore(resumed.SessionID, resumed.Messages, resumed.TokenUsage, c.limits)
	if c.state.Usage.Model != model {
		c.state.SetModel(model)
	}
	c.suggested = false
	c.io.SetUsage(c.state.Usage.TotalTokens, c.limits.For(model))
	c.log.Info("checkpoint resumed",
		"checkpoint", resumed.ID,
		"session", resumed.SessionID,
		"messages", len(resumed.Messages))

	return c.exchange(ctx, resumed.ContinuationPrompt)
}

// Abandon marks cp abandoned and starts a fresh session.
func (c *Controller) Abandon(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrStreamInFlight
	}
	defer c.busy.Store(false)

	if _, err := c.store.UpdateStatus(ctx, cp.ID, checkpoint.StatusAbandoned); err != nil {
		return fmt.Errorf("abandon checkpoint %s: %w", cp.ID, err)
	}
	c.log.Info("checkpoint abandoned", "checkpoint", cp.ID)
	c.NewSession()
	return nil
}
