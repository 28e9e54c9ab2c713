package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apexion-ai/relaychat/internal/checkpoint"
)

// Run offers to resume a pending checkpoint, then reads input until EOF or
// /quit.
func (c *Controller) Run(ctx context.Context) error {
	c.offerResume(ctx)

	for {
		input, err := c.io.ReadInput()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}

		// Slash commands are intercepted before sending to the model.
		if strings.HasPrefix(input, "/") {
			handled, shouldQuit := c.handleSlashCommand(ctx, input)
			if shouldQuit {
				return nil
			}
			if handled {
				continue
			}
		}

		c.io.UserMessage(input)
		if _, err := c.Send(ctx, input); err != nil {
			if ctx.Err() != nil {
				c.io.SystemMessage("\nInterrupted.")
				return ctx.Err()
			}
			c.io.Error(err.Error() + " (type /retry to resend)")
			continue
		}
		c.afterExchange(ctx)
	}
}

// RunOnce sends a single prompt (non-interactive mode).
func (c *Controller) RunOnce(ctx context.Context, prompt string) error {
	c.io.UserMessage(prompt)
	_, err := c.Send(ctx, prompt)
	return err
}

// offerResume handles the startup resume-or-abandon choice.
func (c *Controller) offerResume(ctx context.Context) {
	if c.resume == ResumeNo {
		return
	}
	cp, err := c.PendingCheckpoint(ctx)
	if err != nil {
		c.log.Warn("pending checkpoint lookup failed", "err", err)
		c.io.Error(err.Error())
		return
	}
	if cp == nil {
		return
	}

	c.io.SystemMessage(describeCheckpoint(cp))
	if c.resume == ResumeAsk && !c.io.Confirm("Resume this checkpoint?") {
		if err := c.Abandon(ctx, cp); err != nil {
			c.io.Error(err.Error())
			return
		}
		c.io.SystemMessage("Checkpoint abandoned. Starting a new conversation.")
		return
	}

	c.io.UserMessage(cp.ContinuationPrompt)
	if _, err := c.Resume(ctx, cp); err != nil {
		c.io.Error(err.Error())
		return
	}
	c.afterExchange(ctx)
}

// afterExchange surfaces the checkpoint affordance when usage calls for it.
func (c *Controller) afterExchange(ctx context.Context) {
	u := c.state.Usage
	switch c.Signal() {
	case SignalRequire:
		c.io.SystemMessage(fmt.Sprintf(
			"Context is %s full. Save a checkpoint now to continue in a fresh session before the limit is reached.",
			formatPercent(u.PercentUsed)))
		if c.io.Confirm("Save checkpoint now?") {
			c.saveInteractive(ctx, "")
		}
	case SignalSuggest:
		c.DismissSuggestion()
		c.io.SystemMessage(fmt.Sprintf(
			"Context is %s full. Consider saving a checkpoint with /checkpoint.",
			formatPercent(u.PercentUsed)))
		if c.io.Confirm("Save checkpoint now?") {
			c.saveInteractive(ctx, "")
		}
	}
}

// saveInteractive collects checkpoint details from the user and saves.
func (c *Controller) saveInteractive(ctx context.Context, task string) {
	if task == "" {
		task = c.io.Prompt("Task description", c.builder.DefaultTask)
	}
	d := checkpoint.Details{
		TaskDescription: task,
		CompletedSteps:  checkpoint.ParseSteps(c.io.Prompt("Completed steps (comma separated)", "")),
		CurrentStep:     c.io.Prompt("Current step", ""),
		NextSteps:       checkpoint.ParseSteps(c.io.Prompt("Next steps (comma separated)", "")),
	}
	cp, err := c.SaveCheckpoint(ctx, d)
	if err != nil {
		c.io.Error(err.Error())
		return
	}
	c.io.SystemMessage(fmt.Sprintf("Checkpoint %s saved (%s). Started a fresh session.",
		shortID(cp.ID), cp.TaskDescription))
}

// handleSlashCommand processes built-in commands.
// Returns (handled, shouldQuit).
func (c *Controller) handleSlashCommand(ctx context.Context, input string) (bool, bool) {
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		c.io.SystemMessage("Bye.")
		return true, true
	case "/clear":
		c.NewSession()
		c.io.SystemMessage("Session cleared.")
		return true, false
	case "/history":
		c.io.SystemMessage(formatHistory(c.state.Messages))
		return true, false
	case "/status":
		c.io.SystemMessage(formatStatus(c.state, c.limits))
		return true, false
	case "/checkpoint":
		c.saveInteractive(ctx, arg)
		return true, false
	case "/checkpoints":
		return c.handleCheckpoints(ctx), false
	case "/retry":
		return c.handleRetry(ctx), false
	case "/model":
		return c.handleModel(arg), false
	case "/help":
		c.io.SystemMessage(helpText)
		return true, false
	default:
		return false, false
	}
}

const helpText = `Available commands:
  /help              Show this help message
  /status            Show token usage and context status
  /checkpoint [task] Save a checkpoint and start a fresh session
  /checkpoints       List recent checkpoints
  /retry             Resend the last failed message
  /model <name>      Switch model (e.g. /model claude-opus-4-20250514)
  /history           Show message history
  /clear             Start a new session without saving
  /quit              Exit`

func (c *Controller) handleCheckpoints(ctx context.Context) bool {
	cps, err := c.store.List(ctx, 10)
	if err != nil {
		c.io.Error("List checkpoints failed: " + err.Error())
		return true
	}
	if len(cps) == 0 {
		c.io.SystemMessage("No checkpoints saved.")
		return true
	}
	c.io.SystemMessage(FormatCheckpointList(cps))
	return true
}

func (c *Controller) handleRetry(ctx context.Context) bool {
	_, err := c.Retry(ctx)
	switch {
	case errors.Is(err, ErrNothingToRetry):
		c.io.SystemMessage("Nothing to retry.")
	case err != nil:
		c.io.Error(err.Error())
	default:
		c.afterExchange(ctx)
	}
	return true
}

func (c *Controller) handleModel(name string) bool {
	if name == "" {
		c.io.SystemMessage(fmt.Sprintf("Current model: %s\nUsage: /model <name>", c.Model()))
		return true
	}
	old := c.Model()
	c.SetModel(name)
	c.io.SystemMessage(fmt.Sprintf("Model switched: %s -> %s (limit %s tokens)",
		old, name, formatTokens(c.limits.For(name))))
	return true
}
