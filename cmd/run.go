package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apexion-ai/relaychat/internal/chat"
	"github.com/apexion-ai/relaychat/internal/tui"
)

func newRunCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send a single prompt non-interactively",
		Example: `  relaychat run -P "summarize the tradeoffs of WAL mode"
  relaychat run --prompt "hello" -m claude-3-5-haiku-20241022`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			return runOnce(cmd, prompt)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the prompt to send")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

// runOnce sends a single prompt and exits.
func runOnce(cmd *cobra.Command, prompt string) error {
	a, err := newApp(tui.NewPlainIO(), chat.ResumeNo)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	return a.controller.RunOnce(ctx, prompt)
}
