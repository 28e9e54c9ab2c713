package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/apexion-ai/relaychat/internal/chat"
	"github.com/apexion-ai/relaychat/internal/tui"
)

// resumeMode validates --resume. Asking needs a terminal; without one the
// offer is skipped.
func resumeMode(flag string) (chat.ResumeMode, error) {
	switch m := chat.ResumeMode(flag); m {
	case chat.ResumeYes, chat.ResumeNo:
		return m, nil
	case chat.ResumeAsk, "":
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return chat.ResumeNo, nil
		}
		return chat.ResumeAsk, nil
	}
	return "", fmt.Errorf("invalid --resume %q (want ask, yes or no)", flag)
}

// runChat starts the interactive chat (REPL) mode.
func runChat(cmd *cobra.Command) error {
	mode, err := resumeMode(resumeFlag)
	if err != nil {
		return err
	}

	ui := tui.NewPlainIO()
	a, err := newApp(ui, mode)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	ui.SystemMessage(fmt.Sprintf("relaychat %s (%s, %s). Type /help for commands.",
		appVersion, a.cfg.Provider, a.controller.Model()))
	return a.controller.Run(ctx)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
