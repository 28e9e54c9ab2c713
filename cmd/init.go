package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apexion-ai/relaychat/internal/config"
	"github.com/apexion-ai/relaychat/internal/tui"
)

// initProviders lists the choices offered by the wizard.
var initProviders = []string{"anthropic", "openai", "deepseek", "minimax", "kimi", "qwen", "groq"}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up relaychat: choose a provider, enter your API key, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(tui.NewPlainIO(), cfgFile)
		},
	}
}

func runInit(ui tui.IO, path string) error {
	if path == "" {
		path = config.DefaultPath()
	}

	ui.SystemMessage("Welcome to the relaychat configuration wizard!\n\nAvailable providers:")
	for i, p := range initProviders {
		ui.SystemMessage(fmt.Sprintf("  %d. %s", i+1, p))
	}
	choice := ui.Prompt(fmt.Sprintf("Select provider (1-%d)", len(initProviders)), "1")
	idx, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || idx < 1 || idx > len(initProviders) {
		idx = 1
	}
	providerName := initProviders[idx-1]
	ui.SystemMessage("Selected: " + providerName)

	apiKey := strings.TrimSpace(ui.Prompt("Enter API key for "+providerName, ""))
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	model := strings.TrimSpace(ui.Prompt("Model (empty for provider default)", ""))

	cfg := config.DefaultConfig()
	cfg.Provider = providerName
	cfg.Providers[providerName] = &config.ProviderConfig{APIKey: apiKey, Model: model}

	if _, err := os.Stat(path); err == nil {
		if !ui.Confirm(fmt.Sprintf("Config file already exists at %s. Overwrite?", path)) {
			ui.SystemMessage("Aborted.")
			return nil
		}
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	ui.SystemMessage(fmt.Sprintf("Config saved to %s\nYou can now run: relaychat", path))
	return nil
}
