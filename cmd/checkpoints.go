package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apexion-ai/relaychat/internal/activity"
	"github.com/apexion-ai/relaychat/internal/chat"
	"github.com/apexion-ai/relaychat/internal/checkpoint"
)

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"cp"},
		Short:   "Inspect and manage saved checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCmd())
	cmd.AddCommand(newCheckpointsShowCmd())
	cmd.AddCommand(newCheckpointsExportCmd())
	cmd.AddCommand(newCheckpointsStatusCmd("abandon", "Mark a checkpoint abandoned", checkpoint.StatusAbandoned))
	cmd.AddCommand(newCheckpointsStatusCmd("complete", "Mark a checkpoint completed", checkpoint.StatusCompleted))
	cmd.AddCommand(newCheckpointsActivityCmd())
	return cmd
}

// withStore opens the configured checkpoint store for the duration of fn.
// These commands never talk to a provider, so no API key is needed.
func withStore(fn func(store checkpoint.Store) error) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newCheckpointsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store checkpoint.Store) error {
				cps, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(cps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints saved.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), chat.FormatCheckpointList(cps))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of checkpoints to list")
	return cmd
}

func newCheckpointsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a checkpoint and its continuation prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store checkpoint.Store) error {
				cp, err := resolveCheckpoint(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				writeCheckpointDetails(cmd.OutOrStdout(), cp)
				return nil
			})
		},
	}
}

func newCheckpointsExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a checkpoint as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store checkpoint.Store) error {
				cp, err := resolveCheckpoint(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				return exportCheckpoint(cmd.OutOrStdout(), cp, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json|yaml")
	return cmd
}

func newCheckpointsStatusCmd(use, short string, status checkpoint.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store checkpoint.Store) error {
				cp, err := resolveCheckpoint(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				updated, err := store.UpdateStatus(cmd.Context(), cp.ID, status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s is now %s.\n", updated.ID, updated.Status)
				return nil
			})
		},
	}
}

func newCheckpointsActivityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent checkpoint activity from the configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			tracker, err := buildTracker(cfg, store)
			if err != nil {
				return err
			}
			defer tracker.Close()

			reader, ok := tracker.(activity.Reader)
			if !ok {
				return fmt.Errorf("activity sink %q cannot be read back", cfg.Activity.Sink)
			}
			acts, err := reader.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeActivities(cmd.OutOrStdout(), acts)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of activities to show")
	return cmd
}

func writeActivities(w io.Writer, acts []activity.Activity) {
	if len(acts) == 0 {
		fmt.Fprintln(w, "No activity recorded.")
		return
	}
	for _, a := range acts {
		fmt.Fprintf(w, "%-16s %-18s %s\n", humanize.Time(a.Timestamp), a.Type, describeActivity(a))
	}
}

func describeActivity(a activity.Activity) string {
	if a.Type != activity.TypeCheckpointSaved {
		return string(a.Payload)
	}
	var p struct {
		CheckpointID string `json:"checkpointId"`
		Task         string `json:"task"`
		PercentUsed  int    `json:"percentUsed"`
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return string(a.Payload)
	}
	id := p.CheckpointID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s  %d%%  %s", id, p.PercentUsed, p.Task)
}

// resolveCheckpoint accepts a full ID or a unique prefix of a recent one.
func resolveCheckpoint(ctx context.Context, store checkpoint.Store, idOrPrefix string) (*checkpoint.Checkpoint, error) {
	cp, err := store.Get(ctx, idOrPrefix)
	if err == nil {
		return cp, nil
	}
	if !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, err
	}

	cps, err := store.List(ctx, 200)
	if err != nil {
		return nil, err
	}
	var match *checkpoint.Checkpoint
	for i := range cps {
		if !strings.HasPrefix(cps[i].ID, idOrPrefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("checkpoint prefix %q is ambiguous", idOrPrefix)
		}
		match = &cps[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrNotFound, idOrPrefix)
	}
	return match, nil
}

func exportCheckpoint(w io.Writer, cp *checkpoint.Checkpoint, format string) error {
	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cp); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (want json or yaml)", format)
}

func writeCheckpointDetails(w io.Writer, cp *checkpoint.Checkpoint) {
	u := cp.TokenUsage
	fmt.Fprintf(w, "ID:       %s\n", cp.ID)
	fmt.Fprintf(w, "Session:  %s\n", cp.SessionID)
	fmt.Fprintf(w, "Status:   %s\n", cp.Status)
	fmt.Fprintf(w, "Created:  %s (%s)\n", cp.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(cp.CreatedAt))
	fmt.Fprintf(w, "Model:    %s\n", u.Model)
	fmt.Fprintf(w, "Tokens:   %s total (%s%%)\n", humanize.Comma(int64(u.TotalTokens)), humanize.FtoaWithDigits(u.PercentUsed*100, 1))
	fmt.Fprintf(w, "Messages: %d\n\n", len(cp.Messages))
	fmt.Fprintln(w, cp.ContinuationPrompt)
}
