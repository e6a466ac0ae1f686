package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"demoarchive/internal/queue"
	"demoarchive/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staging workspaces",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			dirs, err := staging.ListDirectories(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}
			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
			}

			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.DirInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging workspaces found")
				return nil
			}
			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)

			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				age := time.Since(dir.ModTime).Truncate(time.Minute)
				rows = append(rows, []string{dir.Demo, formatDuration(age), humanize.Bytes(uint64(dir.Size))})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Demonstration", "Age", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d workspaces, %s\n", len(dirs), humanize.Bytes(uint64(totalSize)))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var orphaned bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover staging workspaces",
		Long: `Remove staging workspaces left behind by interrupted runs.

By default only workspaces older than workflow.staging_max_age_hours are removed.
--orphaned removes every workspace whose demonstration is not processing in the ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var result staging.CleanStaleResult
			label := "stale"
			if orphaned {
				label = "orphaned"
				err = ctx.withQueueStore(func(store *queue.Store) error {
					items, err := store.List(cmd.Context(), queue.StatusProcessing)
					if err != nil {
						return err
					}
					active := make(map[string]struct{}, len(items))
					for _, item := range items {
						active[item.Name] = struct{}{}
					}
					result = staging.CleanOrphaned(cmd.Context(), cfg.Paths.StagingDir, active, nil)
					return nil
				})
				if err != nil {
					return err
				}
			} else {
				maxAge := time.Duration(cfg.Workflow.StagingMaxAgeHours) * time.Hour
				result = staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, nil)
			}

			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			printStagingCleanResult(cmd, result, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&orphaned, "orphaned", false, "Remove every workspace not owned by a processing demonstration")
	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanStaleResult, label string) {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintf(out, "No %s workspaces to clean\n", label)
		return
	}
	fmt.Fprintf(out, "Removed %d %s workspaces", len(result.Removed), label)
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, ", %d errors\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return
	}
	fmt.Fprintln(out)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanStaleResult) error {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	return writeJSON(cmd, map[string]any{
		"removed": len(result.Removed),
		"errors":  errs,
	})
}
