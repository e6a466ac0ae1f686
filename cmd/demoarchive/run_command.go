package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"demoarchive/internal/queue"
	"demoarchive/internal/staging"
	"demoarchive/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts workflow.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Archive every pending demonstration",
		Long: `Discover demonstrations under paths.demos_dir, record them in the ledger,
and archive each pending one in the configured tracking mode.

Failed and review demonstrations are skipped unless --retry is given.
--force reprocesses completed demonstrations as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			logger, err := ctx.logger(cfg, runID)
			if err != nil {
				return err
			}
			maxAge := time.Duration(cfg.Workflow.StagingMaxAgeHours) * time.Hour
			staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, logger)

			return ctx.withQueueStore(func(store *queue.Store) error {
				manager, err := newManager(cfg, store, logger)
				if err != nil {
					return err
				}
				summary, err := manager.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if err := writeJSON(cmd, summary); err != nil {
						return err
					}
				} else {
					printRunSummary(cmd, summary)
				}
				if unresolved := summary.Failed + summary.Review; unresolved > 0 {
					return fmt.Errorf("%d of %d demonstrations did not archive; see `demoarchive queue list`", unresolved, summary.Processed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Retry, "retry", false, "Retry failed and review demonstrations")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Reprocess completed demonstrations too")
	return cmd
}

func printRunSummary(cmd *cobra.Command, summary workflow.Summary) {
	out := cmd.OutOrStdout()
	if summary.Processed == 0 {
		fmt.Fprintln(out, "No pending demonstrations")
		return
	}
	fmt.Fprintf(out, "Processed %d demonstrations (%d new): %d completed, %d failed, %d review\n",
		summary.Processed, summary.Discovered, summary.Completed, summary.Failed, summary.Review)
}
