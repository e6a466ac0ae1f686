package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"demoarchive/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the demonstration ledger",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List demonstrations in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, err := queue.ParseStatus(value)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			return ctx.withQueueStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if items == nil {
						items = []*queue.Item{}
					}
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Name,
						string(item.Status),
						strconv.Itoa(item.Frames),
						strconv.Itoa(item.Attempts),
						truncate(item.ErrorMessage, 60),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Demonstration", "Status", "Frames", "Attempts", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Only list demonstrations with these statuses")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the ledger by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueStore(func(store *queue.Store) error {
				summary, err := store.Summary(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, summary)
				}
				rows := [][]string{
					{string(queue.StatusPending), strconv.Itoa(summary.Pending)},
					{string(queue.StatusProcessing), strconv.Itoa(summary.Processing)},
					{string(queue.StatusCompleted), strconv.Itoa(summary.Completed)},
					{string(queue.StatusFailed), strconv.Itoa(summary.Failed)},
					{string(queue.StatusReview), strconv.Itoa(summary.Review)},
					{"total", strconv.Itoa(summary.Total)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed or review demonstrations to pending",
		Long: `Return failed and review demonstrations to pending so the next run picks them up.

Without ids every failed and review demonstration is retried. --all also
requeues completed demonstrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueueStore(func(store *queue.Store) error {
				var count int64
				if all {
					count, err = store.Requeue(cmd.Context(), ids...)
				} else {
					count, err = store.RetryFailed(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"requeued": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d demonstrations\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Requeue completed demonstrations as well")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "clear [id...]",
		Short: "Remove demonstrations from the ledger",
		Long: `Remove demonstrations from the ledger. Archives on disk are not touched.

With ids only those rows are removed. --completed removes every completed row.
Without either flag the whole ledger is cleared.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueueStore(func(store *queue.Store) error {
				var removed int64
				switch {
				case len(ids) > 0:
					for _, id := range ids {
						ok, err := store.Remove(cmd.Context(), id)
						if err != nil {
							return err
						}
						if ok {
							removed++
						}
					}
				case completedOnly:
					removed, err = store.ClearCompleted(cmd.Context())
				default:
					removed, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ledger rows\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only remove completed demonstrations")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid ledger id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
