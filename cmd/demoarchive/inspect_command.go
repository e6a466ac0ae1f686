package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"demoarchive/internal/archive"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:         "inspect <archive>",
		Short:       "List the datasets of an archive",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := archive.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var issues []archive.Issue
			if verify {
				issues = report.Verify()
			}

			if ctx.JSONMode() {
				if err := writeJSON(cmd, map[string]any{
					"path":     report.Path,
					"meta":     report.Meta,
					"datasets": report.Datasets,
					"issues":   issues,
				}); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
				if verify {
					printIssues(cmd, issues)
				}
			}
			if len(issues) > 0 {
				return fmt.Errorf("%s failed verification with %d issues", report.Path, len(issues))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Check dataset shapes against the archive layout")
	return cmd
}

func printReport(cmd *cobra.Command, report *archive.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archive: %s\n", report.Path)
	for _, key := range []string{"demo", "mode", "n_frames", "format_version"} {
		if value, ok := report.Meta[key]; ok {
			fmt.Fprintf(out, "  %s: %s\n", key, value)
		}
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(report.Datasets))
	for _, info := range report.Datasets {
		rows = append(rows, []string{
			info.Path,
			string(info.DType),
			formatShape(info.Shape),
			humanize.Bytes(uint64(info.RawBytes)),
			humanize.Bytes(uint64(info.StoredBytes)),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Dataset", "Type", "Shape", "Raw", "Stored"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(out, "\n%d datasets, %s stored\n", len(report.Datasets), humanize.Bytes(uint64(report.StoredBytes())))
}

func printIssues(cmd *cobra.Command, issues []archive.Issue) {
	out := cmd.OutOrStdout()
	if len(issues) == 0 {
		fmt.Fprintln(out, "Verification passed")
		return
	}
	fmt.Fprintf(out, "Verification found %d issues:\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(out, "  %s\n", issue)
	}
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = strconv.Itoa(dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
