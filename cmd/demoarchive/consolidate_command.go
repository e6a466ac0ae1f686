package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"demoarchive/internal/config"
	"demoarchive/internal/queue"
)

func newConsolidateCommand(ctx *commandContext) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "consolidate <demo-dir>",
		Short: "Archive one demonstration directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode == "" {
				mode = cfg.Tracking.Mode
			}
			switch mode {
			case config.ModeTrack, config.ModeReplay, config.ModeImport:
			default:
				return fmt.Errorf("unknown mode %q (want %s, %s, or %s)", mode, config.ModeTrack, config.ModeReplay, config.ModeImport)
			}

			logger, err := ctx.logger(cfg, uuid.NewString())
			if err != nil {
				return err
			}
			return ctx.withQueueStore(func(store *queue.Store) error {
				manager, err := newManager(cfg, store, logger)
				if err != nil {
					return err
				}
				item, err := manager.ProcessDirectory(cmd.Context(), args[0], mode)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, item)
				}
				if item.Status != queue.StatusCompleted {
					return fmt.Errorf("%s: %s (%s)", item.Name, item.ErrorMessage, item.Status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %s: %d frames, %d datasets, %s -> %s\n",
					item.Name, item.Frames, item.Datasets, humanize.Bytes(uint64(item.ArchiveBytes)), item.ArchivePath)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Tracking mode: track, replay, or import (default from config)")
	return cmd
}
