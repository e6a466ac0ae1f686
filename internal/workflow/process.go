package workflow

import (
	"context"
	"errors"
	"time"

	"demoarchive/internal/logging"
	"demoarchive/internal/queue"
)

// Process consolidates and archives one pending demonstration in the
// configured mode and returns its resulting status. The returned error is
// non-nil only when the ledger itself could not be updated or ctx was
// cancelled; demonstration failures are recorded, not returned.
func (m *Manager) Process(ctx context.Context, item *queue.Item) (queue.Status, error) {
	return m.process(ctx, item, m.cfg.Tracking.Mode)
}

func (m *Manager) process(ctx context.Context, item *queue.Item, mode string) (queue.Status, error) {
	runID := m.newRunID()
	claimed, err := m.store.Start(ctx, item.ID, runID)
	if err != nil {
		return queue.StatusPending, err
	}

	ctx = logging.WithDemo(ctx, claimed.Name)
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldRunID, runID))
	logger.Info("demonstration started",
		logging.String(logging.FieldEventType, "demo_start"),
		logging.String("source", claimed.SourcePath),
		logging.String("mode", mode),
		logging.Int("attempt", claimed.Attempts),
	)
	start := time.Now()

	out, runErr := m.archiveDemo(ctx, claimed, mode)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			// Leave the row processing; the next run resets it.
			logger.Debug("demonstration interrupted by shutdown")
			return queue.StatusProcessing, runErr
		}
		status, err := m.store.Fail(context.WithoutCancel(ctx), claimed.ID, runErr)
		if err != nil {
			return status, err
		}
		logging.ErrorWithContext(logger, "demonstration failed", "demo_failure",
			logging.String("resolved_status", string(status)),
			logging.String("error_kind", queue.ErrorKind(runErr)),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, failureHint(status)),
			logging.String(logging.FieldImpact, "no archive was written for this demonstration"),
		)
		return status, nil
	}

	if err := m.store.Complete(ctx, claimed.ID, out); err != nil {
		return queue.StatusProcessing, err
	}
	logger.Info("demonstration archived",
		logging.String(logging.FieldEventType, "demo_complete"),
		logging.String("archive", out.ArchivePath),
		logging.Int("frames", out.Frames),
		logging.Int("datasets", out.Datasets),
		logging.Int64("bytes", out.ArchiveBytes),
		logging.Duration("duration", time.Since(start)),
	)
	return queue.StatusCompleted, nil
}

func (m *Manager) archiveDemo(ctx context.Context, item *queue.Item, mode string) (queue.Outcome, error) {
	table, err := m.consolidator.RunMode(ctx, item.SourcePath, mode)
	if err != nil {
		return queue.Outcome{}, err
	}
	path := m.cfg.ArchivePath(item.Name)
	result, err := m.archiver.Write(ctx, path, table)
	if err != nil {
		return queue.Outcome{}, err
	}
	return queue.Outcome{
		ArchivePath:  result.Path,
		Mode:         table.Mode,
		Frames:       table.Frames,
		Prompts:      table.Prompts(),
		Datasets:     result.Datasets,
		ArchiveBytes: result.Bytes,
	}, nil
}

func failureHint(status queue.Status) string {
	if status == queue.StatusReview {
		return "fix the demonstration inputs, then run with --retry"
	}
	return "check the estimator and storage, then run with --retry"
}
