package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"demoarchive/internal/logging"
	"demoarchive/internal/queue"
)

// RunOptions selects which demonstrations Run reprocesses.
type RunOptions struct {
	// Retry returns failed and review demonstrations to pending first.
	Retry bool
	// Force reprocesses every demonstration, including completed ones.
	Force bool
}

// Summary counts the outcomes of one Run.
type Summary struct {
	Discovered int
	Processed  int
	Completed  int
	Failed     int
	Review     int
}

func newRunID() string {
	return uuid.NewString()
}

// Run syncs the ledger and processes pending demonstrations until none
// remain or ctx is cancelled.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	var summary Summary

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return summary, err
	}
	if reset > 0 {
		logging.WarnWithContext(m.logger, "reset demonstrations left processing", "ledger_reset",
			logging.Int64("count", reset),
			logging.String(logging.FieldErrorHint, "a previous run was interrupted"),
			logging.String(logging.FieldImpact, "those demonstrations are processed again"),
		)
	}

	if summary.Discovered, err = m.Sync(ctx); err != nil {
		return summary, err
	}
	if opts.Force {
		if _, err := m.store.Requeue(ctx); err != nil {
			return summary, err
		}
	} else if opts.Retry {
		if _, err := m.store.RetryFailed(ctx); err != nil {
			return summary, err
		}
	}

	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item, err := m.store.NextPending(ctx)
		if err != nil {
			return summary, err
		}
		if item == nil {
			break
		}
		status, err := m.Process(ctx, item)
		if err != nil {
			return summary, err
		}
		summary.Processed++
		switch status {
		case queue.StatusCompleted:
			summary.Completed++
		case queue.StatusReview:
			summary.Review++
		default:
			summary.Failed++
		}
	}

	m.logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("discovered", summary.Discovered),
		logging.Int("processed", summary.Processed),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("review", summary.Review),
		logging.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// ProcessDirectory records root in the ledger and processes it immediately in
// mode, whatever its previous status.
func (m *Manager) ProcessDirectory(ctx context.Context, root, mode string) (*queue.Item, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	item, _, err := m.store.Enqueue(ctx, filepath.Base(abs), abs)
	if err != nil {
		return nil, err
	}
	if item.Status != queue.StatusPending {
		if _, err := m.store.Requeue(ctx, item.ID); err != nil {
			return nil, err
		}
	}
	if _, err := m.process(ctx, item, mode); err != nil {
		return nil, err
	}
	return m.store.GetByID(ctx, item.ID)
}
