package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotPending is returned by Start when the demonstration was claimed or
// finished elsewhere.
var ErrNotPending = errors.New("demonstration is not pending")

// Start claims a pending demonstration for runID.
func (s *Store) Start(ctx context.Context, id int64, runID string) (*Item, error) {
	now := timestamp(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE demonstrations
         SET status = ?, run_id = ?, attempts = attempts + 1, started_at = ?, finished_at = NULL,
             error_message = NULL, error_kind = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		runID,
		now,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("start item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotPending)
	}
	return s.GetByID(ctx, id)
}

// Complete records a committed archive for a processing demonstration.
func (s *Store) Complete(ctx context.Context, id int64, out Outcome) error {
	prompts, err := nullableJSON(out.Prompts)
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	now := timestamp(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE demonstrations
         SET status = ?, archive_path = ?, mode = ?, frames = ?, prompts_json = ?, datasets = ?,
             archive_bytes = ?, error_message = NULL, error_kind = NULL, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		nullableString(out.ArchivePath),
		nullableString(out.Mode),
		out.Frames,
		prompts,
		out.Datasets,
		out.ArchiveBytes,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("complete item %d: %w", id, err)
	}
	return nil
}

// Fail records cause against a processing demonstration and returns the
// status chosen by FailureStatus.
func (s *Store) Fail(ctx context.Context, id int64, cause error) (Status, error) {
	status := FailureStatus(cause)
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	now := timestamp(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE demonstrations
         SET status = ?, error_message = ?, error_kind = ?, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		status,
		message,
		ErrorKind(cause),
		now,
		now,
		id,
	); err != nil {
		return status, fmt.Errorf("fail item %d: %w", id, err)
	}
	return status, nil
}

// ResetStuckProcessing returns demonstrations left processing by an
// interrupted run to pending.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE demonstrations
         SET status = ?, error_message = 'reset from interrupted run', updated_at = ?
         WHERE status = ?`,
		StatusPending,
		timestamp(time.Now()),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed and review demonstrations back to pending. With no
// ids every such demonstration is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return s.requeue(ctx, []Status{StatusFailed, StatusReview}, ids)
}

// Requeue moves any demonstration that is not processing back to pending,
// including completed ones. With no ids every such demonstration is requeued.
func (s *Store) Requeue(ctx context.Context, ids ...int64) (int64, error) {
	return s.requeue(ctx, []Status{StatusCompleted, StatusFailed, StatusReview}, ids)
}

func (s *Store) requeue(ctx context.Context, from []Status, ids []int64) (int64, error) {
	query := `UPDATE demonstrations
        SET status = ?, error_message = NULL, error_kind = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(from)) + `)`
	args := append([]any{StatusPending, timestamp(time.Now())}, statusArgs(from)...)
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		args = append(args, idArgs(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue items: %w", err)
	}
	return res.RowsAffected()
}
