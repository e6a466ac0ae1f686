package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Busy handling on top of busy_timeout: a second process (inspect, queue
// list) may hold the write lock briefly while a run updates rows.
var busyBackoff = []time.Duration{10 * time.Millisecond, 25 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

func isBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// SQLITE_BUSY, SQLITE_LOCKED
		return coder.Code() == 5 || coder.Code() == 6
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// withBusyRetry runs op until it succeeds, fails with a non-busy error, or
// the backoff schedule runs out.
func withBusyRetry(ctx context.Context, op func() error) error {
	err := op()
	for _, wait := range busyBackoff {
		if !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		err = op()
	}
	return err
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := withBusyRetry(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	_, err := s.execWithRetry(ctx, query, args...)
	return err
}
