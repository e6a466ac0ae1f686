package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"demoarchive/internal/logging"
)

func TestCleanupOldLogsRemovesExpiredMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "demoarchive.log.1")
	active := filepath.Join(dir, logging.LogFileName)
	fresh := filepath.Join(dir, "demoarchive.log.2")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, active, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	for _, path := range []string{old, active, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if n := logging.CleanupOldLogs(logging.NewNop(), dir, 14, active); n != 1 {
		t.Fatalf("expected one file removed, got %d", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected expired log removed, stat err=%v", err)
	}
	for _, path := range []string{active, fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", filepath.Base(path), err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demoarchive.log.1")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if n := logging.CleanupOldLogs(logging.NewNop(), dir, 0); n != 0 {
		t.Fatalf("retention 0 must not prune, removed %d", n)
	}
}
