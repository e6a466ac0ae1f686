package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"demoarchive/internal/config"
	"demoarchive/internal/queue"
)

// MustOpenStore opens the ledger for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue records a pending demonstration for tests.
func Enqueue(t testing.TB, store *queue.Store, cfg *config.Config, name string) *queue.Item {
	t.Helper()

	item, _, err := store.Enqueue(context.Background(), name, filepath.Join(cfg.Paths.DemosDir, name))
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
