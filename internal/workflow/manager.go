package workflow

import (
	"context"
	"log/slog"

	"demoarchive/internal/archive"
	"demoarchive/internal/config"
	"demoarchive/internal/consolidate"
	"demoarchive/internal/logging"
	"demoarchive/internal/queue"
)

// Consolidator builds a Table for one demonstration directory.
type Consolidator interface {
	RunMode(ctx context.Context, root, mode string) (*consolidate.Table, error)
}

// Archiver commits a Table to an archive file.
type Archiver interface {
	Write(ctx context.Context, path string, table *consolidate.Table) (archive.WriteResult, error)
}

// Manager coordinates ledger processing.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	consolidator Consolidator
	archiver     Archiver
	logger       *slog.Logger
	newRunID     func() string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) ManagerOption {
	return func(m *Manager) {
		if next != nil {
			m.newRunID = next
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, consolidator Consolidator, archiver Archiver, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		consolidator: consolidator,
		archiver:     archiver,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		newRunID:     newRunID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
