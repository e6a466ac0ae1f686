package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"demoarchive/internal/archive"
	"demoarchive/internal/config"
	"demoarchive/internal/consolidate"
	"demoarchive/internal/logging"
	"demoarchive/internal/queue"
	"demoarchive/internal/workflow"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// JSONMode reports whether --json was given.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger builds the run logger and prunes log files past retention.
func (c *commandContext) logger(cfg *config.Config, runID string) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return nil, err
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	return logger, nil
}

func (c *commandContext) withQueueStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// newManager wires the consolidator, archive writer, and ledger.
func newManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*workflow.Manager, error) {
	cons, err := consolidate.New(cfg, nil, nil, logger)
	if err != nil {
		return nil, err
	}
	return workflow.NewManager(cfg, store, cons, archive.NewWriter(cfg, logger), logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
