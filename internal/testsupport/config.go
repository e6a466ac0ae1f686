package testsupport

import (
	"path/filepath"
	"testing"

	"demoarchive/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DemosDir = filepath.Join(base, "demos")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archives")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.Workers = 4
	cfgVal.Archive.CompressionLevel = 3

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMode selects the tracking mode.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracking.Mode = mode
	}
}

// WithPrompts declares the object prompts instead of discovering them.
func WithPrompts(prompts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Objects.Prompts = append([]string(nil), prompts...)
	}
}

// WithUseAllMasks re-registers on every frame that has a mask.
func WithUseAllMasks() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracking.UseAllMasks = true
	}
}

// WithFallbackTagToCam configures the fallback fiducial detection.
func WithFallbackTagToCam(values []float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fiducial.FallbackTagToCam = append([]float64(nil), values...)
	}
}

// WithoutMasks disables mask archiving.
func WithoutMasks() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.IncludeMasks = false
	}
}

// WithWorkers sets the loader worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
