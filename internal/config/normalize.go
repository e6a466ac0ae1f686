package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Environment overrides applied before defaults are filled in.
const (
	envDemosDir = "DEMOARCHIVE_DEMOS_DIR"
	envLogLevel = "DEMOARCHIVE_LOG_LEVEL"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDemo()
	c.normalizeCameras()
	c.normalizeObjects()
	c.normalizeTracking()
	c.normalizeFiducial()
	c.normalizeArchive()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnvOverrides() {
	if value, ok := os.LookupEnv(envDemosDir); ok && strings.TrimSpace(value) != "" {
		c.Paths.DemosDir = value
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.demos_dir", &c.Paths.DemosDir, defaultDemosDir},
		{"paths.archive_dir", &c.Paths.ArchiveDir, defaultArchiveDir},
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeDemo() {
	c.Demo.Glob = strings.TrimSpace(c.Demo.Glob)
	if c.Demo.Glob == "" {
		c.Demo.Glob = defaultDemoGlob
	}
	if c.Demo.FrameDigits <= 0 {
		c.Demo.FrameDigits = defaultFrameDigits
	}
}

func (c *Config) normalizeCameras() {
	names := make([]string, 0, len(c.Cameras.Names))
	for _, name := range c.Cameras.Names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	if len(names) == 0 {
		names = append(names, defaultCameraNames...)
	}
	c.Cameras.Names = names
	c.Cameras.Reference = strings.TrimSpace(c.Cameras.Reference)
	if c.Cameras.Reference == "" {
		c.Cameras.Reference = defaultReferenceCamera
	}
}

func (c *Config) normalizeObjects() {
	prompts := make([]string, 0, len(c.Objects.Prompts))
	seen := make(map[string]struct{}, len(c.Objects.Prompts))
	for _, prompt := range c.Objects.Prompts {
		trimmed := strings.TrimSpace(prompt)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		prompts = append(prompts, trimmed)
	}
	c.Objects.Prompts = prompts
}

func (c *Config) normalizeTracking() {
	c.Tracking.Mode = strings.ToLower(strings.TrimSpace(c.Tracking.Mode))
	if c.Tracking.Mode == "" {
		c.Tracking.Mode = ModeTrack
	}
	if c.Tracking.EstRefineIter <= 0 {
		c.Tracking.EstRefineIter = defaultEstRefineIter
	}
	if c.Tracking.TrackRefineIter <= 0 {
		c.Tracking.TrackRefineIter = defaultTrackRefineIter
	}
	if len(c.Tracking.InitRotGuess) == 0 {
		c.Tracking.InitRotGuess = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
	if c.Tracking.EstimatorTimeoutSeconds <= 0 {
		c.Tracking.EstimatorTimeoutSeconds = defaultEstimatorTimeout
	}
	c.Tracking.EstimatorCommand = trimArgs(c.Tracking.EstimatorCommand)
}

func (c *Config) normalizeFiducial() {
	c.Fiducial.Family = strings.TrimSpace(c.Fiducial.Family)
	if c.Fiducial.Family == "" {
		c.Fiducial.Family = defaultTagFamily
	}
	if c.Fiducial.TagSize <= 0 {
		c.Fiducial.TagSize = defaultTagSize
	}
	if len(c.Fiducial.TagToRobot) == 0 {
		c.Fiducial.TagToRobot = []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	}
	c.Fiducial.DetectorCommand = trimArgs(c.Fiducial.DetectorCommand)
}

func (c *Config) normalizeArchive() {
	c.Archive.Extension = strings.TrimSpace(c.Archive.Extension)
	if c.Archive.Extension == "" {
		c.Archive.Extension = defaultArchiveExtension
	}
	if !strings.HasPrefix(c.Archive.Extension, ".") {
		c.Archive.Extension = "." + c.Archive.Extension
	}
	if c.Archive.CompressionLevel <= 0 {
		c.Archive.CompressionLevel = defaultCompressionLevel
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = runtime.NumCPU()
	}
	if c.Workflow.StagingMaxAgeHours <= 0 {
		c.Workflow.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "":
		c.Logging.Format = defaultLogFormat
	case "auto", "console", "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
