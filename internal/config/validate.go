package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"demoarchive/internal/rigid"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDemo(); err != nil {
		return err
	}
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateFiducial(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DemosDir == "" {
		return errors.New("paths.demos_dir must be set")
	}
	if c.Paths.ArchiveDir == "" {
		return errors.New("paths.archive_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

func (c *Config) validateDemo() error {
	if c.Demo.FrameDigits > 9 {
		return errors.New("demo.frame_digits must be between 1 and 9")
	}
	return nil
}

func (c *Config) validateCameras() error {
	if len(c.Cameras.Names) != requiredCameraCount {
		return fmt.Errorf("cameras.names must list exactly %d cameras, got %d", requiredCameraCount, len(c.Cameras.Names))
	}
	seen := make(map[string]struct{}, len(c.Cameras.Names))
	for _, name := range c.Cameras.Names {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("cameras.names contains duplicate camera %q", name)
		}
		seen[name] = struct{}{}
	}
	if _, ok := seen[c.Cameras.Reference]; !ok {
		return fmt.Errorf("cameras.reference %q must be one of cameras.names", c.Cameras.Reference)
	}
	return nil
}

func (c *Config) validateTracking() error {
	switch c.Tracking.Mode {
	case ModeTrack, ModeReplay, ModeImport:
	default:
		return fmt.Errorf("tracking.mode must be one of %s, %s, %s", ModeTrack, ModeReplay, ModeImport)
	}
	if c.Tracking.EstRefineIter <= 0 {
		return errors.New("tracking.est_refine_iter must be positive")
	}
	if c.Tracking.TrackRefineIter <= 0 {
		return errors.New("tracking.track_refine_iter must be positive")
	}
	if c.Tracking.EstimatorTimeoutSeconds <= 0 {
		return errors.New("tracking.estimator_timeout_seconds must be positive")
	}
	if len(c.Tracking.InitRotGuess) != requiredRotationGuessEntries {
		return fmt.Errorf("tracking.init_rot_guess must have %d entries, got %d", requiredRotationGuessEntries, len(c.Tracking.InitRotGuess))
	}
	guess := rigid.FromRotationTranslation(c.InitRotation(), r3.Vector{})
	if _, err := rigid.Invert(guess); err != nil {
		return fmt.Errorf("tracking.init_rot_guess must be a rotation: %w", err)
	}
	return nil
}

func (c *Config) validateFiducial() error {
	if c.Fiducial.Family == "" {
		return errors.New("fiducial.family must be set")
	}
	if c.Fiducial.TagID < 0 {
		return errors.New("fiducial.tag_id must be non-negative")
	}
	if c.Fiducial.TagSize <= 0 || math.IsNaN(c.Fiducial.TagSize) {
		return errors.New("fiducial.tag_size must be positive")
	}
	if err := validateTransform("fiducial.tag_to_robot", c.Fiducial.TagToRobot, true); err != nil {
		return err
	}
	if err := validateTransform("fiducial.tag_to_cam", c.Fiducial.TagToCam, false); err != nil {
		return err
	}
	return validateTransform("fiducial.fallback_tag_to_cam", c.Fiducial.FallbackTagToCam, false)
}

func (c *Config) validateArchive() error {
	if c.Archive.CompressionLevel < 1 || c.Archive.CompressionLevel > maxCompressionLevel {
		return fmt.Errorf("archive.compression_level must be between 1 and %d", maxCompressionLevel)
	}
	if c.Archive.Extension == "." {
		return errors.New("archive.extension must not be empty")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.StagingMaxAgeHours <= 0 {
		return errors.New("workflow.staging_max_age_hours must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}

func validateTransform(key string, values []float64, required bool) error {
	if len(values) == 0 {
		if required {
			return fmt.Errorf("%s must be set", key)
		}
		return nil
	}
	t, err := rigid.FromMatrix(4, 4, values)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if t.IsSentinel() {
		return fmt.Errorf("%s must not be the all-zero matrix", key)
	}
	if _, err := rigid.Invert(t); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
