package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"demoarchive/internal/rigid"
)

//go:embed sample_config.toml
var sampleConfig string

// Tracking modes.
const (
	// ModeTrack drives the state machine and calls the pose estimator.
	ModeTrack = "track"
	// ModeReplay drives the state machine over poses the upstream tracker
	// already wrote to output_<prompt>.
	ModeReplay = "replay"
	// ModeImport copies the upstream per-frame files without the state machine.
	ModeImport = "import"
)

// Paths contains input, output, and state directory configuration.
type Paths struct {
	DemosDir   string `toml:"demos_dir"`
	ArchiveDir string `toml:"archive_dir"`
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Demo describes how demonstration directories are discovered and indexed.
type Demo struct {
	Glob        string `toml:"glob"`
	FrameDigits int    `toml:"frame_digits"`
}

// Cameras names the three fixed camera streams. Directory indices follow the
// order of Names (rgb_cam_0 is Names[0]).
type Cameras struct {
	Names     []string `toml:"names"`
	Reference string   `toml:"reference"`
}

// Objects lists object prompts. An empty list enables directory discovery.
type Objects struct {
	Prompts []string `toml:"prompts"`
}

// Tracking configures the per-object pose state machine and estimator.
type Tracking struct {
	Mode                    string    `toml:"mode"`
	UseAllMasks             bool      `toml:"use_all_masks"`
	RegisterFirstFrame      bool      `toml:"register_first_frame"`
	EstRefineIter           int       `toml:"est_refine_iter"`
	TrackRefineIter         int       `toml:"track_refine_iter"`
	InitRotGuess            []float64 `toml:"init_rot_guess"`
	EstimatorCommand        []string  `toml:"estimator_command"`
	EstimatorTimeoutSeconds int       `toml:"estimator_timeout_seconds"`
	WriteArtifacts          bool      `toml:"write_artifacts"`
}

// Fiducial configures tag detection and the tag-to-robot calibration.
type Fiducial struct {
	Family           string    `toml:"family"`
	TagID            int       `toml:"tag_id"`
	TagSize          float64   `toml:"tag_size"`
	DetectorCommand  []string  `toml:"detector_command"`
	TagToCam         []float64 `toml:"tag_to_cam"`
	FallbackTagToCam []float64 `toml:"fallback_tag_to_cam"`
	TagToRobot       []float64 `toml:"tag_to_robot"`
}

// Archive controls archive naming and dataset encoding.
type Archive struct {
	Extension        string `toml:"extension"`
	CompressionLevel int    `toml:"compression_level"`
	IncludeMasks     bool   `toml:"include_masks"`
	RemoveLegacyKeys bool   `toml:"remove_legacy_keys"`
}

// Workflow contains batch processing knobs.
type Workflow struct {
	Workers            int `toml:"workers"`
	StagingMaxAgeHours int `toml:"staging_max_age_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for demoarchive.
//
// Configuration sections by subsystem:
//   - Paths: demonstration inputs, archive outputs, staging, ledger state, logs
//   - Demo: demonstration discovery and frame file naming
//   - Cameras: the three camera names and the reference camera
//   - Objects: explicit object prompts
//   - Tracking: state machine policy and the pose estimator command
//   - Fiducial: tag detection and the robot calibration
//   - Archive: archive file naming and compression
//   - Workflow: worker pool sizing and staging retention
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Demo     Demo     `toml:"demo"`
	Cameras  Cameras  `toml:"cameras"`
	Objects  Objects  `toml:"objects"`
	Tracking Tracking `toml:"tracking"`
	Fiducial Fiducial `toml:"fiducial"`
	Archive  Archive  `toml:"archive"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigLocation)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("demoarchive.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, staging, state, and log directories.
// The demonstrations directory is input and is never created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArchiveDir, c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ReferenceCameraIndex returns the directory index of the reference camera.
func (c *Config) ReferenceCameraIndex() int {
	for i, name := range c.Cameras.Names {
		if name == c.Cameras.Reference {
			return i
		}
	}
	return -1
}

// ArchivePath returns the archive file for a demonstration directory name.
func (c *Config) ArchivePath(demoName string) string {
	return filepath.Join(c.Paths.ArchiveDir, demoName+c.Archive.Extension)
}

// LedgerPath returns the sqlite ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// TagToRobot returns the configured tag-to-robot calibration.
func (c *Config) TagToRobot() rigid.Transform {
	t, _ := transformFrom(c.Fiducial.TagToRobot)
	return t
}

// StaticTagToCam returns the fixed tag detection when one is configured.
func (c *Config) StaticTagToCam() (rigid.Transform, bool) {
	if len(c.Fiducial.TagToCam) == 0 {
		return rigid.Sentinel, false
	}
	t, err := transformFrom(c.Fiducial.TagToCam)
	return t, err == nil
}

// FallbackTagToCam returns the transform substituted when tag detection fails.
func (c *Config) FallbackTagToCam() (rigid.Transform, bool) {
	if len(c.Fiducial.FallbackTagToCam) == 0 {
		return rigid.Sentinel, false
	}
	t, err := transformFrom(c.Fiducial.FallbackTagToCam)
	return t, err == nil
}

// InitRotation returns the registration rotation guess row-major.
func (c *Config) InitRotation() [9]float64 {
	var rot [9]float64
	copy(rot[:], c.Tracking.InitRotGuess)
	return rot
}

func transformFrom(values []float64) (rigid.Transform, error) {
	return rigid.FromMatrix(4, 4, values)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
