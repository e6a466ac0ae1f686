package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"demoarchive/internal/config"
	"demoarchive/internal/rigid"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "demoarchive", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.DemosDir != filepath.Join(tempHome, "demos") {
		t.Fatalf("unexpected demos dir: %q", cfg.Paths.DemosDir)
	}
	if cfg.Cameras.Reference != "side_cam" {
		t.Fatalf("unexpected reference camera: %q", cfg.Cameras.Reference)
	}
	if got := cfg.ReferenceCameraIndex(); got != 2 {
		t.Fatalf("expected side_cam at index 2, got %d", got)
	}
	if cfg.Tracking.Mode != config.ModeTrack {
		t.Fatalf("expected track mode, got %q", cfg.Tracking.Mode)
	}
	if cfg.Tracking.EstRefineIter != 5 || cfg.Tracking.TrackRefineIter != 2 {
		t.Fatalf("unexpected refine iterations: %d/%d", cfg.Tracking.EstRefineIter, cfg.Tracking.TrackRefineIter)
	}
	if cfg.Fiducial.Family != "tagStandard41h12" || cfg.Fiducial.TagSize != 0.099 {
		t.Fatalf("unexpected fiducial defaults: %+v", cfg.Fiducial)
	}
	if cfg.TagToRobot() != rigid.Identity {
		t.Fatalf("expected identity tag_to_robot, got %v", cfg.TagToRobot())
	}
	if _, ok := cfg.FallbackTagToCam(); ok {
		t.Fatal("expected no fallback tag_to_cam by default")
	}
	if cfg.Workflow.Workers <= 0 {
		t.Fatalf("expected positive worker count, got %d", cfg.Workflow.Workers)
	}
	if cfg.Logging.Format != "auto" {
		t.Fatalf("expected auto log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "demoarchive.toml")

	type payload struct {
		Paths struct {
			DemosDir string `toml:"demos_dir"`
		} `toml:"paths"`
		Cameras struct {
			Names     []string `toml:"names"`
			Reference string   `toml:"reference"`
		} `toml:"cameras"`
		Tracking struct {
			Mode        string `toml:"mode"`
			UseAllMasks bool   `toml:"use_all_masks"`
		} `toml:"tracking"`
		Fiducial struct {
			FallbackTagToCam []float64 `toml:"fallback_tag_to_cam"`
		} `toml:"fiducial"`
	}
	custom := payload{}
	custom.Paths.DemosDir = filepath.Join(tempDir, "demos")
	custom.Cameras.Names = []string{"left", "top", "right"}
	custom.Cameras.Reference = "top"
	custom.Tracking.Mode = "Replay"
	custom.Tracking.UseAllMasks = true
	custom.Fiducial.FallbackTagToCam = []float64{1, 0, 0, 0.5, 0, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 1}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Tracking.Mode != config.ModeReplay {
		t.Fatalf("expected mode normalized to replay, got %q", cfg.Tracking.Mode)
	}
	if !cfg.Tracking.UseAllMasks {
		t.Fatal("expected use_all_masks from file")
	}
	if cfg.ReferenceCameraIndex() != 1 {
		t.Fatalf("expected reference index 1, got %d", cfg.ReferenceCameraIndex())
	}
	fallback, ok := cfg.FallbackTagToCam()
	if !ok {
		t.Fatal("expected fallback tag_to_cam")
	}
	if fallback.Translation().Z != 1 {
		t.Fatalf("unexpected fallback translation: %v", fallback.Translation())
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "demoarchive.toml")
	contents := "[paths]\ndemos_dir = \"/from/file\"\n\n[logging]\nlevel = \"info\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envDemos := filepath.Join(tempDir, "env-demos")
	t.Setenv("DEMOARCHIVE_DEMOS_DIR", envDemos)
	t.Setenv("DEMOARCHIVE_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DemosDir != envDemos {
		t.Fatalf("expected env demos dir, got %q", cfg.Paths.DemosDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "demoarchive.toml")
	if err := os.WriteFile(configPath, []byte("[tracking]\nmystery = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "tagStandard41h12") {
		t.Fatalf("sample config missing tag family: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.StagingDir, "demoarchive") {
			t.Fatalf("expected staging dir to contain demoarchive, got %q", cfg.Paths.StagingDir)
		}
	}

	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
	if loaded.Tracking.Mode != config.ModeTrack {
		t.Fatalf("unexpected sample mode %q", loaded.Tracking.Mode)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Workflow.Workers = 1
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"two cameras", func(c *config.Config) { c.Cameras.Names = []string{"a", "b"} }},
		{"duplicate camera", func(c *config.Config) { c.Cameras.Names = []string{"a", "a", "side_cam"} }},
		{"reference missing", func(c *config.Config) { c.Cameras.Reference = "rear_cam" }},
		{"unknown mode", func(c *config.Config) { c.Tracking.Mode = "guess" }},
		{"short rotation guess", func(c *config.Config) { c.Tracking.InitRotGuess = []float64{1, 0, 0} }},
		{"scaled rotation guess", func(c *config.Config) { c.Tracking.InitRotGuess = []float64{2, 0, 0, 0, 1, 0, 0, 0, 1} }},
		{"short tag_to_robot", func(c *config.Config) { c.Fiducial.TagToRobot = []float64{1, 0, 0} }},
		{"zero fallback", func(c *config.Config) { c.Fiducial.FallbackTagToCam = make([]float64, 16) }},
		{"bad tag size", func(c *config.Config) { c.Fiducial.TagSize = -1 }},
		{"compression", func(c *config.Config) { c.Archive.CompressionLevel = 40 }},
		{"workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
