package config

const (
	defaultConfigLocation        = "~/.config/demoarchive/config.toml"
	defaultDemosDir              = "~/demos"
	defaultArchiveDir            = "~/demos/archives"
	defaultStagingDir            = "~/.local/share/demoarchive/staging"
	defaultStateDir              = "~/.local/share/demoarchive"
	defaultLogDir                = "~/.local/share/demoarchive/logs"
	defaultDemoGlob              = "demonstration_*"
	defaultFrameDigits           = 4
	defaultReferenceCamera       = "side_cam"
	defaultEstRefineIter         = 5
	defaultTrackRefineIter       = 2
	defaultEstimatorTimeout      = 120
	defaultTagFamily             = "tagStandard41h12"
	defaultTagSize               = 0.099
	defaultArchiveExtension      = ".archive"
	defaultCompressionLevel      = 9
	defaultStagingMaxAgeHours    = 24
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 14
	maxCompressionLevel          = 22
	requiredCameraCount          = 3
	requiredRotationGuessEntries = 9
)

var defaultCameraNames = []string{"front_cam", "overhead_cam", "side_cam"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DemosDir:   defaultDemosDir,
			ArchiveDir: defaultArchiveDir,
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		Demo: Demo{
			Glob:        defaultDemoGlob,
			FrameDigits: defaultFrameDigits,
		},
		Cameras: Cameras{
			Names:     append([]string(nil), defaultCameraNames...),
			Reference: defaultReferenceCamera,
		},
		Tracking: Tracking{
			Mode:                    ModeTrack,
			RegisterFirstFrame:      true,
			EstRefineIter:           defaultEstRefineIter,
			TrackRefineIter:         defaultTrackRefineIter,
			InitRotGuess:            []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
			EstimatorTimeoutSeconds: defaultEstimatorTimeout,
			WriteArtifacts:          true,
		},
		Fiducial: Fiducial{
			Family:     defaultTagFamily,
			TagSize:    defaultTagSize,
			TagToRobot: []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		},
		Archive: Archive{
			Extension:        defaultArchiveExtension,
			CompressionLevel: defaultCompressionLevel,
			IncludeMasks:     true,
			RemoveLegacyKeys: true,
		},
		Workflow: Workflow{
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
