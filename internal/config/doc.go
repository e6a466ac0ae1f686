// Package config loads, normalizes, and validates demoarchive configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// DEMOARCHIVE_DEMOS_DIR. The Config type centralizes every knob the CLI and the
// consolidation pipeline need: demonstration discovery, the three camera
// names, the tracking mode, fiducial calibration, and archive encoding.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, validated transforms, and clear validation errors.
package config
