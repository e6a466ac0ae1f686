// Package archive persists consolidated demonstrations.
//
// An archive is a single sqlite file holding hierarchical datasets keyed by
// slash paths (obj_poses/robot_frame/<prompt>, masks/<camera>/<prompt>, ...).
// Each dataset is a dense little-endian block compressed with zstd. Writer
// replaces the owned top-level groups in one transaction on a staged copy and
// renames the copy over the target, so readers only ever see a complete old
// or a complete new archive.
package archive
