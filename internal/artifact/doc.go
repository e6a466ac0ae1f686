// Package artifact resolves and loads the per-frame files an upstream
// tracker leaves in a demonstration directory.
//
// Layout maps (prompt, frame, camera) coordinates onto file paths. Loader
// reads and validates those files: 4x4 pose matrices, 2x4 bounding-box
// corners, binary masks, and camera intrinsics. Every expected file must
// exist; a missing one fails with MissingArtifactError naming the exact path.
// Loader methods only read, so independent frames may be loaded concurrently.
package artifact
