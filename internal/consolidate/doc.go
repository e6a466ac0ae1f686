// Package consolidate turns one demonstration directory into a Table of
// per-frame poses, 3D boxes, 2D boxes and masks for every object prompt.
//
// Frame counts are resolved once from the reference camera and checked
// against every other stream before any pose is computed. Prompts are
// processed concurrently; the frames of one prompt run strictly in order
// because each tracking decision depends on the previous one.
package consolidate
