// Package rigid implements the 4x4 homogeneous transform algebra shared by
// every stage of demonstration consolidation.
//
// A Transform is stored row-major and always carries "maps points expressed in
// frame A into frame B" semantics; variables are named aToB accordingly.
// Composition reads left to right along that chain:
//
//	aToC := Compose(aToB, bToC) // aToC = bToC · aToB
//
// The all-zero matrix is reserved as the Sentinel meaning "object absent this
// frame". Every operation propagates the sentinel instead of failing on it, so
// absent poses flow through the robot-frame chain unchanged.
//
// Inputs are never renormalized. Matrices with the wrong shape, non-finite
// entries, or a bottom row other than [0 0 0 1] are rejected with a
// MalformedTransformError.
package rigid
