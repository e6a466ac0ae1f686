package annotation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Kind enumerates the annotation values an operator can record.
type Kind int

const (
	// KindNone means nothing was recorded for the object at this frame.
	KindNone Kind = iota
	// KindBox is a drawn bounding box requesting mask-guided registration.
	KindBox
	// KindOutOfFrame marks the object as not visible.
	KindOutOfFrame
	// KindStopTracking freezes the object's pose from this frame on.
	KindStopTracking
	// KindSkip is an explicit "no change" entry.
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBox:
		return "box"
	case KindOutOfFrame:
		return "out_of_frame"
	case KindStopTracking:
		return "stop_tracking"
	case KindSkip:
		return "skip"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Box is a pixel-space rectangle with X0,Y0 the top-left corner.
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Normalized orders the corners so X0<=X1 and Y0<=Y1. The labelling tool
// records the drag start and end, which may run in any direction.
func (b Box) Normalized() Box {
	if b.X0 > b.X1 {
		b.X0, b.X1 = b.X1, b.X0
	}
	if b.Y0 > b.Y1 {
		b.Y0, b.Y1 = b.Y1, b.Y0
	}
	return b
}

// Empty reports whether the box encloses no pixels.
func (b Box) Empty() bool {
	n := b.Normalized()
	return n.X1 <= n.X0 || n.Y1 <= n.Y0
}

// Array returns the box as [xmin, ymin, xmax, ymax].
func (b Box) Array() [4]float64 {
	n := b.Normalized()
	return [4]float64{n.X0, n.Y0, n.X1, n.Y1}
}

// Value is one annotation for one object on one camera at one frame.
type Value struct {
	Kind Kind
	Box  Box
}

// None is the zero Value.
func None() Value { return Value{} }

// BoxValue wraps a drawn box.
func BoxValue(b Box) Value { return Value{Kind: KindBox, Box: b.Normalized()} }

// OutOfFrame marks the object invisible.
func OutOfFrame() Value { return Value{Kind: KindOutOfFrame} }

// StopTracking freezes the object's pose.
func StopTracking() Value { return Value{Kind: KindStopTracking} }

// Skip records an explicit no-op.
func Skip() Value { return Value{Kind: KindSkip} }

func (v Value) String() string {
	if v.Kind == KindBox {
		b := v.Box
		return fmt.Sprintf("box[%g %g %g %g]", b.X0, b.Y0, b.X1, b.Y1)
	}
	return v.Kind.String()
}

// NormalizeLabel folds case and maps spaces to underscores so "Red Block",
// "red block", and "red_block" address the same object.
func NormalizeLabel(label string) string {
	folded := cases.Fold().String(strings.TrimSpace(label))
	return strings.Join(strings.Fields(strings.ReplaceAll(folded, "_", " ")), "_")
}

// Frame holds every object annotation for one (frame, camera) pair keyed by
// normalized label.
type Frame map[string]Value

// For returns the annotation recorded for prompt, or None.
func (f Frame) For(prompt string) Value {
	if f == nil {
		return None()
	}
	return f[NormalizeLabel(prompt)]
}

// Key addresses one (frame, camera) annotation entry.
type Key struct {
	Frame  int
	Camera string
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%s", k.Frame, k.Camera)
}

// Source yields the annotations recorded for a frame on a camera. Missing
// entries return an empty Frame. Implementations must be safe for concurrent
// readers.
type Source interface {
	Lookup(frame int, camera string) Frame
	Keys() []Key
}
