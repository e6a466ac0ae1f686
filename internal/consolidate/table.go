package consolidate

import (
	"fmt"
	"image"
	"math"

	"demoarchive/internal/rigid"
	"demoarchive/internal/tracking"
)

// 2D box encodings for frames without a pixel box.
var (
	OutOfFrameBox   = [4]float64{-1, -1, -1, -1}
	StopTrackingBox = [4]float64{-2, -2, -2, -2}
)

// AbsentBox is the encoding of a frame with no box information.
func AbsentBox() [4]float64 {
	nan := math.NaN()
	return [4]float64{nan, nan, nan, nan}
}

// IsAbsentBox reports whether b encodes an absent box.
func IsAbsentBox(b [4]float64) bool {
	return math.IsNaN(b[0]) && math.IsNaN(b[1]) && math.IsNaN(b[2]) && math.IsNaN(b[3])
}

// Table is the consolidated output of one demonstration.
type Table struct {
	Demo    string
	Mode    string
	Frames  int
	Cameras []string
	Objects []*Series
}

// Series holds every per-frame sequence of one prompt. Camera-indexed
// sequences follow Table.Cameras. Masks is nil when masks are not archived.
type Series struct {
	Prompt     string
	CamPoses   []rigid.Transform
	RobotPoses []rigid.Transform
	CamBoxes   []rigid.Corners
	RobotBoxes []rigid.Corners
	Boxes2D    [][][4]float64
	Masks      [][]*image.Gray
	Actions    []tracking.Action
}

func newSeries(prompt string, frames, cameras int, withMasks bool) *Series {
	s := &Series{
		Prompt:     prompt,
		CamPoses:   make([]rigid.Transform, 0, frames),
		RobotPoses: make([]rigid.Transform, 0, frames),
		CamBoxes:   make([]rigid.Corners, 0, frames),
		RobotBoxes: make([]rigid.Corners, 0, frames),
		Boxes2D:    make([][][4]float64, cameras),
	}
	for c := range s.Boxes2D {
		s.Boxes2D[c] = make([][4]float64, 0, frames)
	}
	if withMasks {
		s.Masks = make([][]*image.Gray, cameras)
		for c := range s.Masks {
			s.Masks[c] = make([]*image.Gray, 0, frames)
		}
	}
	return s
}

// Object returns the series of prompt, or nil.
func (t *Table) Object(prompt string) *Series {
	for _, s := range t.Objects {
		if s.Prompt == prompt {
			return s
		}
	}
	return nil
}

// Prompts returns the prompts in table order.
func (t *Table) Prompts() []string {
	out := make([]string, len(t.Objects))
	for i, s := range t.Objects {
		out[i] = s.Prompt
	}
	return out
}

// StreamLengthMismatchError reports a sequence or stream whose length differs
// from the demonstration frame count.
type StreamLengthMismatchError struct {
	Demo   string
	Stream string
	Prompt string
	Camera string
	Want   int
	Got    int
}

func (e *StreamLengthMismatchError) Error() string {
	subject := e.Stream
	if e.Prompt != "" {
		subject += fmt.Sprintf(" of %q", e.Prompt)
	}
	if e.Camera != "" {
		subject += " on " + e.Camera
	}
	return fmt.Sprintf("%s: %s has %d frames, want %d", e.Demo, subject, e.Got, e.Want)
}

// ErrorKind classifies the error for the run ledger.
func (e *StreamLengthMismatchError) ErrorKind() string { return "validation" }

// Validate checks that every sequence holds exactly Frames entries.
func (t *Table) Validate() error {
	mismatch := func(stream, prompt, camera string, got int) error {
		return &StreamLengthMismatchError{Demo: t.Demo, Stream: stream, Prompt: prompt, Camera: camera, Want: t.Frames, Got: got}
	}
	for _, s := range t.Objects {
		lengths := []struct {
			stream string
			n      int
		}{
			{"cam_poses", len(s.CamPoses)},
			{"robot_poses", len(s.RobotPoses)},
			{"cam_3d_boxes", len(s.CamBoxes)},
			{"robot_3d_boxes", len(s.RobotBoxes)},
		}
		for _, l := range lengths {
			if l.n != t.Frames {
				return mismatch(l.stream, s.Prompt, "", l.n)
			}
		}
		if len(s.Boxes2D) != len(t.Cameras) {
			return fmt.Errorf("%s: 2D boxes of %q cover %d cameras, want %d", t.Demo, s.Prompt, len(s.Boxes2D), len(t.Cameras))
		}
		for c, boxes := range s.Boxes2D {
			if len(boxes) != t.Frames {
				return mismatch("2d_boxes", s.Prompt, t.Cameras[c], len(boxes))
			}
		}
		if s.Masks == nil {
			continue
		}
		if len(s.Masks) != len(t.Cameras) {
			return fmt.Errorf("%s: masks of %q cover %d cameras, want %d", t.Demo, s.Prompt, len(s.Masks), len(t.Cameras))
		}
		for c, masks := range s.Masks {
			if len(masks) != t.Frames {
				return mismatch("masks", s.Prompt, t.Cameras[c], len(masks))
			}
		}
	}
	return nil
}
