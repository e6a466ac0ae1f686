package testsupport

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"

	"demoarchive/internal/artifact"
	"demoarchive/internal/config"
	"demoarchive/internal/rigid"
)

// Synthetic image size.
const (
	DemoWidth  = 16
	DemoHeight = 12
)

// Demo writes a synthetic demonstration directory.
type Demo struct {
	t      testing.TB
	Layout artifact.Layout
	Frames int

	annotations map[string][]annotationEntry
}

type annotationEntry struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// NewDemo creates demos_dir/name with frames RGB and depth images per camera
// and a shared cam_K.txt.
func NewDemo(t testing.TB, cfg *config.Config, name string, frames int) *Demo {
	t.Helper()

	root := filepath.Join(cfg.Paths.DemosDir, name)
	d := &Demo{
		t:           t,
		Layout:      artifact.NewLayout(root, cfg.Cameras.Names, cfg.Demo.FrameDigits),
		Frames:      frames,
		annotations: map[string][]annotationEntry{},
	}
	for _, camera := range d.Layout.Cameras {
		for frame := 0; frame < frames; frame++ {
			d.writeImage(d.Layout.StreamFrame(artifact.StreamRGB, camera, frame), solid(uint8(10*frame)))
			d.writeImage(d.Layout.StreamFrame(artifact.StreamDepth, camera, frame), solid(200))
		}
	}
	WriteFile(t, filepath.Join(root, "cam_K.txt"), []byte("600 0 8\n0 600 6\n0 0 1\n"))
	return d
}

// Root returns the demonstration directory.
func (d *Demo) Root() string { return d.Layout.Root }

// RemoveFrame deletes one stream image.
func (d *Demo) RemoveFrame(stream artifact.Stream, camera string, frame int) *Demo {
	d.t.Helper()
	if err := os.Remove(d.Layout.StreamFrame(stream, camera, frame)); err != nil {
		d.t.Fatalf("remove frame: %v", err)
	}
	return d
}

// WithMask writes a binary mask with rect set.
func (d *Demo) WithMask(prompt, camera string, frame int, rect image.Rectangle) *Demo {
	d.t.Helper()
	m := image.NewGray(image.Rect(0, 0, DemoWidth, DemoHeight))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	d.writeImage(d.Layout.MaskPath(prompt, camera, frame), m)
	return d
}

// WithMasks writes the same mask for every camera and frame.
func (d *Demo) WithMasks(prompt string, rect image.Rectangle) *Demo {
	for _, camera := range d.Layout.Cameras {
		for frame := 0; frame < d.Frames; frame++ {
			d.WithMask(prompt, camera, frame, rect)
		}
	}
	return d
}

// WithRawMask writes m verbatim, allowing invalid pixel values.
func (d *Demo) WithRawMask(prompt, camera string, frame int, m image.Image) *Demo {
	d.writeImage(d.Layout.MaskPath(prompt, camera, frame), m)
	return d
}

// WithBounds writes mesh/<slug>_bbox.txt.
func (d *Demo) WithBounds(prompt string, corners rigid.Corners) *Demo {
	WriteFile(d.t, d.Layout.ObjectBoundsPath(prompt), []byte(rigid.FormatCorners(corners)))
	return d
}

// WithUpstreamPoses writes the four per-frame tracker outputs for every
// frame, using pose(frame) as the camera-frame pose and camToRobot for the
// robot-frame files.
func (d *Demo) WithUpstreamPoses(prompt string, bounds rigid.Corners, camToRobot rigid.Transform, pose func(frame int) rigid.Transform) *Demo {
	d.t.Helper()
	for frame := 0; frame < d.Frames; frame++ {
		objToCam := pose(frame)
		objToRobot, err := rigid.ObjectToRobot(objToCam, camToRobot)
		if err != nil {
			d.t.Fatalf("object to robot: %v", err)
		}
		boxCam, err := rigid.ApplyCorners(objToCam, bounds)
		if err != nil {
			d.t.Fatalf("box cam: %v", err)
		}
		boxRobot, err := rigid.ApplyCorners(objToRobot, bounds)
		if err != nil {
			d.t.Fatalf("box robot: %v", err)
		}
		WriteFile(d.t, d.Layout.CamPosePath(prompt, frame), []byte(rigid.Format(objToCam)))
		WriteFile(d.t, d.Layout.RobotPosePath(prompt, frame), []byte(rigid.Format(objToRobot)))
		WriteFile(d.t, d.Layout.BoxCamPath(prompt, frame), []byte(rigid.FormatCorners(boxCam)))
		WriteFile(d.t, d.Layout.BoxRobotPath(prompt, frame), []byte(rigid.FormatCorners(boxRobot)))
	}
	return d
}

// Annotate records a manual annotation. value is a [4]float64 box, nil, or
// one of "out_of_frame", "stop_tracking", "skip".
func (d *Demo) Annotate(frame int, camera, label string, value any) *Demo {
	key := strconv.Itoa(frame) + "_" + camera
	d.annotations[key] = append(d.annotations[key], annotationEntry{Label: label, Value: value})
	return d
}

// WriteAnnotations persists recorded annotations to annotations.json.
func (d *Demo) WriteAnnotations() *Demo {
	d.t.Helper()
	data, err := json.MarshalIndent(d.annotations, "", "  ")
	if err != nil {
		d.t.Fatalf("marshal annotations: %v", err)
	}
	WriteFile(d.t, d.Layout.AnnotationsPath(), data)
	return d
}

func (d *Demo) writeImage(path string, img image.Image) {
	d.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		d.t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := imaging.Save(img, path); err != nil {
		d.t.Fatalf("save %s: %v", path, err)
	}
}

func solid(v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, DemoWidth, DemoHeight))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Translation returns a pure translation transform.
func Translation(x, y, z float64) rigid.Transform {
	return rigid.FromRotationTranslation([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, r3.Vector{X: x, Y: y, Z: z})
}
