package artifact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"demoarchive/internal/rigid"
)

// Loader reads per-frame artifacts from one demonstration. It holds no
// mutable state and is safe for concurrent use.
type Loader struct {
	layout  Layout
	workers int
}

// NewLoader returns a loader over layout. workers bounds Frames fan-out; a
// non-positive value uses the CPU count.
func NewLoader(layout Layout, workers int) *Loader {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Loader{layout: layout, workers: workers}
}

// Layout returns the layout the loader reads.
func (l *Loader) Layout() Layout { return l.layout }

// CamPose reads output_<slug>/<frame>.txt.
func (l *Loader) CamPose(prompt string, frame int) (rigid.Transform, error) {
	return l.readTransform(l.layout.CamPosePath(prompt, frame), prompt, frame)
}

// RobotPose reads output_<slug>/<frame>_robot2block.txt.
func (l *Loader) RobotPose(prompt string, frame int) (rigid.Transform, error) {
	return l.readTransform(l.layout.RobotPosePath(prompt, frame), prompt, frame)
}

// BoxCam reads output_<slug>/<frame>_3d_bbox_cam_frame.txt.
func (l *Loader) BoxCam(prompt string, frame int) (rigid.Corners, error) {
	return l.readCorners(l.layout.BoxCamPath(prompt, frame), prompt, frame)
}

// BoxRobot reads output_<slug>/<frame>_3d_bbox_robot_frame.txt.
func (l *Loader) BoxRobot(prompt string, frame int) (rigid.Corners, error) {
	return l.readCorners(l.layout.BoxRobotPath(prompt, frame), prompt, frame)
}

// ObjectBounds reads mesh/<slug>_bbox.txt.
func (l *Loader) ObjectBounds(prompt string) (rigid.Corners, error) {
	return l.readCorners(l.layout.ObjectBoundsPath(prompt), prompt, -1)
}

// Mask reads and validates the mask of prompt on camera at frame.
func (l *Loader) Mask(prompt string, frame int, camera string) (*image.Gray, error) {
	if l.layout.CameraIndex(camera) < 0 {
		return nil, fmt.Errorf("unknown camera %q", camera)
	}
	path := l.layout.MaskPath(prompt, camera, frame)
	m, err := DecodeMask(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, missing(path, prompt, frame, camera)
		}
		return nil, err
	}
	return m, nil
}

// Masks reads one mask per camera in layout order.
func (l *Loader) Masks(prompt string, frame int) ([]*image.Gray, error) {
	masks := make([]*image.Gray, len(l.layout.Cameras))
	for i, camera := range l.layout.Cameras {
		m, err := l.Mask(prompt, frame, camera)
		if err != nil {
			return nil, err
		}
		masks[i] = m
	}
	return masks, nil
}

// LoadOptions selects which artifacts Frame reads.
type LoadOptions struct {
	Poses            bool
	RequireRobotPose bool
	Boxes            bool
	Masks            bool
}

// FrameArtifacts is everything loaded for one (prompt, frame).
type FrameArtifacts struct {
	Prompt    string
	Frame     int
	CamPose   rigid.Transform
	RobotPose rigid.Transform
	HasRobot  bool
	BoxCam    rigid.Corners
	BoxRobot  rigid.Corners
	Masks     []*image.Gray
}

// Frame loads the artifacts selected by opts for prompt at frame.
func (l *Loader) Frame(ctx context.Context, prompt string, frame int, opts LoadOptions) (FrameArtifacts, error) {
	out := FrameArtifacts{Prompt: prompt, Frame: frame}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	var err error
	if opts.Poses {
		if out.CamPose, err = l.CamPose(prompt, frame); err != nil {
			return out, err
		}
		out.RobotPose, err = l.RobotPose(prompt, frame)
		switch {
		case err == nil:
			out.HasRobot = true
		case opts.RequireRobotPose || !isMissing(err):
			return out, err
		}
	}
	if opts.Boxes {
		if out.BoxCam, err = l.BoxCam(prompt, frame); err != nil {
			return out, err
		}
		if out.BoxRobot, err = l.BoxRobot(prompt, frame); err != nil {
			return out, err
		}
	}
	if opts.Masks {
		if out.Masks, err = l.Masks(prompt, frame); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Frames loads frames [0, n) of every prompt concurrently. The result is
// indexed [prompt][frame] in input order. The first error cancels the rest.
func (l *Loader) Frames(ctx context.Context, prompts []string, n int, opts LoadOptions) ([][]FrameArtifacts, error) {
	out := make([][]FrameArtifacts, len(prompts))
	for i := range out {
		out[i] = make([]FrameArtifacts, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for p, prompt := range prompts {
		for frame := 0; frame < n; frame++ {
			g.Go(func() error {
				artifacts, err := l.Frame(gctx, prompt, frame, opts)
				if err != nil {
					return err
				}
				out[p][frame] = artifacts
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) readTransform(path, prompt string, frame int) (rigid.Transform, error) {
	data, err := l.read(path, prompt, frame)
	if err != nil {
		return rigid.Sentinel, err
	}
	t, err := rigid.Parse(string(data))
	if err != nil {
		return rigid.Sentinel, rigid.WithSource(err, path)
	}
	return t, nil
}

func (l *Loader) readCorners(path, prompt string, frame int) (rigid.Corners, error) {
	data, err := l.read(path, prompt, frame)
	if err != nil {
		return rigid.Corners{}, err
	}
	c, err := rigid.ParseCorners(string(data))
	if err != nil {
		return rigid.Corners{}, rigid.WithSource(err, path)
	}
	return c, nil
}

func (l *Loader) read(path, prompt string, frame int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, missing(path, prompt, frame, "")
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func isMissing(err error) bool {
	var m *MissingArtifactError
	return errors.As(err, &m)
}
