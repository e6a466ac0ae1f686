package consolidate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"demoarchive/internal/annotation"
	"demoarchive/internal/artifact"
	"demoarchive/internal/config"
	"demoarchive/internal/estimator"
	"demoarchive/internal/logging"
	"demoarchive/internal/rigid"
)

// Consolidator builds Tables from demonstration directories.
type Consolidator struct {
	cfg       *config.Config
	estimator estimator.Estimator
	detector  estimator.Detector
	logger    *slog.Logger
}

// New returns a consolidator. est is used in track mode; det resolves the
// fiducial unless fiducial.tag_to_cam is configured. Either may be nil when
// the configuration names a command to run instead.
func New(cfg *config.Config, est estimator.Estimator, det estimator.Detector, logger *slog.Logger) (*Consolidator, error) {
	timeout := time.Duration(cfg.Tracking.EstimatorTimeoutSeconds) * time.Second
	if est == nil && len(cfg.Tracking.EstimatorCommand) > 0 {
		execEst, err := estimator.NewExecEstimator(cfg.Tracking.EstimatorCommand, estimator.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		est = execEst
	}
	if tagToCam, ok := cfg.StaticTagToCam(); ok {
		det = estimator.StaticDetector{TagToCam: tagToCam}
	} else if det == nil && len(cfg.Fiducial.DetectorCommand) > 0 {
		execDet, err := estimator.NewExecDetector(cfg.Fiducial.DetectorCommand, estimator.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		det = execDet
	}
	return &Consolidator{
		cfg:       cfg,
		estimator: est,
		detector:  det,
		logger:    logging.NewComponentLogger(logger, "consolidate"),
	}, nil
}

// demo is the per-run state shared read-only by the prompt workers.
type demo struct {
	layout      artifact.Layout
	loader      *artifact.Loader
	frames      int
	reference   string
	refIndex    int
	annotations annotation.Source
	prompts     []string
	mode        string
}

// Run consolidates the demonstration at root in the configured mode.
func (c *Consolidator) Run(ctx context.Context, root string) (*Table, error) {
	return c.RunMode(ctx, root, c.cfg.Tracking.Mode)
}

// RunMode consolidates the demonstration at root in mode.
func (c *Consolidator) RunMode(ctx context.Context, root, mode string) (*Table, error) {
	d, err := c.prepare(root, mode)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithDemo(ctx, d.layout.Name())
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("consolidating demonstration",
		logging.String("mode", mode),
		logging.Int("frames", d.frames),
		logging.Any("prompts", d.prompts),
	)

	table := &Table{
		Demo:    d.layout.Name(),
		Mode:    mode,
		Frames:  d.frames,
		Cameras: append([]string(nil), d.layout.Cameras...),
		Objects: make([]*Series, len(d.prompts)),
	}

	switch mode {
	case config.ModeImport:
		err = c.importUpstream(ctx, d, table)
	case config.ModeTrack, config.ModeReplay:
		err = c.track(ctx, d, table)
	default:
		err = &InputError{Demo: table.Demo, Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	if err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (c *Consolidator) prepare(root, mode string) (*demo, error) {
	layout := artifact.NewLayout(root, c.cfg.Cameras.Names, c.cfg.Demo.FrameDigits)
	d := &demo{
		layout:    layout,
		loader:    artifact.NewLoader(layout, c.cfg.Workflow.Workers),
		reference: c.cfg.Cameras.Reference,
		refIndex:  layout.CameraIndex(c.cfg.Cameras.Reference),
		mode:      mode,
	}
	if d.refIndex < 0 {
		return nil, &InputError{Demo: layout.Name(), Reason: fmt.Sprintf("reference camera %q is not configured", d.reference)}
	}

	n, err := layout.CountFrames(d.reference)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &InputError{Demo: layout.Name(), Reason: "reference camera has no frames"}
	}
	d.frames = n
	if err := c.validateStreams(d); err != nil {
		return nil, err
	}

	src, err := loadAnnotations(layout)
	if err != nil {
		return nil, err
	}
	if err := validateAnnotations(d, src); err != nil {
		return nil, err
	}
	d.annotations = src

	prompts := c.cfg.Objects.Prompts
	if len(prompts) == 0 {
		prompts, err = layout.DiscoverPrompts(d.reference)
		if err != nil {
			return nil, err
		}
	}
	if len(prompts) == 0 {
		return nil, &InputError{Demo: layout.Name(), Reason: "no object prompts configured or discovered"}
	}
	d.prompts = append([]string(nil), prompts...)

	if mode == config.ModeImport || mode == config.ModeReplay {
		for _, prompt := range d.prompts {
			got, err := layout.CountOutputFrames(prompt)
			if err != nil {
				return nil, err
			}
			if got != n {
				return nil, &StreamLengthMismatchError{Demo: layout.Name(), Stream: "output_" + artifact.Slug(prompt), Prompt: prompt, Want: n, Got: got}
			}
		}
	}
	return d, nil
}

func (c *Consolidator) validateStreams(d *demo) error {
	for _, camera := range d.layout.Cameras {
		for _, stream := range []artifact.Stream{artifact.StreamRGB, artifact.StreamDepth} {
			got, err := d.layout.CountStream(stream, camera)
			if err != nil {
				return err
			}
			if got != d.frames {
				return &StreamLengthMismatchError{
					Demo:   d.layout.Name(),
					Stream: fmt.Sprintf("%s_cam_%d", stream, d.layout.CameraIndex(camera)),
					Camera: camera,
					Want:   d.frames,
					Got:    got,
				}
			}
		}
	}
	return nil
}

func loadAnnotations(layout artifact.Layout) (annotation.Source, error) {
	src, err := annotation.LoadFile(layout.AnnotationsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return annotation.NewStatic(), nil
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func validateAnnotations(d *demo, src annotation.Source) error {
	for _, key := range src.Keys() {
		if d.layout.CameraIndex(key.Camera) < 0 {
			return &annotation.ParseError{Path: d.layout.AnnotationsPath(), Key: key.String(), Reason: fmt.Sprintf("unknown camera %q", key.Camera)}
		}
		if key.Frame >= d.frames {
			return &StreamLengthMismatchError{Demo: d.layout.Name(), Stream: "annotations", Camera: key.Camera, Want: d.frames, Got: key.Frame + 1}
		}
	}
	return nil
}

// forEachPrompt runs fn for every prompt concurrently and stores the series
// by prompt index.
func forEachPrompt(ctx context.Context, d *demo, table *Table, fn func(ctx context.Context, p int, prompt string) (*Series, error)) error {
	g, gctx := errgroup.WithContext(ctx)
	for p, prompt := range d.prompts {
		g.Go(func() error {
			series, err := fn(logging.WithPrompt(gctx, prompt), p, prompt)
			if err != nil {
				return err
			}
			table.Objects[p] = series
			return nil
		})
	}
	return g.Wait()
}

// preloadMasks loads every mask strictly when masks are archived.
func (c *Consolidator) preloadMasks(ctx context.Context, d *demo) ([][]artifact.FrameArtifacts, error) {
	if !c.cfg.Archive.IncludeMasks {
		return nil, nil
	}
	return d.loader.Frames(ctx, d.prompts, d.frames, artifact.LoadOptions{Masks: true})
}

// frameMasks returns the masks of prompt at frame per camera. Without
// preloaded masks, absent files yield nil entries.
func frameMasks(d *demo, preloaded [][]artifact.FrameArtifacts, p int, prompt string, frame int) ([]*image.Gray, error) {
	if preloaded != nil {
		return preloaded[p][frame].Masks, nil
	}
	masks := make([]*image.Gray, len(d.layout.Cameras))
	for i, camera := range d.layout.Cameras {
		m, err := d.loader.Mask(prompt, frame, camera)
		var missing *artifact.MissingArtifactError
		switch {
		case errors.As(err, &missing):
		case err != nil:
			return nil, err
		default:
			masks[i] = m
		}
	}
	return masks, nil
}

func maskBox(m *image.Gray) [4]float64 {
	if box, ok := artifact.BoundingBox(m); ok {
		return box
	}
	return AbsentBox()
}

func appendPose(s *Series, objToCam, camToRobot rigid.Transform, bounds rigid.Corners) error {
	objToRobot, err := rigid.ObjectToRobot(objToCam, camToRobot)
	if err != nil {
		return err
	}
	boxCam, err := rigid.ApplyCorners(objToCam, bounds)
	if err != nil {
		return err
	}
	boxRobot, err := rigid.ApplyCorners(objToRobot, bounds)
	if err != nil {
		return err
	}
	s.CamPoses = append(s.CamPoses, objToCam)
	s.RobotPoses = append(s.RobotPoses, objToRobot)
	s.CamBoxes = append(s.CamBoxes, boxCam)
	s.RobotBoxes = append(s.RobotBoxes, boxRobot)
	return nil
}
