package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"demoarchive/internal/annotation"
	"demoarchive/internal/artifact"
	"demoarchive/internal/config"
	"demoarchive/internal/estimator"
	"demoarchive/internal/logging"
	"demoarchive/internal/rigid"
	"demoarchive/internal/tracking"
)

// promptRun carries the per-demonstration inputs of one prompt worker.
type promptRun struct {
	d          *demo
	est        estimator.Estimator
	intrinsics artifact.Intrinsics
	camToRobot rigid.Transform
	masks      [][]artifact.FrameArtifacts
}

func (c *Consolidator) track(ctx context.Context, d *demo, table *Table) error {
	est := c.estimator
	if d.mode == config.ModeReplay {
		est = estimator.NewReplayEstimator(d.loader)
	}
	if est == nil {
		return &InputError{Demo: table.Demo, Reason: "track mode needs tracking.estimator_command"}
	}

	intrinsics, err := d.loader.Intrinsics(d.reference)
	if err != nil {
		return err
	}
	tagToCam, err := c.resolveTagToCam(ctx, d, intrinsics)
	if err != nil {
		return err
	}
	camToRobot, err := rigid.CamToRobot(tagToCam, c.cfg.TagToRobot())
	if err != nil {
		return fmt.Errorf("%s: robot frame chain: %w", table.Demo, err)
	}

	masks, err := c.preloadMasks(ctx, d)
	if err != nil {
		return err
	}
	run := &promptRun{d: d, est: est, intrinsics: intrinsics, camToRobot: camToRobot, masks: masks}
	return forEachPrompt(ctx, d, table, func(ctx context.Context, p int, prompt string) (*Series, error) {
		return c.trackPrompt(ctx, run, p, prompt)
	})
}

// resolveTagToCam detects the fiducial on the reference camera's first frame,
// substituting the configured fallback when the tag is not found.
func (c *Consolidator) resolveTagToCam(ctx context.Context, d *demo, intrinsics artifact.Intrinsics) (rigid.Transform, error) {
	logger := logging.WithContext(ctx, c.logger)
	in := estimator.DetectInput{
		Camera:     d.reference,
		ImagePath:  d.layout.StreamFrame(artifact.StreamRGB, d.reference, 0),
		Intrinsics: intrinsics,
		Family:     c.cfg.Fiducial.Family,
		TagID:      c.cfg.Fiducial.TagID,
		TagSize:    c.cfg.Fiducial.TagSize,
	}

	var err error
	if c.detector != nil {
		var tagToCam rigid.Transform
		tagToCam, err = c.detector.Detect(ctx, in)
		if err == nil {
			logger.Info("fiducial resolved", logging.Args(logging.DecisionAttrs("fiducial", "detected", in.ImagePath)...)...)
			return tagToCam, nil
		}
	} else {
		err = &estimator.FiducialNotFoundError{Camera: in.Camera, ImagePath: in.ImagePath, Reason: "no detector configured"}
	}

	var notFound *estimator.FiducialNotFoundError
	if !errors.As(err, &notFound) {
		return rigid.Sentinel, err
	}
	fallback, ok := c.cfg.FallbackTagToCam()
	if !ok {
		return rigid.Sentinel, err
	}
	logging.WarnWithContext(logger, "fiducial not found; using configured fallback", "fiducial_fallback",
		logging.String(logging.FieldCamera, in.Camera),
		logging.String("image", in.ImagePath),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "verify fiducial.fallback_tag_to_cam matches this rig"),
		logging.String(logging.FieldImpact, "robot-frame poses rely on an uncalibrated tag pose"),
	)
	return fallback, nil
}

func (c *Consolidator) trackPrompt(ctx context.Context, run *promptRun, p int, prompt string) (*Series, error) {
	d := run.d
	logger := logging.WithContext(ctx, c.logger)
	bounds, err := d.loader.ObjectBounds(prompt)
	if err != nil {
		return nil, err
	}

	machines := c.newMachines(d)

	series := newSeries(prompt, d.frames, len(d.layout.Cameras), run.masks != nil)
	sampler := logging.NewProgressSampler(25)
	// last seeds incremental tracking; emitted is what the previous frame
	// archived and is what a freeze holds.
	last, emitted := rigid.Sentinel, rigid.Sentinel
	writeArtifacts := d.mode == config.ModeTrack && c.cfg.Tracking.WriteArtifacts

	for frame := 0; frame < d.frames; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		anns := make([]annotation.Value, len(machines))
		decisions := make([]tracking.Decision, len(machines))
		for i, m := range machines {
			anns[i] = d.annotations.Lookup(frame, m.Camera()).For(prompt)
			decisions[i], err = stepMachine(logger, m, anns[i])
			if err != nil {
				return nil, err
			}
		}

		masks, err := frameMasks(d, run.masks, p, prompt, frame)
		if err != nil {
			return nil, err
		}

		ref := decisions[d.refIndex]
		if ref.Action == tracking.RegisterWithMask && artifact.MaskEmpty(masks[d.refIndex]) {
			if ref.HasBox {
				if masks[d.refIndex] == nil {
					return nil, &artifact.MissingArtifactError{Path: d.layout.MaskPath(prompt, d.reference, frame), Prompt: prompt, Frame: frame, Camera: d.reference}
				}
			} else {
				ref = machines[d.refIndex].MaskUnavailable(ref)
				decisions[d.refIndex] = ref
				attrs := append(logging.DecisionAttrs("registration", ref.Action.String(), ref.Reason), logging.Int(logging.FieldFrame, frame))
				logger.Debug("registration mask unavailable", logging.Args(attrs...)...)
			}
		}

		pose, err := c.poseFor(ctx, run, prompt, frame, ref, last, emitted)
		if err != nil {
			return nil, err
		}
		if ref.Action.NeedsEstimator() {
			last = pose
		}
		emitted = pose
		if err := appendPose(series, pose, run.camToRobot, bounds); err != nil {
			return nil, fmt.Errorf("%s frame %d: %w", prompt, frame, err)
		}
		for i := range machines {
			series.Boxes2D[i] = append(series.Boxes2D[i], box2D(ref, decisions[i], masks[i]))
			if series.Masks != nil {
				series.Masks[i] = append(series.Masks[i], masks[i])
			}
		}
		series.Actions = append(series.Actions, ref.Action)

		if writeArtifacts {
			if err := writeFrameArtifacts(d.layout, series, frame); err != nil {
				return nil, err
			}
		}
		if sampler.ShouldLog(frame, d.frames) {
			logger.Info("tracking progress",
				logging.Int(logging.FieldFrame, frame),
				logging.Int("frames", d.frames),
				logging.String("action", ref.Action.String()),
				logging.String("state", ref.State.String()),
			)
		}
	}
	return series, nil
}

// stepMachine steps m, logging and skipping annotations the machine rejects.
func stepMachine(logger *slog.Logger, m *tracking.Machine, ann annotation.Value) (tracking.Decision, error) {
	decision, err := m.Step(ann)
	var invalid *tracking.InvalidAnnotationError
	if !errors.As(err, &invalid) {
		return decision, err
	}
	logging.WarnWithContext(logger, "annotation rejected", "annotation_rejected",
		logging.Int(logging.FieldFrame, invalid.Frame),
		logging.String(logging.FieldCamera, invalid.Camera),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "record stop_tracking on the reference camera"),
		logging.String(logging.FieldImpact, "annotation ignored for this frame"),
	)
	return m.Step(annotation.Skip())
}

func (c *Consolidator) poseFor(ctx context.Context, run *promptRun, prompt string, frame int, ref tracking.Decision, last, emitted rigid.Transform) (rigid.Transform, error) {
	d := run.d
	rgb := d.layout.StreamFrame(artifact.StreamRGB, d.reference, frame)
	depth := d.layout.StreamFrame(artifact.StreamDepth, d.reference, frame)

	switch ref.Action {
	case tracking.RegisterWithMask:
		return run.est.Register(ctx, estimator.RegisterInput{
			Prompt:       prompt,
			Frame:        frame,
			Camera:       d.reference,
			Intrinsics:   run.intrinsics,
			RGBPath:      rgb,
			DepthPath:    depth,
			MaskPath:     d.layout.MaskPath(prompt, d.reference, frame),
			Iterations:   c.cfg.Tracking.EstRefineIter,
			InitRotation: c.cfg.InitRotation(),
		})
	case tracking.TrackWithoutMask:
		return run.est.Track(ctx, estimator.TrackInput{
			Prompt:     prompt,
			Frame:      frame,
			Camera:     d.reference,
			Intrinsics: run.intrinsics,
			RGBPath:    rgb,
			DepthPath:  depth,
			Previous:   last,
			Iterations: c.cfg.Tracking.TrackRefineIter,
		})
	case tracking.Freeze, tracking.ReuseFrozenPose:
		return emitted, nil
	default:
		return rigid.Sentinel, nil
	}
}

