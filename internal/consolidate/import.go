package consolidate

import (
	"context"

	"demoarchive/internal/artifact"
	"demoarchive/internal/logging"
	"demoarchive/internal/tracking"
)

// importUpstream copies the tracker's four per-frame files as recorded. The
// state machines run only to encode 2D boxes the same way track mode does.
func (c *Consolidator) importUpstream(ctx context.Context, d *demo, table *Table) error {
	opts := artifact.LoadOptions{
		Poses:            true,
		RequireRobotPose: true,
		Boxes:            true,
		Masks:            c.cfg.Archive.IncludeMasks,
	}
	loaded, err := d.loader.Frames(ctx, d.prompts, d.frames, opts)
	if err != nil {
		return err
	}

	return forEachPrompt(ctx, d, table, func(ctx context.Context, p int, prompt string) (*Series, error) {
		logger := logging.WithContext(ctx, c.logger)
		series := newSeries(prompt, d.frames, len(d.layout.Cameras), opts.Masks)
		machines := c.newMachines(d)
		decisions := make([]tracking.Decision, len(machines))
		for frame, fa := range loaded[p] {
			series.CamPoses = append(series.CamPoses, fa.CamPose)
			series.RobotPoses = append(series.RobotPoses, fa.RobotPose)
			series.CamBoxes = append(series.CamBoxes, fa.BoxCam)
			series.RobotBoxes = append(series.RobotBoxes, fa.BoxRobot)

			var err error
			masks := fa.Masks
			if masks == nil {
				if masks, err = frameMasks(d, nil, p, prompt, frame); err != nil {
					return nil, err
				}
			}
			for i, m := range machines {
				if decisions[i], err = stepMachine(logger, m, d.annotations.Lookup(frame, m.Camera()).For(prompt)); err != nil {
					return nil, err
				}
			}
			for i := range machines {
				series.Boxes2D[i] = append(series.Boxes2D[i], box2D(decisions[d.refIndex], decisions[i], masks[i]))
				if series.Masks != nil {
					series.Masks[i] = append(series.Masks[i], masks[i])
				}
			}
		}
		logger.Info("imported upstream poses", logging.Int("frames", d.frames))
		return series, nil
	})
}
