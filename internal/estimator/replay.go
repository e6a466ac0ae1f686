package estimator

import (
	"context"

	"demoarchive/internal/artifact"
	"demoarchive/internal/rigid"
)

// ReplayEstimator returns the camera-frame poses the upstream tracker
// already wrote to output_<slug>. Register and Track read the same file.
type ReplayEstimator struct {
	loader *artifact.Loader
}

// NewReplayEstimator returns an estimator backed by loader.
func NewReplayEstimator(loader *artifact.Loader) *ReplayEstimator {
	return &ReplayEstimator{loader: loader}
}

// Register implements Estimator.
func (r *ReplayEstimator) Register(ctx context.Context, in RegisterInput) (rigid.Transform, error) {
	return r.pose(ctx, in.Prompt, in.Frame)
}

// Track implements Estimator.
func (r *ReplayEstimator) Track(ctx context.Context, in TrackInput) (rigid.Transform, error) {
	return r.pose(ctx, in.Prompt, in.Frame)
}

func (r *ReplayEstimator) pose(ctx context.Context, prompt string, frame int) (rigid.Transform, error) {
	if err := ctx.Err(); err != nil {
		return rigid.Sentinel, err
	}
	return r.loader.CamPose(prompt, frame)
}
