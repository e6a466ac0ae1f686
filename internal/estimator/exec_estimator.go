package estimator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"demoarchive/internal/rigid"
)

// ExecEstimator runs an external pose estimator per request. The command
// receives one JSON request on stdin and prints the 4x4 objToCam pose as 16
// whitespace-separated floats.
type ExecEstimator struct {
	argv []string
	cfg  execConfig
}

type estimateRequest struct {
	Op           string       `json:"op"`
	Prompt       string       `json:"prompt"`
	Frame        int          `json:"frame"`
	Camera       string       `json:"camera"`
	K            [9]float64   `json:"K"`
	RGB          string       `json:"rgb"`
	Depth        string       `json:"depth"`
	Mask         string       `json:"mask,omitempty"`
	Iterations   int          `json:"iterations"`
	InitRotation *[9]float64  `json:"init_rotation,omitempty"`
	Previous     *[16]float64 `json:"previous,omitempty"`
}

// NewExecEstimator returns an estimator running argv.
func NewExecEstimator(argv []string, opts ...Option) (*ExecEstimator, error) {
	if len(argv) == 0 {
		return nil, errors.New("estimator command required")
	}
	return &ExecEstimator{argv: append([]string(nil), argv...), cfg: newExecConfig(opts)}, nil
}

// Register implements Estimator.
func (e *ExecEstimator) Register(ctx context.Context, in RegisterInput) (rigid.Transform, error) {
	rot := in.InitRotation
	req := estimateRequest{
		Op:           "register",
		Prompt:       in.Prompt,
		Frame:        in.Frame,
		Camera:       in.Camera,
		K:            in.Intrinsics.K,
		RGB:          in.RGBPath,
		Depth:        in.DepthPath,
		Mask:         in.MaskPath,
		Iterations:   in.Iterations,
		InitRotation: &rot,
	}
	return e.estimate(ctx, req)
}

// Track implements Estimator.
func (e *ExecEstimator) Track(ctx context.Context, in TrackInput) (rigid.Transform, error) {
	prev := [16]float64(in.Previous)
	req := estimateRequest{
		Op:         "track",
		Prompt:     in.Prompt,
		Frame:      in.Frame,
		Camera:     in.Camera,
		K:          in.Intrinsics.K,
		RGB:        in.RGBPath,
		Depth:      in.DepthPath,
		Iterations: in.Iterations,
		Previous:   &prev,
	}
	return e.estimate(ctx, req)
}

func (e *ExecEstimator) estimate(ctx context.Context, req estimateRequest) (rigid.Transform, error) {
	fail := func(err error) (rigid.Transform, error) {
		return rigid.Sentinel, &TrackingFailedError{Op: req.Op, Prompt: req.Prompt, Frame: req.Frame, Camera: req.Camera, Err: err}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fail(fmt.Errorf("encode request: %w", err))
	}
	out, err := e.cfg.run(ctx, e.argv, payload)
	if err != nil {
		return fail(err)
	}
	pose, err := rigid.Parse(string(out))
	if err != nil {
		return fail(rigid.WithSource(err, e.argv[0]))
	}
	if pose.IsSentinel() {
		return fail(errors.New("estimator returned the zero pose"))
	}
	return pose, nil
}
