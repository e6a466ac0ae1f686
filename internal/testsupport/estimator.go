package testsupport

import (
	"context"
	"errors"
	"sync"

	"demoarchive/internal/estimator"
	"demoarchive/internal/rigid"
)

// EstimatorCall records one FakeEstimator invocation.
type EstimatorCall struct {
	Op     string
	Prompt string
	Frame  int
	Mask   string
}

// FakeEstimator returns Pose(prompt, frame) for every request and records
// calls. It is safe for concurrent use.
type FakeEstimator struct {
	Pose   func(prompt string, frame int) rigid.Transform
	FailAt map[string]int

	mu    sync.Mutex
	calls []EstimatorCall
}

// Register implements estimator.Estimator.
func (f *FakeEstimator) Register(_ context.Context, in estimator.RegisterInput) (rigid.Transform, error) {
	return f.answer(EstimatorCall{Op: "register", Prompt: in.Prompt, Frame: in.Frame, Mask: in.MaskPath}, in.Camera)
}

// Track implements estimator.Estimator.
func (f *FakeEstimator) Track(_ context.Context, in estimator.TrackInput) (rigid.Transform, error) {
	return f.answer(EstimatorCall{Op: "track", Prompt: in.Prompt, Frame: in.Frame}, in.Camera)
}

// Calls returns the recorded calls for prompt in order.
func (f *FakeEstimator) Calls(prompt string) []EstimatorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []EstimatorCall
	for _, call := range f.calls {
		if call.Prompt == prompt {
			out = append(out, call)
		}
	}
	return out
}

func (f *FakeEstimator) answer(call EstimatorCall, camera string) (rigid.Transform, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if frame, ok := f.FailAt[call.Prompt]; ok && frame == call.Frame {
		return rigid.Sentinel, &estimator.TrackingFailedError{
			Op:     call.Op,
			Prompt: call.Prompt,
			Frame:  call.Frame,
			Camera: camera,
			Err:    errors.New("injected failure"),
		}
	}
	if f.Pose == nil {
		return rigid.Identity, nil
	}
	return f.Pose(call.Prompt, call.Frame), nil
}

// FakeDetector returns TagToCam, or FiducialNotFoundError when Missing is set.
type FakeDetector struct {
	TagToCam rigid.Transform
	Missing  bool
}

// Detect implements estimator.Detector.
func (f FakeDetector) Detect(_ context.Context, in estimator.DetectInput) (rigid.Transform, error) {
	if f.Missing {
		return rigid.Sentinel, &estimator.FiducialNotFoundError{Camera: in.Camera, ImagePath: in.ImagePath}
	}
	return f.TagToCam, nil
}
