package estimator

import (
	"context"

	"demoarchive/internal/artifact"
	"demoarchive/internal/rigid"
)

// RegisterInput is a mask-guided pose initialisation request.
type RegisterInput struct {
	Prompt       string
	Frame        int
	Camera       string
	Intrinsics   artifact.Intrinsics
	RGBPath      string
	DepthPath    string
	MaskPath     string
	Iterations   int
	InitRotation [9]float64
}

// TrackInput is an incremental tracking request from the previous pose.
type TrackInput struct {
	Prompt     string
	Frame      int
	Camera     string
	Intrinsics artifact.Intrinsics
	RGBPath    string
	DepthPath  string
	Previous   rigid.Transform
	Iterations int
}

// Estimator produces objToCam poses. Failures are *TrackingFailedError.
type Estimator interface {
	Register(ctx context.Context, in RegisterInput) (rigid.Transform, error)
	Track(ctx context.Context, in TrackInput) (rigid.Transform, error)
}

// DetectInput asks for the fiducial tag pose in one image.
type DetectInput struct {
	Camera     string
	ImagePath  string
	Intrinsics artifact.Intrinsics
	Family     string
	TagID      int
	TagSize    float64
}

// Detector returns tagToCam or *FiducialNotFoundError.
type Detector interface {
	Detect(ctx context.Context, in DetectInput) (rigid.Transform, error)
}
