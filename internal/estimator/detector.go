package estimator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"demoarchive/internal/rigid"
)

// ExecDetector runs an external fiducial detector. The command receives a
// JSON request on stdin and prints
// {"found": bool, "rotation": [9]float64, "translation": [3]float64}.
type ExecDetector struct {
	argv []string
	cfg  execConfig
}

type detectRequest struct {
	Image   string     `json:"image"`
	Camera  string     `json:"camera"`
	K       [9]float64 `json:"K"`
	Family  string     `json:"family"`
	TagID   int        `json:"tag_id"`
	TagSize float64    `json:"tag_size"`
}

type detectResponse struct {
	Found       bool      `json:"found"`
	Rotation    []float64 `json:"rotation"`
	Translation []float64 `json:"translation"`
}

// NewExecDetector returns a detector running argv.
func NewExecDetector(argv []string, opts ...Option) (*ExecDetector, error) {
	if len(argv) == 0 {
		return nil, errors.New("detector command required")
	}
	return &ExecDetector{argv: append([]string(nil), argv...), cfg: newExecConfig(opts)}, nil
}

// Detect implements Detector.
func (d *ExecDetector) Detect(ctx context.Context, in DetectInput) (rigid.Transform, error) {
	notFound := func(reason string) (rigid.Transform, error) {
		return rigid.Sentinel, &FiducialNotFoundError{Camera: in.Camera, ImagePath: in.ImagePath, Reason: reason}
	}

	payload, err := json.Marshal(detectRequest{
		Image:   in.ImagePath,
		Camera:  in.Camera,
		K:       in.Intrinsics.K,
		Family:  in.Family,
		TagID:   in.TagID,
		TagSize: in.TagSize,
	})
	if err != nil {
		return rigid.Sentinel, fmt.Errorf("encode detect request: %w", err)
	}
	out, err := d.cfg.run(ctx, d.argv, payload)
	if err != nil {
		return notFound(err.Error())
	}

	var resp detectResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return notFound(fmt.Sprintf("decode detector output: %v", err))
	}
	if !resp.Found {
		return notFound("")
	}
	if len(resp.Rotation) != 9 || len(resp.Translation) != 3 {
		return notFound(fmt.Sprintf("detector returned %d rotation and %d translation values", len(resp.Rotation), len(resp.Translation)))
	}
	var rot [9]float64
	copy(rot[:], resp.Rotation)
	tagToCam := rigid.FromRotationTranslation(rot, r3.Vector{X: resp.Translation[0], Y: resp.Translation[1], Z: resp.Translation[2]})
	if err := rigid.Validate(tagToCam); err != nil {
		return rigid.Sentinel, rigid.WithSource(err, d.argv[0])
	}
	return tagToCam, nil
}

// StaticDetector returns a fixed tagToCam, typically read from config.
type StaticDetector struct {
	TagToCam rigid.Transform
}

// Detect implements Detector.
func (s StaticDetector) Detect(_ context.Context, in DetectInput) (rigid.Transform, error) {
	if s.TagToCam.IsSentinel() {
		return rigid.Sentinel, &FiducialNotFoundError{Camera: in.Camera, ImagePath: in.ImagePath, Reason: "no static tag pose configured"}
	}
	return s.TagToCam, nil
}
