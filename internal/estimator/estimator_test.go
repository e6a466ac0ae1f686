package estimator_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"demoarchive/internal/artifact"
	"demoarchive/internal/estimator"
	"demoarchive/internal/rigid"
	"demoarchive/internal/testsupport"
)

type fakeExecutor struct {
	stdout string
	err    error
	argv   []string
	stdin  []byte
}

func (f *fakeExecutor) Run(_ context.Context, argv []string, stdin []byte) ([]byte, error) {
	f.argv = argv
	f.stdin = stdin
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.stdout), nil
}

func TestExecEstimatorRegisterSendsRequest(t *testing.T) {
	want := testsupport.Translation(0.1, 0.2, 0.3)
	exec := &fakeExecutor{stdout: rigid.Format(want)}
	est, err := estimator.NewExecEstimator([]string{"pose-estimator", "--gpu"}, estimator.WithExecutor(exec))
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}

	got, err := est.Register(context.Background(), estimator.RegisterInput{
		Prompt:       "red block",
		Frame:        3,
		Camera:       "side_cam",
		Intrinsics:   artifact.IntrinsicsFromK([9]float64{600, 0, 8, 0, 600, 6, 0, 0, 1}),
		RGBPath:      "/demo/rgb_cam_2/0003.png",
		DepthPath:    "/demo/depth_cam_2/0003.png",
		MaskPath:     "/demo/masks_cam_2/red_block/0003.png",
		Iterations:   5,
		InitRotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if strings.Join(exec.argv, " ") != "pose-estimator --gpu" {
		t.Fatalf("unexpected argv %v", exec.argv)
	}

	var req map[string]any
	if err := json.Unmarshal(exec.stdin, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req["op"] != "register" || req["mask"] != "/demo/masks_cam_2/red_block/0003.png" {
		t.Fatalf("unexpected request %v", req)
	}
	if _, ok := req["previous"]; ok {
		t.Fatal("register request must not carry a previous pose")
	}
}

func TestExecEstimatorFailures(t *testing.T) {
	cases := []struct {
		name string
		exec *fakeExecutor
	}{
		{"command error", &fakeExecutor{err: errors.New("exit status 1")}},
		{"short output", &fakeExecutor{stdout: "1 0 0 0"}},
		{"zero pose", &fakeExecutor{stdout: rigid.Format(rigid.Sentinel)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est, err := estimator.NewExecEstimator([]string{"pose-estimator"}, estimator.WithExecutor(tc.exec))
			if err != nil {
				t.Fatalf("new estimator: %v", err)
			}
			_, err = est.Track(context.Background(), estimator.TrackInput{Prompt: "cup", Frame: 4, Camera: "side_cam", Previous: rigid.Identity})
			var failed *estimator.TrackingFailedError
			if !errors.As(err, &failed) {
				t.Fatalf("expected TrackingFailedError, got %v", err)
			}
			if failed.Op != "track" || failed.Frame != 4 || failed.Prompt != "cup" {
				t.Fatalf("unexpected context %+v", failed)
			}
		})
	}
}

func TestExecDetector(t *testing.T) {
	exec := &fakeExecutor{stdout: `{"found": true, "rotation": [1,0,0,0,1,0,0,0,1], "translation": [0.5, 0, 1]}`}
	det, err := estimator.NewExecDetector([]string{"tag-detector"}, estimator.WithExecutor(exec))
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	got, err := det.Detect(context.Background(), estimator.DetectInput{Camera: "side_cam", ImagePath: "/demo/rgb_cam_2/0000.png", TagSize: 0.099})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got != testsupport.Translation(0.5, 0, 1) {
		t.Fatalf("unexpected tag pose %v", got)
	}

	exec.stdout = `{"found": false}`
	_, err = det.Detect(context.Background(), estimator.DetectInput{Camera: "side_cam", ImagePath: "/demo/rgb_cam_2/0000.png"})
	var notFound *estimator.FiducialNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected FiducialNotFoundError, got %v", err)
	}
	if notFound.ImagePath != "/demo/rgb_cam_2/0000.png" {
		t.Fatalf("unexpected image path %s", notFound.ImagePath)
	}
}

func TestStaticDetector(t *testing.T) {
	tagToCam := testsupport.Translation(0, 0, 2)
	got, err := estimator.StaticDetector{TagToCam: tagToCam}.Detect(context.Background(), estimator.DetectInput{})
	if err != nil || got != tagToCam {
		t.Fatalf("expected configured pose, got %v err=%v", got, err)
	}
	_, err = estimator.StaticDetector{}.Detect(context.Background(), estimator.DetectInput{})
	var notFound *estimator.FiducialNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected FiducialNotFoundError, got %v", err)
	}
}

func TestReplayEstimatorReadsUpstreamPoses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	demo := testsupport.NewDemo(t, cfg, "demonstration_1", 3)
	demo.WithUpstreamPoses("cup", rigid.CornersFromExtents(1, 1, 1), rigid.Identity, func(frame int) rigid.Transform {
		return testsupport.Translation(0, float64(frame), 0)
	})

	est := estimator.NewReplayEstimator(artifact.NewLoader(demo.Layout, 1))
	got, err := est.Track(context.Background(), estimator.TrackInput{Prompt: "cup", Frame: 2})
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if got.Translation().Y != 2 {
		t.Fatalf("expected frame 2 pose, got %v", got)
	}

	_, err = est.Register(context.Background(), estimator.RegisterInput{Prompt: "mug", Frame: 0})
	var missing *artifact.MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifactError, got %v", err)
	}
}
