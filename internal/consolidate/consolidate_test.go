package consolidate_test

import (
	"context"
	"errors"
	"image"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"demoarchive/internal/artifact"
	"demoarchive/internal/config"
	"demoarchive/internal/consolidate"
	"demoarchive/internal/estimator"
	"demoarchive/internal/logging"
	"demoarchive/internal/rigid"
	"demoarchive/internal/testsupport"
	"demoarchive/internal/tracking"
)

const prompt = "red block"

var (
	maskRect = image.Rect(2, 3, 6, 8)
	maskBox  = [4]float64{2, 3, 6, 8}
	bounds   = rigid.CornersFromExtents(0.1, 0.1, 0.1)
)

func framePose(_ string, frame int) rigid.Transform {
	return testsupport.Translation(0, 0, float64(frame+1))
}

func newTrackDemo(t *testing.T, cfg *config.Config, frames int) *testsupport.Demo {
	t.Helper()
	return testsupport.NewDemo(t, cfg, "demonstration_0001", frames).
		WithMasks(prompt, maskRect).
		WithBounds(prompt, bounds)
}

func newConsolidator(t *testing.T, cfg *config.Config, est estimator.Estimator, det estimator.Detector) *consolidate.Consolidator {
	t.Helper()
	c, err := consolidate.New(cfg, est, det, logging.NewNop())
	if err != nil {
		t.Fatalf("new consolidator: %v", err)
	}
	return c
}

func TestTrackModeRegistersThenFreezes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 5).
		Annotate(1, "front_cam", prompt, "out_of_frame").
		Annotate(3, "side_cam", prompt, "stop_tracking").
		WriteAnnotations()

	est := &testsupport.FakeEstimator{Pose: framePose}
	c := newConsolidator(t, cfg, est, testsupport.FakeDetector{TagToCam: rigid.Identity})

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if table.Frames != 5 || table.Mode != config.ModeTrack {
		t.Fatalf("unexpected table header: frames=%d mode=%s", table.Frames, table.Mode)
	}
	s := table.Object(prompt)
	if s == nil {
		t.Fatalf("missing series for %q", prompt)
	}

	wantCalls := []testsupport.EstimatorCall{
		{Op: "register", Prompt: prompt, Frame: 0, Mask: demo.Layout.MaskPath(prompt, "side_cam", 0)},
		{Op: "track", Prompt: prompt, Frame: 1},
		{Op: "track", Prompt: prompt, Frame: 2},
	}
	if diff := cmp.Diff(wantCalls, est.Calls(prompt)); diff != "" {
		t.Fatalf("estimator calls mismatch (-want +got):\n%s", diff)
	}

	wantActions := []tracking.Action{
		tracking.RegisterWithMask,
		tracking.TrackWithoutMask,
		tracking.TrackWithoutMask,
		tracking.Freeze,
		tracking.ReuseFrozenPose,
	}
	if diff := cmp.Diff(wantActions, s.Actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}

	frozen := framePose(prompt, 2)
	for frame, want := range []rigid.Transform{framePose(prompt, 0), framePose(prompt, 1), frozen, frozen, frozen} {
		if s.CamPoses[frame] != want {
			t.Fatalf("frame %d: cam pose %v, want %v", frame, s.CamPoses[frame], want)
		}
		if s.RobotPoses[frame] != want {
			t.Fatalf("frame %d: identity calibration should keep robot pose equal, got %v", frame, s.RobotPoses[frame])
		}
	}

	front, overhead, side := s.Boxes2D[0], s.Boxes2D[1], s.Boxes2D[2]
	stop := consolidate.StopTrackingBox
	out := consolidate.OutOfFrameBox
	if diff := cmp.Diff([][4]float64{maskBox, out, out, stop, stop}, front); diff != "" {
		t.Fatalf("front_cam boxes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][4]float64{maskBox, maskBox, maskBox, stop, stop}, overhead); diff != "" {
		t.Fatalf("overhead_cam boxes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][4]float64{maskBox, maskBox, maskBox, stop, stop}, side); diff != "" {
		t.Fatalf("side_cam boxes mismatch (-want +got):\n%s", diff)
	}
	for c := range s.Masks {
		if len(s.Masks[c]) != 5 || s.Masks[c][0] == nil {
			t.Fatalf("camera %d: expected five loaded masks", c)
		}
	}
}

func TestFreezeAfterOutOfFrameHoldsSentinel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 4).
		Annotate(0, "side_cam", prompt, maskBox).
		Annotate(1, "side_cam", prompt, "out_of_frame").
		Annotate(2, "side_cam", prompt, "stop_tracking").
		WriteAnnotations()

	est := &testsupport.FakeEstimator{Pose: framePose}
	c := newConsolidator(t, cfg, est, testsupport.FakeDetector{TagToCam: rigid.Identity})

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := table.Object(prompt)

	wantActions := []tracking.Action{
		tracking.RegisterWithMask,
		tracking.EmitSentinel,
		tracking.Freeze,
		tracking.ReuseFrozenPose,
	}
	if diff := cmp.Diff(wantActions, s.Actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	if len(est.Calls(prompt)) != 1 {
		t.Fatalf("expected only the frame 0 registration, got %v", est.Calls(prompt))
	}
	if s.CamPoses[0] != framePose(prompt, 0) {
		t.Fatalf("frame 0: cam pose %v", s.CamPoses[0])
	}
	for frame := 1; frame < 4; frame++ {
		if !s.CamPoses[frame].IsSentinel() || !s.RobotPoses[frame].IsSentinel() {
			t.Fatalf("frame %d: expected sentinel poses, got cam=%v robot=%v", frame, s.CamPoses[frame], s.RobotPoses[frame])
		}
	}
}

func TestTrackModeWritesUpstreamArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 3)
	c := newConsolidator(t, cfg, &testsupport.FakeEstimator{Pose: framePose}, testsupport.FakeDetector{TagToCam: rigid.Identity})

	if _, err := c.Run(context.Background(), demo.Root()); err != nil {
		t.Fatalf("run: %v", err)
	}
	n, err := demo.Layout.CountOutputFrames(prompt)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 exported frames, got %d err=%v", n, err)
	}
	loader := artifact.NewLoader(demo.Layout, 1)
	pose, err := loader.CamPose(prompt, 2)
	if err != nil {
		t.Fatalf("read exported pose: %v", err)
	}
	if pose != framePose(prompt, 2) {
		t.Fatalf("exported pose %v, want %v", pose, framePose(prompt, 2))
	}
	box, err := loader.BoxRobot(prompt, 1)
	if err != nil {
		t.Fatalf("read exported box: %v", err)
	}
	want, _ := rigid.ApplyCorners(framePose(prompt, 1), bounds)
	if box != want {
		t.Fatalf("exported box %v, want %v", box, want)
	}
}

func TestTrackModeSequencesShareFrameCount(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt, "blue cup"))
	demo := newTrackDemo(t, cfg, 4).
		WithMasks("blue cup", image.Rect(0, 0, 3, 3)).
		WithBounds("blue cup", bounds)
	c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{TagToCam: rigid.Identity})

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{prompt, "blue cup"}, table.Prompts()); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
	for _, s := range table.Objects {
		lengths := []int{len(s.CamPoses), len(s.RobotPoses), len(s.CamBoxes), len(s.RobotBoxes), len(s.Actions)}
		for _, boxes := range s.Boxes2D {
			lengths = append(lengths, len(boxes))
		}
		for _, masks := range s.Masks {
			lengths = append(lengths, len(masks))
		}
		for _, n := range lengths {
			if n != 4 {
				t.Fatalf("%s: sequence lengths %v, want all 4", s.Prompt, lengths)
			}
		}
	}
}

func TestUseAllMasksRegistersEveryFrame(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithUseAllMasks())
	demo := newTrackDemo(t, cfg, 3)
	est := &testsupport.FakeEstimator{}
	c := newConsolidator(t, cfg, est, testsupport.FakeDetector{TagToCam: rigid.Identity})

	if _, err := c.Run(context.Background(), demo.Root()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, call := range est.Calls(prompt) {
		if call.Op != "register" {
			t.Fatalf("frame %d: expected register, got %s", call.Frame, call.Op)
		}
	}
}

func TestRejectedAnnotationIsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 3).
		Annotate(1, "front_cam", prompt, "stop_tracking").
		WriteAnnotations()
	c := newConsolidator(t, cfg, &testsupport.FakeEstimator{Pose: framePose}, testsupport.FakeDetector{TagToCam: rigid.Identity})

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := table.Object(prompt)
	if got := s.Boxes2D[0][1]; got != maskBox {
		t.Fatalf("rejected annotation should fall back to the mask box, got %v", got)
	}
	if s.Actions[1] != tracking.TrackWithoutMask {
		t.Fatalf("reference camera should keep tracking, got %s", s.Actions[1])
	}
}

func TestMissingMaskWithoutBoxEmitsSentinel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithoutMasks())
	demo := testsupport.NewDemo(t, cfg, "demonstration_0002", 3).WithBounds(prompt, bounds)
	est := &testsupport.FakeEstimator{}
	c := newConsolidator(t, cfg, est, testsupport.FakeDetector{TagToCam: rigid.Identity})

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := table.Object(prompt)
	if s.Masks != nil {
		t.Fatalf("masks should not be collected when disabled")
	}
	for frame, pose := range s.CamPoses {
		if !pose.IsSentinel() {
			t.Fatalf("frame %d: expected sentinel pose, got %v", frame, pose)
		}
		if !consolidate.IsAbsentBox(s.Boxes2D[0][frame]) {
			t.Fatalf("frame %d: expected absent box on front_cam, got %v", frame, s.Boxes2D[0][frame])
		}
		if s.Boxes2D[2][frame] != consolidate.OutOfFrameBox {
			t.Fatalf("frame %d: expected out-of-frame box on reference, got %v", frame, s.Boxes2D[2][frame])
		}
	}
	if calls := est.Calls(prompt); len(calls) != 0 {
		t.Fatalf("estimator should not run without a mask, got %v", calls)
	}
}

func TestDrawnBoxWithoutMaskFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithoutMasks())
	demo := testsupport.NewDemo(t, cfg, "demonstration_0003", 3).
		WithBounds(prompt, bounds).
		Annotate(0, "side_cam", prompt, [4]float64{1, 1, 5, 5}).
		WriteAnnotations()
	c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{TagToCam: rigid.Identity})

	_, err := c.Run(context.Background(), demo.Root())
	var missing *artifact.MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifactError, got %v", err)
	}
	if missing.Path != demo.Layout.MaskPath(prompt, "side_cam", 0) {
		t.Fatalf("unexpected missing path %s", missing.Path)
	}
}

func TestEstimatorFailureAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 3)
	est := &testsupport.FakeEstimator{FailAt: map[string]int{prompt: 1}}
	c := newConsolidator(t, cfg, est, testsupport.FakeDetector{TagToCam: rigid.Identity})

	_, err := c.Run(context.Background(), demo.Root())
	var failed *estimator.TrackingFailedError
	if !errors.As(err, &failed) || failed.Frame != 1 {
		t.Fatalf("expected TrackingFailedError at frame 1, got %v", err)
	}
}

func TestTrackModeWithoutEstimatorFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 2)
	c := newConsolidator(t, cfg, nil, testsupport.FakeDetector{TagToCam: rigid.Identity})

	_, err := c.Run(context.Background(), demo.Root())
	var input *consolidate.InputError
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestFiducialFallback(t *testing.T) {
	t.Run("missing without fallback fails", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
		demo := newTrackDemo(t, cfg, 2)
		c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{Missing: true})

		_, err := c.Run(context.Background(), demo.Root())
		var notFound *estimator.FiducialNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected FiducialNotFoundError, got %v", err)
		}
	})

	t.Run("fallback substitutes the tag pose", func(t *testing.T) {
		fallback := testsupport.Translation(1, 0, 0)
		cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithFallbackTagToCam(fallback[:]))
		demo := newTrackDemo(t, cfg, 2)
		c := newConsolidator(t, cfg, &testsupport.FakeEstimator{Pose: framePose}, testsupport.FakeDetector{Missing: true})

		table, err := c.Run(context.Background(), demo.Root())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		robot := table.Object(prompt).RobotPoses[0]
		if robot.At(0, 3) != -1 || robot.At(2, 3) != 1 {
			t.Fatalf("expected robot pose translated by the inverse fallback, got %v", robot)
		}
	})
}

func TestStreamValidation(t *testing.T) {
	t.Run("short depth stream", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
		demo := newTrackDemo(t, cfg, 5).RemoveFrame(artifact.StreamDepth, "front_cam", 4)
		c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{TagToCam: rigid.Identity})

		_, err := c.Run(context.Background(), demo.Root())
		var mismatch *consolidate.StreamLengthMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected StreamLengthMismatchError, got %v", err)
		}
		if mismatch.Want != 5 || mismatch.Got != 4 || mismatch.Camera != "front_cam" {
			t.Fatalf("unexpected mismatch %+v", mismatch)
		}
	})

	t.Run("gap in rgb stream", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
		demo := newTrackDemo(t, cfg, 5).RemoveFrame(artifact.StreamRGB, "overhead_cam", 1)
		c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{TagToCam: rigid.Identity})

		_, err := c.Run(context.Background(), demo.Root())
		var missing *artifact.MissingArtifactError
		if !errors.As(err, &missing) || missing.Frame != 1 {
			t.Fatalf("expected MissingArtifactError at frame 1, got %v", err)
		}
	})

	t.Run("annotation past the last frame", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
		demo := newTrackDemo(t, cfg, 3).Annotate(7, "side_cam", prompt, "out_of_frame").WriteAnnotations()
		c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{TagToCam: rigid.Identity})

		_, err := c.Run(context.Background(), demo.Root())
		var mismatch *consolidate.StreamLengthMismatchError
		if !errors.As(err, &mismatch) || mismatch.Stream != "annotations" {
			t.Fatalf("expected annotations mismatch, got %v", err)
		}
	})
}

func TestImportModeCopiesUpstreamFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithMode(config.ModeImport))
	camToRobot := testsupport.Translation(0, 2, 0)
	demo := testsupport.NewDemo(t, cfg, "demonstration_0004", 3).
		WithMasks(prompt, maskRect).
		WithUpstreamPoses(prompt, bounds, camToRobot, func(frame int) rigid.Transform { return framePose(prompt, frame) }).
		Annotate(1, "overhead_cam", prompt, [4]float64{5, 4, 1, 1}).
		Annotate(2, "side_cam", prompt, "stop_tracking").
		WriteAnnotations()
	c := newConsolidator(t, cfg, nil, nil)

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := table.Object(prompt)
	for frame := 0; frame < 3; frame++ {
		if s.CamPoses[frame] != framePose(prompt, frame) {
			t.Fatalf("frame %d: imported pose %v", frame, s.CamPoses[frame])
		}
		want, _ := rigid.ObjectToRobot(framePose(prompt, frame), camToRobot)
		if s.RobotPoses[frame] != want {
			t.Fatalf("frame %d: imported robot pose %v, want %v", frame, s.RobotPoses[frame], want)
		}
	}
	if s.Actions != nil {
		t.Fatalf("import mode records no tracking actions, got %v", s.Actions)
	}
	if got := s.Boxes2D[1][1]; got != [4]float64{1, 1, 5, 4} {
		t.Fatalf("drawn box should be normalized, got %v", got)
	}
	if got := s.Boxes2D[2][2]; got != consolidate.StopTrackingBox {
		t.Fatalf("stop annotation should encode stop box, got %v", got)
	}
	if got := s.Boxes2D[0][0]; got != maskBox {
		t.Fatalf("unannotated frame should use the mask box, got %v", got)
	}
}

func TestImportModeBoxesMatchTrackMode(t *testing.T) {
	annotate := func(d *testsupport.Demo) *testsupport.Demo {
		return d.Annotate(1, "front_cam", prompt, "out_of_frame").
			Annotate(2, "side_cam", prompt, "stop_tracking").
			WriteAnnotations()
	}

	trackCfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	trackDemo := annotate(newTrackDemo(t, trackCfg, 4))
	tracked, err := newConsolidator(t, trackCfg, &testsupport.FakeEstimator{Pose: framePose}, testsupport.FakeDetector{TagToCam: rigid.Identity}).
		Run(context.Background(), trackDemo.Root())
	if err != nil {
		t.Fatalf("track run: %v", err)
	}

	importCfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithMode(config.ModeImport))
	importDemo := annotate(testsupport.NewDemo(t, importCfg, "demonstration_0006", 4).
		WithMasks(prompt, maskRect).
		WithUpstreamPoses(prompt, bounds, rigid.Identity, func(frame int) rigid.Transform { return framePose(prompt, frame) }))
	imported, err := newConsolidator(t, importCfg, nil, nil).Run(context.Background(), importDemo.Root())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}

	stop := consolidate.StopTrackingBox
	out := consolidate.OutOfFrameBox
	want := [][][4]float64{
		{maskBox, out, stop, stop},
		{maskBox, maskBox, stop, stop},
		{maskBox, maskBox, stop, stop},
	}
	if diff := cmp.Diff(want, imported.Object(prompt).Boxes2D); diff != "" {
		t.Fatalf("import boxes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tracked.Object(prompt).Boxes2D, imported.Object(prompt).Boxes2D); diff != "" {
		t.Fatalf("import and track boxes differ (-track +import):\n%s", diff)
	}
}

func TestImportModeRequiresCompleteOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithMode(config.ModeImport))
	demo := testsupport.NewDemo(t, cfg, "demonstration_0005", 3).
		WithUpstreamPoses(prompt, bounds, rigid.Identity, func(frame int) rigid.Transform { return framePose(prompt, frame) })
	if err := os.Remove(demo.Layout.CamPosePath(prompt, 2)); err != nil {
		t.Fatalf("remove pose: %v", err)
	}
	c := newConsolidator(t, cfg, nil, nil)

	_, err := c.Run(context.Background(), demo.Root())
	var mismatch *consolidate.StreamLengthMismatchError
	if !errors.As(err, &mismatch) || mismatch.Prompt != prompt {
		t.Fatalf("expected output mismatch for %q, got %v", prompt, err)
	}
}

func TestReplayModeFreezesRecordedPoses(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt), testsupport.WithMode(config.ModeReplay))
	demo := newTrackDemo(t, cfg, 4).
		WithUpstreamPoses(prompt, bounds, rigid.Identity, func(frame int) rigid.Transform { return framePose(prompt, frame) }).
		Annotate(2, "side_cam", prompt, "stop_tracking").
		WriteAnnotations()
	c := newConsolidator(t, cfg, nil, testsupport.FakeDetector{TagToCam: rigid.Identity})

	table, err := c.Run(context.Background(), demo.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := table.Object(prompt)
	want := []rigid.Transform{framePose(prompt, 0), framePose(prompt, 1), framePose(prompt, 1), framePose(prompt, 1)}
	if diff := cmp.Diff(want, s.CamPoses); diff != "" {
		t.Fatalf("replayed poses mismatch (-want +got):\n%s", diff)
	}
	// Replay never rewrites the files it reads.
	pose, err := artifact.NewLoader(demo.Layout, 1).CamPose(prompt, 3)
	if err != nil || pose != framePose(prompt, 3) {
		t.Fatalf("upstream file changed: %v err=%v", pose, err)
	}
}

func TestUnknownModeRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrompts(prompt))
	demo := newTrackDemo(t, cfg, 2)
	c := newConsolidator(t, cfg, &testsupport.FakeEstimator{}, testsupport.FakeDetector{TagToCam: rigid.Identity})

	_, err := c.RunMode(context.Background(), demo.Root(), "rewind")
	var input *consolidate.InputError
	if !errors.As(err, &input) {
		t.Fatalf("expected InputError, got %v", err)
	}
}
