package tracking_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"demoarchive/internal/annotation"
	"demoarchive/internal/tracking"
)

func box() annotation.Value {
	return annotation.BoxValue(annotation.Box{X0: 1, Y0: 2, X1: 10, Y1: 12})
}

func TestReferenceSequence(t *testing.T) {
	m := tracking.NewMachine("side_cam", true, tracking.Policy{})
	sequence := []annotation.Value{
		annotation.None(),
		box(),
		annotation.StopTracking(),
		annotation.None(),
		annotation.OutOfFrame(),
		box(),
	}

	var actions []tracking.Action
	var states []tracking.State
	for _, ann := range sequence {
		d, err := m.Step(ann)
		if err != nil {
			t.Fatalf("step %d: %v", m.Frame(), err)
		}
		actions = append(actions, d.Action)
		states = append(states, d.State)
	}

	wantActions := []tracking.Action{
		tracking.TrackWithoutMask,
		tracking.RegisterWithMask,
		tracking.Freeze,
		tracking.ReuseFrozenPose,
		tracking.EmitSentinel,
		tracking.RegisterWithMask,
	}
	if diff := cmp.Diff(wantActions, actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	wantStates := []tracking.State{
		tracking.Tracking,
		tracking.Tracking,
		tracking.StoppedTracking,
		tracking.StoppedTracking,
		tracking.OutOfFrame,
		tracking.Tracking,
	}
	if diff := cmp.Diff(wantStates, states); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	if m.State() != tracking.Tracking {
		t.Fatalf("expected tracking after new box, got %s", m.State())
	}
}

func TestStopTrackingRejectedOffReference(t *testing.T) {
	m := tracking.NewMachine("front_cam", false, tracking.Policy{})
	if _, err := m.Step(annotation.OutOfFrame()); err != nil {
		t.Fatalf("step: %v", err)
	}

	_, err := m.Step(annotation.StopTracking())
	var invalid *tracking.InvalidAnnotationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidAnnotationError, got %v", err)
	}
	if invalid.Camera != "front_cam" || invalid.Frame != 1 {
		t.Fatalf("unexpected error context: %+v", invalid)
	}
	if m.State() != tracking.OutOfFrame || m.Frame() != 1 {
		t.Fatalf("state changed after rejection: %s frame %d", m.State(), m.Frame())
	}

	d, err := m.Step(annotation.Skip())
	if err != nil {
		t.Fatalf("retry with skip: %v", err)
	}
	if d.Frame != 1 || d.Action != tracking.EmitSentinel {
		t.Fatalf("unexpected retry decision %+v", d)
	}
}

func TestPolicyRules(t *testing.T) {
	cases := []struct {
		name   string
		policy tracking.Policy
		want   []tracking.Action
	}{
		{"default", tracking.Policy{}, []tracking.Action{tracking.TrackWithoutMask, tracking.TrackWithoutMask}},
		{"all masks", tracking.Policy{UseAllMasks: true}, []tracking.Action{tracking.RegisterWithMask, tracking.RegisterWithMask}},
		{"first frame", tracking.Policy{RegisterFirstFrame: true}, []tracking.Action{tracking.RegisterWithMask, tracking.TrackWithoutMask}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := tracking.NewMachine("side_cam", true, tc.policy)
			var got []tracking.Action
			for i := 0; i < 2; i++ {
				d, err := m.Step(annotation.None())
				if err != nil {
					t.Fatalf("step: %v", err)
				}
				got = append(got, d.Action)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("actions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoppedAndOutOfFrameOverrideUseAllMasks(t *testing.T) {
	m := tracking.NewMachine("side_cam", true, tracking.Policy{UseAllMasks: true})
	steps := []struct {
		ann  annotation.Value
		want tracking.Action
	}{
		{annotation.StopTracking(), tracking.Freeze},
		{annotation.Skip(), tracking.ReuseFrozenPose},
		{annotation.OutOfFrame(), tracking.EmitSentinel},
		{annotation.None(), tracking.EmitSentinel},
		{box(), tracking.RegisterWithMask},
		{annotation.None(), tracking.RegisterWithMask},
	}
	for i, step := range steps {
		d, err := m.Step(step.ann)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if d.Action != step.want {
			t.Fatalf("frame %d: expected %s, got %s", i, step.want, d.Action)
		}
	}
}

func TestMaskUnavailableMovesOutOfFrame(t *testing.T) {
	m := tracking.NewMachine("side_cam", true, tracking.Policy{UseAllMasks: true})
	d, err := m.Step(annotation.None())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	d = m.MaskUnavailable(d)
	if d.Action != tracking.EmitSentinel || m.State() != tracking.OutOfFrame {
		t.Fatalf("expected sentinel and out_of_frame, got %s / %s", d.Action, m.State())
	}

	// A drawn box is never reversed.
	d, err = m.Step(box())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := m.MaskUnavailable(d); got.Action != tracking.RegisterWithMask || m.State() != tracking.Tracking {
		t.Fatalf("box registration reversed: %+v", got)
	}
}
