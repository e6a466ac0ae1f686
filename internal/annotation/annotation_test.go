package annotation_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"demoarchive/internal/annotation"
)

func TestParseFileSource(t *testing.T) {
	data := []byte(`{
		"0_side_cam": [
			{"label": "Red Block", "value": [120, 80, 40, 20]},
			{"label": "blue block", "value": "out_of_frame"}
		],
		"3_side_cam": [{"label": "red block", "value": "stop_tracking"}],
		"3_front_cam": [{"label": "red_block", "value": "skip"}]
	}`)
	src, err := annotation.Parse("annotations.json", data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	red := src.Lookup(0, "side_cam").For("red block")
	if red.Kind != annotation.KindBox {
		t.Fatalf("expected box, got %v", red)
	}
	if diff := cmp.Diff([4]float64{40, 20, 120, 80}, red.Box.Array()); diff != "" {
		t.Fatalf("box not normalized (-want +got):\n%s", diff)
	}
	if got := src.Lookup(0, "side_cam").For("BLUE_BLOCK").Kind; got != annotation.KindOutOfFrame {
		t.Fatalf("expected out_of_frame, got %v", got)
	}
	if got := src.Lookup(3, "side_cam").For("Red Block").Kind; got != annotation.KindStopTracking {
		t.Fatalf("expected stop_tracking, got %v", got)
	}
	if got := src.Lookup(3, "front_cam").For("red block").Kind; got != annotation.KindSkip {
		t.Fatalf("expected skip, got %v", got)
	}
	if got := src.Lookup(1, "side_cam").For("red block").Kind; got != annotation.KindNone {
		t.Fatalf("expected none for missing frame, got %v", got)
	}

	want := []annotation.Key{{Frame: 0, Camera: "side_cam"}, {Frame: 3, Camera: "front_cam"}, {Frame: 3, Camera: "side_cam"}}
	if diff := cmp.Diff(want, src.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsMalformedEntries(t *testing.T) {
	cases := map[string]string{
		"bad key":      `{"side_cam": []}`,
		"bad frame":    `{"x_side_cam": []}`,
		"short box":    `{"0_side_cam": [{"label": "cup", "value": [1, 2, 3]}]}`,
		"unknown word": `{"0_side_cam": [{"label": "cup", "value": "vanished"}]}`,
		"no label":     `{"0_side_cam": [{"label": " ", "value": "skip"}]}`,
		"not json":     `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := annotation.Parse("annotations.json", []byte(body))
			var parseErr *annotation.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.ErrorKind() != "validation" {
				t.Fatalf("unexpected kind %q", parseErr.ErrorKind())
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := annotation.LoadFile(filepath.Join(t.TempDir(), annotation.FileName))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), annotation.FileName)
	if err := os.WriteFile(path, []byte(`{"2_overhead_cam": [{"label": "cup", "value": null}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := annotation.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if src.Path() != path {
		t.Fatalf("unexpected path %q", src.Path())
	}
	if got := src.Lookup(2, "overhead_cam").For("cup").Kind; got != annotation.KindNone {
		t.Fatalf("expected null to decode as none, got %v", got)
	}
}

func TestNormalizeLabel(t *testing.T) {
	for _, label := range []string{"Franka robot arm", "franka_robot_arm", "  FRANKA   Robot Arm "} {
		if got := annotation.NormalizeLabel(label); got != "franka_robot_arm" {
			t.Errorf("NormalizeLabel(%q) = %q", label, got)
		}
	}
}

func TestStaticSource(t *testing.T) {
	src := annotation.NewStatic().
		Set(1, "side_cam", "cup", annotation.BoxValue(annotation.Box{X0: 1, Y0: 2, X1: 3, Y1: 4})).
		Set(1, "side_cam", "plate", annotation.OutOfFrame())

	frame := src.Lookup(1, "side_cam")
	if len(frame) != 2 {
		t.Fatalf("expected two labels, got %v", frame)
	}
	if frame.For("Cup").Box.Empty() {
		t.Fatal("expected non-empty box")
	}
	var empty annotation.Frame
	if empty.For("cup").Kind != annotation.KindNone {
		t.Fatal("nil frame must yield none")
	}
}
