package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler("", nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler("", nil, inner); h != inner {
		t.Fatal("expected a lone sink without run id to be returned unwrapped")
	}
	if _, ok := newTeeHandler("run-1", inner).(*teeHandler); !ok {
		t.Fatal("expected a run id to keep the tee in place")
	}
}

func TestTeeHandlerRespectsPerSinkLevels(t *testing.T) {
	var console, file bytes.Buffer
	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(slog.LevelWarn)
	fileLevel := new(slog.LevelVar)
	fileLevel.Set(slog.LevelDebug)

	h := newTeeHandler("run-7", newPrettyHandler(&console, consoleLevel, false), newJSONHandler(&file, fileLevel, false))
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee to accept debug when one sink does")
	}

	logger := slog.New(h).With(FieldComponent, "consolidate")
	logger.Debug("frame loaded", FieldFrame, 3)
	logger.Warn("tag not detected")

	if strings.Contains(console.String(), "frame loaded") {
		t.Fatalf("console should drop debug lines, got %q", console.String())
	}
	if !strings.Contains(console.String(), "consolidate: tag not detected") {
		t.Fatalf("console missing warning, got %q", console.String())
	}
	for _, want := range []string{`"msg":"frame loaded"`, `"msg":"tag not detected"`, `"component":"consolidate"`, `"run_id":"run-7"`, `"level":"warn"`, `"ts":"`} {
		if !strings.Contains(file.String(), want) {
			t.Fatalf("json output missing %s: %q", want, file.String())
		}
	}
}

func TestTeeHandlerKeepsGroups(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newTeeHandler("", slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil)))
	logger.WithGroup("archive").Info("written", "datasets", 4)

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		if !strings.Contains(buf.String(), `"archive":{"datasets":4}`) {
			t.Fatalf("%s output missing grouped attr: %q", name, buf.String())
		}
	}
}

func TestFormatValueQuotesAndRounds(t *testing.T) {
	cases := map[string]slog.Value{
		`"red block"`: slog.StringValue("red block"),
		"front_cam":   slog.StringValue("front_cam"),
		`""`:          slog.StringValue(""),
		"0.333333":    slog.Float64Value(1.0 / 3),
		"42":          slog.IntValue(42),
	}
	for want, v := range cases {
		if got := formatValue(v); got != want {
			t.Fatalf("formatValue(%v) = %q, want %q", v, got, want)
		}
	}
}
