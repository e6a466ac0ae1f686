package logging_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"demoarchive/internal/logging"
)

func TestProgressSamplerBucketsFrames(t *testing.T) {
	sampler := logging.NewProgressSampler(25)
	var logged []int
	for frame := 0; frame < 20; frame++ {
		if sampler.ShouldLog(frame, 20) {
			logged = append(logged, frame)
		}
	}
	// Frames 4, 9, 14 close the 25, 50 and 75 percent buckets; 0 and 19 always log.
	want := []int{0, 4, 9, 14, 19}
	if diff := cmp.Diff(want, logged); diff != "" {
		t.Fatalf("logged frames mismatch (-want +got):\n%s", diff)
	}
}

func TestProgressSamplerShortSequences(t *testing.T) {
	sampler := logging.NewProgressSampler(10)
	if !sampler.ShouldLog(0, 1) {
		t.Fatal("single-frame sequence must log")
	}
	sampler.Reset()
	if !sampler.ShouldLog(0, 2) || !sampler.ShouldLog(1, 2) {
		t.Fatal("first and last frames must log")
	}
}

func TestProgressSamplerNilAndDefaults(t *testing.T) {
	var sampler *logging.ProgressSampler
	if !sampler.ShouldLog(5, 10) {
		t.Fatal("nil sampler logs every frame")
	}
	sampler.Reset()

	defaulted := logging.NewProgressSampler(0)
	count := 0
	for frame := 0; frame < 100; frame++ {
		if defaulted.ShouldLog(frame, 100) {
			count++
		}
	}
	if count != 11 {
		t.Fatalf("default 10%% buckets over 100 frames should log 11 lines, got %d", count)
	}
}
