package logging

// ProgressSampler thins per-frame progress logs to one line per percentage
// bucket. The first and last frames always log.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler emits when progress crosses a bucketSize percent
// boundary (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether zero-based frame of total deserves a progress line.
// A nil sampler logs every frame.
func (s *ProgressSampler) ShouldLog(frame, total int) bool {
	if s == nil || total <= 0 {
		return true
	}
	if frame == 0 || frame >= total-1 {
		s.lastBucket = s.bucket(frame, total)
		return true
	}
	bucket := s.bucket(frame, total)
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	return true
}

func (s *ProgressSampler) bucket(frame, total int) int {
	percent := float64(frame+1) * 100 / float64(total)
	return int(percent / s.bucketSize)
}

// Reset starts a new sequence.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.lastBucket = -1
	}
}
