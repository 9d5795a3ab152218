package logging

// ProgressSampler suppresses repetitive per-title progress logs while
// preserving signal when a percentage bucket is crossed.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when progress crosses
// bucket boundaries (default 10%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress at done/total should be logged. An
// unknown total (<= 0) always logs the first call only.
func (s *ProgressSampler) ShouldLog(done, total int) bool {
	if s == nil {
		return true
	}
	percent := 0.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}
	if percent > 100 {
		percent = 100
	}
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Percent formats done/total for log output.
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(int(float64(done)/float64(total)*1000)) / 10
}
