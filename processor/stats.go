package processor

// classLabels names the two classes the argmax result is mapped to,
// per spec.md §4.5.
var classLabels = [2]string{"Bad", "Good"}

// RunningStats accumulates a lifetime arithmetic mean over per-frame
// inference result vectors, until reset. Not safe for concurrent use;
// the plugin serialises calls onto the pipeline's worker thread.
type RunningStats struct {
	mean  []float64
	count uint64
}

// Observe folds result into the running mean, growing the mean vector
// on the first call.
func (s *RunningStats) Observe(result []float32) {
	if s.mean == nil {
		s.mean = make([]float64, len(result))
	}
	s.count++
	for i, v := range result {
		s.mean[i] += (float64(v) - s.mean[i]) / float64(s.count)
	}
}

// Mean returns a copy of the current running mean.
func (s *RunningStats) Mean() []float64 {
	out := make([]float64, len(s.mean))
	copy(out, s.mean)
	return out
}

// Count returns the number of frames folded into the mean so far.
func (s *RunningStats) Count() uint64 {
	return s.count
}

// Reset clears the accumulated statistics, implementing the
// reset_statistics configuration action.
func (s *RunningStats) Reset() {
	s.mean = nil
	s.count = 0
}

// Argmax returns the index of the largest element of result and its
// value. Panics if result is empty: the caller always supplies a
// non-empty inference result.
func Argmax(result []float32) (index int, value float32) {
	if len(result) == 0 {
		panic("processor: Argmax called with empty result")
	}
	best := 0
	for i := 1; i < len(result); i++ {
		if result[i] > result[best] {
			best = i
		}
	}
	return best, result[best]
}

// ClassLabel maps an argmax class index to its Bad/Good label, per
// spec.md §4.5. Any index other than 0 maps to Good, matching the
// binary defect/no-defect classification the model produces.
func ClassLabel(classIndex int) string {
	if classIndex == 0 {
		return classLabels[0]
	}
	return classLabels[1]
}
