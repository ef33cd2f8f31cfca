package utils

import (
	"sort"
	"sync"
	"time"
)

// DurationTracker collects per-metric evaluation durations for one run.
// A run evaluates a bounded set of metrics, so samples are kept unbounded
// and summarized once at the end.
type DurationTracker struct {
	mu      sync.Mutex
	samples []time.Duration
}

// NewDurationTracker returns an empty tracker.
func NewDurationTracker() *DurationTracker {
	return &DurationTracker{}
}

// Observe records a duration sample.
func (d *DurationTracker) Observe(sample time.Duration) {
	d.mu.Lock()
	d.samples = append(d.samples, sample)
	d.mu.Unlock()
}

// Count reports the number of recorded samples.
func (d *DurationTracker) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}

// Summary reports p50, p95 and max over the recorded samples.
// All values are zero when nothing was observed.
func (d *DurationTracker) Summary() (p50, p95, max time.Duration) {
	d.mu.Lock()
	sorted := append([]time.Duration(nil), d.samples...)
	d.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentileOf(sorted, 50), percentileOf(sorted, 95), sorted[len(sorted)-1]
}

func percentileOf(sorted []time.Duration, p float64) time.Duration {
	index := int(p / 100.0 * float64(len(sorted)-1))
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
