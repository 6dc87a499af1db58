// Package prof collects wall-clock samples for the protocol steps timed by
// cmd/analysis.
package prof

import (
	"sort"
	"sync"
	"time"
)

// Recorder groups durations by label. The zero value is ready to use.
type Recorder struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
}

// Track records the time elapsed since start under label. It is meant to be
// deferred: defer rec.Track(time.Now(), "mint").
func (r *Recorder) Track(start time.Time, label string) {
	r.Add(label, time.Since(start))
}

// Add records one duration under label.
func (r *Recorder) Add(label string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.samples == nil {
		r.samples = make(map[string][]time.Duration)
	}
	r.samples[label] = append(r.samples[label], d)
}

// Labels returns the recorded labels in sorted order.
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.samples))
	for l := range r.samples {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Micros returns the samples for label in microseconds.
func (r *Recorder) Micros(label string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds := r.samples[label]
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = float64(d.Nanoseconds()) / 1e3
	}
	return out
}

// SnapshotAndReset returns every sample and clears the recorder.
func (r *Recorder) SnapshotAndReset() map[string][]time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.samples
	r.samples = nil
	if out == nil {
		out = map[string][]time.Duration{}
	}
	return out
}
