// =============================================================================
// pkg/stats/stats.go - Per-Rank Latency Summaries
// =============================================================================
//
// This package collects the per-product timings of one rank and summarises
// them as count / min / mean / max. Nothing is aggregated across ranks.
//
// =============================================================================

package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/karthikiyer56/hepnos-store-benchmark/helpers"
)

// =============================================================================
// LatencyStats - Track Latency Samples
// =============================================================================

// LatencyStats collects latency samples and computes statistics.
//
// THREAD SAFETY:
//
//	LatencyStats is safe for concurrent use from multiple goroutines.
//	All operations are protected by a mutex.
type LatencyStats struct {
	mu      sync.Mutex
	samples []time.Duration
}

// NewLatencyStats creates a new LatencyStats collector.
func NewLatencyStats() *LatencyStats {
	return &LatencyStats{
		samples: make([]time.Duration, 0, 64),
	}
}

// Add records a latency sample.
func (ls *LatencyStats) Add(d time.Duration) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.samples = append(ls.samples, d)
}

// AddSeconds records a sample expressed in seconds.
func (ls *LatencyStats) AddSeconds(s float64) {
	ls.Add(time.Duration(s * float64(time.Second)))
}

// Count returns the number of samples collected.
func (ls *LatencyStats) Count() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.samples)
}

// LatencySummary contains computed latency statistics.
type LatencySummary struct {
	Count int           // Number of samples
	Min   time.Duration // Minimum latency
	Max   time.Duration // Maximum latency
	Avg   time.Duration // Average (mean) latency
	Total time.Duration // Sum of all samples
}

// Summary computes and returns latency statistics.
// A collector with no samples yields the zero summary.
func (ls *LatencyStats) Summary() LatencySummary {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if len(ls.samples) == 0 {
		return LatencySummary{}
	}

	s := LatencySummary{
		Count: len(ls.samples),
		Min:   ls.samples[0],
		Max:   ls.samples[0],
	}
	for _, d := range ls.samples {
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
		s.Total += d
	}
	s.Avg = s.Total / time.Duration(len(ls.samples))
	return s
}

// String returns a formatted string representation of the summary.
func (s LatencySummary) String() string {
	if s.Count == 0 {
		return "no samples"
	}
	return fmt.Sprintf("count=%d min=%s avg=%s max=%s",
		s.Count, helpers.FormatDuration(s.Min), helpers.FormatDuration(s.Avg), helpers.FormatDuration(s.Max))
}

// =============================================================================
// PhaseStats - Store or Load Phase of One Rank
// =============================================================================

// PhaseStats groups the two timings reported for every product of a phase.
type PhaseStats struct {
	// IO is raw storage time (store) or raw loading time (load).
	IO *LatencyStats

	// Codec is serialization time (store) or deserialization time (load).
	Codec *LatencyStats

	// Bytes is the sum of product sizes.
	Bytes int64
}

// NewPhaseStats creates an empty PhaseStats.
func NewPhaseStats() *PhaseStats {
	return &PhaseStats{IO: NewLatencyStats(), Codec: NewLatencyStats()}
}

// Record adds one product's timings in seconds.
func (ps *PhaseStats) Record(size int, ioSeconds, codecSeconds float64) {
	ps.IO.AddSeconds(ioSeconds)
	ps.Codec.AddSeconds(codecSeconds)
	ps.Bytes += int64(size)
}
