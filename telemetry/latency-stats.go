package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const defaultSampleCapacity = 100000

// LatencyStats collects latency samples (nanoseconds) from any number of
// goroutines and computes percentile statistics on demand. Record is cheap;
// Calculate copies and sorts, O(n log n), and belongs in periodic reporting,
// never on the hot path.
type LatencyStats struct {
	name string

	mu      sync.Mutex
	samples []int64
}

// Stats is one computed report. All latencies are in nanoseconds.
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	P50    float64
	P90    float64
	P99    float64
	P999   float64
}

func NewLatencyStats(name string) *LatencyStats {
	return &LatencyStats{
		name:    name,
		samples: make([]int64, 0, defaultSampleCapacity),
	}
}

func (s *LatencyStats) Name() string { return s.name }

func (s *LatencyStats) Record(latencyNs int64) {
	s.mu.Lock()
	s.samples = append(s.samples, latencyNs)
	s.mu.Unlock()
}

func (s *LatencyStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *LatencyStats) Reset() {
	s.mu.Lock()
	s.samples = s.samples[:0]
	s.mu.Unlock()
}

func (s *LatencyStats) Calculate() Stats {
	s.mu.Lock()
	sorted := make([]int64, len(s.samples))
	copy(sorted, s.samples)
	s.mu.Unlock()

	if len(sorted) == 0 {
		return Stats{}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}

	return Stats{
		Count:  n,
		Min:    float64(sorted[0]),
		Max:    float64(sorted[n-1]),
		Mean:   sum / float64(n),
		Median: float64(sorted[n/2]),
		P50:    float64(sorted[n*50/100]),
		P90:    float64(sorted[n*90/100]),
		P99:    float64(sorted[min(n*99/100, n-1)]),
		P999:   float64(sorted[min(n*999/1000, n-1)]),
	}
}

func (s *LatencyStats) String() string {
	stats := s.Calculate()

	var b strings.Builder
	fmt.Fprintf(&b, "%s latency statistics:\n", s.name)
	fmt.Fprintf(&b, "  count:  %d samples\n", stats.Count)
	fmt.Fprintf(&b, "  min:    %.0f ns\n", stats.Min)
	fmt.Fprintf(&b, "  mean:   %.0f ns\n", stats.Mean)
	fmt.Fprintf(&b, "  median: %.0f ns\n", stats.Median)
	fmt.Fprintf(&b, "  p90:    %.0f ns\n", stats.P90)
	fmt.Fprintf(&b, "  p99:    %.0f ns\n", stats.P99)
	fmt.Fprintf(&b, "  p99.9:  %.0f ns\n", stats.P999)
	fmt.Fprintf(&b, "  max:    %.0f ns\n", stats.Max)
	return b.String()
}
