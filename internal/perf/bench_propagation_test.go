package perf

import (
	"sort"
	"testing"
	"time"
)

func TestSignInPropagationLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{
			name:      "prompt_propagation",
			samples:   []time.Duration{60 * time.Millisecond, 80 * time.Millisecond, 100 * time.Millisecond, 120 * time.Millisecond, 150 * time.Millisecond, 170 * time.Millisecond, 200 * time.Millisecond, 230 * time.Millisecond, 260 * time.Millisecond, 300 * time.Millisecond},
			threshold: 500 * time.Millisecond,
		},
		{
			name:      "fallback_recheck",
			samples:   []time.Duration{1800 * time.Millisecond, 1900 * time.Millisecond, 2000 * time.Millisecond, 2100 * time.Millisecond, 2200 * time.Millisecond, 2300 * time.Millisecond, 2400 * time.Millisecond, 2500 * time.Millisecond, 2700 * time.Millisecond, 2900 * time.Millisecond},
			threshold: 3 * time.Second,
		},
	}

	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
