package aggregate

import (
	"sort"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
)

// DefaultLatencyCeiling bounds what counts as response latency. Larger
// user→assistant gaps are idle time and are excluded rather than allowed
// to skew the percentiles.
const DefaultLatencyCeiling = 5 * time.Minute

// latencyTracker collects inter-turn latency samples during the pass.
type latencyTracker struct {
	ceiling  time.Duration
	lastUser time.Time
	samples  []int64 // milliseconds
}

// userAt notes a user prompt timestamp as the start of a turn.
func (l *latencyTracker) userAt(ts time.Time) {
	if !ts.IsZero() {
		l.lastUser = ts
	}
}

// assistantAt closes an open turn: the delta is recorded only when it is
// positive and below the sanity ceiling.
func (l *latencyTracker) assistantAt(ts time.Time) {
	if l.lastUser.IsZero() || ts.IsZero() {
		return
	}
	delta := ts.Sub(l.lastUser)
	l.lastUser = time.Time{}
	if delta <= 0 || delta > l.ceiling {
		return
	}
	l.samples = append(l.samples, delta.Milliseconds())
}

// stats reduces the collected samples to the persisted percentiles.
func (l *latencyTracker) stats() model.LatencyStats {
	n := len(l.samples)
	if n == 0 {
		return model.LatencyStats{}
	}

	sorted := make([]int64, n)
	copy(sorted, l.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, s := range sorted {
		sum += s
	}

	return model.LatencyStats{
		AvgMs:   sum / int64(n),
		P50Ms:   percentile(sorted, 50),
		P95Ms:   percentile(sorted, 95),
		MaxMs:   sorted[n-1],
		Samples: n,
	}
}

func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}
