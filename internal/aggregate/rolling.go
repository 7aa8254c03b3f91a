package aggregate

import (
	"time"

	"github.com/7c/pagurus/internal/sample"
)

// rollingDelta computes v(t) - v(t - window) for every row, keyed by elapsed
// time rather than row count. The reference row is the newest one at least
// one window older than t. The delta is unavailable when there is no such
// row yet, when a sampling gap wider than the window lies between the
// reference and t, when either value is missing, or when the counter went
// backwards.
func rollingDelta(ts []time.Time, vals []sample.Value, window time.Duration) []sample.Value {
	out := make([]sample.Value, len(ts))
	ref := -1
	gapEnd := -1
	for i := range ts {
		if i > 0 && ts[i].Sub(ts[i-1]) > window {
			gapEnd = i
		}
		limit := ts[i].Add(-window)
		for ref+1 < i && !ts[ref+1].After(limit) {
			ref++
		}
		if ref < 0 || ref < gapEnd {
			continue
		}
		cur, ok := vals[i].Get()
		if !ok {
			continue
		}
		prev, ok := vals[ref].Get()
		if !ok {
			continue
		}
		if d := cur - prev; d >= 0 {
			out[i] = sample.Of(d)
		}
	}
	return out
}

// rollingStats returns the maximum and mean of the available values in
// [t - window, t] for every row.
func rollingStats(ts []time.Time, vals []sample.Value, window time.Duration) (peaks, means []sample.Value) {
	peaks = make([]sample.Value, len(ts))
	means = make([]sample.Value, len(ts))

	var (
		dq    []int // indices of available values, values decreasing
		start int
		sum   float64
		n     int
	)
	for i := range ts {
		limit := ts[i].Add(-window)

		if v, ok := vals[i].Get(); ok {
			for len(dq) > 0 && vals[dq[len(dq)-1]].Or(0) <= v {
				dq = dq[:len(dq)-1]
			}
			dq = append(dq, i)
			sum += v
			n++
		}
		for ; start <= i && ts[start].Before(limit); start++ {
			if v, ok := vals[start].Get(); ok {
				sum -= v
				n--
			}
		}
		for len(dq) > 0 && ts[dq[0]].Before(limit) {
			dq = dq[1:]
		}

		if n > 0 {
			means[i] = sample.Of(sum / float64(n))
		}
		if len(dq) > 0 {
			peaks[i] = vals[dq[0]]
		}
	}
	return peaks, means
}

// bucketIndex assigns rows to right-closed buckets of width cadence anchored
// at ts[0]: bucket k holds (t0+(k-1)c, t0+kc].
func bucketIndex(ts []time.Time, cadence time.Duration) []int {
	idx := make([]int, len(ts))
	if len(ts) == 0 {
		return idx
	}
	t0 := ts[0]
	for i, t := range ts {
		d := t.Sub(t0)
		if d <= 0 {
			continue
		}
		// Ceiling division that cannot overflow for a huge cadence.
		idx[i] = int((d-1)/cadence + 1)
	}
	return idx
}

// bucketMean averages the available values of each bucket.
func bucketMean(buckets []int, vals []sample.Value, n int) []sample.Value {
	sums := make([]float64, n)
	counts := make([]int, n)
	for i, b := range buckets {
		if v, ok := vals[i].Get(); ok {
			sums[b] += v
			counts[b]++
		}
	}
	out := make([]sample.Value, n)
	for b := range out {
		if counts[b] > 0 {
			out[b] = sample.Of(sums[b] / float64(counts[b]))
		}
	}
	return out
}
