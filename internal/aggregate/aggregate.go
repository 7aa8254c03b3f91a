// Package aggregate turns a raw sample series into windowed deltas and
// rolling peaks resampled on a fixed cadence.
package aggregate

import (
	"slices"
	"time"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/sample"
	"github.com/7c/pagurus/internal/series"
)

const (
	DefaultWindow  = 60 * time.Second
	DefaultCadence = 10 * time.Second

	// maxBuckets bounds the output of a single pass.
	maxBuckets = 1 << 20
)

var (
	ErrInvalidOptions = errors.New("invalid aggregation options")
	ErrNoRows         = errors.New("no rows for pid")
	ErrTooManyBuckets = errors.New("cadence too fine for series span")
)

// Options configures one aggregation pass.
type Options struct {
	Window  time.Duration
	Cadence time.Duration
}

// DefaultOptions returns a 60s window resampled every 10s.
func DefaultOptions() Options {
	return Options{Window: DefaultWindow, Cadence: DefaultCadence}
}

func (o Options) validate() error {
	if o.Window <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "window %s", o.Window)
	}
	if o.Cadence <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "cadence %s", o.Cadence)
	}
	return nil
}

// Window is one resampled output row.
type Window struct {
	PID     int32
	Time    time.Time // bucket end
	Window  time.Duration
	Cadence time.Duration

	Deltas [numCounters]sample.Value
	Peaks  [numGauges]sample.Value
	Means  [numGauges]sample.Value
}

func (w Window) Delta(c Counter) sample.Value { return w.Deltas[c] }
func (w Window) Peak(g Gauge) sample.Value    { return w.Peaks[g] }
func (w Window) Mean(g Gauge) sample.Value    { return w.Means[g] }

// Rate is the counter delta per second of window.
func (w Window) Rate(c Counter) sample.Value {
	d, ok := w.Deltas[c].Get()
	if !ok || w.Window <= 0 {
		return sample.Unavailable
	}
	return sample.Of(d / w.Window.Seconds())
}

// PIDWindows groups the output of one process.
type PIDWindows struct {
	PID     int32
	Windows []Window
}

// Aggregate computes the windows of one process in s.
func Aggregate(s *series.Series, pid int32, opts Options) ([]Window, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	rows := s.ForPID(pid)
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrNoRows, "pid %d", pid)
	}
	return compute(pid, rows, opts)
}

// All aggregates every process in s, in ascending PID order.
func All(s *series.Series, opts Options) ([]PIDWindows, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	var out []PIDWindows
	for _, pid := range s.PIDs() {
		ws, err := compute(pid, s.ForPID(pid), opts)
		if err != nil {
			return nil, err
		}
		out = append(out, PIDWindows{PID: pid, Windows: ws})
	}
	return out, nil
}

// Rows aggregates the rows of a single process. rows is not modified; a
// copy is ordered by time first.
func Rows(pid int32, rows []sample.Snapshot, opts Options) ([]Window, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrNoRows, "pid %d", pid)
	}
	ordered := slices.Clone(rows)
	slices.SortStableFunc(ordered, func(a, b sample.Snapshot) int { return a.Time.Compare(b.Time) })
	return compute(pid, ordered, opts)
}

// compute expects rows ordered by time.
func compute(pid int32, rows []sample.Snapshot, opts Options) ([]Window, error) {
	ts := make([]time.Time, len(rows))
	for i, r := range rows {
		ts[i] = r.Time
	}

	span := ts[len(ts)-1].Sub(ts[0])
	if span/opts.Cadence >= maxBuckets {
		return nil, errors.Wrapf(ErrTooManyBuckets, "span %s at cadence %s", span, opts.Cadence)
	}

	buckets := bucketIndex(ts, opts.Cadence)
	n := buckets[len(buckets)-1] + 1

	out := make([]Window, n)
	for k := range out {
		out[k] = Window{
			PID:     pid,
			Time:    ts[0].Add(time.Duration(k) * opts.Cadence),
			Window:  opts.Window,
			Cadence: opts.Cadence,
		}
	}

	vals := make([]sample.Value, len(rows))
	for _, c := range Counters() {
		for i, r := range rows {
			vals[i] = c.value(r)
		}
		for k, v := range bucketMean(buckets, rollingDelta(ts, vals, opts.Window), n) {
			out[k].Deltas[c] = v
		}
	}
	for _, g := range Gauges() {
		for i, r := range rows {
			vals[i] = g.value(r)
		}
		peaks, means := rollingStats(ts, vals, opts.Window)
		for k, v := range bucketMean(buckets, peaks, n) {
			out[k].Peaks[g] = v
		}
		for k, v := range bucketMean(buckets, means, n) {
			out[k].Means[g] = v
		}
	}
	return out, nil
}
