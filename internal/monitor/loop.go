// Package monitor drives periodic sampling of one process until it exits.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/sample"
)

// DefaultInterval is the pause between two samples.
const DefaultInterval = 100 * time.Millisecond

// State is the lifecycle state of a sampling loop.
type State string

const (
	StateRunning State = "running"
	// StateExited: the process is gone. This is the normal way a run ends.
	StateExited State = "exited"
	// StateFailed: a snapshot could not be collected, usually because the
	// process was tearing down. Rows written so far are kept.
	StateFailed State = "failed"
	// StateStopped: the host cancelled the context.
	StateStopped State = "stopped"
)

// Target is the process being sampled.
type Target interface {
	Alive(ctx context.Context) bool
	Collect(ctx context.Context, at time.Time) (sample.Snapshot, error)
}

// Sink receives each snapshot as soon as it is collected.
type Sink interface {
	Append(s sample.Snapshot) error
}

// Result summarizes a finished loop.
type Result struct {
	State    State
	Samples  int
	Started  time.Time
	Finished time.Time
	// Cause is the collection error that moved the loop to StateFailed.
	Cause error
}

// Duration is the wall time the loop ran for.
func (r Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Loop samples a target at a fixed interval. The interval does not adapt to
// collection latency, so the effective period drifts slightly upwards.
type Loop struct {
	Interval time.Duration
	Logger   *slog.Logger

	now func() time.Time
}

// NewLoop creates a loop sampling every interval. A negative interval selects
// DefaultInterval; zero samples back to back.
func NewLoop(interval time.Duration, logger *slog.Logger) *Loop {
	if interval < 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{Interval: interval, Logger: logger, now: time.Now}
}

// Run samples target into sink until the target exits, a collection fails,
// or ctx is cancelled. A non-nil error means the sink failed.
func (l *Loop) Run(ctx context.Context, target Target, sink Sink) (Result, error) {
	if l.now == nil {
		l.now = time.Now
	}
	log := l.logger()

	clock := newStampClock(l.now)
	res := Result{State: StateRunning, Started: clock.start}

	finish := func(state State) Result {
		res.State = state
		res.Finished = l.now()
		log.Info("sampling finished",
			"state", string(state),
			"samples", res.Samples,
			"duration", res.Finished.Sub(res.Started).Round(time.Millisecond))
		return res
	}

	for {
		if ctx.Err() != nil {
			return finish(StateStopped), nil
		}
		if !target.Alive(ctx) {
			return finish(StateExited), nil
		}

		snap, err := target.Collect(ctx, clock.next())
		if err != nil {
			if ctx.Err() != nil {
				return finish(StateStopped), nil
			}
			log.Info("collection failed, ending sampling", "error", err)
			res.Cause = err
			return finish(StateFailed), nil
		}
		if err := sink.Append(snap); err != nil {
			finish(StateFailed)
			return res, errors.Wrap(err, "append sample")
		}
		res.Samples++

		if !sleep(ctx, l.Interval) {
			return finish(StateStopped), nil
		}
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// stampClock hands out strictly increasing microsecond timestamps. Wall time
// is derived from the start instant plus monotonic elapsed time, so a wall
// clock step during the run cannot reorder rows.
type stampClock struct {
	now   func() time.Time
	start time.Time
	last  time.Time
}

func newStampClock(now func() time.Time) *stampClock {
	return &stampClock{now: now, start: now()}
}

func (c *stampClock) next() time.Time {
	elapsed := c.now().Sub(c.start)
	t := c.start.Round(0).Add(elapsed).Truncate(time.Microsecond)
	if !c.last.IsZero() && !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
