// Package attach finds the process to monitor, either from an explicit PID
// or from a marker file written by the launcher that started it.
package attach

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/7c/pagurus/internal/proc"
)

const (
	// DefaultInterval is the pause between marker reads.
	DefaultInterval = time.Second
	// DefaultAttempts bounds the wait for the marker to about five minutes.
	DefaultAttempts = 300

	// markerSettle separates the two reads that must agree before an
	// unterminated marker is trusted.
	markerSettle = 50 * time.Millisecond
)

var (
	// ErrAttachTimeout means the marker never appeared within the retry budget.
	ErrAttachTimeout = errors.New("marker file did not appear in time")
	// ErrInvalidMarker means the marker exists but does not hold a PID.
	ErrInvalidMarker = errors.New("marker file does not contain a valid pid")

	// errNotReady covers a marker that exists but has no content yet.
	errNotReady = errors.New("marker file is empty")
)

// Resolver turns a PID or a marker file into a process identifier.
type Resolver struct {
	Interval time.Duration
	Attempts int
	// Watch wakes the resolver as soon as the marker is written instead of
	// waiting for the next tick.
	Watch  bool
	Logger *slog.Logger
}

// NewResolver returns a Resolver with the default retry budget.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		Interval: DefaultInterval,
		Attempts: DefaultAttempts,
		Watch:    true,
		Logger:   logger,
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// FromPID narrows pid to a process identifier. A value no process can have
// is ErrNoSuchProcess; whether a valid one names a live process is checked
// when the process handle is created.
func (r *Resolver) FromPID(pid int) (int32, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, errors.Wrapf(proc.ErrNoSuchProcess, "pid %d", pid)
	}
	return int32(pid), nil
}

// FromMarker waits for the marker file at path and returns the PID on its
// first line. A missing or still-empty file is retried once per Interval for
// up to Attempts ticks; malformed content fails immediately.
func (r *Resolver) FromMarker(ctx context.Context, path string) (int32, error) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	log := r.logger()

	var events <-chan fsnotify.Event
	if r.Watch {
		if w, err := watchMarker(path); err != nil {
			log.Debug("marker watch unavailable, polling only", "path", path, "error", err)
		} else {
			defer w.Close()
			events = w.Events
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; {
		pid, err := r.readSettled(ctx, path)
		if err == nil {
			log.Info("read pid from marker", "path", path, "pid", pid)
			return pid, nil
		}
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, errNotReady) {
			return 0, err
		}
		if attempt >= attempts {
			return 0, errors.Wrapf(ErrAttachTimeout, "%s after %d attempts", path, attempts)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			attempt++
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Extra reads on change do not count against the budget.
			if filepath.Clean(ev.Name) != filepath.Clean(path) || !ev.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
		}
	}
}

// watchMarker watches the directory holding the marker, since the marker
// itself usually does not exist yet.
func watchMarker(path string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// readSettled reads the marker and, when its first line is not yet
// terminated, reads it again after markerSettle. The launcher may still be
// writing, so "43" is only trusted once a second read agrees or the line is
// complete.
func (r *Resolver) readSettled(ctx context.Context, path string) (int32, error) {
	pid, complete, err := readMarker(path)
	if err != nil || complete {
		return pid, err
	}

	t := time.NewTimer(markerSettle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.C:
	}

	again, complete, err := readMarker(path)
	if err != nil {
		return 0, err
	}
	if !complete && again != pid {
		r.logger().Debug("marker still changing", "path", path, "first", pid, "second", again)
		return 0, errNotReady
	}
	return again, nil
}

// ReadMarker parses the PID on the first line of the marker file.
func ReadMarker(path string) (int32, error) {
	pid, _, err := readMarker(path)
	return pid, err
}

// readMarker also reports whether the first line ends in a newline.
func readMarker(path string) (int32, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, errors.Wrapf(err, "read marker %s", path)
	}
	first, _, complete := bytes.Cut(data, []byte("\n"))
	line := string(bytes.TrimSpace(first))
	if line == "" {
		return 0, false, errNotReady
	}
	pid, err := strconv.ParseInt(line, 10, 32)
	if err != nil || pid <= 0 {
		return 0, false, errors.Wrapf(ErrInvalidMarker, "%s: %q", path, line)
	}
	return int32(pid), complete, nil
}
