package proc

import (
	"fmt"

	"emperror.dev/errors"
)

var (
	// ErrNoSuchProcess means the identifier does not name a live process.
	// By the time a handle is requested, absence is final.
	ErrNoSuchProcess = errors.New("no such process")

	// ErrUnsupportedMetric marks a metric the host platform does not expose.
	// It degrades a single field to unavailable and is never fatal.
	ErrUnsupportedMetric = errors.New("metric not supported on this platform")
)

// CollectionError is returned when a snapshot could not be read in full.
// The usual cause is the process exiting between two reads.
type CollectionError struct {
	PID    int32
	Metric string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s for pid %d: %v", e.Metric, e.PID, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }
