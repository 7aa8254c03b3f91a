package sample

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NaN is the token written for a value the platform could not provide.
const NaN = "nan"

// Value is a metric that may be unavailable on the collecting platform.
// The zero Value is unavailable.
type Value struct {
	v  float64
	ok bool
}

// Unavailable is the explicit "not collected" marker.
var Unavailable = Value{}

// Of returns an available value.
func Of(v float64) Value { return Value{v: v, ok: true} }

// OfUint returns an available value from a counter.
func OfUint(v uint64) Value { return Value{v: float64(v), ok: true} }

// Get returns the value and whether it is available.
func (v Value) Get() (float64, bool) { return v.v, v.ok }

// Available reports whether the value was collected.
func (v Value) Available() bool { return v.ok }

// Or returns the value, or def when unavailable.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

// Add sums two values; the result is unavailable if either side is.
func (v Value) Add(o Value) Value {
	if !v.ok || !o.ok {
		return Unavailable
	}
	return Of(v.v + o.v)
}

// String formats the value for a CSV cell.
func (v Value) String() string {
	if !v.ok {
		return NaN
	}
	return FormatFloat(v.v)
}

// ParseValue parses a CSV cell. Empty cells and NaN tokens are unavailable.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NaN) {
		return Unavailable, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Unavailable, err
	}
	if math.IsNaN(f) {
		return Unavailable, nil
	}
	return Of(f), nil
}

// FormatFloat uses the shortest representation that parses back exactly.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Snapshot is one reading of a process taken at a single instant.
// Snapshots are built once by the collector and never modified afterwards.
type Snapshot struct {
	Time    time.Time
	PID     int32
	Name    string
	Cmdline string

	Threads    int32
	CPUPercent float64
	CPUUser    float64 // seconds
	CPUSystem  float64 // seconds
	IOWait     Value   // seconds

	MemRSS     uint64
	MemVMS     uint64
	MemShared  Value
	MemPercent float32

	FDs Value

	ReadCount  Value
	WriteCount Value
	ReadBytes  Value
	WriteBytes Value
}

// CPUTime is the total CPU time spent in user and system mode.
func (s Snapshot) CPUTime() float64 {
	return s.CPUUser + s.CPUSystem
}
