// Package export writes aggregated windows in the formats the CLI offers.
package export

import (
	"io"
	"strings"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/aggregate"
)

// Format names an output encoding.
type Format string

const (
	CSV    Format = "csv"
	JSON   Format = "json"
	Table  Format = "table"
	Influx Format = "influx"
)

// DefaultMeasurement is the influx measurement name.
const DefaultMeasurement = "pagurus"

var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported format.
func Formats() []Format { return []Format{CSV, JSON, Table, Influx} }

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", errors.WithDetails(errors.Wrapf(ErrUnknownFormat, "%q", s), "known", Formats())
}

// Options tunes rendering.
type Options struct {
	// Plain disables ANSI styling in table output.
	Plain bool
	// Names maps PIDs to process names, used as a tag where the format has one.
	Names map[int32]string
	// Measurement overrides DefaultMeasurement for influx output.
	Measurement string
}

// Write encodes windows to w in the given format.
func Write(w io.Writer, format Format, windows []aggregate.Window, opts Options) error {
	switch format {
	case CSV:
		return writeCSV(w, windows)
	case JSON:
		return writeJSON(w, windows, opts)
	case Table:
		writeTable(w, windows, opts)
		return nil
	case Influx:
		return writeInflux(w, windows, opts)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", format)
}

// Flatten concatenates per-process groups into one slice.
func Flatten(groups []aggregate.PIDWindows) []aggregate.Window {
	var out []aggregate.Window
	for _, g := range groups {
		out = append(out, g.Windows...)
	}
	return out
}

// Header is the CSV header row.
func Header() []string {
	h := []string{"datetime", "pid", "window"}
	for _, c := range aggregate.Counters() {
		h = append(h, c.String()+"_delta")
	}
	for _, g := range aggregate.Gauges() {
		h = append(h, g.String()+"_max")
	}
	for _, g := range aggregate.Gauges() {
		h = append(h, g.String()+"_mean")
	}
	return h
}
