package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/export"
	"github.com/7c/pagurus/internal/series"
)

var (
	aggWindows []time.Duration
	aggCadence time.Duration
	aggPID     int
	aggFormat  string
	aggOut     string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <series>",
	Short: "Compute windowed deltas and rolling peaks from a series",
	Long: `Aggregate a series file into fixed-cadence windows.

Cumulative counters (CPU time, I/O) become the change over the window.
Gauges (memory, threads, descriptors) become the rolling maximum and mean.
A window without enough history, or broken by a sampling gap longer than
the window, is reported as unavailable rather than guessed.

The series may still be growing; an incomplete last row is ignored.
Gzip-compressed series (.gz) are read directly.`,
	Example: `  # 60s windows every 10s as CSV
  pagurus aggregate stats.csv

  # Two window sizes, as a table
  pagurus aggregate stats.csv --window 30s --window 5m --format table

  # Line protocol for InfluxDB
  pagurus aggregate stats.csv.gz --format influx -o stats.lp`,
	Args: cobra.ExactArgs(1),
	RunE: runAggregate,
}

func init() {
	f := aggregateCmd.Flags()
	f.DurationSliceVar(&aggWindows, "window", []time.Duration{aggregate.DefaultWindow}, "aggregation window (repeatable)")
	f.DurationVar(&aggCadence, "cadence", aggregate.DefaultCadence, "resampling cadence")
	f.IntVar(&aggPID, "pid", 0, "only this process (default: every process in the series)")
	f.StringVarP(&aggFormat, "format", "f", string(export.CSV), "output format: csv, json, table or influx")
	f.StringVarP(&aggOut, "out", "o", "", "write to this file instead of stdout")
}

func validateAggregation(windows []time.Duration, cadence time.Duration) error {
	if len(windows) == 0 {
		return usageError{errors.New("at least one --window is required")}
	}
	for _, w := range windows {
		if w <= 0 {
			return usageError{errors.Errorf("--window must be positive, got %s", w)}
		}
	}
	if cadence <= 0 {
		return usageError{errors.Errorf("--cadence must be positive, got %s", cadence)}
	}
	return nil
}

// aggregateSeries runs every window size over the selected processes.
// pid 0 selects all of them.
func aggregateSeries(s *series.Series, pid int32, windows []time.Duration, cadence time.Duration) ([]aggregate.Window, error) {
	var out []aggregate.Window
	for _, w := range windows {
		opts := aggregate.Options{Window: w, Cadence: cadence}
		if pid > 0 {
			ws, err := aggregate.Aggregate(s, pid, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, ws...)
			continue
		}
		groups, err := aggregate.All(s, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, export.Flatten(groups)...)
	}
	return out, nil
}

// processNames maps each PID in s to the name recorded with it.
func processNames(s *series.Series) map[int32]string {
	names := make(map[int32]string)
	for _, r := range s.Rows {
		if r.Name != "" {
			names[r.PID] = r.Name
		}
	}
	return names
}

func openSeries(path string) (*series.Series, error) {
	s, err := series.Open(path)
	if err != nil {
		return nil, err
	}
	if s.Truncated {
		slog.Info("ignored incomplete last row", "path", path)
	}
	if len(s.Rows) == 0 {
		return nil, errors.Errorf("%s holds no samples", path)
	}
	return s, nil
}

// createOutput opens --out, or returns stdout with a no-op close.
func createOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output")
	}
	return f, f.Close, nil
}

func runAggregate(cmd *cobra.Command, args []string) (err error) {
	format, err := export.ParseFormat(aggFormat)
	if err != nil {
		return usageError{err}
	}
	if err := validateAggregation(aggWindows, aggCadence); err != nil {
		return err
	}

	s, err := openSeries(args[0])
	if err != nil {
		return err
	}
	windows, err := aggregateSeries(s, int32(aggPID), aggWindows, aggCadence)
	if err != nil {
		return err
	}

	w, closeOut, err := createOutput(cmd, aggOut)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Combine(err, closeOut())
	}()

	return export.Write(w, format, windows, export.Options{
		Plain: aggOut != "" || !stdoutCap.Terminal,
		Names: processNames(s),
	})
}
