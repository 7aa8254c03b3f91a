package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/attach"
	"github.com/7c/pagurus/internal/display"
	"github.com/7c/pagurus/internal/monitor"
	"github.com/7c/pagurus/internal/proc"
)

// outputStampLayout names default series files.
const outputStampLayout = "01-02-2006-15:04:05"

// recordOptions are shared by record and run.
type recordOptions struct {
	out     string
	tag     string
	rate    time.Duration
	plot    bool
	windows []time.Duration
	cadence time.Duration
}

func (o *recordOptions) register(f *pflag.FlagSet) {
	f.StringVarP(&o.out, "out", "o", "", "series file (default stats_<timestamp>.csv)")
	f.StringVarP(&o.tag, "tag", "t", "", "prefix for the default series file name")
	f.DurationVarP(&o.rate, "rate", "r", monitor.DefaultInterval, "pause between samples")
	f.BoolVar(&o.plot, "plot", false, "plot the series when sampling ends")
	f.DurationSliceVar(&o.windows, "window", []time.Duration{aggregate.DefaultWindow}, "aggregation window for --plot (repeatable)")
	f.DurationVar(&o.cadence, "cadence", aggregate.DefaultCadence, "resampling cadence for --plot")
}

func (o *recordOptions) validate() error {
	if o.rate < 0 {
		return usageError{errors.Errorf("--rate must not be negative, got %s", o.rate)}
	}
	if o.plot {
		if err := stdoutCap.Require(); err != nil {
			return err
		}
		return validateAggregation(o.windows, o.cadence)
	}
	return nil
}

// outputPath returns the series path, deriving a timestamped default.
func (o *recordOptions) outputPath(now time.Time) string {
	if o.out != "" {
		return o.out
	}
	name := "stats_" + now.Format(outputStampLayout) + ".csv"
	if o.tag != "" {
		name = o.tag + "_" + name
	}
	return name
}

// recording is the outcome of one sampling session.
type recording struct {
	Path     string        `json:"path"`
	PID      int32         `json:"pid"`
	Name     string        `json:"name"`
	State    monitor.State `json:"state"`
	Samples  int           `json:"samples"`
	Duration float64       `json:"duration_seconds"`
	Cause    string        `json:"cause,omitempty"`

	// Set by run for the child it spawned.
	Command  string `json:"command,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	ChildLog string `json:"child_log,omitempty"`
}

// record resolves pid, samples it to a series file and returns the outcome.
// Nothing is written when the process cannot be resolved.
func (o *recordOptions) record(ctx context.Context, pid int32) (*recording, error) {
	h, err := proc.Resolve(ctx, pid, slog.Default())
	if err != nil {
		return nil, err
	}
	return o.sample(ctx, h)
}

// sample runs the loop over an already resolved process.
func (o *recordOptions) sample(ctx context.Context, h *proc.Handle) (*recording, error) {
	logger := slog.Default()
	logger.Info("attached", "pid", h.PID(), "name", h.Name())

	path := o.outputPath(time.Now())
	loop := monitor.NewLoop(o.rate, logger)
	res, err := monitor.Record(ctx, loop, h, path)
	if err != nil {
		return nil, err
	}

	rec := &recording{
		Path:     path,
		PID:      h.PID(),
		Name:     h.Name(),
		State:    res.State,
		Samples:  res.Samples,
		Duration: res.Duration().Seconds(),
	}
	if res.Cause != nil {
		rec.Cause = res.Cause.Error()
		logger.Warn("sampling ended early", "pid", h.PID(), "error", res.Cause)
	}
	return rec, nil
}

// report prints the recording summary, then plots it when asked to.
func (o *recordOptions) report(cmd *cobra.Command, rec *recording) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "encode summary")
		}
		fmt.Fprintln(w, string(data))
	} else {
		fields := [][2]string{
			{"pid", strconv.Itoa(int(rec.PID))},
			{"name", rec.Name},
			{"samples", strconv.Itoa(rec.Samples)},
			{"duration", (time.Duration(rec.Duration * float64(time.Second))).Round(time.Millisecond).String()},
			{"series", rec.Path},
		}
		if rec.Command != "" {
			fields = append(fields, [2]string{"command", rec.Command})
		}
		if rec.ExitCode != nil {
			fields = append(fields, [2]string{"exit code", strconv.Itoa(*rec.ExitCode)})
		}
		if rec.ChildLog != "" {
			fields = append(fields, [2]string{"child log", rec.ChildLog})
		}
		if rec.Cause != "" {
			fields = append(fields, [2]string{"cause", rec.Cause})
		}
		display.RenderSummary(w, !stdoutCap.Terminal, display.Summary{
			Title:  "pagurus",
			State:  string(rec.State),
			Fields: fields,
		})
	}

	if !o.plot || rec.Samples == 0 {
		return nil
	}
	return plotFile(w, rec.Path, plotOptions{
		windows: o.windows,
		cadence: o.cadence,
		width:   stdoutCap.ChartWidth(),
		height:  12,
	})
}

// signalContext cancels on SIGINT or SIGTERM so sampling stops cleanly and
// the series file is closed.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var (
	recordOpts    recordOptions
	recordPID     int
	recordMarker  string
	recordNoWatch bool
	recordTries   int
	recordWait    time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Sample a running process until it exits",
	Long: `Attach to a process and sample it at a fixed rate until it exits.

The process is given with --pid, or read from a marker file that the
launcher writes with the PID of the process it started. The marker is
polled once per second (300 attempts by default) and never deleted.

Each sample is appended to the series file as soon as it is taken.`,
	Example: `  # Sample PID 4321 every 100ms
  pagurus record --pid 4321

  # Wait for a launcher to write watch.pid, then sample every second
  pagurus record --marker watch.pid --rate 1s --tag nightly

  # Plot 30s and 2m windows when the process exits
  pagurus record -i 4321 --plot --window 30s --window 2m`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	f := recordCmd.Flags()
	f.IntVarP(&recordPID, "pid", "i", 0, "PID to sample (skips the marker file)")
	f.StringVar(&recordMarker, "marker", "watch.pid", "marker file holding the PID to sample")
	f.BoolVar(&recordNoWatch, "no-watch", false, "poll the marker file only, without filesystem notifications")
	f.IntVar(&recordTries, "attempts", attach.DefaultAttempts, "marker polling attempts before giving up")
	f.DurationVar(&recordWait, "attach-interval", attach.DefaultInterval, "pause between marker polls")
	recordOpts.register(f)
}

func runRecord(cmd *cobra.Command, _ []string) error {
	if err := recordOpts.validate(); err != nil {
		return err
	}
	if recordPID < 0 {
		return usageError{errors.Errorf("--pid must be positive, got %d", recordPID)}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	r := attach.NewResolver(slog.Default())
	r.Watch = !recordNoWatch
	r.Attempts = recordTries
	r.Interval = recordWait

	var (
		pid int32
		err error
	)
	if recordPID > 0 {
		pid, err = r.FromPID(recordPID)
	} else {
		pid, err = r.FromMarker(ctx, recordMarker)
	}
	if err != nil {
		return err
	}

	rec, err := recordOpts.record(ctx, pid)
	if err != nil {
		return err
	}
	return recordOpts.report(cmd, rec)
}
