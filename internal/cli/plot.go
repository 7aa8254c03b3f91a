package cli

import (
	"fmt"
	"io"
	"time"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/display"
	"github.com/7c/pagurus/internal/sample"
)

type chartGroup int

const (
	groupCPU chartGroup = iota
	groupMem
	groupIO
)

type chartSpec struct {
	title string
	group chartGroup
	value func(aggregate.Window) sample.Value
	yFmt  func(float64) string
}

var charts = []chartSpec{
	{"CPU % (rolling max)", groupCPU, func(w aggregate.Window) sample.Value { return w.Peak(aggregate.CPUPercent) }, display.FormatCPUAxis},
	{"CPU time per window", groupCPU, func(w aggregate.Window) sample.Value { return w.Delta(aggregate.CPUTime) }, display.FormatSecondsAxis},
	{"Memory RSS (rolling max)", groupMem, func(w aggregate.Window) sample.Value { return w.Peak(aggregate.MemRSS) }, display.FormatMemoryAxis},
	{"Memory VMS (rolling max)", groupMem, func(w aggregate.Window) sample.Value { return w.Peak(aggregate.MemVMS) }, display.FormatMemoryAxis},
	{"Open files (rolling max)", groupMem, func(w aggregate.Window) sample.Value { return w.Peak(aggregate.FDs) }, display.FormatCountAxis},
	{"Bytes read per window", groupIO, func(w aggregate.Window) sample.Value { return w.Delta(aggregate.ReadBytes) }, display.FormatMemoryAxis},
	{"Bytes written per window", groupIO, func(w aggregate.Window) sample.Value { return w.Delta(aggregate.WriteBytes) }, display.FormatMemoryAxis},
	{"Read calls per window", groupIO, func(w aggregate.Window) sample.Value { return w.Delta(aggregate.ReadCount) }, display.FormatCountAxis},
	{"Write calls per window", groupIO, func(w aggregate.Window) sample.Value { return w.Delta(aggregate.WriteCount) }, display.FormatCountAxis},
}

type plotOptions struct {
	windows       []time.Duration
	cadence       time.Duration
	pid           int32
	cpu, mem, io  bool
	width, height int
	plain         bool
}

// selected reports whether charts of group g are wanted. No filter shows all.
func (o plotOptions) selected(g chartGroup) bool {
	if !o.cpu && !o.mem && !o.io {
		return true
	}
	switch g {
	case groupCPU:
		return o.cpu
	case groupMem:
		return o.mem
	case groupIO:
		return o.io
	}
	return false
}

// plotFile renders the charts of every selected process in the series at
// path, one line per window size.
func plotFile(w io.Writer, path string, opts plotOptions) error {
	s, err := openSeries(path)
	if err != nil {
		return err
	}
	pids := s.PIDs()
	if opts.pid > 0 {
		pids = []int32{opts.pid}
	}
	names := processNames(s)

	for _, pid := range pids {
		perWindow := make([][]aggregate.Window, len(opts.windows))
		for i, win := range opts.windows {
			ws, err := aggregate.Aggregate(s, pid, aggregate.Options{Window: win, Cadence: opts.cadence})
			if err != nil {
				return err
			}
			perWindow[i] = ws
		}

		heading := fmt.Sprintf("pid %d", pid)
		if n := names[pid]; n != "" {
			heading += " (" + n + ")"
		}
		if opts.plain {
			fmt.Fprintln(w, heading)
		} else {
			fmt.Fprintln(w, display.Bold(heading))
		}
		fmt.Fprintln(w)

		for _, c := range charts {
			if !opts.selected(c.group) {
				continue
			}
			lines := make([]display.ChartSeries, len(opts.windows))
			for i, ws := range perWindow {
				lines[i] = display.ChartSeries{
					Name:   opts.windows[i].String(),
					Points: chartPoints(ws, c.value),
				}
			}
			display.AssignSeriesColors(lines)
			display.RenderChart(w, display.ChartConfig{
				Title:      c.title,
				Width:      opts.width,
				Height:     opts.height,
				YFormatter: c.yFmt,
				Plain:      opts.plain,
			}, lines)
		}
	}
	return nil
}

func chartPoints(ws []aggregate.Window, value func(aggregate.Window) sample.Value) []display.ChartPoint {
	points := make([]display.ChartPoint, len(ws))
	for i, win := range ws {
		v, ok := value(win).Get()
		points[i] = display.ChartPoint{Time: win.Time.UnixMilli(), Value: v, Missing: !ok}
	}
	return points
}

var (
	plotFlags plotOptions
	plotPID   int
	plotOut   string
)

var plotCmd = &cobra.Command{
	Use:   "plot <series>",
	Short: "Draw terminal charts of an aggregated series",
	Long: `Draw braille line charts of a series, one line per window size.

Charts go to the terminal. Without a terminal, use --out to write them to a
file without colors.`,
	Example: `  # CPU and memory charts for 60s and 120s windows
  pagurus plot stats.csv

  # Only I/O, 10s windows sampled every 2s
  pagurus plot stats.csv --io --window 10s --cadence 2s

  # Write charts to a file
  pagurus plot stats.csv -o charts.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runPlot,
}

func init() {
	f := plotCmd.Flags()
	f.DurationSliceVar(&plotFlags.windows, "window", []time.Duration{time.Minute, 2 * time.Minute}, "aggregation window (repeatable)")
	f.DurationVar(&plotFlags.cadence, "cadence", aggregate.DefaultCadence, "resampling cadence")
	f.IntVar(&plotPID, "pid", 0, "only this process (default: every process in the series)")
	f.BoolVar(&plotFlags.cpu, "cpu", false, "show CPU charts")
	f.BoolVar(&plotFlags.mem, "mem", false, "show memory charts")
	f.BoolVar(&plotFlags.io, "io", false, "show I/O charts")
	f.IntVar(&plotFlags.width, "width", 0, "plot width in columns (default: fit the terminal)")
	f.IntVar(&plotFlags.height, "height", 12, "plot height in rows")
	f.StringVarP(&plotOut, "out", "o", "", "write charts to this file without colors")
}

func runPlot(cmd *cobra.Command, args []string) (err error) {
	if err := validateAggregation(plotFlags.windows, plotFlags.cadence); err != nil {
		return err
	}
	if plotPID < 0 {
		return usageError{errors.Errorf("--pid must be positive, got %d", plotPID)}
	}
	if plotOut == "" {
		if err := stdoutCap.Require(); err != nil {
			return err
		}
	}

	opts := plotFlags
	opts.pid = int32(plotPID)
	opts.plain = plotOut != ""
	if opts.width <= 0 {
		opts.width = 100
		if stdoutCap.Terminal {
			opts.width = stdoutCap.ChartWidth()
		}
	}

	w, closeOut, err := createOutput(cmd, plotOut)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Combine(err, closeOut())
	}()
	return plotFile(w, args[0], opts)
}
