package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/display"
	"github.com/7c/pagurus/internal/sample"
)

// tableColumns is the subset of metrics that fits a terminal.
var tableColumns = []struct {
	header string
	value  func(aggregate.Window) sample.Value
	format func(float64) string
}{
	{"cpu s", func(w aggregate.Window) sample.Value { return w.Delta(aggregate.CPUTime) }, display.FormatSecondsAxis},
	{"cpu% max", func(w aggregate.Window) sample.Value { return w.Peak(aggregate.CPUPercent) }, display.FormatCPUAxis},
	{"rss max", func(w aggregate.Window) sample.Value { return w.Peak(aggregate.MemRSS) }, display.FormatMemoryAxis},
	{"threads max", func(w aggregate.Window) sample.Value { return w.Peak(aggregate.Threads) }, display.FormatCountAxis},
	{"fds max", func(w aggregate.Window) sample.Value { return w.Peak(aggregate.FDs) }, display.FormatCountAxis},
	{"read", func(w aggregate.Window) sample.Value { return w.Delta(aggregate.ReadBytes) }, display.FormatMemoryAxis},
	{"written", func(w aggregate.Window) sample.Value { return w.Delta(aggregate.WriteBytes) }, display.FormatMemoryAxis},
}

func writeTable(w io.Writer, windows []aggregate.Window, opts Options) {
	headers := []string{"time", "pid", "window"}
	for _, c := range tableColumns {
		headers = append(headers, c.header)
	}
	tbl := display.NewTable(headers...)
	tbl.Plain = opts.Plain
	right := make([]int, 0, len(headers)-1)
	for i := 1; i < len(headers); i++ {
		right = append(right, i)
	}
	tbl.AlignRight(right...)

	for _, win := range windows {
		raw := []string{
			win.Time.Format("15:04:05"),
			strconv.FormatInt(int64(win.PID), 10),
			win.Window.String(),
		}
		colored := []string{display.Dim(raw[0]), display.Bold(raw[1]), raw[2]}
		for _, c := range tableColumns {
			v, ok := c.value(win).Get()
			if !ok {
				raw = append(raw, "-")
				colored = append(colored, display.Dim("-"))
				continue
			}
			s := c.format(v)
			raw = append(raw, s)
			colored = append(colored, s)
		}
		tbl.AddColoredRow(raw, colored)
	}
	tbl.Render(w)
	if tbl.Len() == 0 {
		fmt.Fprintln(w, "no windows")
	}
}
