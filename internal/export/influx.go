package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/sample"
)

// writeInflux emits one InfluxDB line protocol point per window. Unavailable
// metrics are left out; a window with nothing available is skipped.
func writeInflux(w io.Writer, windows []aggregate.Window, opts Options) error {
	measurement := opts.Measurement
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	bw := bufio.NewWriter(w)
	for _, win := range windows {
		if line, ok := influxLine(measurement, win, opts.Names[win.PID]); ok {
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
	}
	return errors.Wrap(bw.Flush(), "write influx")
}

func influxLine(measurement string, win aggregate.Window, name string) (string, bool) {
	var fields []string
	add := func(key string, v sample.Value) {
		if f, ok := v.Get(); ok {
			fields = append(fields, key+"="+strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	for _, c := range aggregate.Counters() {
		add(c.String()+"_delta", win.Delta(c))
	}
	for _, g := range aggregate.Gauges() {
		add(g.String()+"_max", win.Peak(g))
		add(g.String()+"_mean", win.Mean(g))
	}
	if len(fields) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(escapeMeasurement(measurement))
	sb.WriteString(",pid=")
	sb.WriteString(strconv.FormatInt(int64(win.PID), 10))
	if name != "" {
		sb.WriteString(",name=")
		sb.WriteString(escapeTag(name))
	}
	sb.WriteString(",window=")
	sb.WriteString(escapeTag(win.Window.String()))
	sb.WriteByte(' ')
	sb.WriteString(strings.Join(fields, ","))
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatInt(win.Time.UnixNano(), 10))
	return sb.String(), true
}

// tagEscaper escapes InfluxDB line protocol tag values. Line protocol has no
// escape for line breaks, so they become spaces and are escaped as such.
var tagEscaper = strings.NewReplacer(
	"\\", "\\\\",
	" ", "\\ ",
	",", "\\,",
	"=", "\\=",
	"\n", "\\ ",
	"\r", "\\ ",
)

func escapeTag(s string) string { return tagEscaper.Replace(s) }

var measurementEscaper = strings.NewReplacer(
	" ", "\\ ",
	",", "\\,",
	"\n", "\\ ",
	"\r", "\\ ",
)

func escapeMeasurement(s string) string { return measurementEscaper.Replace(s) }
