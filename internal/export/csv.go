package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/sample"
	"github.com/7c/pagurus/internal/series"
)

func writeCSV(w io.Writer, windows []aggregate.Window) error {
	enc := csv.NewWriter(w)
	if err := enc.Write(Header()); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, win := range windows {
		rec := []string{
			win.Time.Format(series.TimeLayout),
			strconv.FormatInt(int64(win.PID), 10),
			sample.FormatFloat(win.Window.Seconds()),
		}
		for _, c := range aggregate.Counters() {
			rec = append(rec, win.Delta(c).String())
		}
		for _, g := range aggregate.Gauges() {
			rec = append(rec, win.Peak(g).String())
		}
		for _, g := range aggregate.Gauges() {
			rec = append(rec, win.Mean(g).String())
		}
		if err := enc.Write(rec); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	enc.Flush()
	return errors.Wrap(enc.Error(), "flush csv")
}
