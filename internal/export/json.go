package export

import (
	"io"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"

	"github.com/7c/pagurus/internal/aggregate"
	"github.com/7c/pagurus/internal/sample"
)

type jsonWindow struct {
	Time    time.Time           `json:"time"`
	PID     int32               `json:"pid"`
	Name    string              `json:"name,omitempty"`
	Window  float64             `json:"window_seconds"`
	Cadence float64             `json:"cadence_seconds"`
	Deltas  map[string]*float64 `json:"delta"`
	Max     map[string]*float64 `json:"max"`
	Mean    map[string]*float64 `json:"mean"`
}

// nullable maps an unavailable value to JSON null.
func nullable(v sample.Value) *float64 {
	f, ok := v.Get()
	if !ok {
		return nil
	}
	return &f
}

func toJSON(win aggregate.Window, opts Options) jsonWindow {
	jw := jsonWindow{
		Time:    win.Time,
		PID:     win.PID,
		Name:    opts.Names[win.PID],
		Window:  win.Window.Seconds(),
		Cadence: win.Cadence.Seconds(),
		Deltas:  make(map[string]*float64),
		Max:     make(map[string]*float64),
		Mean:    make(map[string]*float64),
	}
	for _, c := range aggregate.Counters() {
		jw.Deltas[c.String()] = nullable(win.Delta(c))
	}
	for _, g := range aggregate.Gauges() {
		jw.Max[g.String()] = nullable(win.Peak(g))
		jw.Mean[g.String()] = nullable(win.Mean(g))
	}
	return jw
}

func writeJSON(w io.Writer, windows []aggregate.Window, opts Options) error {
	out := make([]jsonWindow, 0, len(windows))
	for _, win := range windows {
		out = append(out, toJSON(win, opts))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encode json")
}
