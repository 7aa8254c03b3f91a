package series

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/klauspost/pgzip"

	"github.com/7c/pagurus/internal/sample"
)

// Series is a loaded time series file.
type Series struct {
	Path    string
	Columns []string
	Rows    []sample.Snapshot
	// Truncated is set when the final row was incomplete and dropped,
	// which happens when the file is still being written or the recorder
	// was killed mid-row.
	Truncated bool
}

// required columns must be present in the header; everything else is optional.
var required = []string{
	ColDatetime, ColThreads, ColCPUPercent, ColCPUUser, ColCPUSystem,
	ColMemRSS, ColMemVMS, ColMemPercent,
}

// Open loads a series file. Paths ending in .gz are decompressed.
func Open(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open series %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "open gzip series %s", path)
		}
		defer gz.Close()
		r = gz
	}

	s, err := Read(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read series %s", path)
	}
	s.Path = path
	return s, nil
}

// tailReader remembers the last byte it handed out.
type tailReader struct {
	r    io.Reader
	last byte
	n    int64
}

func (t *tailReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.last = p[n-1]
		t.n += int64(n)
	}
	return n, err
}

type pendingRow struct {
	rec  []string
	line int
	err  error
}

// Read parses a series from r.
func Read(r io.Reader) (*Series, error) {
	tr := &tailReader{r: r}
	cr := csv.NewReader(tr)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty series: no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	s := &Series{Columns: header}
	var pending *pendingRow

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row := &pendingRow{rec: rec, err: err}
		if err == nil {
			row.line, _ = cr.FieldPos(0)
		} else {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				row.line = perr.Line
			}
		}

		// Only the newest row may be incomplete, so anything before it must decode.
		if pending != nil {
			snap, err := decodeRow(pending, idx)
			if err != nil {
				return nil, err
			}
			s.Rows = append(s.Rows, snap)
		}
		pending = row
	}

	if pending != nil {
		snap, err := decodeRow(pending, idx)
		if err != nil || tr.last != '\n' {
			s.Truncated = true
		} else {
			s.Rows = append(s.Rows, snap)
		}
	}
	return s, nil
}

type headerIndex map[string]int

func indexHeader(header []string) (headerIndex, error) {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if alias, ok := legacyAliases[name]; ok {
			name = alias
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, errors.Errorf("header is missing column %q", col)
		}
	}
	return idx, nil
}

func (h headerIndex) cell(rec []string, col string) (string, bool) {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return "", false
	}
	return rec[i], true
}

func decodeRow(row *pendingRow, idx headerIndex) (sample.Snapshot, error) {
	if row.err != nil {
		return sample.Snapshot{}, errors.Wrapf(row.err, "line %d", row.line)
	}
	if len(row.rec) < len(idx) {
		return sample.Snapshot{}, errors.Errorf("line %d: %d fields, header has %d", row.line, len(row.rec), len(idx))
	}
	d := rowDecoder{rec: row.rec, idx: idx}
	snap := sample.Snapshot{
		Time:       d.timestamp(),
		PID:        int32(d.integer(ColPID, false)),
		Name:       d.text(ColName),
		Cmdline:    d.text(ColCmdline),
		Threads:    int32(d.integer(ColThreads, true)),
		CPUPercent: d.number(ColCPUPercent),
		CPUUser:    d.number(ColCPUUser),
		CPUSystem:  d.number(ColCPUSystem),
		IOWait:     d.value(ColIOWait),
		MemRSS:     uint64(d.integer(ColMemRSS, true)),
		MemVMS:     uint64(d.integer(ColMemVMS, true)),
		MemShared:  d.value(ColMemShared),
		MemPercent: float32(d.number(ColMemPercent)),
		FDs:        d.value(ColFDs),
		ReadCount:  d.value(ColReadCount),
		WriteCount: d.value(ColWriteCount),
		ReadBytes:  d.value(ColReadBytes),
		WriteBytes: d.value(ColWriteBytes),
	}
	if d.err != nil {
		return sample.Snapshot{}, errors.Wrapf(d.err, "line %d", row.line)
	}
	return snap, nil
}

// rowDecoder keeps the first error so decodeRow can read every column
// without checking after each one.
type rowDecoder struct {
	rec []string
	idx headerIndex
	err error
}

func (d *rowDecoder) fail(col, raw string, err error) {
	if d.err == nil {
		d.err = errors.Wrapf(err, "column %s: %q", col, raw)
	}
}

func (d *rowDecoder) timestamp() time.Time {
	raw, _ := d.idx.cell(d.rec, ColDatetime)
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		d.fail(ColDatetime, raw, err)
	}
	return t
}

func (d *rowDecoder) text(col string) string {
	raw, _ := d.idx.cell(d.rec, col)
	return raw
}

func (d *rowDecoder) value(col string) sample.Value {
	raw, ok := d.idx.cell(d.rec, col)
	if !ok {
		return sample.Unavailable
	}
	v, err := sample.ParseValue(raw)
	if err != nil {
		d.fail(col, raw, err)
	}
	return v
}

func (d *rowDecoder) number(col string) float64 {
	raw, _ := d.idx.cell(d.rec, col)
	v, err := sample.ParseValue(raw)
	if err != nil {
		d.fail(col, raw, err)
		return 0
	}
	f, ok := v.Get()
	if !ok {
		d.fail(col, raw, errors.New("value is required"))
	}
	return f
}

func (d *rowDecoder) integer(col string, mandatory bool) int64 {
	raw, ok := d.idx.cell(d.rec, col)
	if !ok && !mandatory {
		return 0
	}
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	// pandas round-trips integer columns as floats ("12.0").
	f := d.number(col)
	return int64(f)
}

// PIDs returns the distinct process identifiers in ascending order.
func (s *Series) PIDs() []int32 {
	seen := make(map[int32]bool)
	var pids []int32
	for _, r := range s.Rows {
		if !seen[r.PID] {
			seen[r.PID] = true
			pids = append(pids, r.PID)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// ForPID returns the rows of one process, ordered by time.
func (s *Series) ForPID(pid int32) []sample.Snapshot {
	var rows []sample.Snapshot
	for _, r := range s.Rows {
		if r.PID == pid {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	return rows
}
