package series

import (
	"bytes"
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/sample"
)

// Writer appends snapshots to a CSV file, one Write call per row.
// Rows are never held back in memory, so a killed recorder still leaves a
// readable file behind.
type Writer struct {
	path string
	f    *os.File
	buf  bytes.Buffer
	enc  *csv.Writer
	rows int
	mu   sync.Mutex
}

// Create truncates or creates path and writes the header row.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create series %s", path)
	}
	w := &Writer{path: path, f: f}
	w.enc = csv.NewWriter(&w.buf)
	if err := w.writeRecord(Columns); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Append writes one snapshot as a row.
func (w *Writer) Append(s sample.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.New("series writer is closed")
	}
	if err := w.writeRecord(encode(s)); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) writeRecord(rec []string) error {
	w.buf.Reset()
	if err := w.enc.Write(rec); err != nil {
		return errors.Wrap(err, "encode row")
	}
	w.enc.Flush()
	if err := w.enc.Error(); err != nil {
		return errors.Wrap(err, "encode row")
	}
	if _, err := w.f.Write(w.buf.Bytes()); err != nil {
		return errors.Wrapf(err, "write series %s", w.path)
	}
	return nil
}

// Rows returns the number of snapshots appended so far.
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Path returns the file path of this writer.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the underlying file. Calling it more than once is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return errors.Wrapf(err, "close series %s", w.path)
}

func encode(s sample.Snapshot) []string {
	return []string{
		s.Time.Local().Format(TimeLayout),
		strconv.FormatInt(int64(s.Threads), 10),
		sample.FormatFloat(s.CPUPercent),
		sample.FormatFloat(s.CPUUser),
		sample.FormatFloat(s.CPUSystem),
		strconv.FormatUint(s.MemRSS, 10),
		strconv.FormatUint(s.MemVMS, 10),
		s.MemShared.String(),
		strconv.FormatFloat(float64(s.MemPercent), 'g', -1, 32),
		s.FDs.String(),
		s.ReadCount.String(),
		s.WriteCount.String(),
		s.ReadBytes.String(),
		s.WriteBytes.String(),
		strconv.FormatInt(int64(s.PID), 10),
		s.IOWait.String(),
		s.Name,
		s.Cmdline,
	}
}
