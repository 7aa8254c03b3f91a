package logwriter

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// StampLayout matches the datetime column of a series file so captured child
// output lines up with the samples taken at the same moment.
const StampLayout = "01-02-2006 15:04:05.000000"

// TimestampWriter wraps an io.Writer and prepends a timestamp, and an
// optional stream tag, to each line. Partial lines are buffered until a
// newline arrives or Flush is called.
type TimestampWriter struct {
	w   io.Writer
	tag string
	buf []byte
	mu  sync.Mutex
	now func() time.Time
}

// NewTimestampWriter creates a writer that prefixes each line with a
// timestamp. A non-empty tag is written after it, e.g. "[stderr]".
func NewTimestampWriter(w io.Writer, tag string) *TimestampWriter {
	return &TimestampWriter{w: w, tag: tag, now: time.Now}
}

func (tw *TimestampWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx == -1 {
			tw.buf = append(tw.buf, p...)
			break
		}

		line := append(tw.buf, p[:idx+1]...)
		tw.buf = nil
		if err := tw.emit(line); err != nil {
			return 0, err
		}
		p = p[idx+1:]
	}
	return total, nil
}

// Flush writes a buffered partial line, terminated with a newline.
func (tw *TimestampWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if len(tw.buf) == 0 {
		return nil
	}
	line := append(tw.buf, '\n')
	tw.buf = nil
	return tw.emit(line)
}

func (tw *TimestampWriter) emit(line []byte) error {
	prefix := tw.now().Format(StampLayout) + " "
	if tw.tag != "" {
		prefix += tw.tag + " "
	}
	_, err := tw.w.Write(append([]byte(prefix), line...))
	return err
}
