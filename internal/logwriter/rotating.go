// Package logwriter provides the file sinks behind --log-file and the
// captured output of a spawned child.
package logwriter

import (
	"fmt"
	"os"
	"sync"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
)

const (
	DefaultMaxSize  = 10 * datasize.MB
	DefaultMaxFiles = 3
)

var ErrClosed = errors.New("writer is closed")

// RotatingWriter implements io.Writer with size-based log rotation.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int
	current  *os.File
	written  int64
	mu       sync.Mutex
}

// New creates a new RotatingWriter. maxFiles is the number of rotated files
// to keep (e.g. 3 means .1, .2, .3). Zero values select the defaults.
func New(path string, maxSize datasize.ByteSize, maxFiles int) (*RotatingWriter, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSize.Bytes()),
		maxFiles: maxFiles,
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log")
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Combine(errors.Wrap(err, "stat log"), f.Close())
	}
	w.current = f
	w.written = info.Size()
	return w, nil
}

// Write implements io.Writer. It rotates the file if maxSize is exceeded.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return 0, ErrClosed
	}

	if w.written > 0 && w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.current.Write(p)
	w.written += int64(n)
	return n, err
}

// rotate shifts log files: .N→delete, .1→.2, current→.1, open fresh.
func (w *RotatingWriter) rotate() error {
	if err := w.current.Close(); err != nil {
		return errors.Wrap(err, "close log for rotation")
	}
	w.current = nil

	for i := w.maxFiles; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		if i == w.maxFiles {
			os.Remove(src)
		} else {
			os.Rename(src, fmt.Sprintf("%s.%d", w.path, i+1))
		}
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "rotate log")
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "reopen log")
	}
	w.current = f
	w.written = 0
	return nil
}

// Close closes the underlying file. Closing twice is a no-op.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

// Path returns the file path of this writer.
func (w *RotatingWriter) Path() string {
	return w.path
}
