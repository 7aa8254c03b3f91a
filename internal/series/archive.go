package series

import (
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/klauspost/pgzip"
)

// Compress writes a gzip copy of a finished series file to dst.
// Open reads the result transparently.
func Compress(src, dst string) (written int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", dst)
	}
	defer func() {
		err = errors.Combine(err, errors.Wrapf(out.Close(), "close %s", dst))
		if err != nil {
			os.Remove(dst)
		}
	}()

	gz, err := pgzip.NewWriterLevel(out, pgzip.BestCompression)
	if err != nil {
		return 0, errors.Wrap(err, "pgzip writer")
	}
	written, err = io.Copy(gz, in)
	if err != nil {
		gz.Close()
		return written, errors.Wrapf(err, "compress %s", src)
	}
	if err := gz.Close(); err != nil {
		return written, errors.Wrap(err, "flush gzip stream")
	}
	return written, nil
}
