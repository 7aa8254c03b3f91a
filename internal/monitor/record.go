package monitor

import (
	"context"

	"emperror.dev/errors"

	"github.com/7c/pagurus/internal/series"
)

// Record opens a series file at path, samples target into it, and closes
// the file on every exit path before returning.
func Record(ctx context.Context, loop *Loop, target Target, path string) (res Result, err error) {
	w, err := series.Create(path)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		err = errors.Combine(err, w.Close())
	}()

	loop.logger().Info("recording series", "path", path, "interval", loop.Interval)
	return loop.Run(ctx, target, w)
}
