//go:build darwin

package proc

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// gopsutil exposes none of the optional metrics on macOS.
var platformCapabilities = capabilities{}

func readShared(ctx context.Context, p *process.Process) (uint64, error) {
	return 0, ErrUnsupportedMetric
}
