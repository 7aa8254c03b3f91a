//go:build !linux && !darwin

package proc

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

var platformCapabilities = capabilities{
	metricIO: true,
}

func readShared(ctx context.Context, p *process.Process) (uint64, error) {
	return 0, ErrUnsupportedMetric
}
