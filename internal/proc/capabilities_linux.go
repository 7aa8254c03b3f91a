//go:build linux

package proc

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

var platformCapabilities = capabilities{
	metricShared: true,
	metricIOWait: true,
	metricFDs:    true,
	metricIO:     true,
}

// readShared reads the shared memory size from /proc/<pid>/statm.
func readShared(ctx context.Context, p *process.Process) (uint64, error) {
	ex, err := p.MemoryInfoExWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return ex.Shared, nil
}
