package proc

// Optional metrics whose availability depends on the host platform.
const (
	metricShared = "mem_shared"
	metricIOWait = "cpu_iowait"
	metricFDs    = "num_fds"
	metricIO     = "io_counters"
)

type capabilities map[string]bool

func (c capabilities) has(metric string) bool { return c[metric] }

// Supported reports whether the host platform exposes an optional metric.
func Supported(metric string) bool { return platformCapabilities.has(metric) }

// OptionalMetrics lists the platform-dependent metrics in a stable order.
func OptionalMetrics() []string {
	return []string{metricShared, metricIOWait, metricFDs, metricIO}
}
