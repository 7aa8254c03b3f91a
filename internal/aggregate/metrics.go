package aggregate

import "github.com/7c/pagurus/internal/sample"

// Counter is a cumulative metric; its useful form is a change over a window.
type Counter int

const (
	CPUTime Counter = iota
	CPUUser
	CPUSystem
	CPUIOWait
	ReadCount
	WriteCount
	ReadBytes
	WriteBytes

	numCounters
)

var counterNames = [numCounters]string{
	"cpu_time", "cpu_user", "cpu_system", "cpu_iowait",
	"read_count", "write_count", "read_bytes", "write_bytes",
}

func (c Counter) String() string { return counterNames[c] }

// Counters lists every counter in output order.
func Counters() []Counter {
	cs := make([]Counter, numCounters)
	for i := range cs {
		cs[i] = Counter(i)
	}
	return cs
}

func (c Counter) value(s sample.Snapshot) sample.Value {
	switch c {
	case CPUTime:
		return sample.Of(s.CPUTime())
	case CPUUser:
		return sample.Of(s.CPUUser)
	case CPUSystem:
		return sample.Of(s.CPUSystem)
	case CPUIOWait:
		return s.IOWait
	case ReadCount:
		return s.ReadCount
	case WriteCount:
		return s.WriteCount
	case ReadBytes:
		return s.ReadBytes
	case WriteBytes:
		return s.WriteBytes
	}
	return sample.Unavailable
}

// Gauge is a point-in-time metric; its useful form is a rolling maximum.
type Gauge int

const (
	CPUPercent Gauge = iota
	MemRSS
	MemVMS
	MemShared
	MemUsage
	MemPercent
	Threads
	FDs

	numGauges
)

var gaugeNames = [numGauges]string{
	"cpu_percent", "mem_rss", "mem_vms", "mem_shared",
	"mem_usage", "mem_percent", "num_threads", "num_fds",
}

func (g Gauge) String() string { return gaugeNames[g] }

// Gauges lists every gauge in output order.
func Gauges() []Gauge {
	gs := make([]Gauge, numGauges)
	for i := range gs {
		gs[i] = Gauge(i)
	}
	return gs
}

func (g Gauge) value(s sample.Snapshot) sample.Value {
	switch g {
	case CPUPercent:
		return sample.Of(s.CPUPercent)
	case MemRSS:
		return sample.OfUint(s.MemRSS)
	case MemVMS:
		return sample.OfUint(s.MemVMS)
	case MemShared:
		return s.MemShared
	case MemUsage:
		return sample.OfUint(s.MemRSS + s.MemVMS)
	case MemPercent:
		return sample.Of(float64(s.MemPercent))
	case Threads:
		return sample.Of(float64(s.Threads))
	case FDs:
		return s.FDs
	}
	return sample.Unavailable
}
