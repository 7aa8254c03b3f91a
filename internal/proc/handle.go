package proc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/7c/pagurus/internal/sample"
)

// Handle is a resolved process plus the metadata captured when it was resolved.
type Handle struct {
	proc    *process.Process
	pid     int32
	name    string
	cmdline string
	caps    capabilities
	logger  *slog.Logger
	warned  map[string]bool
}

// Resolve wraps a live process. It does not retry: a process that is not
// running now is reported as ErrNoSuchProcess.
func Resolve(ctx context.Context, pid int32, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pid <= 0 {
		return nil, errors.Wrapf(ErrNoSuchProcess, "pid %d", pid)
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil, errors.Wrapf(ErrNoSuchProcess, "pid %d", pid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "attach to pid %d", pid)
	}

	h := &Handle{
		proc:   p,
		pid:    pid,
		caps:   platformCapabilities,
		logger: logger,
		warned: make(map[string]bool),
	}
	// Name and command line are display metadata; an unreadable value
	// (permissions, kernel threads) leaves them empty.
	if name, err := p.NameWithContext(ctx); err == nil {
		h.name = name
	}
	if args, err := p.CmdlineSliceWithContext(ctx); err == nil {
		h.cmdline = strings.Join(args, " ")
	}
	// Prime the CPU percent baseline so the first sample measures from here.
	p.PercentWithContext(ctx, 0)

	logger.Info("attached to process", "pid", pid, "name", h.name)
	return h, nil
}

// PID returns the process identifier.
func (h *Handle) PID() int32 { return h.pid }

// Name returns the process name captured at resolve time.
func (h *Handle) Name() string { return h.name }

// Cmdline returns the command line captured at resolve time.
func (h *Handle) Cmdline() string { return h.cmdline }

// Alive reports whether the process is still running. A recycled PID or a
// zombie counts as gone, as does any error while checking.
func (h *Handle) Alive(ctx context.Context) bool {
	running, err := h.proc.IsRunningWithContext(ctx)
	if err != nil || !running {
		if err != nil {
			h.logger.Debug("liveness check failed", "pid", h.pid, "error", err)
		}
		return false
	}
	status, err := h.proc.StatusWithContext(ctx)
	if err != nil {
		return false
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

// Collect reads every metric of the process and stamps the snapshot with at.
// Any failed read discards the whole snapshot.
func (h *Handle) Collect(ctx context.Context, at time.Time) (sample.Snapshot, error) {
	snap := sample.Snapshot{
		Time:    at,
		PID:     h.pid,
		Name:    h.name,
		Cmdline: h.cmdline,
	}
	fail := func(metric string, err error) (sample.Snapshot, error) {
		return sample.Snapshot{}, &CollectionError{PID: h.pid, Metric: metric, Err: err}
	}

	threads, err := h.proc.NumThreadsWithContext(ctx)
	if err != nil {
		return fail("num_threads", err)
	}
	snap.Threads = threads

	pct, err := h.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return fail("cpu_percent", err)
	}
	snap.CPUPercent = pct

	times, err := h.proc.TimesWithContext(ctx)
	if err != nil {
		return fail("cpu_times", err)
	}
	snap.CPUUser = times.User
	snap.CPUSystem = times.System
	if h.supported(metricIOWait) {
		snap.IOWait = sample.Of(times.Iowait)
	}

	mem, err := h.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return fail("memory_info", err)
	}
	snap.MemRSS = mem.RSS
	snap.MemVMS = mem.VMS

	if h.supported(metricShared) {
		shared, err := readShared(ctx, h.proc)
		if err != nil {
			return fail(metricShared, err)
		}
		snap.MemShared = sample.OfUint(shared)
	}

	memPct, err := h.proc.MemoryPercentWithContext(ctx)
	if err != nil {
		return fail("memory_percent", err)
	}
	snap.MemPercent = memPct

	if h.supported(metricFDs) {
		fds, err := h.proc.NumFDsWithContext(ctx)
		if err != nil {
			return fail(metricFDs, err)
		}
		snap.FDs = sample.Of(float64(fds))
	}

	if h.supported(metricIO) {
		counters, err := h.proc.IOCountersWithContext(ctx)
		if err != nil {
			return fail(metricIO, err)
		}
		snap.ReadCount = sample.OfUint(counters.ReadCount)
		snap.WriteCount = sample.OfUint(counters.WriteCount)
		snap.ReadBytes = sample.OfUint(counters.ReadBytes)
		snap.WriteBytes = sample.OfUint(counters.WriteBytes)
	}

	return snap, nil
}

// supported checks the platform table and logs an unsupported metric once.
func (h *Handle) supported(metric string) bool {
	if h.caps.has(metric) {
		return true
	}
	if !h.warned[metric] {
		h.warned[metric] = true
		h.logger.Debug("metric unavailable", "metric", metric, "reason", ErrUnsupportedMetric)
	}
	return false
}
