package proc

import (
	"context"
	"math"
	"os"
	"runtime"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSelf(t *testing.T) {
	h, err := Resolve(context.Background(), int32(os.Getpid()), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(os.Getpid()), h.PID())
	assert.NotEmpty(t, h.Name())
	assert.True(t, h.Alive(context.Background()))
}

func TestResolveNoSuchProcess(t *testing.T) {
	for _, pid := range []int32{0, -1, math.MaxInt32} {
		_, err := Resolve(context.Background(), pid, nil)
		require.Error(t, err, "pid %d", pid)
		assert.True(t, errors.Is(err, ErrNoSuchProcess), "pid %d: %v", pid, err)
	}
}

func TestCollectSelf(t *testing.T) {
	ctx := context.Background()
	h, err := Resolve(ctx, int32(os.Getpid()), nil)
	require.NoError(t, err)

	at := time.Now()
	snap, err := h.Collect(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, at, snap.Time)
	assert.Equal(t, h.PID(), snap.PID)
	assert.Equal(t, h.Name(), snap.Name)
	assert.Positive(t, snap.Threads)
	assert.Positive(t, snap.MemRSS)
	assert.GreaterOrEqual(t, snap.MemVMS, snap.MemRSS)
	assert.GreaterOrEqual(t, snap.CPUPercent, 0.0)
}

func TestCollectOptionalMetrics(t *testing.T) {
	ctx := context.Background()
	h, err := Resolve(ctx, int32(os.Getpid()), nil)
	require.NoError(t, err)
	snap, err := h.Collect(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, Supported(metricShared), snap.MemShared.Available())
	assert.Equal(t, Supported(metricIOWait), snap.IOWait.Available())
	assert.Equal(t, Supported(metricFDs), snap.FDs.Available())
	assert.Equal(t, Supported(metricIO), snap.ReadBytes.Available())
	assert.Equal(t, Supported(metricIO), snap.WriteCount.Available())

	if runtime.GOOS == "linux" {
		fds, ok := snap.FDs.Get()
		require.True(t, ok)
		assert.Positive(t, fds)
	}
}

func TestCapabilityTable(t *testing.T) {
	assert.Equal(t, []string{"mem_shared", "cpu_iowait", "num_fds", "io_counters"}, OptionalMetrics())
	assert.False(t, Supported("gpu_time"))
	if runtime.GOOS == "linux" {
		for _, m := range OptionalMetrics() {
			assert.True(t, Supported(m), m)
		}
	}
}

func TestUnsupportedMetricIsSkipped(t *testing.T) {
	ctx := context.Background()
	h, err := Resolve(ctx, int32(os.Getpid()), nil)
	require.NoError(t, err)
	h.caps = capabilities{}

	snap, err := h.Collect(ctx, time.Now())
	require.NoError(t, err)
	assert.False(t, snap.MemShared.Available())
	assert.False(t, snap.FDs.Available())
	assert.False(t, snap.ReadBytes.Available())
	assert.True(t, h.warned[metricFDs])
}

func TestCollectionErrorUnwrap(t *testing.T) {
	err := error(&CollectionError{PID: 7, Metric: "memory_info", Err: os.ErrPermission})
	assert.EqualError(t, err, "collect memory_info for pid 7: permission denied")
	assert.True(t, errors.Is(err, os.ErrPermission))

	var ce *CollectionError
	require.True(t, errors.As(errors.Wrap(err, "sample"), &ce))
	assert.Equal(t, int32(7), ce.PID)
}
