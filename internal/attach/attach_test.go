package attach

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7c/pagurus/internal/proc"
)

func fastResolver(watch bool) *Resolver {
	r := NewResolver(nil)
	r.Interval = 20 * time.Millisecond
	r.Attempts = 10
	r.Watch = watch
	return r
}

func TestReadMarker(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int32
		err     error
	}{
		{"plain", "4321\n", 4321, nil},
		{"padded", "  77 \r\nignored\n", 77, nil},
		{"no newline", "9", 9, nil},
		{"empty", "", 0, errNotReady},
		{"blank line", "\n", 0, errNotReady},
		{"text", "abc\n", 0, ErrInvalidMarker},
		{"zero", "0\n", 0, ErrInvalidMarker},
		{"negative", "-5\n", 0, ErrInvalidMarker},
		{"overflow", "99999999999\n", 0, ErrInvalidMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := ReadMarker(path)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ReadMarker(filepath.Join(dir, "missing.pid"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromPID(t *testing.T) {
	pid, err := NewResolver(nil).FromPID(123)
	require.NoError(t, err)
	assert.Equal(t, int32(123), pid)

	pid, err = NewResolver(nil).FromPID(math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), pid)
}

func TestFromPIDOutOfRange(t *testing.T) {
	pids := []int{0, -1}
	if strconv.IntSize == 64 {
		// 1<<32 + 1 would wrap to PID 1 if narrowed blindly.
		wide := int64(1)<<32 + 1
		pids = append(pids, int(int64(math.MaxInt32)+1), int(wide))
	}
	for _, pid := range pids {
		got, err := NewResolver(nil).FromPID(pid)
		assert.ErrorIs(t, err, proc.ErrNoSuchProcess, "pid %d", pid)
		assert.Zero(t, got)
	}
}

func TestFromMarkerUnterminatedSettles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(path, []byte("43"), 0o644))
	go func() {
		time.Sleep(10 * time.Millisecond)
		os.WriteFile(path, []byte("4321"), 0o644)
	}()

	pid, err := fastResolver(false).FromMarker(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int32(4321), pid)
}

func TestFromMarkerUnterminatedStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(path, []byte("987"), 0o644))

	pid, err := fastResolver(true).FromMarker(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int32(987), pid)
}

func TestFromMarkerAppearsLater(t *testing.T) {
	for _, watch := range []bool{true, false} {
		t.Run(map[bool]string{true: "watch", false: "poll"}[watch], func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "watch.pid")
			go func() {
				time.Sleep(60 * time.Millisecond)
				os.WriteFile(path, []byte("4321\n"), 0o644)
			}()

			pid, err := fastResolver(watch).FromMarker(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, int32(4321), pid)

			_, err = os.Stat(path)
			assert.NoError(t, err, "marker must not be deleted")
		})
	}
}

func TestFromMarkerDefaultBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("waits two seconds")
	}
	path := filepath.Join(t.TempDir(), "watch.pid")
	go func() {
		time.Sleep(2 * time.Second)
		os.WriteFile(path, []byte("4321\n"), 0o644)
	}()

	start := time.Now()
	pid, err := NewResolver(nil).FromMarker(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int32(4321), pid)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestFromMarkerWatchWakesEarly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	r := NewResolver(nil)
	r.Interval = time.Hour
	r.Attempts = 2

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, []byte("55\n"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pid, err := r.FromMarker(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int32(55), pid)
}

func TestFromMarkerTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.pid")
	r := fastResolver(true)
	r.Attempts = 3

	start := time.Now()
	_, err := r.FromMarker(context.Background(), path)
	assert.ErrorIs(t, err, ErrAttachTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 2*r.Interval)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "marker must not be created")
}

func TestFromMarkerEmptyFileRetried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, []byte("88\n"), 0o644)
	}()

	pid, err := fastResolver(false).FromMarker(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int32(88), pid)
}

func TestFromMarkerInvalidFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	r := fastResolver(true)
	r.Interval = time.Hour

	start := time.Now()
	_, err := r.FromMarker(context.Background(), path)
	assert.ErrorIs(t, err, ErrInvalidMarker)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFromMarkerCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	r := fastResolver(true)
	r.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := r.FromMarker(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromMarkerMissingDirectory(t *testing.T) {
	// The directory cannot be watched; polling still applies the budget.
	path := filepath.Join(t.TempDir(), "nope", "watch.pid")
	r := fastResolver(true)
	r.Attempts = 2

	_, err := r.FromMarker(context.Background(), path)
	assert.ErrorIs(t, err, ErrAttachTimeout)
}
