package series

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7c/pagurus/internal/sample"
)

func snap(i int) sample.Snapshot {
	return sample.Snapshot{
		Time:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local).Add(time.Duration(i) * 100 * time.Millisecond),
		PID:        4321,
		Name:       "worker",
		Cmdline:    `worker --name "a,b"`,
		Threads:    int32(3 + i),
		CPUPercent: 12.5,
		CPUUser:    float64(i) * 0.25,
		CPUSystem:  0.125,
		IOWait:     sample.Of(0.5),
		MemRSS:     1 << 20,
		MemVMS:     1 << 24,
		MemShared:  sample.Unavailable,
		MemPercent: 0.75,
		FDs:        sample.Of(9),
		ReadCount:  sample.Of(float64(i * 10)),
		WriteCount: sample.Of(1),
		ReadBytes:  sample.Of(4096),
		WriteBytes: sample.Unavailable,
	}
}

func writeN(t *testing.T, path string, n int) {
	t.Helper()
	w, err := Create(path)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Append(snap(i)))
	}
	assert.Equal(t, n, w.Rows())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	writeN(t, path, 5)

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path)
	assert.Equal(t, Columns, s.Columns)
	assert.False(t, s.Truncated)
	require.Len(t, s.Rows, 5)

	for i, got := range s.Rows {
		assert.Equal(t, snap(i), got, "row %d", i)
	}
}

func TestHeaderAndNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	writeN(t, path, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "03-01-2024 10:00:00.000000,3,12.5,"), lines[1])
	assert.Contains(t, lines[1], ","+sample.NaN+",")
	assert.Contains(t, lines[1], `"worker --name ""a,b"""`)
}

func TestAppendAfterClose(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "stats.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Error(t, w.Append(snap(0)))
}

func TestTruncatedLastRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	writeN(t, path, 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Chop the final row mid-way, as a reader racing the writer would see it.
	cut := strings.LastIndex(strings.TrimRight(string(data), "\n"), "\n") + 12
	require.NoError(t, os.WriteFile(path, data[:cut], 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	assert.True(t, s.Truncated)
	assert.Len(t, s.Rows, 2)
}

func TestMissingFinalNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	writeN(t, path, 3)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	assert.True(t, s.Truncated)
	assert.Len(t, s.Rows, 2)
}

func TestCorruptMiddleRowFails(t *testing.T) {
	in := strings.Join(Columns, ",") + "\n" +
		"03-01-2024 10:00:00.000000,1,0,0,0,1,1,nan,0,nan,nan,nan,nan,nan,1,nan,,\n" +
		"garbage,1,0,0,0,1,1,nan,0,nan,nan,nan,nan,nan,1,nan,,\n" +
		"03-01-2024 10:00:01.000000,1,0,0,0,1,1,nan,0,nan,nan,nan,nan,nan,1,nan,,\n"
	_, err := Read(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datetime")
}

func TestLegacyHeader(t *testing.T) {
	in := "\ufeffdatetime,num_threads,cpu_percent,cpu_t_user,cpu_t_system,mem_rss,mem_vms,mem_shared,mem_percentage,num_fds,read_count,write_count,read_chars,write_chars\n" +
		"03-01-2024 10:00:00.500000,4.0,1.5,0.1,0.2,100,200,50,0.1,7,1,2,300,400\n"

	s, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, s.Rows, 1)

	r := s.Rows[0]
	assert.Equal(t, int32(4), r.Threads)
	assert.Equal(t, int32(0), r.PID)
	assert.Equal(t, 300.0, r.ReadBytes.Or(-1))
	assert.Equal(t, 400.0, r.WriteBytes.Or(-1))
	assert.False(t, r.IOWait.Available())
	assert.Equal(t, 500*time.Millisecond, time.Duration(r.Time.Nanosecond()))
}

func TestMissingRequiredColumn(t *testing.T) {
	_, err := Read(strings.NewReader("datetime,cpu_percent\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_threads")

	_, err = Read(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPIDsAndForPID(t *testing.T) {
	a, b, c := snap(2), snap(0), snap(1)
	b.PID = 7
	s := &Series{Rows: []sample.Snapshot{a, b, c}}

	assert.Equal(t, []int32{7, 4321}, s.PIDs())
	rows := s.ForPID(4321)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Time.Before(rows[1].Time))
	assert.Empty(t, s.ForPID(1))
}

func TestCompress(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stats.csv")
	writeN(t, src, 20)

	info, err := os.Stat(src)
	require.NoError(t, err)

	dst := src + ".gz"
	n, err := Compress(src, dst)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), n)

	packed, err := Open(dst)
	require.NoError(t, err)
	plain, err := Open(src)
	require.NoError(t, err)
	assert.Equal(t, plain.Rows, packed.Rows)

	_, err = Compress(src, dst)
	assert.Error(t, err, "existing archive must not be overwritten")
	_, err = os.Stat(dst)
	assert.NoError(t, err, "failed compress must not remove the existing archive")
}
