package test

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/7c/pagurus/internal/series"
)

// TestEnv gives each test its own working directory, so default series
// names and marker files never collide and tests can run in parallel.
type TestEnv struct {
	T          *testing.T
	Dir        string
	PagurusBin string
	TestappBin string
}

// NewTestEnv creates an isolated test environment. Tests are skipped when
// the binaries have not been built.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("integration tests need a unix process model")
	}

	pagurusBin := filepath.Join(BinDir(), "pagurus")
	testappBin := filepath.Join(BinDir(), "testapp")
	requireFile(t, pagurusBin, "run: go build -o test/bin/pagurus ./cmd/pagurus/")
	requireFile(t, testappBin, "run: go build -o test/bin/testapp ./test/testapp/")

	return &TestEnv{
		T:          t,
		Dir:        t.TempDir(),
		PagurusBin: pagurusBin,
		TestappBin: testappBin,
	}
}

// BinDir returns the path to the test binary directory.
func BinDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "bin")
}

// Path resolves name inside the test directory.
func (e *TestEnv) Path(name string) string {
	return filepath.Join(e.Dir, name)
}

// Pagurus runs a pagurus command in the test directory and returns stdout,
// stderr and exit code. stdout is a pipe, never a terminal.
func (e *TestEnv) Pagurus(args ...string) (stdout, stderr string, exitCode int) {
	cmd := exec.Command(e.PagurusBin, args...)
	cmd.Dir = e.Dir
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	exitCode = 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		exitCode = -1
	}
	return outBuf.String(), errBuf.String(), exitCode
}

// MustPagurus runs pagurus and fails the test if exit code != 0.
func (e *TestEnv) MustPagurus(args ...string) string {
	e.T.Helper()
	stdout, stderr, code := e.Pagurus(args...)
	if code != 0 {
		e.T.Fatalf("pagurus %v failed (exit %d):\nstdout: %s\nstderr: %s",
			args, code, stdout, stderr)
	}
	return stdout
}

// StartTestapp starts the workload helper. It is killed when the test ends
// if it is still running.
func (e *TestEnv) StartTestapp(args ...string) *exec.Cmd {
	e.T.Helper()
	cmd := exec.Command(e.TestappBin, args...)
	cmd.Dir = e.Dir
	if err := cmd.Start(); err != nil {
		e.T.Fatalf("start testapp: %v", err)
	}
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	e.T.Cleanup(func() {
		select {
		case <-done:
		default:
			cmd.Process.Kill()
			<-done
		}
	})
	return cmd
}

// Summary is the --json output of record and run.
type Summary struct {
	Path     string  `json:"path"`
	PID      int32   `json:"pid"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Samples  int     `json:"samples"`
	Duration float64 `json:"duration_seconds"`
	Cause    string  `json:"cause"`
	Command  string  `json:"command"`
	ExitCode *int    `json:"exit_code"`
	ChildLog string  `json:"child_log"`
}

// ParseSummary decodes the last line of a --json run.
func (e *TestEnv) ParseSummary(stdout string) Summary {
	e.T.Helper()
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	var s Summary
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &s); err != nil {
		e.T.Fatalf("parse summary %q: %v", stdout, err)
	}
	return s
}

// ReadSeries loads a series file relative to the test directory.
func (e *TestEnv) ReadSeries(name string) *series.Series {
	e.T.Helper()
	if !filepath.IsAbs(name) {
		name = e.Path(name)
	}
	s, err := series.Open(name)
	if err != nil {
		e.T.Fatalf("read series %s: %v", name, err)
	}
	return s
}

// SeriesFiles lists default-named series files in the test directory.
func (e *TestEnv) SeriesFiles() []string {
	matches, _ := filepath.Glob(filepath.Join(e.Dir, "*stats_*.csv"))
	return matches
}

// WaitForFile polls until path exists.
func (e *TestEnv) WaitForFile(path string, timeout time.Duration) {
	e.T.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.T.Fatalf("timeout: %s did not appear within %s", path, timeout)
}

func requireFile(t *testing.T, path, hint string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("required file not found: %s\nHint: %s", path, hint)
	}
}
