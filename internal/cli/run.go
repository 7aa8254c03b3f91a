package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/7c/pagurus/internal/logwriter"
	"github.com/7c/pagurus/internal/monitor"
	"github.com/7c/pagurus/internal/proc"
)

// childStopGrace is how long a child gets to exit after SIGINT once sampling
// was stopped, before it is killed.
const childStopGrace = 5 * time.Second

var (
	runOpts          recordOptions
	runChildLog      string
	runChildLogSize  string
	runChildLogFiles int
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Start a command and sample it until it exits",
	Long: `Start a command and sample it until it exits.

The child inherits stdin. Its stdout and stderr go to the terminal, or
with --child-log to a size-rotated file where every line is prefixed with
the same timestamp format used by the series file.

Interrupting pagurus stops sampling and forwards the interrupt to the child.`,
	Example: `  # Sample a build
  pagurus run -- make -j8

  # Sample every 250ms and keep the child's output
  pagurus run -r 250ms --child-log build.log -- ./build.sh --release`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runChildLog, "child-log", "", "capture the child's stdout and stderr in this file")
	f.StringVar(&runChildLogSize, "child-log-size", logwriter.DefaultMaxSize.String(), "rotate the child log at this size")
	f.IntVar(&runChildLogFiles, "child-log-files", logwriter.DefaultMaxFiles, "rotated child logs to keep")
	runOpts.register(f)
}

// childOutput routes the child's output streams.
type childOutput struct {
	stdout, stderr io.Writer
	flush          func() error
	path           string
}

func openChildOutput() (*childOutput, error) {
	if runChildLog == "" {
		return &childOutput{stdout: os.Stdout, stderr: os.Stderr, flush: func() error { return nil }}, nil
	}
	size, err := datasize.ParseString(runChildLogSize)
	if err != nil {
		return nil, usageError{errors.Wrapf(err, "--child-log-size %q", runChildLogSize)}
	}
	rot, err := logwriter.New(runChildLog, size, runChildLogFiles)
	if err != nil {
		return nil, err
	}
	out := logwriter.NewTimestampWriter(rot, "[stdout]")
	errw := logwriter.NewTimestampWriter(rot, "[stderr]")
	return &childOutput{
		stdout: out,
		stderr: errw,
		path:   runChildLog,
		flush: func() error {
			return errors.Combine(out.Flush(), errw.Flush(), rot.Close())
		},
	}, nil
}

// startChild starts the command and resolves it before anything reaps it,
// so a child that exits at once is still a process (a zombie) the sampler
// can attach to and see exit. The returned channel yields the Wait result.
func startChild(ctx context.Context, args []string, output *childOutput) (*exec.Cmd, *proc.Handle, <-chan error, error) {
	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = output.stdout
	child.Stderr = output.stderr
	if err := child.Start(); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "start %s", args[0])
	}
	slog.Info("started child", "pid", child.Process.Pid, "command", args[0])

	h, err := proc.Resolve(ctx, int32(child.Process.Pid), slog.Default())
	if err != nil {
		child.Process.Kill()
		child.Wait()
		return nil, nil, nil, err
	}

	// Reaping in the background lets the sampler see the exit instead of a
	// zombie.
	done := make(chan error, 1)
	go func() { done <- child.Wait() }()
	return child, h, done, nil
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	if err := runOpts.validate(); err != nil {
		return err
	}

	output, err := openChildOutput()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Combine(err, output.flush())
	}()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	child, h, done, err := startChild(ctx, args, output)
	if err != nil {
		return err
	}

	rec, recErr := runOpts.sample(ctx, h)

	// Anything but a normal exit leaves the child running.
	stillRunning := recErr != nil || rec.State != monitor.StateExited
	waitErr := waitChild(child, done, stillRunning)
	if recErr != nil {
		return recErr
	}

	rec.Command = strings.Join(args, " ")
	rec.ChildLog = output.path
	code := child.ProcessState.ExitCode()
	rec.ExitCode = &code
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			slog.Warn("waiting for child", "error", waitErr)
		}
	}
	return runOpts.report(cmd, rec)
}

// waitChild collects the child's exit status. When sampling ended before the
// child did, the child is interrupted and, after a grace period, killed.
func waitChild(child *exec.Cmd, done <-chan error, interrupt bool) error {
	if !interrupt {
		return <-done
	}
	select {
	case err := <-done:
		return err
	default:
	}
	child.Process.Signal(os.Interrupt)
	select {
	case err := <-done:
		return err
	case <-time.After(childStopGrace):
		child.Process.Kill()
		return <-done
	}
}
