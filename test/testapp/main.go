package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	// --- Lifecycle behavior ---
	exitAfter := flag.Duration("exit-after", 0, "Exit cleanly after duration (0=never)")
	crashAfter := flag.Duration("crash-after", 0, "Exit with code --exit-code after duration (0=never)")
	exitCode := flag.Int("exit-code", 1, "Exit code when crashing")

	// --- Output behavior ---
	stdoutEvery := flag.Duration("stdout-every", 0, "Print to stdout at this interval")
	stderrEvery := flag.Duration("stderr-every", 0, "Print to stderr at this interval")
	stdoutMsg := flag.String("stdout-msg", "stdout heartbeat", "Message to print to stdout")
	stderrMsg := flag.String("stderr-msg", "stderr heartbeat", "Message to print to stderr")

	// --- Resource behavior ---
	allocMB := flag.Int("alloc-mb", 0, "Allocate this many MB of memory and hold it")
	cpuBurn := flag.Int("cpu-burn", 0, "Number of goroutines burning CPU")
	ioEvery := flag.Duration("io-every", 0, "Write and read back a scratch file at this interval")
	openFiles := flag.Int("open-files", 0, "Hold this many extra file descriptors open")

	// --- Startup behavior ---
	startDelay := flag.Duration("start-delay", 0, "Sleep this long before doing anything")
	writeMarker := flag.String("write-marker", "", "Write own PID to this file after --start-delay")
	printPID := flag.Bool("print-pid", false, "Print PID to stdout on startup")

	flag.Parse()

	// --- Startup ---
	if *startDelay > 0 {
		time.Sleep(*startDelay)
	}
	if *writeMarker != "" {
		// Write then rename so a reader never sees a partial PID.
		tmp := *writeMarker + ".tmp"
		if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write marker:", err)
			os.Exit(2)
		}
		if err := os.Rename(tmp, *writeMarker); err != nil {
			fmt.Fprintln(os.Stderr, "rename marker:", err)
			os.Exit(2)
		}
	}
	if *printPID {
		fmt.Fprintf(os.Stdout, "PID=%d\n", os.Getpid())
	}

	// --- Memory allocation ---
	var memhold []byte
	if *allocMB > 0 {
		memhold = make([]byte, *allocMB*1024*1024)
		for i := range memhold {
			memhold[i] = byte(i)
		}
	}

	// --- File descriptors ---
	var held []*os.File
	for i := 0; i < *openFiles; i++ {
		f, err := os.Open(os.Args[0])
		if err != nil {
			break
		}
		held = append(held, f)
	}

	// --- CPU burn ---
	for i := 0; i < *cpuBurn; i++ {
		go func() {
			for {
				_ = rand.Float64()
			}
		}()
	}

	// --- I/O churn ---
	scratch := ""
	if *ioEvery > 0 {
		if dir, err := os.MkdirTemp("", "testapp-io"); err == nil {
			scratch = dir
			go churn(filepath.Join(dir, "scratch"), *ioEvery)
		}
	}

	// --- Output loops ---
	if *stdoutEvery > 0 {
		go func() {
			tick := time.NewTicker(*stdoutEvery)
			for range tick.C {
				fmt.Fprintln(os.Stdout, *stdoutMsg)
			}
		}()
	}
	if *stderrEvery > 0 {
		go func() {
			tick := time.NewTicker(*stderrEvery)
			for range tick.C {
				fmt.Fprintln(os.Stderr, *stderrMsg)
			}
		}()
	}

	// --- Exit/crash timers ---
	done := make(chan int, 1)
	if *crashAfter > 0 {
		go func() {
			time.Sleep(*crashAfter)
			fmt.Fprintf(os.Stderr, "crashing with exit code %d\n", *exitCode)
			done <- *exitCode
		}()
	}
	if *exitAfter > 0 {
		go func() {
			time.Sleep(*exitAfter)
			fmt.Fprintln(os.Stdout, "clean exit")
			done <- 0
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case code = <-done:
	case <-sigCh:
	}
	for _, f := range held {
		f.Close()
	}
	if scratch != "" {
		os.RemoveAll(scratch)
	}
	_ = memhold
	os.Exit(code)
}

// churn writes 64KiB to path and reads it back every interval.
func churn(path string, every time.Duration) {
	buf := make([]byte, 64*1024)
	tick := time.NewTicker(every)
	defer tick.Stop()
	for range tick.C {
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return
		}
		if _, err := os.ReadFile(path); err != nil {
			return
		}
	}
}
