package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/7c/pagurus/internal/display"
	"github.com/7c/pagurus/internal/logwriter"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	// jsonOutput is the global flag for JSON output mode.
	jsonOutput bool
	debug      bool
	logFile    string

	// stdoutCap is resolved once, before any command runs.
	stdoutCap display.Capability
	logCloser io.Closer
	// started is set once argument parsing succeeded and a command began.
	started bool
)

var rootCmd = &cobra.Command{
	Use:   "pagurus",
	Short: display.CBold + "pagurus" + display.CReset + " - process sampling monitor",
	Long: `pagurus attaches to a running process, samples its CPU, memory, file
descriptor and I/O usage at a fixed rate until it exits, and stores the
samples as a CSV series. Series can later be aggregated into windowed deltas
and rolling peaks, exported, or plotted in the terminal.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// coloredHelpTemplate is the Cobra help template with ANSI colors.
var coloredHelpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}` +
	`{{if or .Runnable .HasSubCommands}}` + display.CYellow + `Usage:` + display.CReset + `{{end}}
{{if .Runnable}}  {{.UseLine}}{{end}}` +
	`{{if .HasAvailableSubCommands}}  {{.CommandPath}} [command]{{end}}

` +
	`{{if gt (len .Aliases) 0}}` + display.CYellow + `Aliases:` + display.CReset + `
  {{.NameAndAliases}}

{{end}}` +
	`{{if .HasExample}}` + display.CYellow + `Examples:` + display.CReset + `
{{.Example}}

{{end}}` +
	`{{if .HasAvailableSubCommands}}` + display.CYellow + `Available Commands:` + display.CReset + `{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  ` + display.CCyan + `{{rpad .Name .NamePadding}}` + display.CReset + `  {{.Short}}{{end}}{{end}}

{{end}}` +
	`{{if .HasAvailableLocalFlags}}` + display.CYellow + `Flags:` + display.CReset + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}` +
	`{{if .HasAvailableInheritedFlags}}` + display.CYellow + `Global Flags:` + display.CReset + `
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}` +
	`{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	pf.BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "write logs to a size-rotated file instead of stderr")

	rootCmd.SetHelpTemplate(coloredHelpTemplate)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(compressCmd)
}

// setup configures logging and probes the terminal before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	started = true
	stdoutCap = display.DetectCapability(os.Stdout)

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	if logFile != "" {
		w, err := logwriter.New(logFile, 0, 0)
		if err != nil {
			return err
		}
		out = w
		logCloser = w
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	slog.Debug("pagurus starting", "version", Version, "command", cmd.Name(), "terminal", stdoutCap.Terminal)

	// Archive compression is parallel; respect a container CPU quota.
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		slog.Debug("GOMAXPROCS unchanged", "error", err)
	}
	return nil
}

// Execute runs the command line and exits with the mapped status.
func Execute() {
	rootCmd.Version = Version
	err := rootCmd.ExecuteContext(context.Background())
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		if !started {
			err = usageError{err}
		}
		printError(err)
	}
	os.Exit(exitCode(err))
}

// printError writes err to stderr, or as a JSON object to stdout when
// --json is set.
func printError(err error) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]any{"error": err.Error(), "code": exitCode(err)})
		fmt.Fprintln(os.Stdout, string(data))
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", display.Red("Error:"), err)
	if isUsage(err) {
		fmt.Fprintln(os.Stderr, display.Dim("Run 'pagurus --help' for usage."))
	}
}
