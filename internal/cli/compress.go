package cli

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/7c/pagurus/internal/display"
	"github.com/7c/pagurus/internal/series"
)

var compressOut string

var compressCmd = &cobra.Command{
	Use:   "compress <series>",
	Short: "Gzip a finished series for archiving",
	Long: `Write a gzip copy of a series next to it (<series>.gz by default).
The source file is left in place. aggregate and plot read .gz files directly.`,
	Example: `  pagurus compress stats.csv
  pagurus compress stats.csv -o /archive/run-42.csv.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().StringVarP(&compressOut, "out", "o", "", "archive path (default <series>.gz)")
}

func runCompress(cmd *cobra.Command, args []string) error {
	src := args[0]
	dst := compressOut
	if dst == "" {
		dst = src + ".gz"
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if _, err := series.Compress(src, dst); err != nil {
		return err
	}
	archived, err := os.Stat(dst)
	if err != nil {
		return err
	}
	written := archived.Size()

	w := cmd.OutOrStdout()
	if jsonOutput {
		data, _ := json.Marshal(map[string]any{
			"source":  src,
			"archive": dst,
			"size":    info.Size(),
			"written": written,
		})
		fmt.Fprintln(w, string(data))
		return nil
	}
	ratio := 0.0
	if info.Size() > 0 {
		ratio = float64(written) / float64(info.Size()) * 100
	}
	fmt.Fprintf(w, "%s %s → %s (%s → %s, %.1f%%)\n",
		display.Green("✓"), src, dst,
		datasize.ByteSize(info.Size()).HumanReadable(),
		datasize.ByteSize(written).HumanReadable(),
		ratio)
	return nil
}
