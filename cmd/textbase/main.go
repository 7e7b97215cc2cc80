// Command textbase builds the CNS resolution text base from a local tree of
// PDFs and the newest metadata table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "textbase",
		Short:         "Extract and reconcile CNS resolution texts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(v, cfgFile); err != nil {
				return err
			}
			if err := bindFlags(v, cmd, flagKeys); err != nil {
				return err
			}
			setupLogger(v.GetBool("debug"))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().String("pdf-dir", "", "root of the <year>/<file>.pdf tree")
	root.PersistentFlags().String("out-dir", "", "directory receiving backups and outputs")
	root.PersistentFlags().String("csv-dir", "", "directory searched for metadata tables")
	root.PersistentFlags().String("ocr-engine", "", "ocr engine: tesseract, vertex or none")

	root.AddCommand(newExtractCmd(v), newStatusCmd(v), newProbeCmd(v))
	return root
}

// flagKeys maps flag names to viper keys.
var flagKeys = map[string]string{
	"debug":          "debug",
	"pdf-dir":        "pdf_dir",
	"out-dir":        "out_dir",
	"csv-dir":        "csv_dir",
	"csv":            "csv",
	"ocr-engine":     "ocr.engine",
	"ocr-language":   "ocr.language",
	"max-pages":      "max_pages",
	"min-file-size":  "min_file_size",
	"xlsx":           "xlsx",
	"progress-every": "progress_every",
	"pages":          "status.pages",
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
