// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Robert-T119/Paper-Finder/internal/export"
	"github.com/Robert-T119/Paper-Finder/internal/openalex"
	"github.com/Robert-T119/Paper-Finder/internal/pipeline"
	"github.com/Robert-T119/Paper-Finder/internal/progress"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, classify, and rank papers for a date range",
	Long: `Run fetches every paper tagged with the selected concepts and published
in [--from, --to], drops papers outside the domain keywords, classifies the
rest with the two-stage model cascade, and ranks stage-2 positives by cosine
similarity to --target.

Concepts may be OpenAlex concept IDs (C192562407) or catalog names
("Materials science"); see "paper-finder concepts". Results are written to
--output as CSV, JSON, or YAML and summarized on stdout.`,
	Example: `  paper-finder run --concepts "Materials science,Chemistry" \
    --from 2023-07-01 --to 2023-07-07 --target "solid oxide fuel cell cathode"`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSlice("concepts", nil, "concept IDs or catalog names (comma separated)")
	runCmd.Flags().String("from", "", "first publication date, YYYY-MM-DD (inclusive)")
	runCmd.Flags().String("to", "", "last publication date, YYYY-MM-DD (inclusive)")
	runCmd.Flags().String("target", "", "phrase to rank papers against")
	runCmd.Flags().StringP("output", "o", "", "result file (default output.csv)")
	runCmd.Flags().String("format", "", "result format: csv, json, or yaml (default: from extension)")
	runCmd.Flags().String("policy", "", "failed fetch unit policy: abort, skip, or retry")
	runCmd.Flags().Int("workers", 0, "concurrent fetch units")
	runCmd.Flags().Int("bucket-days", 0, "days per fetch unit")
	runCmd.Flags().String("progress", "bar", "progress display: bar, log, both, or none")
	runCmd.Flags().Bool("no-store", false, "do not record the run in the SQLite store")
	runCmd.Flags().String("metrics-textfile", "", "write run metrics in Prometheus text format to this path")

	runCmd.MarkFlagRequired("from")
	runCmd.MarkFlagRequired("to")
	runCmd.MarkFlagRequired("target")

	viper.BindPFlag("output.path", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("output.format", runCmd.Flags().Lookup("format"))
	viper.BindPFlag("pipeline.fetch_policy", runCmd.Flags().Lookup("policy"))
	viper.BindPFlag("pipeline.fetch_workers", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("pipeline.bucket_days", runCmd.Flags().Lookup("bucket-days"))
	viper.BindPFlag("metrics.textfile", runCmd.Flags().Lookup("metrics-textfile"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noStore, _ := cmd.Flags().GetBool("no-store"); noStore {
		cfg.Store.Enabled = false
	}
	if _, err := export.FormatFor(cfg.Output.Path, cfg.Output.Format); err != nil {
		return err
	}

	names, _ := cmd.Flags().GetStringSlice("concepts")
	concepts, err := openalex.Resolve(names)
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	target, _ := cmd.Flags().GetString("target")
	mode, _ := cmd.Flags().GetString("progress")

	logger := newLogger(cfg)
	sink, err := progressSink(mode, logger)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	driver := pipeline.NewDriver(cfg, st, logger)
	driver.Sink = sink

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := driver.Run(ctx, pipeline.Request{
		Concepts: concepts,
		From:     from,
		To:       to,
		Target:   target,
	})
	if err != nil {
		if res != nil {
			res.Report.Write(os.Stderr)
		}
		return err
	}

	rows := res.Rows()
	if err := export.WriteFile(cfg.Output, rows); err != nil {
		return err
	}

	export.FormatTable(rows, os.Stdout)
	fmt.Println()
	res.Report.Write(os.Stdout)
	fmt.Printf("wrote %d result(s) to %s\n", len(rows), cfg.Output.Path)
	return nil
}

// progressSink selects how fetch progress is shown.
func progressSink(mode string, logger zerolog.Logger) (progress.Sink, error) {
	switch mode {
	case "bar", "":
		return progress.BarSink{W: os.Stderr}, nil
	case "log":
		return progress.LogSink{Logger: logger}, nil
	case "both":
		return progress.Multi{progress.BarSink{W: os.Stderr}, progress.LogSink{Logger: logger}}, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown progress mode %q: use bar, log, both, or none", mode)
}

