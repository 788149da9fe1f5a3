// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Robert-T119/Paper-Finder/internal/export"
	"github.com/Robert-T119/Paper-Finder/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs or show the results of one run",
	Long: `History reads the SQLite run store. Without arguments it lists recent
runs, newest first. With a run ID it prints that run's summary and ranked
results; --format writes the results as csv, json, or yaml instead of a table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")
	historyCmd.Flags().String("format", "", "print results as csv, json, or yaml")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Store.Enabled {
		return fmt.Errorf("run store is disabled (store.enabled=false)")
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if len(args) == 0 {
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-9s %s..%s  results: %d  %q\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status,
				r.From, r.To, r.Results, r.Target)
		}
		return nil
	}

	run, err := st.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	rows, err := st.Results(ctx, run.ID)
	if err != nil {
		return err
	}

	if format, _ := cmd.Flags().GetString("format"); format != "" {
		format, err := export.FormatFor("", format)
		if err != nil {
			return err
		}
		return export.Write(os.Stdout, format, rows)
	}

	printRun(run)
	fmt.Println()
	export.FormatTable(rows, os.Stdout)
	return nil
}

func printRun(r store.Run) {
	fmt.Printf("run:      %s\n", r.ID)
	fmt.Printf("status:   %s\n", r.Status)
	fmt.Printf("started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
	if !r.FinishedAt.IsZero() {
		fmt.Printf("finished: %s\n", r.FinishedAt.Local().Format(time.DateTime))
	}
	fmt.Printf("range:    %s..%s\n", r.From, r.To)
	fmt.Printf("concepts: %s\n", strings.Join(r.Concepts, ", "))
	fmt.Printf("target:   %q\n", r.Target)
	fmt.Printf("fetched:  %d of %d estimated, %d ranked\n", r.Fetched, r.Estimate, r.Results)
	for _, s := range r.Skipped {
		fmt.Printf("skipped:  %s\n", s)
	}
	if r.Error != "" {
		fmt.Printf("error:    %s\n", r.Error)
	}
}
