// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Robert-T119/Paper-Finder/internal/daterange"
	"github.com/Robert-T119/Paper-Finder/internal/openalex"
	"github.com/Robert-T119/Paper-Finder/internal/pipeline"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Estimate how many papers a run would fetch",
	Long: `Count asks OpenAlex how many papers each concept has in the date range
without fetching them. With --buckets it also counts every fetch unit, which
costs one request per concept and bucket.`,
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringSlice("concepts", nil, "concept IDs or catalog names (comma separated)")
	countCmd.Flags().String("from", "", "first publication date, YYYY-MM-DD (inclusive)")
	countCmd.Flags().String("to", "", "last publication date, YYYY-MM-DD (inclusive)")
	countCmd.Flags().Bool("buckets", false, "also count each fetch unit")

	countCmd.MarkFlagRequired("from")
	countCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	r, err := daterange.Parse(from, to)
	if err != nil {
		return err
	}
	names, _ := cmd.Flags().GetStringSlice("concepts")
	concepts, err := openalex.Resolve(names)
	if err != nil {
		return err
	}
	buckets, _ := cmd.Flags().GetBool("buckets")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := pipeline.NewFetcher(cfg)
	var total int64
	for _, id := range concepts {
		n, err := f.CountForPeriod(ctx, r, id)
		if err != nil {
			return err
		}
		total += int64(n)
		c, _ := openalex.Lookup(id)
		fmt.Printf("%-12s %-24s %8d\n", c.ID, c.Name, n)
	}

	if buckets {
		fmt.Println()
		for _, u := range pipeline.Units(concepts, r, cfg.Pipeline.BucketDays) {
			n, err := f.CountForPeriod(ctx, u.Range, u.Concept)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s %-24s %8d\n", u.Concept, u.Range, n)
		}
	}

	fmt.Printf("\ntotal: %d papers in %s (%d fetch units)\n",
		total, r, len(concepts)*daterange.Count(r, cfg.Pipeline.BucketDays))
	return nil
}
