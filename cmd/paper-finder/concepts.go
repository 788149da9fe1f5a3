// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Robert-T119/Paper-Finder/internal/openalex"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "List the concept names accepted by --concepts",
	Long: `Concepts prints the built-in catalog of top-level OpenAlex concepts.
Any other concept can be selected by its OpenAlex ID.`,
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range openalex.Catalog {
			fmt.Printf("%-12s %s\n", c.ID, c.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(conceptsCmd)
}
