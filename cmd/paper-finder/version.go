package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the paper-finder version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("paper-finder %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
