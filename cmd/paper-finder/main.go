// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-finder CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Robert-T119/Paper-Finder/internal/observability"
	"github.com/Robert-T119/Paper-Finder/internal/secrets"
	"github.com/Robert-T119/Paper-Finder/internal/store"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the paper-finder CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-finder",
	Short: "Find and rank recent papers for a research topic",
	Long: `paper-finder fetches papers from OpenAlex for the selected concepts and
date range, filters them by domain keywords, classifies them with a two-stage
model cascade, and ranks the survivors by semantic similarity to a target
phrase.

Configuration is read from paper-finder.yaml and PAPER_FINDER_* environment
variables. API keys may also be placed in .secrets/ (openai-api-key,
openalex-email).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-finder.yaml or ~/.config/paper-finder/paper-finder.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error, disabled")
	rootCmd.PersistentFlags().String("store", "", "SQLite run store path")

	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
}

func initConfig() {
	types.SetDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-finder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-finder"))
		}
	}

	viper.SetEnvPrefix("PAPER_FINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged configuration, fills credentials from
// secret files, and validates the result.
func loadConfig() (types.FinderConfig, error) {
	var cfg types.FinderConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger from configuration.
func newLogger(cfg types.FinderConfig) zerolog.Logger {
	return observability.NewLogger(cfg.Logging)
}

// openStore opens the run store, or returns nil when the store is disabled.
func openStore(cfg types.FinderConfig) (*store.Store, error) {
	if !cfg.Store.Enabled || cfg.Store.Path == "" {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
