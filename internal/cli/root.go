// Package cli provides the command-line interface for pairrank.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/pairrank/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Global config and logger
	cfg         *config.Config
	logger      *slog.Logger
	closeLogger = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pairrank",
	Short: "Rank and score items from pairwise preferences",
	Long: `Pairrank builds a ranking by asking which of two items you prefer and by
how much. Each item is placed with a binary search over the items already
ranked, so only a handful of questions are needed per item. Every answer is
kept, and the full set of answers is then relaxed into a score from 0 to 100
per item.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		if configPath != "" {
			if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
				return fmt.Errorf("set config path: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Keep the terminal free for prompts unless asked to be chatty.
		stderrLevel := slog.LevelWarn
		if verbose {
			stderrLevel = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.Logging, stderrLevel)
		slog.SetDefault(logger)

		logger.Debug("configuration loaded", "catalog", cfg.Catalog.Path, "oracle", cfg.Session.Oracle)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "pairrank", Version)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default ./pairrank.yaml)")

	// Add subcommands
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(versionCmd)
}
