package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/pairrank/internal/export"
	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/solver"
)

var scoreSolver solverFlags

var scoreCmd = &cobra.Command{
	Use:   "score <comparisons-file>",
	Short: "Recompute scores from saved comparisons",
	Long: `Recompute scores from a comparison file written by 'pairrank rank
--comparisons-out', without asking any questions. Useful for trying other
solver settings on the same answers.

Examples:
  pairrank score answers.json
  pairrank score answers.yaml --loss squared --threshold 0.0001 -f json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	scoreSolver.register(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	scoreSolver.apply(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := export.LoadComparisons(args[0])
	if err != nil {
		return err
	}
	logger.Info("comparisons loaded", "path", args[0], "items", len(log.Items), "comparisons", len(log.Comparisons))

	collector := metrics.NewCollector()
	res, err := solver.New(solverOptions(), collector, logger).Solve(context.Background(), log.Items, log.Comparisons)
	if err != nil {
		return fmt.Errorf("solve scores: %w", err)
	}

	if err := writeResults(cmd.OutOrStdout(), res.Scores); err != nil {
		return err
	}
	if verbose {
		printStats(cmd.ErrOrStderr(), collector.Snapshot(), len(log.Comparisons))
	}
	return nil
}
