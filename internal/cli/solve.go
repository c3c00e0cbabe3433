package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/pairrank/internal/export"
	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/solver"
)

// solverFlags are shared by the rank and score commands.
type solverFlags struct {
	threshold float64
	stepRate  float64
	maxSweeps int
	loss      string
	format    string
	output    string
}

func (f *solverFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0.001, "stop when the loss changes by less than this between sweeps")
	cmd.Flags().Float64Var(&f.stepRate, "step-rate", 0.001, "relaxation step rate")
	cmd.Flags().IntVar(&f.maxSweeps, "max-sweeps", 0, "give up after this many sweeps (0 = no limit)")
	cmd.Flags().StringVar(&f.loss, "loss", "signed", "convergence loss: signed or squared")
	cmd.Flags().StringVarP(&f.format, "format", "f", "table", "output format: table, json, yaml, csv")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write results to this file instead of stdout")
}

// apply copies explicitly set flags over the loaded config.
func (f *solverFlags) apply(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Solver.ConvergenceThreshold = f.threshold
	}
	if flags.Changed("step-rate") {
		cfg.Solver.StepRate = f.stepRate
	}
	if flags.Changed("max-sweeps") {
		cfg.Solver.MaxSweeps = f.maxSweeps
	}
	if flags.Changed("loss") {
		cfg.Solver.Loss = f.loss
	}
	if flags.Changed("format") {
		cfg.Output.Format = f.format
	}
	if flags.Changed("output") {
		cfg.Output.Path = f.output
	}
}

func solverOptions() solver.Options {
	return solver.Options{
		Threshold: cfg.Solver.ConvergenceThreshold,
		StepRate:  cfg.Solver.StepRate,
		MaxSweeps: cfg.Solver.MaxSweeps,
		Loss:      solver.Loss(cfg.Solver.Loss),
	}
}

// writeResults encodes scores in the configured format to the configured
// destination.
func writeResults(stdout io.Writer, scores []models.Score) error {
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	w := stdout
	if cfg.Output.Path != "" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteRecords(w, models.Records(scores), format); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if cfg.Output.Path != "" {
		logger.Info("results written", "path", cfg.Output.Path, "format", format)
	}
	return nil
}
