package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/pairrank/internal/metrics"
)

// printStats displays run statistics.
func printStats(w io.Writer, snap metrics.Snapshot, comparisons int) {
	fmt.Fprintf(w, "\nRun Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Elapsed: %.1f seconds\n", snap.UptimeSeconds)
	fmt.Fprintf(w, "Comparisons: %d, re-asked: %d\n", comparisons, snap.Retries)

	if snap.Compare != nil {
		fmt.Fprintf(w, "\nQuestions:\n")
		printOpStats(w, snap.Compare)
	}

	if snap.LLMGenerate != nil {
		fmt.Fprintf(w, "\nModel Calls:\n")
		printOpStats(w, snap.LLMGenerate)
		printTokenStats(w, snap.LLMGenerate)
	}

	if snap.Insert != nil {
		fmt.Fprintf(w, "\nInsertions:\n")
		printOpStats(w, snap.Insert)
	}

	if snap.Solve != nil {
		fmt.Fprintf(w, "\nSolver:\n")
		printOpStats(w, snap.Solve)
		fmt.Fprintf(w, "  Sweeps: %d\n", snap.Sweeps)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens In:  %d total, avg %.0f, min %d, max %d\n",
		*op.TotalInputTokens, *op.AvgInputTokens, *op.MinInputTokens, *op.MaxInputTokens)
	fmt.Fprintf(w, "  Tokens Out: %d total, avg %.0f, min %d, max %d\n",
		*op.TotalOutputTokens, *op.AvgOutputTokens, *op.MinOutputTokens, *op.MaxOutputTokens)
}
