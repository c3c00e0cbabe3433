// Package solver turns a comparison log into per-item scores by relaxing a
// network of springs: every comparison pulls the score gap between its two
// items towards the answered difference.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/models"
)

var (
	// ErrUnknownItem is returned when a comparison names an item that is not
	// in the item set.
	ErrUnknownItem = errors.New("comparison references unknown item")

	// ErrSelfComparison is returned when a comparison has the same item on
	// both sides.
	ErrSelfComparison = errors.New("comparison of an item with itself")

	// ErrNotConverged is returned when Options.MaxSweeps is exceeded.
	ErrNotConverged = errors.New("relaxation did not converge")
)

// Loss selects the quantity watched by the stopping rule.
type Loss string

const (
	// LossSigned sums the signed residuals. Residuals of opposite sign
	// cancel, so the loop can stop while individual springs are still
	// stretched. This is the reference stopping rule.
	LossSigned Loss = "signed"

	// LossSquared sums squared residuals, the energy being minimized.
	LossSquared Loss = "squared"
)

// DegenerateScore is assigned to every item when all relaxed scores are equal
// and the [0, 100] rescale has no range to work with.
const DegenerateScore = 50.0

// Options tune the relaxation.
type Options struct {
	// Threshold stops the loop once the loss changes by less than this
	// between two sweeps.
	Threshold float64

	// StepRate scales each spring's correction. Too large a rate makes the
	// relaxation oscillate.
	StepRate float64

	// MaxSweeps caps the number of sweeps. Zero means no cap.
	MaxSweeps int

	// Loss defaults to LossSigned.
	Loss Loss
}

// DefaultOptions returns the reference settings.
func DefaultOptions() Options {
	return Options{Threshold: 0.001, StepRate: 0.001, Loss: LossSigned}
}

// Result holds the normalized scores and some facts about the run.
type Result struct {
	// Scores is sorted by descending score. Equal scores keep the order of
	// the input items.
	Scores []models.Score

	// Raw holds the relaxed scores before normalization.
	Raw map[models.Item]float64

	Sweeps int
	Loss   float64

	// Degenerate is set when every item relaxed to the same score and was
	// assigned DegenerateScore.
	Degenerate bool
}

// Solver runs the relaxation with a fixed set of options.
type Solver struct {
	opts    Options
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a solver. A nil logger uses slog.Default; collector may be nil.
func New(opts Options, collector *metrics.Collector, logger *slog.Logger) *Solver {
	if opts.Loss == "" {
		opts.Loss = LossSigned
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{opts: opts, metrics: collector, logger: logger}
}

// Solve is a convenience wrapper around New(opts, nil, nil).Solve.
func Solve(ctx context.Context, items []models.Item, comps []models.Comparison, opts Options) (*Result, error) {
	return New(opts, nil, nil).Solve(ctx, items, comps)
}

// Solve relaxes scores for items until the loss settles, then rescales them
// so the best item scores 100 and the worst 0. Comparisons are read but never
// modified. An empty item set yields an empty result.
func (s *Solver) Solve(ctx context.Context, items []models.Item, comps []models.Comparison) (*Result, error) {
	if s.opts.StepRate <= 0 {
		return nil, fmt.Errorf("step rate must be positive, got %v", s.opts.StepRate)
	}
	if s.opts.Threshold < 0 {
		return nil, fmt.Errorf("convergence threshold must not be negative, got %v", s.opts.Threshold)
	}

	scores := make(map[models.Item]float64, len(items))
	for _, item := range items {
		scores[item] = 0
	}
	for i, c := range comps {
		if _, ok := scores[c.Left]; !ok {
			return nil, fmt.Errorf("comparison %d: %w: %s", i, ErrUnknownItem, c.Left.Name)
		}
		if _, ok := scores[c.Right]; !ok {
			return nil, fmt.Errorf("comparison %d: %w: %s", i, ErrUnknownItem, c.Right.Name)
		}
		if c.Left == c.Right {
			return nil, fmt.Errorf("comparison %d: %w: %s", i, ErrSelfComparison, c.Left.Name)
		}
	}

	res := &Result{Scores: []models.Score{}, Raw: scores}
	if len(items) == 0 {
		return res, nil
	}

	start := time.Now()
	lastLoss, loss := math.Inf(1), 0.0
	for math.Abs(loss-lastLoss) > s.opts.Threshold {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.opts.MaxSweeps > 0 && res.Sweeps >= s.opts.MaxSweeps {
			return nil, fmt.Errorf("%w after %d sweeps (loss %g)", ErrNotConverged, res.Sweeps, loss)
		}

		for _, c := range comps {
			delta := s.opts.StepRate * force(scores, c)
			scores[c.Left] -= delta
			scores[c.Right] += delta
		}
		res.Sweeps++

		lastLoss, loss = loss, s.loss(scores, comps)
	}
	res.Loss = loss

	if s.metrics != nil {
		s.metrics.RecordSolve(time.Since(start), res.Sweeps)
	}
	s.logger.Debug("relaxation converged", "sweeps", res.Sweeps, "loss", loss, "criterion", s.opts.Loss)

	res.Scores, res.Degenerate = normalize(items, scores)
	if res.Degenerate {
		s.logger.Warn("all items relaxed to the same score", "items", len(items), "assigned", DegenerateScore)
	}
	return res, nil
}

// force is how far the current gap for c is from the answered difference.
func force(scores map[models.Item]float64, c models.Comparison) float64 {
	return (scores[c.Left] - scores[c.Right]) - c.Difference
}

func (s *Solver) loss(scores map[models.Item]float64, comps []models.Comparison) float64 {
	var total float64
	for _, c := range comps {
		f := force(scores, c)
		if s.opts.Loss == LossSquared {
			f *= f
		}
		total += f
	}
	return total
}

// normalize rescales scores linearly onto [0, 100] and sorts them best first.
// When there is no spread every item gets DegenerateScore.
func normalize(items []models.Item, scores map[models.Item]float64) ([]models.Score, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, item := range items {
		lo = min(lo, scores[item])
		hi = max(hi, scores[item])
	}

	degenerate := hi == lo
	out := make([]models.Score, 0, len(items))
	for _, item := range items {
		n := DegenerateScore
		if !degenerate {
			n = 100 * (scores[item] - lo) / (hi - lo)
		}
		out = append(out, models.Score{Item: item, Score: n})
	}

	slices.SortStableFunc(out, func(a, b models.Score) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return out, degenerate
}
