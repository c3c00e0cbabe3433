package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
)

var (
	// ErrTooManyRetries is returned when an oracle keeps giving invalid
	// answers past Session.MaxRetries.
	ErrTooManyRetries = errors.New("too many invalid oracle answers")

	// ErrDuplicateItem is returned before any query when the same item is
	// listed twice.
	ErrDuplicateItem = errors.New("duplicate item")
)

// Session drives Insert over a whole item set.
type Session struct {
	// Rand shuffles the presentation order. Required.
	Rand *rand.Rand

	// MaxRetries caps how often a single query is re-asked after an invalid
	// answer. Zero means no cap.
	MaxRetries int

	// OnProgress, if set, is called before each insertion with the number of
	// items already placed and the total.
	OnProgress func(placed, total int)

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Result is the outcome of a session.
type Result struct {
	ID          string
	Ranked      []models.Item
	Comparisons []models.Comparison
}

// NewSession creates a session with the given random source.
func NewSession(r *rand.Rand, logger *slog.Logger) *Session {
	return &Session{Rand: r, Logger: logger}
}

// Run inserts every item, in a uniformly random order, into a growing
// ranked sequence and returns the sequence with the full comparison log.
// Queries answered with oracle.ErrInvalidInput are asked again; any other
// oracle error ends the run.
func (s *Session) Run(ctx context.Context, items []models.Item, o oracle.Oracle) (*Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if s.Rand == nil {
		return nil, fmt.Errorf("session requires a random source")
	}
	seen := make(map[models.Item]bool, len(items))
	for _, item := range items {
		if seen[item] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, item)
		}
		seen[item] = true
	}

	id := uuid.New().String()
	logger = logger.With("session_id", id)

	order := make([]models.Item, len(items))
	copy(order, items)
	s.Rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	logger.Info("ranking session started", "items", len(order))
	start := time.Now()

	ask := &retrying{
		oracle:     o,
		maxRetries: s.MaxRetries,
		metrics:    s.Metrics,
		logger:     logger,
	}

	res := &Result{ID: id, Ranked: []models.Item{}, Comparisons: []models.Comparison{}}
	for i, item := range order {
		if s.OnProgress != nil {
			s.OnProgress(i, len(order))
		}

		insertStart := time.Now()
		ranked, comps, err := Insert(ctx, item, res.Ranked, ask)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", item.Name, err)
		}
		if s.Metrics != nil {
			s.Metrics.RecordTiming(metrics.OpInsert, time.Since(insertStart))
		}

		res.Ranked = ranked
		res.Comparisons = append(res.Comparisons, comps...)
		logger.Debug("item placed", "item", item.Name, "comparisons", len(comps), "ranked", len(ranked))
	}
	if s.OnProgress != nil {
		s.OnProgress(len(order), len(order))
	}

	logger.Info("ranking session finished",
		"items", len(res.Ranked),
		"comparisons", len(res.Comparisons),
		"duration", time.Since(start),
	)
	return res, nil
}

// retrying re-asks a query whenever the wrapped oracle reports invalid
// input. It never fabricates an answer.
type retrying struct {
	oracle     oracle.Oracle
	maxRetries int
	metrics    *metrics.Collector
	logger     *slog.Logger
}

func (r *retrying) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		start := time.Now()
		diff, err := r.oracle.Compare(ctx, a, b)
		if r.metrics != nil {
			r.metrics.RecordTiming(metrics.OpCompare, time.Since(start))
		}
		if err == nil {
			return diff, nil
		}
		if !errors.Is(err, oracle.ErrInvalidInput) {
			return 0, err
		}

		if r.metrics != nil {
			r.metrics.RecordRetry()
		}
		if r.maxRetries > 0 && attempt >= r.maxRetries {
			return 0, fmt.Errorf("%w: %v", ErrTooManyRetries, err)
		}
		r.logger.Warn("invalid oracle answer, asking again", "left", a.Name, "right", b.Name, "error", err)
	}
}
