package solver

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
	"github.com/raphaelgruber/pairrank/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(name string) models.Item {
	return models.Item{Name: name, Team: "T", Position: models.PositionQB}
}

func scoreOf(t *testing.T, res *Result, it models.Item) float64 {
	t.Helper()
	for _, s := range res.Scores {
		if s.Item == it {
			return s.Score
		}
	}
	t.Fatalf("no score for %s", it.Name)
	return 0
}

func TestSolve_Chain(t *testing.T) {
	a, b, c := item("A"), item("B"), item("C")
	comps := []models.Comparison{
		{Left: a, Right: b, Difference: 2},
		{Left: b, Right: c, Difference: 2},
		{Left: a, Right: c, Difference: 4},
	}

	res, err := Solve(context.Background(), []models.Item{a, b, c}, comps, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, res.Scores, 3)
	assert.Equal(t, []models.Item{a, b, c}, []models.Item{res.Scores[0].Item, res.Scores[1].Item, res.Scores[2].Item})
	assert.Equal(t, 100.0, scoreOf(t, res, a))
	assert.Equal(t, 0.0, scoreOf(t, res, c))
	assert.InDelta(t, 50.0, scoreOf(t, res, b), 10)
	assert.False(t, res.Degenerate)
	assert.Greater(t, res.Sweeps, 1)
	assert.Less(t, res.Sweeps, 5000)

	// raw gaps are close to the answered differences
	assert.InDelta(t, 2, res.Raw[a]-res.Raw[b], 0.5)
	assert.InDelta(t, 2, res.Raw[b]-res.Raw[c], 0.5)
}

func TestSolve_Empty(t *testing.T) {
	res, err := Solve(context.Background(), nil, nil, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, res.Scores)
	assert.Empty(t, res.Raw)
	assert.Zero(t, res.Sweeps)
	assert.False(t, res.Degenerate)
}

func TestSolve_SingleItem(t *testing.T) {
	a := item("A")
	res, err := Solve(context.Background(), []models.Item{a}, nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Raw[a])
	assert.True(t, res.Degenerate)
	require.Len(t, res.Scores, 1)
	assert.Equal(t, DegenerateScore, res.Scores[0].Score)
}

func TestSolve_DegenerateKeepsInputOrder(t *testing.T) {
	x, y, z := item("X"), item("Y"), item("Z")
	comps := []models.Comparison{
		{Left: x, Right: y, Difference: 0},
		{Left: z, Right: y, Difference: 0},
	}

	res, err := Solve(context.Background(), []models.Item{x, y, z}, comps, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, res.Degenerate)
	for i, want := range []models.Item{x, y, z} {
		assert.Equal(t, want, res.Scores[i].Item)
		assert.Equal(t, DegenerateScore, res.Scores[i].Score)
	}
}

func TestSolve_InvalidComparisons(t *testing.T) {
	a, b := item("A"), item("B")

	tests := []struct {
		name  string
		comps []models.Comparison
		want  error
	}{
		{"unknown left", []models.Comparison{{Left: item("Z"), Right: a, Difference: 1}}, ErrUnknownItem},
		{"unknown right", []models.Comparison{{Left: a, Right: item("Z"), Difference: 1}}, ErrUnknownItem},
		{"self", []models.Comparison{{Left: b, Right: b, Difference: 1}}, ErrSelfComparison},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(context.Background(), []models.Item{a, b}, tt.comps, DefaultOptions())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSolve_BadOptions(t *testing.T) {
	a := item("A")
	_, err := Solve(context.Background(), []models.Item{a}, nil, Options{Threshold: 0.001})
	assert.Error(t, err)

	_, err = Solve(context.Background(), []models.Item{a}, nil, Options{Threshold: -1, StepRate: 0.001})
	assert.Error(t, err)
}

func TestSolve_MaxSweeps(t *testing.T) {
	a, b := item("A"), item("B")
	opts := DefaultOptions()
	opts.MaxSweeps = 1

	_, err := Solve(context.Background(), []models.Item{a, b}, []models.Comparison{{Left: a, Right: b, Difference: 8}}, opts)
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestSolve_Cancelled(t *testing.T) {
	a, b := item("A"), item("B")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Solve(ctx, []models.Item{a, b}, []models.Comparison{{Left: a, Right: b, Difference: 8}}, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolve_DoesNotModifyComparisons(t *testing.T) {
	a, b, c := item("A"), item("B"), item("C")
	comps := []models.Comparison{
		{Left: a, Right: b, Difference: 4},
		{Left: c, Right: b, Difference: -2},
	}
	before := slices.Clone(comps)

	_, err := Solve(context.Background(), []models.Item{a, b, c}, comps, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, before, comps)
}

func TestSolve_NormalizationBounds(t *testing.T) {
	a, b, c, d := item("A"), item("B"), item("C"), item("D")
	comps := []models.Comparison{
		{Left: a, Right: b, Difference: 8},
		{Left: c, Right: b, Difference: -1},
		{Left: d, Right: a, Difference: 16},
		{Left: c, Right: d, Difference: -32},
	}

	res, err := Solve(context.Background(), []models.Item{a, b, c, d}, comps, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Scores[0].Score)
	assert.Equal(t, 0.0, res.Scores[len(res.Scores)-1].Score)
	for i := 1; i < len(res.Scores); i++ {
		assert.GreaterOrEqual(t, res.Scores[i-1].Score, res.Scores[i].Score)
	}
}

func syntheticRun(t *testing.T, n int, seed uint64) ([]models.Item, []models.Comparison) {
	t.Helper()

	truth := make(map[models.Item]float64, n)
	all := make([]models.Item, 0, n)
	for i := 0; i < n; i++ {
		it := models.Item{Name: string(rune('a' + i)), Team: "T", Position: models.PositionWR}
		truth[it] = float64(10 * i)
		all = append(all, it)
	}

	r := rand.New(rand.NewPCG(seed, seed+1))
	res, err := ranking.NewSession(r, nil).Run(context.Background(), all, oracle.Synthetic{Truth: truth})
	require.NoError(t, err)
	return res.Ranked, res.Comparisons
}

func TestSolve_ScoresAgreeWithComparisons(t *testing.T) {
	ranked, comps := syntheticRun(t, 10, 42)

	opts := DefaultOptions()
	opts.Loss = LossSquared
	opts.Threshold = 1e-6
	opts.MaxSweeps = 1_000_000
	res, err := Solve(context.Background(), ranked, comps, opts)
	require.NoError(t, err)

	agree := 0
	for _, c := range comps {
		gap := res.Raw[c.Left] - res.Raw[c.Right]
		if (gap > 0) == (c.Difference > 0) {
			agree++
		}
	}
	assert.GreaterOrEqual(t, float64(agree), 0.9*float64(len(comps)), "%d of %d comparisons agree", agree, len(comps))
	assert.Equal(t, ranked[0], res.Scores[0].Item)
	assert.Equal(t, ranked[len(ranked)-1], res.Scores[len(res.Scores)-1].Item)
}

func TestSolve_SignedLossTerminates(t *testing.T) {
	ranked, comps := syntheticRun(t, 10, 7)

	collector := metrics.NewCollector()
	opts := DefaultOptions()
	opts.MaxSweeps = 1_000_000
	res, err := New(opts, collector, nil).Solve(context.Background(), ranked, comps)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Sweeps, opts.MaxSweeps)
	assert.Len(t, res.Scores, len(ranked))
	assert.EqualValues(t, res.Sweeps, collector.Snapshot().Sweeps)
}
