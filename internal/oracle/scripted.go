package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/raphaelgruber/pairrank/internal/models"
)

type pair struct {
	a, b models.Item
}

// Scripted answers from a fixed table. An answer recorded for (a, b) is
// returned negated when asked as (b, a).
type Scripted struct {
	mu      sync.Mutex
	answers map[pair]float64
	asked   []pair
}

// NewScripted creates an empty scripted oracle.
func NewScripted() *Scripted {
	return &Scripted{answers: make(map[pair]float64)}
}

// Set records that a is preferred over b by diff (negative favours b).
func (s *Scripted) Set(a, b models.Item, diff float64) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[pair{a, b}] = diff
	return s
}

// Compare looks up the answer for (a, b).
func (s *Scripted) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, pair{a, b})

	if d, ok := s.answers[pair{a, b}]; ok {
		return d, nil
	}
	if d, ok := s.answers[pair{b, a}]; ok {
		return -d, nil
	}
	return 0, fmt.Errorf("%w for %s vs %s", ErrNoScript, a.Name, b.Name)
}

// Calls returns how many queries have been answered or refused.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.asked)
}

// Synthetic derives answers from hidden true values: the result for (a, b)
// is truth[a] - truth[b]. With Quantize set the result is snapped onto the
// magnitude ladder, the way a human answering the prompts would.
type Synthetic struct {
	Truth    map[models.Item]float64
	Quantize bool
}

// Compare returns the signed true difference.
func (s Synthetic) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ta, ok := s.Truth[a]
	if !ok {
		return 0, fmt.Errorf("%w for %s", ErrNoScript, a.Name)
	}
	tb, ok := s.Truth[b]
	if !ok {
		return 0, fmt.Errorf("%w for %s", ErrNoScript, b.Name)
	}

	diff := ta - tb
	if !s.Quantize {
		return diff, nil
	}
	return Signed(diff >= 0, Nearest(diff)), nil
}
