// Package ranking builds a ranked sequence of items from pairwise oracle
// answers using binary insertion.
package ranking

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
)

// Insert places item into ranked, best first, by comparing it against the
// middle element and recursing into one half. It never modifies ranked; the
// returned slice is freshly allocated.
//
// Comparisons are returned outermost first. A tie (difference 0) counts as a
// weak preference for item, so it lands before the pivot. Inserting into a
// sequence of length n asks at most ceil(log2(n+1)) questions.
func Insert(ctx context.Context, item models.Item, ranked []models.Item, o oracle.Oracle) ([]models.Item, []models.Comparison, error) {
	if len(ranked) == 0 {
		return []models.Item{item}, nil, nil
	}

	pivotIndex := len(ranked) / 2
	before, pivot, after := ranked[:pivotIndex], ranked[pivotIndex], ranked[pivotIndex+1:]

	diff, err := o.Compare(ctx, item, pivot)
	if err != nil {
		return nil, nil, fmt.Errorf("compare %s with %s: %w", item.Name, pivot.Name, err)
	}
	comp := models.Comparison{Left: item, Right: pivot, Difference: diff}

	var deeper []models.Comparison
	if diff >= 0 {
		before, deeper, err = Insert(ctx, item, before, o)
	} else {
		after, deeper, err = Insert(ctx, item, after, o)
	}
	if err != nil {
		return nil, nil, err
	}

	out := make([]models.Item, 0, len(ranked)+1)
	out = append(out, before...)
	out = append(out, pivot)
	out = append(out, after...)

	comps := make([]models.Comparison, 0, len(deeper)+1)
	comps = append(comps, comp)
	comps = append(comps, deeper...)

	return out, comps, nil
}

// MaxComparisons is the worst-case number of oracle queries needed to insert
// into a sequence of length n.
func MaxComparisons(n int) int {
	count := 0
	for n > 0 {
		n /= 2
		count++
	}
	return count
}
