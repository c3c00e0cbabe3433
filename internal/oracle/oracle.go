// Package oracle defines the source of pairwise preference judgments and
// the implementations that ship with pairrank.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/pairrank/internal/models"
)

var (
	// ErrInvalidInput marks an answer that failed validation. The query can
	// be asked again.
	ErrInvalidInput = errors.New("invalid oracle input")

	// ErrAborted is returned when the user quits before answering.
	ErrAborted = errors.New("comparison aborted")

	// ErrNoScript is returned by Scripted when a pair has no recorded answer.
	ErrNoScript = errors.New("no scripted answer")
)

// Oracle answers "which of a and b is preferred, and by how much?".
// The result is a signed magnitude: positive favours a, negative favours b.
// Compare may block until a human responds.
type Oracle interface {
	Compare(ctx context.Context, a, b models.Item) (float64, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, a, b models.Item) (float64, error)

// Compare calls f.
func (f Func) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	return f(ctx, a, b)
}

// Level is a step on the ordinal strength scale, 1 through 6.
type Level int

// Strength levels in prompt order.
const (
	LevelTossup Level = iota + 1
	LevelLittle
	LevelTier
	LevelTiers
	LevelLeagues
	LevelGalaxies
)

var levelLabels = map[Level]string{
	LevelTossup:   "It's a tossup",
	LevelLittle:   "A little",
	LevelTier:     "A tier above",
	LevelTiers:    "Multiple tiers above",
	LevelLeagues:  "Different leagues",
	LevelGalaxies: "Different galaxies",
}

// Levels lists every level in ascending order.
var Levels = []Level{LevelTossup, LevelLittle, LevelTier, LevelTiers, LevelLeagues, LevelGalaxies}

// Valid reports whether l is on the scale.
func (l Level) Valid() bool {
	return l >= LevelTossup && l <= LevelGalaxies
}

// Magnitude maps the level to its numeric strength: 1, 2, 4, 8, 16 or 32.
func (l Level) Magnitude() float64 {
	if !l.Valid() {
		return 0
	}
	return float64(int(1) << (l - 1))
}

// Label returns the prompt text for the level.
func (l Level) Label() string {
	return levelLabels[l]
}

// ParseLevel validates a prompt answer such as "3".
func ParseLevel(s string) (Level, error) {
	if len(s) != 1 || s[0] < '1' || s[0] > '6' {
		return 0, fmt.Errorf("%w: strength %q, select 1-6", ErrInvalidInput, s)
	}
	return Level(s[0] - '0'), nil
}

// ParseChoice validates a "which do you prefer" answer. It returns true when
// the first item was chosen.
func ParseChoice(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "2":
		return false, nil
	default:
		return false, fmt.Errorf("%w: choice %q, select 1 or 2", ErrInvalidInput, s)
	}
}

// Signed combines a choice and a strength level into the oracle result.
func Signed(firstChosen bool, l Level) float64 {
	if firstChosen {
		return l.Magnitude()
	}
	return -l.Magnitude()
}

// Nearest returns the level whose magnitude is closest to |diff| on a log
// scale. Anything at or below 1 is a tossup and anything at or above 32 is
// different galaxies.
func Nearest(diff float64) Level {
	if diff < 0 {
		diff = -diff
	}
	best := LevelTossup
	for _, l := range Levels {
		if l.Magnitude() <= diff {
			best = l
		}
	}
	if best < LevelGalaxies {
		next := best + 1
		// geometric midpoint between the two magnitudes
		if diff*diff >= best.Magnitude()*next.Magnitude() {
			best = next
		}
	}
	return best
}
