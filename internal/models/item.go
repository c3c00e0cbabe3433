// Package models defines the data structures shared by the pairrank packages.
package models

import (
	"fmt"
	"strings"
)

// Position is the category tag of an item.
type Position string

// Known positions.
const (
	PositionRB Position = "RB"
	PositionWR Position = "WR"
	PositionTE Position = "TE"
	PositionQB Position = "QB"
)

// Positions lists every known position in catalog order.
var Positions = []Position{PositionRB, PositionWR, PositionTE, PositionQB}

// ParsePosition converts a tag like "wr" or "WR" to a Position.
// Returns an error for anything outside the fixed enumeration.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Positions {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown position %q (expected one of RB, WR, TE, QB)", s)
}

// Item is a rankable entity. Items are compared by value, so an Item can be
// used directly as a map key.
type Item struct {
	Name     string   `json:"name" yaml:"name"`
	Team     string   `json:"team" yaml:"team"`
	Position Position `json:"position" yaml:"position"`
}

// String renders the item the way prompts display it.
func (i Item) String() string {
	return fmt.Sprintf("%s - %s, %s", i.Name, i.Position, i.Team)
}
