package models

// Comparison records one oracle answer. A positive Difference means Left is
// preferred over Right; the magnitude is the strength of the preference.
type Comparison struct {
	Left       Item    `json:"left" yaml:"left"`
	Right      Item    `json:"right" yaml:"right"`
	Difference float64 `json:"difference" yaml:"difference"`
}

// Score pairs an item with its normalized score in [0, 100].
type Score struct {
	Item  Item
	Score float64
}

// Record is the flat output shape of a scored item.
type Record struct {
	Rank     int      `json:"rank" yaml:"rank"`
	Name     string   `json:"name" yaml:"name"`
	Team     string   `json:"team" yaml:"team"`
	Position Position `json:"position" yaml:"position"`
	Score    float64  `json:"score" yaml:"score"`
}

// Records flattens scores into output records. Ranks start at 1 and follow
// the order of scores.
func Records(scores []Score) []Record {
	out := make([]Record, 0, len(scores))
	for i, s := range scores {
		out = append(out, Record{
			Rank:     i + 1,
			Name:     s.Item.Name,
			Team:     s.Item.Team,
			Position: s.Item.Position,
			Score:    s.Score,
		})
	}
	return out
}
