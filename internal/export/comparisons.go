package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/pairrank/internal/models"
)

// ErrDuplicateItem is returned when a comparison log lists an item twice.
var ErrDuplicateItem = errors.New("duplicate item in comparison log")

// ComparisonLog is the file shape used to keep a session's answers so the
// scores can be recomputed later without asking again.
type ComparisonLog struct {
	SessionID   string              `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Items       []models.Item       `json:"items" yaml:"items"`
	Comparisons []models.Comparison `json:"comparisons" yaml:"comparisons"`
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// SaveComparisons writes log to path, as YAML for .yaml/.yml and JSON
// otherwise.
func SaveComparisons(path string, log ComparisonLog) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(log)
	} else {
		data, err = json.MarshalIndent(log, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode comparison log: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write comparison log: %w", err)
	}
	return nil
}

// LoadComparisons reads a log written by SaveComparisons. Positions are
// validated and every compared item must be listed in Items.
func LoadComparisons(path string) (*ComparisonLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read comparison log: %w", err)
	}

	var log ComparisonLog
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&log)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&log)
	}
	if err != nil {
		return nil, fmt.Errorf("decode comparison log %s: %w", path, err)
	}

	known := make(map[models.Item]bool, len(log.Items))
	for i, item := range log.Items {
		pos, err := models.ParsePosition(string(item.Position))
		if err != nil {
			return nil, fmt.Errorf("comparison log item %d: %w", i, err)
		}
		log.Items[i].Position = pos
		if known[log.Items[i]] {
			return nil, fmt.Errorf("comparison log item %d: %w: %s", i, ErrDuplicateItem, log.Items[i])
		}
		known[log.Items[i]] = true
	}
	for i := range log.Comparisons {
		for _, side := range []*models.Item{&log.Comparisons[i].Left, &log.Comparisons[i].Right} {
			pos, err := models.ParsePosition(string(side.Position))
			if err != nil {
				return nil, fmt.Errorf("comparison %d: %w", i, err)
			}
			side.Position = pos
			if !known[*side] {
				return nil, fmt.Errorf("comparison %d: %s is not listed in items", i, side.Name)
			}
		}
	}
	return &log, nil
}
