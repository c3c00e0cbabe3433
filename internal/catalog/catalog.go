// Package catalog loads the items to rank from a JSON or YAML file.
//
// A catalog is a list of records, each with a name, a team and a position.
// A JSON file may also hold a single record object. Loading is strict: an
// unknown key, a missing field, an unknown position or a duplicate item
// rejects the whole file.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/pairrank/internal/models"
)

var (
	// ErrInvalidRecord wraps every parse or validation failure.
	ErrInvalidRecord = errors.New("invalid catalog record")

	// ErrDuplicateItem is returned when two records describe the same item.
	ErrDuplicateItem = errors.New("duplicate catalog item")

	// ErrTrailingData is returned when a catalog holds more than one
	// top-level value or document.
	ErrTrailingData = errors.New("unexpected data after the first value")
)

// Format is the on-disk encoding of a catalog.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// record is the raw on-disk shape.
type record struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Team     string `json:"team" yaml:"team" validate:"required"`
	Position string `json:"position" yaml:"position" validate:"required,position"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("position", func(fl validator.FieldLevel) bool {
		_, err := models.ParsePosition(fl.Field().String())
		return err == nil
	})
	return v
}

// FormatFromPath picks a format from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and parses the catalog at path.
func Load(path string) ([]models.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	items, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return items, nil
}

// Parse decodes catalog data in the given format.
func Parse(data []byte, format Format) ([]models.Item, error) {
	var (
		records []record
		err     error
	)
	switch format {
	case FormatJSON:
		records, err = decodeJSON(data)
	case FormatYAML:
		records, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	items := make([]models.Item, 0, len(records))
	seen := make(map[models.Item]int, len(records))
	for i, r := range records {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("%w at index %d: %s", ErrInvalidRecord, i, describe(err))
		}
		pos, _ := models.ParsePosition(r.Position)
		item := models.Item{Name: r.Name, Team: r.Team, Position: pos}

		if first, ok := seen[item]; ok {
			return nil, fmt.Errorf("%w: %s at index %d and %d", ErrDuplicateItem, item, first, i)
		}
		seen[item] = i
		items = append(items, item)
	}
	return items, nil
}

func decodeJSON(data []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	if trimmed[0] == '{' {
		var r record
		if err := dec.Decode(&r); err != nil {
			return nil, err
		}
		if err := jsonEnd(dec); err != nil {
			return nil, err
		}
		return []record{r}, nil
	}

	var records []record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	if err := jsonEnd(dec); err != nil {
		return nil, err
	}
	return records, nil
}

func jsonEnd(dec *json.Decoder) error {
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

func yamlEnd(dec *yaml.Decoder) error {
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

func decodeYAML(data []byte) ([]record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []record
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	listErr := dec.Decode(&records)
	if listErr == nil {
		if err := yamlEnd(dec); err != nil {
			return nil, err
		}
		return records, nil
	}

	var r record
	dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, listErr
	}
	if err := yamlEnd(dec); err != nil {
		return nil, err
	}
	return []record{r}, nil
}

// describe turns validator errors into one readable line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "position":
			msgs = append(msgs, fmt.Sprintf("unknown position %q", fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}

// Filter keeps items with the given position (all items when position is
// empty) and then truncates to the first n. n <= 0 means no limit. Input
// order is preserved.
func Filter(items []models.Item, position models.Position, n int) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if n > 0 && len(out) >= n {
			break
		}
		if position != "" && item.Position != position {
			continue
		}
		out = append(out, item)
	}
	return out
}
