// Package presets loads saved filter presets from a JSON file. The file is
// re-read on every request so edits take effect without a restart.
package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidFormat marks presets files the client should be told are broken,
// as opposed to read failures on our side.
var ErrInvalidFormat = errors.New("invalid presets format")

// Preset is one saved filter configuration.
type Preset struct {
	Name     string   `json:"name"`
	Includes []string `json:"includes"`
	Excludes []string `json:"excludes"`
	Logic    string   `json:"logic"`
}

// Loader reads presets from a fixed path.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and validates the presets file. A missing file yields an empty
// list. Entries that are not objects or lack a name are skipped; list fields
// are coerced to string slices and an unrecognized logic falls back to AND.
// Malformed JSON or a non-array root is the caller's 400.
func (l *Loader) Load() ([]Preset, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Preset{}, nil
		}
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: root must be an array: %v", ErrInvalidFormat, err)
	}

	presets := make([]Preset, 0, len(raw))
	for _, entry := range raw {
		var fields map[string]any
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		name, ok := fields["name"]
		if !ok {
			continue
		}

		p := Preset{
			Name:     coerceString(name),
			Includes: coerceStringList(fields["includes"]),
			Excludes: coerceStringList(fields["excludes"]),
			Logic:    "AND",
		}
		if logic, ok := fields["logic"].(string); ok {
			if upper := strings.ToUpper(logic); upper == "AND" || upper == "OR" {
				p.Logic = upper
			}
		}
		presets = append(presets, p)
	}
	return presets, nil
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}

func coerceStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, coerceString(item))
	}
	return out
}
