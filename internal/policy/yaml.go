package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mondai/internal/ir"
)

// yamlTable is the YAML form of one policy document:
//
//	version: v3
//	description: trial mapping
//	levels:
//	  N3:
//	    - {part: vocabulary, lower: 1, upper: 6}
//	    - {part: listening, lower: 13}
type yamlTable struct {
	Version     string             `yaml:"version"`
	Description string             `yaml:"description,omitempty"`
	Deprecated  bool               `yaml:"deprecated,omitempty"`
	Levels      map[string][]Range `yaml:"levels"`
}

// ParseYAML decodes one or more "---" separated policy documents.
// Unknown fields are rejected so a typo ("uper:") cannot silently
// turn a bounded range into an unbounded one.
func ParseYAML(data []byte) ([]*Table, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var tables []*Table
	for i := 0; ; i++ {
		var doc yamlTable
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML document %d: %w", i, err)
		}
		t, err := doc.table()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no policy documents found")
	}
	return tables, nil
}

// LoadYAMLFile reads and parses a YAML policy file.
func LoadYAMLFile(path string) ([]*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	tables, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

func (d yamlTable) table() (*Table, error) {
	if d.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	t := &Table{
		Version:     d.Version,
		Description: d.Description,
		Deprecated:  d.Deprecated,
		Levels:      make(map[ir.Level][]Range, len(d.Levels)),
	}
	for name, ranges := range d.Levels {
		level, err := ir.ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("levels: %w", err)
		}
		t.Levels[level] = ranges
	}
	return t, nil
}
