package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/reconcile"
)

// Scenario is one record under test and its expected outcome.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Policy is the table version; empty selects the registry default.
	Policy string `yaml:"policy,omitempty"`

	// Fields lists the reconcile fields, comma separated. Empty means the
	// default set.
	Fields string `yaml:"fields,omitempty"`

	// Record is the record document exactly as it would appear on disk.
	Record map[string]any `yaml:"record"`

	Expect Expect `yaml:"expect"`
}

// Expect holds the expected outcome. Nil fields are not checked.
type Expect struct {
	Valid      *bool          `yaml:"valid,omitempty"`
	Issues     []string       `yaml:"issues,omitempty"`
	Error      string         `yaml:"error,omitempty"`
	Changed    *bool          `yaml:"changed,omitempty"`
	Diffs      []string       `yaml:"diffs,omitempty"`
	Parts      []string       `yaml:"parts,omitempty"`
	Statistics map[string]int `yaml:"statistics,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes one scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every .yaml and .yml scenario below dir, sorted by path.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario %q is already defined in %s", p, s.Name, prev)
		}
		names[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Record == nil {
		return fmt.Errorf("record is required")
	}
	if s.Fields != "" {
		if _, err := reconcile.ParseFields(s.Fields); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
	}

	e := s.Expect
	for i, k := range e.Issues {
		if err := knownKind(k); err != nil {
			return fmt.Errorf("expect.issues[%d]: %w", i, err)
		}
	}
	for i, k := range e.Diffs {
		if err := knownKind(k); err != nil {
			return fmt.Errorf("expect.diffs[%d]: %w", i, err)
		}
	}
	if e.Error != "" {
		if err := knownKind(e.Error); err != nil {
			return fmt.Errorf("expect.error: %w", err)
		}
		if e.Changed != nil || e.Diffs != nil || e.Parts != nil || e.Statistics != nil {
			return fmt.Errorf("expect.error excludes changed, diffs, parts and statistics")
		}
	}
	for i, p := range e.Parts {
		if _, err := ir.ParseCategory(p); err != nil {
			return fmt.Errorf("expect.parts[%d]: %w", i, err)
		}
	}
	for k := range e.Statistics {
		if k == statTotalQuestions || k == statTotalSections {
			continue
		}
		if _, err := ir.ParseCategory(k); err != nil {
			return fmt.Errorf("expect.statistics: %w", err)
		}
	}
	return nil
}

func knownKind(k string) error {
	if ir.Kind(k).Code() == unknownKindCode {
		return fmt.Errorf("unknown kind %q", k)
	}
	return nil
}

const (
	statTotalQuestions = "total_questions"
	statTotalSections  = "total_sections"
	unknownKindCode    = "E200"
)
