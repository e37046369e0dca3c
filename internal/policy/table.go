package policy

import (
	"fmt"
	"sort"

	"github.com/roach88/mondai/internal/ir"
)

// Range maps the mondai numbers [Lower, Upper) to one category.
// Upper == 0 means unbounded above.
type Range struct {
	Category ir.Category `json:"part" yaml:"part"`
	Lower    int         `json:"lower" yaml:"lower"`
	Upper    int         `json:"upper,omitempty" yaml:"upper,omitempty"`
}

// Unbounded reports whether the range has no upper limit.
func (r Range) Unbounded() bool {
	return r.Upper == 0
}

// Contains reports whether mondai number n falls inside the range.
func (r Range) Contains(n int) bool {
	if n < r.Lower {
		return false
	}
	return r.Unbounded() || n < r.Upper
}

// String renders the range as "reading [9,13)" or "listening [13,∞)".
func (r Range) String() string {
	if r.Unbounded() {
		return fmt.Sprintf("%s [%d,∞)", r.Category, r.Lower)
	}
	return fmt.Sprintf("%s [%d,%d)", r.Category, r.Lower, r.Upper)
}

// Table is one named version of the level → ranges mapping.
// A Table is immutable once registered; accessors return copies.
type Table struct {
	Version     string
	Description string
	Deprecated  bool
	Levels      map[ir.Level][]Range
}

// CategoryRanges returns the ordered ranges for level.
func (t *Table) CategoryRanges(level ir.Level) ([]Range, error) {
	ranges, ok := t.Levels[level]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered in policy %s", ir.ErrUnknownLevel, level, t.Version)
	}
	return append([]Range(nil), ranges...), nil
}

// HasLevel reports whether level has ranges in this table.
func (t *Table) HasLevel(level ir.Level) bool {
	_, ok := t.Levels[level]
	return ok
}

// SortedLevels returns the registered levels in tier order.
func (t *Table) SortedLevels() []ir.Level {
	levels := make([]ir.Level, 0, len(t.Levels))
	for l := range t.Levels {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Classify returns the category of mondai number n at level.
// The ranges are scanned in order and the first match wins; ranges are
// disjoint by construction so the first match is the only match.
func (t *Table) Classify(level ir.Level, n int) (ir.Category, error) {
	ranges, ok := t.Levels[level]
	if !ok {
		return "", fmt.Errorf("%w: %s is not registered in policy %s", ir.ErrUnknownLevel, level, t.Version)
	}
	for _, r := range ranges {
		if r.Contains(n) {
			return r.Category, nil
		}
	}
	return "", fmt.Errorf("%w: mondai %d is outside every %s range of policy %s",
		ir.ErrUnclassifiedSection, n, level, t.Version)
}

// Hash returns a content hash of the table, recorded with every run so
// results can be tied to the exact boundaries that produced them.
func (t *Table) Hash() (string, error) {
	levels := make(map[string]any, len(t.Levels))
	for level, ranges := range t.Levels {
		items := make([]any, len(ranges))
		for i, r := range ranges {
			item := map[string]any{"part": r.Category, "lower": r.Lower}
			if !r.Unbounded() {
				item["upper"] = r.Upper
			}
			items[i] = item
		}
		levels[level.String()] = items
	}
	canonical, err := ir.MarshalCanonical(map[string]any{
		"version":    t.Version,
		"deprecated": t.Deprecated,
		"levels":     levels,
	})
	if err != nil {
		return "", fmt.Errorf("policy %s: hash: %w", t.Version, err)
	}
	return ir.HashWithDomain(ir.DomainPolicy, canonical), nil
}
