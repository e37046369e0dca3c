package ir

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StatsLayout is the on-disk shape of a statistics block.
type StatsLayout int

const (
	// LayoutFlat: {"vocabulary": 3, ..., "total_questions": 12, "total_sections": 4}.
	LayoutFlat StatsLayout = iota

	// LayoutByPart: {"by_part": {...}, "total_questions": 12, "total_sections": 4}.
	// Older records use this shape; it is read and preserved, never introduced.
	LayoutByPart
)

// Statistics is the cached per-category question count of a record.
// It is a derived view: the Aggregator is the only producer of fresh values.
type Statistics struct {
	ByPart map[Category]int

	// Totals are optional in stored data; nil means the key was absent.
	TotalQuestions *int
	TotalSections  *int

	Layout StatsLayout
}

// Count returns the count for c, treating an absent key as zero.
func (s *Statistics) Count(c Category) int {
	if s == nil {
		return 0
	}
	return s.ByPart[c]
}

// Has reports whether the block carries an explicit key for c.
func (s *Statistics) Has(c Category) bool {
	if s == nil {
		return false
	}
	_, ok := s.ByPart[c]
	return ok
}

// Sum returns the sum of all per-category counts.
func (s *Statistics) Sum() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, n := range s.ByPart {
		total += n
	}
	return total
}

// UnknownCategories returns the keys outside the closed category set, sorted.
func (s *Statistics) UnknownCategories() []Category {
	if s == nil {
		return nil
	}
	var out []Category
	for c := range s.ByPart {
		if !c.Valid() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy.
func (s *Statistics) Clone() *Statistics {
	if s == nil {
		return nil
	}
	out := &Statistics{Layout: s.Layout}
	if s.ByPart != nil {
		out.ByPart = make(map[Category]int, len(s.ByPart))
		for c, n := range s.ByPart {
			out.ByPart[c] = n
		}
	}
	if s.TotalQuestions != nil {
		v := *s.TotalQuestions
		out.TotalQuestions = &v
	}
	if s.TotalSections != nil {
		v := *s.TotalSections
		out.TotalSections = &v
	}
	return out
}

// IntPtr is a small helper for the optional totals.
func IntPtr(v int) *int {
	return &v
}

const (
	keyByPart         = "by_part"
	keyTotalQuestions = "total_questions"
	keyTotalSections  = "total_sections"
)

// UnmarshalJSON reads either layout. In the flat layout every key other than
// the totals is taken as a category, known or not, so validation can flag it.
func (s *Statistics) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = Statistics{ByPart: make(map[Category]int)}

	readTotal := func(key string) (*int, error) {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			return nil, nil
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return &n, nil
	}
	var err error
	if s.TotalQuestions, err = readTotal(keyTotalQuestions); err != nil {
		return err
	}
	if s.TotalSections, err = readTotal(keyTotalSections); err != nil {
		return err
	}

	if raw, ok := fields[keyByPart]; ok {
		s.Layout = LayoutByPart
		var byPart map[string]int
		if err := json.Unmarshal(raw, &byPart); err != nil {
			return fmt.Errorf("%s: %w", keyByPart, err)
		}
		for k, n := range byPart {
			s.ByPart[Category(k)] = n
		}
		return nil
	}

	s.Layout = LayoutFlat
	for key, raw := range fields {
		if key == keyTotalQuestions || key == keyTotalSections {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.ByPart[Category(key)] = n
	}
	return nil
}

// MarshalJSON writes the block in its own layout, categories in exam order,
// unknown keys after them, totals last.
func (s Statistics) MarshalJSON() ([]byte, error) {
	parts := &objectWriter{}
	for _, c := range Categories {
		if n, ok := s.ByPart[c]; ok {
			parts.field(string(c), n)
		}
	}
	for _, c := range s.UnknownCategories() {
		parts.field(string(c), s.ByPart[c])
	}

	if s.Layout == LayoutByPart {
		partsJSON, err := parts.bytes()
		if err != nil {
			return nil, err
		}
		w := &objectWriter{}
		w.field(keyByPart, json.RawMessage(partsJSON))
		s.writeTotals(w)
		return w.bytes()
	}

	s.writeTotals(parts)
	return parts.bytes()
}

func (s Statistics) writeTotals(w *objectWriter) {
	if s.TotalQuestions != nil {
		w.field(keyTotalQuestions, *s.TotalQuestions)
	}
	if s.TotalSections != nil {
		w.field(keyTotalSections, *s.TotalSections)
	}
}
