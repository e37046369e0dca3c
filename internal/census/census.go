// Package census counts exams and questions across a dataset: per level,
// per part and per source directory.
//
// By default the census reads stored parts as they are. WithPolicy counts
// each section under the part its mondai number classifies to instead.
package census

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
)

// UnknownPart is the bucket for sections with no stored part.
const UnknownPart = "unknown"

// Level holds the counts for one level.
type Level struct {
	Level     ir.Level       `json:"-"`
	Exams     int            `json:"count"`
	Questions int            `json:"total_questions"`
	ByPart    map[string]int `json:"by_part"`
	BySource  map[string]int `json:"by_type"`
}

// Percent returns the share of the level's questions stored under part,
// 0 when the level has no questions.
func (l *Level) Percent(part string) float64 {
	if l.Questions == 0 {
		return 0
	}
	return float64(l.ByPart[part]) / float64(l.Questions) * 100
}

// Average returns the mean number of questions per exam.
func (l *Level) Average() float64 {
	if l.Exams == 0 {
		return 0
	}
	return float64(l.Questions) / float64(l.Exams)
}

// Failure is a file that could not be counted.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Census is the result of counting a dataset.
type Census struct {
	TotalExams int
	Levels     []*Level
	Failures   []Failure

	// Policy is the version parts were classified under; empty when
	// stored parts were counted.
	Policy string

	table *policy.Table
}

// Option configures Collect.
type Option func(*Census)

// WithPolicy counts sections under their classified part rather than the
// stored one. Records with an unclassifiable section become failures.
func WithPolicy(t *policy.Table) Option {
	return func(c *Census) {
		c.table = t
		if t != nil {
			c.Policy = t.Version
		}
	}
}

// Collect loads every entry and counts it. Files that fail to load are
// listed in Failures and left out of the counts.
func Collect(entries []dataset.Entry, opts ...Option) *Census {
	c := &Census{}
	for _, opt := range opts {
		opt(c)
	}
	for _, e := range entries {
		rec, err := dataset.Load(e.Path)
		if err == nil {
			err = c.Add(e, rec)
		}
		if err != nil {
			c.Failures = append(c.Failures, Failure{Path: e.Path, Error: err.Error()})
		}
	}
	return c
}

// Add counts one record under the entry's level and source. A record
// whose own level is set wins over the directory it was found in.
// With a policy, a record that cannot be classified is not counted.
func (c *Census) Add(e dataset.Entry, rec *ir.Record) error {
	level := rec.Level
	if level == 0 {
		level = e.Level
	}

	tallies := reconcile.Tallies(rec.Sections)
	if c.table != nil {
		var err error
		if tallies, err = reconcile.ClassifiedTallies(c.table, level, rec.Sections); err != nil {
			return fmt.Errorf("%s: %w", rec.ID, err)
		}
	}

	l := c.level(level)
	c.TotalExams++
	l.Exams++
	l.BySource[e.Source]++
	for _, t := range tallies {
		part := string(t.Category)
		if part == "" {
			part = UnknownPart
		}
		l.ByPart[part] += t.Questions
		l.Questions += t.Questions
	}
	return nil
}

// Level returns the counts for level, or nil if no exam was seen.
func (c *Census) Level(level ir.Level) *Level {
	for _, l := range c.Levels {
		if l.Level == level {
			return l
		}
	}
	return nil
}

func (c *Census) level(level ir.Level) *Level {
	i := sort.Search(len(c.Levels), func(i int) bool { return c.Levels[i].Level >= level })
	if i < len(c.Levels) && c.Levels[i].Level == level {
		return c.Levels[i]
	}
	l := &Level{Level: level, ByPart: map[string]int{}, BySource: map[string]int{}}
	c.Levels = append(c.Levels, nil)
	copy(c.Levels[i+1:], c.Levels[i:])
	c.Levels[i] = l
	return l
}

// MarshalJSON writes the export shape:
//
//	{"total_exams": 3, "by_level": {"N3": {"count": 2, ...}}}
func (c *Census) MarshalJSON() ([]byte, error) {
	byLevel := make(map[string]*Level, len(c.Levels))
	for _, l := range c.Levels {
		byLevel[l.Level.String()] = l
	}
	out := struct {
		TotalExams int               `json:"total_exams"`
		Policy     string            `json:"policy,omitempty"`
		ByLevel    map[string]*Level `json:"by_level"`
		Failures   []Failure         `json:"failures,omitempty"`
	}{c.TotalExams, c.Policy, byLevel, c.Failures}
	return json.Marshal(out)
}

// WriteJSON writes the export with two-space indentation.
func (c *Census) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("census: %w", err)
	}
	return nil
}
