package reconcile

import (
	"fmt"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
)

// Tally is one section's contribution to the statistics: its category and
// how many questions it holds.
type Tally struct {
	Category  ir.Category
	Questions int
}

// Tallies builds tallies from the parts stored on the sections.
func Tallies(sections []ir.Section) []Tally {
	out := make([]Tally, len(sections))
	for i, s := range sections {
		out[i] = Tally{Category: s.Part, Questions: s.QuestionCount()}
	}
	return out
}

// ClassifiedTallies builds tallies by classifying each section's mondai
// number instead of trusting its stored part.
func ClassifiedTallies(table *policy.Table, level ir.Level, sections []ir.Section) ([]Tally, error) {
	out := make([]Tally, len(sections))
	for i, s := range sections {
		c, err := table.Classify(level, s.Mondai)
		if err != nil {
			return nil, fmt.Errorf("sections[%d]: %w", i, err)
		}
		out[i] = Tally{Category: c, Questions: s.QuestionCount()}
	}
	return out, nil
}

// Aggregate sums tallies into a statistics block. Every category is present
// in the result, zero when nothing was classified into it, and both totals
// are set. The order of tallies does not affect the result.
//
// The per-category counts must add up to the total number of questions;
// a tally with a category outside the closed set would be dropped from the
// per-category view, so it is rejected instead.
func Aggregate(tallies []Tally) (*ir.Statistics, error) {
	stats := &ir.Statistics{
		ByPart: make(map[ir.Category]int, len(ir.Categories)),
		Layout: ir.LayoutFlat,
	}
	for _, c := range ir.Categories {
		stats.ByPart[c] = 0
	}

	total := 0
	for i, t := range tallies {
		if t.Questions < 0 {
			return nil, fmt.Errorf("%w: tally %d has %d questions", ir.ErrMalformedRecord, i, t.Questions)
		}
		if !t.Category.Valid() {
			return nil, fmt.Errorf("%w: tally %d has part %q", ir.ErrUnknownCategory, i, t.Category)
		}
		stats.ByPart[t.Category] += t.Questions
		total += t.Questions
	}

	if sum := stats.Sum(); sum != total {
		return nil, fmt.Errorf("%w: categories sum to %d, sections hold %d questions",
			ir.ErrStatisticsMismatch, sum, total)
	}
	stats.TotalQuestions = ir.IntPtr(total)
	stats.TotalSections = ir.IntPtr(len(tallies))
	return stats, nil
}
