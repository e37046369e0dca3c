package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/mondai/internal/ir"
)

// AssertionError describes one expectation that did not hold.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateExpectations checks every set expectation against the result and
// returns one message per mismatch.
func EvaluateExpectations(r *Result, e Expect) []string {
	var errs []string
	fail := func(err *AssertionError) { errs = append(errs, err.Error()) }

	if e.Valid != nil && r.Report.Valid != *e.Valid {
		fail(&AssertionError{Type: "valid", Expected: strconv.FormatBool(*e.Valid), Actual: strconv.FormatBool(r.Report.Valid)})
	}
	if e.Issues != nil {
		got := make([]string, len(r.Report.Issues))
		for i, issue := range r.Report.Issues {
			got[i] = string(issue.Kind)
		}
		if !slices.Equal(e.Issues, got) {
			fail(&AssertionError{Type: "issues", Expected: list(e.Issues), Actual: list(got)})
		}
	}

	if e.Error != "" {
		if got := actualErrorKind(r); got != e.Error {
			fail(&AssertionError{Type: "error", Expected: e.Error, Actual: got})
		}
		return errs
	}
	if r.Err != nil {
		fail(&AssertionError{Type: "reconcile", Expected: "success", Actual: r.Err.Error()})
		return errs
	}

	out := r.Reconciled
	if e.Changed != nil && out.Changed != *e.Changed {
		fail(&AssertionError{Type: "changed", Expected: strconv.FormatBool(*e.Changed), Actual: strconv.FormatBool(out.Changed)})
	}
	if e.Diffs != nil {
		got := make([]string, len(out.Diffs))
		for i, d := range out.Diffs {
			got[i] = string(d.Kind)
		}
		if !slices.Equal(e.Diffs, got) {
			fail(&AssertionError{Type: "diffs", Expected: list(e.Diffs), Actual: list(got)})
		}
	}
	if e.Parts != nil {
		got := make([]string, len(out.Record.Sections))
		for i, s := range out.Record.Sections {
			got[i] = string(s.Part)
		}
		if !slices.Equal(e.Parts, got) {
			fail(&AssertionError{Type: "parts", Expected: list(e.Parts), Actual: list(got)})
		}
	}
	for _, key := range sortedStatKeys(e.Statistics) {
		want := e.Statistics[key]
		got, ok := statValue(out.Record.Statistics, key)
		if !ok || got != want {
			actual := "absent"
			if ok {
				actual = strconv.Itoa(got)
			}
			fail(&AssertionError{Type: "statistics." + key, Expected: strconv.Itoa(want), Actual: actual})
		}
	}
	return errs
}

func actualErrorKind(r *Result) string {
	if r.Err == nil {
		return "no error"
	}
	return string(ir.KindOf(r.Err))
}

func statValue(s *ir.Statistics, key string) (int, bool) {
	if s == nil {
		return 0, false
	}
	switch key {
	case statTotalQuestions:
		if s.TotalQuestions == nil {
			return 0, false
		}
		return *s.TotalQuestions, true
	case statTotalSections:
		if s.TotalSections == nil {
			return 0, false
		}
		return *s.TotalSections, true
	}
	c := ir.Category(key)
	return s.Count(c), s.Has(c)
}

func sortedStatKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Category order first, totals last.
	rank := func(k string) int {
		for i, c := range ir.Categories {
			if string(c) == k {
				return i
			}
		}
		if k == statTotalQuestions {
			return len(ir.Categories)
		}
		return len(ir.Categories) + 1
	}
	slices.SortFunc(keys, func(a, b string) int { return rank(a) - rank(b) })
	return keys
}

func list(s []string) string {
	return "[" + strings.Join(s, ", ") + "]"
}
