package policy

import (
	"fmt"
	"strings"

	"github.com/roach88/mondai/internal/ir"
)

// Table check codes (E300-E399).
const (
	ErrCodeNoLevels        = "E301" // table defines no levels
	ErrCodeInvalidLevel    = "E302" // level outside N1..N5
	ErrCodeNoRanges        = "E303" // level with an empty range list
	ErrCodeUnknownCategory = "E304" // part outside the closed category set
	ErrCodeBadStart        = "E305" // first range does not start at 1
	ErrCodeGap             = "E306" // numbers between two ranges are unmapped
	ErrCodeOverlap         = "E307" // two ranges claim the same numbers
	ErrCodeEmptyRange      = "E308" // upper <= lower
	ErrCodeOpenBeforeEnd   = "E309" // unbounded range that is not the last one
	ErrCodeBoundedFinal    = "E310" // last range bounded on a non-deprecated table
	ErrCodeMissingVersion  = "E311" // table has no version identifier
)

// CheckError is one well-formedness problem in a table.
type CheckError struct {
	Version string   `json:"version"`
	Level   ir.Level `json:"level,omitempty"`
	Index   int      `json:"index"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}

// Error implements the error interface.
func (e CheckError) Error() string {
	if e.Level != 0 {
		return fmt.Sprintf("[%s] policy %s %s range %d: %s", e.Code, e.Version, e.Level, e.Index, e.Message)
	}
	return fmt.Sprintf("[%s] policy %s: %s", e.Code, e.Version, e.Message)
}

// CheckErrors collects every problem found in a table.
type CheckErrors []CheckError

// Error implements the error interface.
func (errs CheckErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Check verifies that every level's ranges start at 1, are contiguous and
// disjoint, and end with an unbounded range. Deprecated tables may end with
// a bounded range; numbers past it are then unclassifiable.
// Returns all problems found (does not fail fast).
func (t *Table) Check() CheckErrors {
	var errs CheckErrors
	add := func(level ir.Level, index int, code, format string, args ...any) {
		errs = append(errs, CheckError{
			Version: t.Version,
			Level:   level,
			Index:   index,
			Code:    code,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(t.Version) == "" {
		add(0, 0, ErrCodeMissingVersion, "version is required")
	}
	if len(t.Levels) == 0 {
		add(0, 0, ErrCodeNoLevels, "at least one level is required")
	}

	for _, level := range t.SortedLevels() {
		ranges := t.Levels[level]
		if !level.Valid() {
			add(level, 0, ErrCodeInvalidLevel, "level must be one of N1..N5")
		}
		if len(ranges) == 0 {
			add(level, 0, ErrCodeNoRanges, "at least one range is required")
			continue
		}
		if ranges[0].Lower != 1 {
			add(level, 0, ErrCodeBadStart, "first range starts at %d, want 1", ranges[0].Lower)
		}
		last := len(ranges) - 1
		for i, r := range ranges {
			if !r.Category.Valid() {
				add(level, i, ErrCodeUnknownCategory, "unknown part %q", r.Category)
			}
			if !r.Unbounded() && r.Upper <= r.Lower {
				add(level, i, ErrCodeEmptyRange, "upper %d must exceed lower %d", r.Upper, r.Lower)
			}
			if r.Unbounded() && i != last {
				add(level, i, ErrCodeOpenBeforeEnd, "only the last range may be unbounded")
			}
			if i > 0 && !ranges[i-1].Unbounded() {
				prev := ranges[i-1].Upper
				switch {
				case r.Lower > prev:
					add(level, i, ErrCodeGap, "mondai %d..%d are not mapped", prev, r.Lower-1)
				case r.Lower < prev:
					add(level, i, ErrCodeOverlap, "starts at %d but the previous range runs to %d", r.Lower, prev-1)
				}
			}
		}
		if !ranges[last].Unbounded() && !t.Deprecated {
			add(level, last, ErrCodeBoundedFinal,
				"last range ends at %d; only deprecated tables may cap the final category", ranges[last].Upper)
		}
	}
	return errs
}
