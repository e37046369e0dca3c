package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
)

// Issue is one problem found in a record.
type Issue struct {
	Code    string  `json:"code"`
	Kind    ir.Kind `json:"kind"`
	Field   string  `json:"field,omitempty"`
	Mondai  int     `json:"mondai,omitempty"`
	Message string  `json:"message"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", i.Code, i.Field, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Code, i.Message)
}

func newIssue(kind ir.Kind, field string, mondai int, format string, args ...any) Issue {
	return Issue{
		Code:    kind.Code(),
		Kind:    kind,
		Field:   field,
		Mondai:  mondai,
		Message: fmt.Sprintf(format, args...),
	}
}

// Report is the outcome of validating one record.
type Report struct {
	RecordID string   `json:"record_id,omitempty"`
	Level    ir.Level `json:"level,omitempty"`
	Policy   string   `json:"policy"`
	Sections int      `json:"sections"`
	Valid    bool     `json:"valid"`
	Issues   []Issue  `json:"issues"`
}

// HasKind reports whether any issue has the given kind.
func (r *Report) HasKind(kind ir.Kind) bool {
	for _, i := range r.Issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

// Codes returns the issue codes in report order.
func (r *Report) Codes() []string {
	out := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		out[i] = issue.Code
	}
	return out
}

// Summary renders a one-line summary for text output.
func (r *Report) Summary() string {
	if r.Valid {
		return fmt.Sprintf("%s: valid (%s, %d sections)", r.displayID(), r.Level, r.Sections)
	}
	kinds := make([]string, 0, len(r.Issues))
	seen := map[ir.Kind]bool{}
	for _, i := range r.Issues {
		if !seen[i.Kind] {
			seen[i.Kind] = true
			kinds = append(kinds, string(i.Kind))
		}
	}
	return fmt.Sprintf("%s: %d issue(s): %s", r.displayID(), len(r.Issues), strings.Join(kinds, ", "))
}

func (r *Report) displayID() string {
	if r.RecordID == "" {
		return "(no id)"
	}
	return r.RecordID
}

func (r *Report) add(i Issue) {
	r.Issues = append(r.Issues, i)
}

func (r *Report) finish() *Report {
	r.Valid = len(r.Issues) == 0
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	return r
}

// Validate checks rec against table without modifying it. Checks run in a
// fixed order and every problem is collected; a missing or unregistered
// level, or a missing section list, ends the checks early.
func Validate(rec *ir.Record, table *policy.Table) *Report {
	r := &Report{Policy: table.Version}
	if rec == nil {
		r.add(newIssue(ir.KindMalformedRecord, "", 0, "record is empty"))
		return r.finish()
	}
	r.RecordID = rec.ID
	r.Level = rec.Level
	r.Sections = len(rec.Sections)

	// 1. required fields
	for _, f := range []struct {
		name    string
		missing bool
	}{
		{"id", rec.ID == ""},
		{"title", rec.Title == ""},
		{"level", rec.Level == 0},
		{"type", rec.Type == ""},
		{"sections", rec.Sections == nil},
	} {
		if f.missing {
			r.add(newIssue(ir.KindMalformedRecord, f.name, 0, "%s is required", f.name))
		}
	}
	if rec.Level == 0 || rec.Sections == nil {
		return r.finish()
	}

	// 2. level
	if !table.HasLevel(rec.Level) {
		r.add(newIssue(ir.KindUnknownLevel, "level", 0,
			"level %s is not registered in policy %s", rec.Level, table.Version))
		return r.finish()
	}

	// 3. sections
	if len(rec.Sections) == 0 {
		r.add(newIssue(ir.KindNoSections, "sections", 0, "record has no sections"))
	}

	// 4. duplicate numbers
	first := make(map[int]int, len(rec.Sections))
	for i, s := range rec.Sections {
		if j, seen := first[s.Mondai]; seen {
			r.add(newIssue(ir.KindDuplicateSection, fmt.Sprintf("sections[%d].mondai", i), s.Mondai,
				"mondai %d also appears at sections[%d]", s.Mondai, j))
			continue
		}
		first[s.Mondai] = i
	}

	// 5. categories
	for i, s := range rec.Sections {
		r.checkSection(table, rec.Level, i, s)
	}

	// 6. statistics
	if rec.Statistics != nil {
		r.checkStatistics(rec)
	}
	return r.finish()
}

func (r *Report) checkSection(table *policy.Table, level ir.Level, i int, s ir.Section) {
	if s.Mondai <= 0 {
		r.add(newIssue(ir.KindMalformedRecord, fmt.Sprintf("sections[%d].mondai", i), s.Mondai,
			"mondai must be a positive integer, got %d", s.Mondai))
		return
	}

	field := fmt.Sprintf("sections[%d].part", i)
	switch {
	case s.Part == "":
		r.add(newIssue(ir.KindUnknownCategory, field, s.Mondai, "part is missing"))
	case !s.Part.Valid():
		r.add(newIssue(ir.KindUnknownCategory, field, s.Mondai, "part %q is not a known category", s.Part))
	}

	want, err := table.Classify(level, s.Mondai)
	if err != nil {
		r.add(newIssue(ir.KindUnclassifiedSection, field, s.Mondai,
			"mondai %d has no %s range in policy %s", s.Mondai, level, table.Version))
		return
	}
	if s.Part.Valid() && s.Part != want {
		r.add(newIssue(ir.KindCategoryMismatch, field, s.Mondai,
			"mondai %d is %s, stored as %s", s.Mondai, want, s.Part))
	}
}

// checkStatistics compares the stored block against a recomputation from the
// stored parts. Sections with an invalid part were already reported and are
// left out of the recomputation.
func (r *Report) checkStatistics(rec *ir.Record) {
	var tallies []reconcile.Tally
	for _, t := range reconcile.Tallies(rec.Sections) {
		if t.Category.Valid() {
			tallies = append(tallies, t)
		}
	}
	computed, err := reconcile.Aggregate(tallies)
	if err != nil {
		r.add(newIssue(ir.KindOf(err), "statistics", 0, "%v", err))
		return
	}

	stored := rec.Statistics
	for _, c := range ir.Categories {
		if got, want := stored.Count(c), computed.Count(c); got != want {
			r.add(newIssue(ir.KindStatisticsMismatch, "statistics."+string(c), 0,
				"stored %d, sections hold %d", got, want))
		}
	}
	for _, c := range stored.UnknownCategories() {
		r.add(newIssue(ir.KindUnknownCategory, "statistics."+string(c), 0,
			"%q is not a known category", c))
	}
	if stored.TotalQuestions != nil && *stored.TotalQuestions != *computed.TotalQuestions {
		r.add(newIssue(ir.KindStatisticsMismatch, "statistics.total_questions", 0,
			"stored %d, sections hold %d", *stored.TotalQuestions, *computed.TotalQuestions))
	}
	if stored.TotalSections != nil && *stored.TotalSections != len(rec.Sections) {
		r.add(newIssue(ir.KindStatisticsMismatch, "statistics.total_sections", 0,
			"stored %d, record has %d", *stored.TotalSections, len(rec.Sections)))
	}
}

// ValidateDocument type-checks raw JSON against the record schema, decodes it
// and validates the result. Schema and decode failures are reported as
// MalformedRecord issues and end the checks. The error is reserved for
// failures of the checker itself.
func ValidateDocument(raw []byte, table *policy.Table) (*Report, error) {
	issues, err := CheckSchema(raw)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		r := &Report{Policy: table.Version, Issues: issues}
		r.RecordID = peekID(raw)
		return r.finish(), nil
	}

	var rec ir.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		r := &Report{Policy: table.Version, RecordID: peekID(raw)}
		r.add(newIssue(ir.KindMalformedRecord, "", 0, "decode: %v", err))
		return r.finish(), nil
	}
	return Validate(&rec, table), nil
}

func peekID(raw []byte) string {
	var head struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	if s, ok := head.ID.(string); ok {
		return s
	}
	return ""
}
