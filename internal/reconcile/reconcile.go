package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
)

// Field selects which derived data Reconcile recomputes.
type Field uint8

const (
	// FieldParts reclassifies every section and adopts the computed part.
	FieldParts Field = 1 << iota

	// FieldStatistics recomputes the statistics block from the parts.
	FieldStatistics

	// FieldNumbering renumbers sections 1..n in stored order before anything
	// else. Never part of the default set; see Renumber.
	FieldNumbering
)

// DefaultFields is what Reconcile recomputes when no fields are selected.
const DefaultFields = FieldParts | FieldStatistics

var fieldNames = []struct {
	field Field
	name  string
}{
	{FieldNumbering, "numbering"},
	{FieldParts, "parts"},
	{FieldStatistics, "statistics"},
}

// ParseFields parses a comma separated field list ("parts,statistics").
func ParseFields(s string) (Field, error) {
	var f Field
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		found := false
		for _, fn := range fieldNames {
			if fn.name == name {
				f |= fn.field
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown field %q (want parts, statistics or numbering)", part)
		}
	}
	if f == 0 {
		return 0, fmt.Errorf("no fields selected")
	}
	return f, nil
}

// Has reports whether every bit of other is set in f.
func (f Field) Has(other Field) bool {
	return f&other == other
}

// String renders the set as "parts,statistics".
func (f Field) String() string {
	var names []string
	for _, fn := range fieldNames {
		if f.Has(fn.field) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

type options struct {
	fields Field
}

// Option configures a Reconcile call.
type Option func(*options)

// WithFields restricts reconciliation to the given derived fields.
func WithFields(f Field) Option {
	return func(o *options) {
		if f != 0 {
			o.fields = f
		}
	}
}

// Diff is one discrepancy between stored and recomputed state.
// Applied diffs were corrected in Result.Record; the rest are reported only.
type Diff struct {
	Kind     ir.Kind `json:"kind"`
	Code     string  `json:"code"`
	Field    string  `json:"field"`
	Mondai   int     `json:"mondai,omitempty"`
	Stored   string  `json:"stored,omitempty"`
	Computed string  `json:"computed,omitempty"`
	Applied  bool    `json:"applied"`
	Message  string  `json:"message"`
}

// String renders the diff for logs and text output.
func (d Diff) String() string {
	mark := " "
	if d.Applied {
		mark = "*"
	}
	return fmt.Sprintf("%s [%s] %s: %s", mark, d.Code, d.Field, d.Message)
}

// Result is the outcome of reconciling one record.
type Result struct {
	// Record is the corrected copy. The input record is never modified.
	Record  *ir.Record
	Changed bool
	Diffs   []Diff
}

// Applied returns the diffs that were corrected.
func (r *Result) Applied() []Diff {
	var out []Diff
	for _, d := range r.Diffs {
		if d.Applied {
			out = append(out, d)
		}
	}
	return out
}

// HasKind reports whether any diff has the given kind.
func (r *Result) HasKind(kind ir.Kind) bool {
	for _, d := range r.Diffs {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Reconcile recomputes the derived fields of rec under table and reports every
// difference from what is stored. The returned record carries the corrections;
// Changed is true iff at least one diff was applied.
//
// A missing or unregistered level, or a missing section list, aborts with a
// *ir.RecordError. Duplicate mondai numbers are reported but never merged.
// Reconciling a result's Record again yields Changed == false.
func Reconcile(rec *ir.Record, table *policy.Table, opts ...Option) (*Result, error) {
	o := options{fields: DefaultFields}
	for _, opt := range opts {
		opt(&o)
	}

	if err := precheck(rec, table); err != nil {
		return nil, err
	}

	r := &reconciler{table: table, rec: rec.Clone()}
	if o.fields.Has(FieldNumbering) {
		r.renumber()
	}
	r.duplicates()
	if o.fields.Has(FieldParts) {
		r.parts()
	}
	if o.fields.Has(FieldStatistics) {
		if err := r.statistics(); err != nil {
			return nil, err
		}
	}

	res := &Result{Record: r.rec, Diffs: r.diffs}
	for _, d := range r.diffs {
		if d.Applied {
			res.Changed = true
			break
		}
	}
	return res, nil
}

func precheck(rec *ir.Record, table *policy.Table) error {
	if rec == nil {
		return ir.NewRecordError(ir.KindMalformedRecord, "", "", "record is nil")
	}
	if rec.Level == 0 {
		return ir.NewRecordError(ir.KindMalformedRecord, rec.ID, "level", "level is required")
	}
	if !table.HasLevel(rec.Level) {
		return ir.NewRecordError(ir.KindUnknownLevel, rec.ID, "level",
			"%s is not registered in policy %s", rec.Level, table.Version)
	}
	if rec.Sections == nil {
		return ir.NewRecordError(ir.KindMalformedRecord, rec.ID, "sections", "sections is required")
	}
	return nil
}

type reconciler struct {
	table *policy.Table
	rec   *ir.Record
	diffs []Diff
}

func (r *reconciler) add(d Diff) {
	d.Code = d.Kind.Code()
	r.diffs = append(r.diffs, d)
}

func (r *reconciler) renumber() {
	for i := range r.rec.Sections {
		s := &r.rec.Sections[i]
		want := i + 1
		if s.Mondai == want {
			continue
		}
		r.add(Diff{
			Kind:     ir.KindRenumbered,
			Field:    fmt.Sprintf("sections[%d].mondai", i),
			Mondai:   want,
			Stored:   strconv.Itoa(s.Mondai),
			Computed: strconv.Itoa(want),
			Applied:  true,
			Message:  fmt.Sprintf("mondai %d renumbered to %d", s.Mondai, want),
		})
		s.Mondai = want
	}
}

func (r *reconciler) duplicates() {
	first := make(map[int]int, len(r.rec.Sections))
	for i, s := range r.rec.Sections {
		j, seen := first[s.Mondai]
		if !seen {
			first[s.Mondai] = i
			continue
		}
		r.add(Diff{
			Kind:    ir.KindDuplicateSection,
			Field:   fmt.Sprintf("sections[%d].mondai", i),
			Mondai:  s.Mondai,
			Message: fmt.Sprintf("mondai %d also appears at sections[%d]", s.Mondai, j),
		})
	}
}

func (r *reconciler) parts() {
	for i := range r.rec.Sections {
		s := &r.rec.Sections[i]
		field := fmt.Sprintf("sections[%d].part", i)
		want, err := r.table.Classify(r.rec.Level, s.Mondai)
		if err != nil {
			r.add(Diff{
				Kind:    ir.KindUnclassifiedSection,
				Field:   field,
				Mondai:  s.Mondai,
				Stored:  string(s.Part),
				Message: fmt.Sprintf("mondai %d has no %s range in policy %s", s.Mondai, r.rec.Level, r.table.Version),
			})
			continue
		}
		if s.Part == want {
			continue
		}
		r.add(Diff{
			Kind:     ir.KindCategoryMismatch,
			Field:    field,
			Mondai:   s.Mondai,
			Stored:   string(s.Part),
			Computed: string(want),
			Applied:  true,
			Message:  fmt.Sprintf("mondai %d is %s, stored as %s", s.Mondai, want, displayPart(s.Part)),
		})
		s.Part = want
	}
}

// statistics recomputes the block from the (possibly corrected) parts.
// Sections whose part is still outside the category set make the counts
// unknowable; they are reported and the stored block is left alone.
func (r *reconciler) statistics() error {
	blocked := false
	for i, s := range r.rec.Sections {
		if s.Part.Valid() {
			continue
		}
		blocked = true
		r.add(Diff{
			Kind:    ir.KindUnknownCategory,
			Field:   fmt.Sprintf("sections[%d].part", i),
			Mondai:  s.Mondai,
			Stored:  string(s.Part),
			Message: fmt.Sprintf("mondai %d has part %s; statistics not recomputed", s.Mondai, displayPart(s.Part)),
		})
	}
	if blocked {
		return nil
	}

	computed, err := Aggregate(Tallies(r.rec.Sections))
	if err != nil {
		return &ir.RecordError{Kind: ir.KindOf(err), RecordID: r.rec.ID, Field: "statistics", Err: err}
	}

	stored := r.rec.Statistics
	if stored == nil {
		r.add(Diff{
			Kind:     ir.KindStatisticsMissing,
			Field:    "statistics",
			Computed: strconv.Itoa(*computed.TotalQuestions),
			Applied:  true,
			Message:  "statistics block missing; filled in",
		})
		r.rec.Statistics = computed
		return nil
	}

	start := len(r.diffs)
	for _, c := range ir.Categories {
		if stored.Count(c) == computed.Count(c) {
			continue
		}
		r.add(statDiff(ir.KindStatisticsMismatch, "statistics."+string(c),
			storedCount(stored, c), strconv.Itoa(computed.Count(c))))
	}
	for _, c := range stored.UnknownCategories() {
		r.add(statDiff(ir.KindUnknownCategory, "statistics."+string(c),
			strconv.Itoa(stored.Count(c)), ""))
	}
	if stored.TotalQuestions != nil && *stored.TotalQuestions != *computed.TotalQuestions {
		r.add(statDiff(ir.KindStatisticsMismatch, "statistics.total_questions",
			strconv.Itoa(*stored.TotalQuestions), strconv.Itoa(*computed.TotalQuestions)))
	}
	if stored.TotalSections != nil && *stored.TotalSections != *computed.TotalSections {
		r.add(statDiff(ir.KindStatisticsMismatch, "statistics.total_sections",
			strconv.Itoa(*stored.TotalSections), strconv.Itoa(*computed.TotalSections)))
	}

	if len(r.diffs) == start {
		return nil
	}
	for i := start; i < len(r.diffs); i++ {
		r.diffs[i].Applied = true
	}
	computed.Layout = stored.Layout
	r.rec.Statistics = computed
	return nil
}

func statDiff(kind ir.Kind, field, stored, computed string) Diff {
	msg := fmt.Sprintf("stored %s, computed %s", stored, computed)
	if computed == "" {
		msg = fmt.Sprintf("stored %s under a key outside the category set", stored)
	}
	return Diff{Kind: kind, Field: field, Stored: stored, Computed: computed, Message: msg}
}

func storedCount(s *ir.Statistics, c ir.Category) string {
	if !s.Has(c) {
		return "absent"
	}
	return strconv.Itoa(s.Count(c))
}

func displayPart(c ir.Category) string {
	if c == "" {
		return "(none)"
	}
	return string(c)
}
