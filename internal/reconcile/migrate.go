package reconcile

import (
	"errors"
	"fmt"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
)

// Move is one section whose category differs between two policy versions.
// An empty category means the number is unclassifiable under that version.
type Move struct {
	Mondai int         `json:"mondai"`
	From   ir.Category `json:"from"`
	To     ir.Category `json:"to"`
}

// Migration lists the category moves for one record between two versions.
type Migration struct {
	RecordID string   `json:"record_id"`
	Level    ir.Level `json:"level"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Moves    []Move   `json:"moves"`
}

// Migrate compares how two tables classify rec's sections. It does not
// touch the record; apply the target with Reconcile(rec, to).
func Migrate(rec *ir.Record, from, to *policy.Table) (*Migration, error) {
	if err := precheck(rec, from); err != nil {
		return nil, err
	}
	if !to.HasLevel(rec.Level) {
		return nil, ir.NewRecordError(ir.KindUnknownLevel, rec.ID, "level",
			"%s is not registered in policy %s", rec.Level, to.Version)
	}

	m := &Migration{RecordID: rec.ID, Level: rec.Level, From: from.Version, To: to.Version}
	for _, s := range rec.Sections {
		before, err := classifyOrEmpty(from, rec.Level, s.Mondai)
		if err != nil {
			return nil, &ir.RecordError{Kind: ir.KindOf(err), RecordID: rec.ID, Field: "sections", Err: err}
		}
		after, err := classifyOrEmpty(to, rec.Level, s.Mondai)
		if err != nil {
			return nil, &ir.RecordError{Kind: ir.KindOf(err), RecordID: rec.ID, Field: "sections", Err: err}
		}
		if before != after {
			m.Moves = append(m.Moves, Move{Mondai: s.Mondai, From: before, To: after})
		}
	}
	return m, nil
}

// classifyOrEmpty maps an unclassifiable number to the empty category.
// Any other classification error is returned.
func classifyOrEmpty(t *policy.Table, level ir.Level, n int) (ir.Category, error) {
	c, err := t.Classify(level, n)
	if errors.Is(err, ir.ErrUnclassifiedSection) {
		return "", nil
	}
	return c, err
}

// String summarises the migration for text output.
func (m *Migration) String() string {
	if len(m.Moves) == 0 {
		return fmt.Sprintf("%s: no moves from %s to %s", m.RecordID, m.From, m.To)
	}
	return fmt.Sprintf("%s: %d section(s) move from %s to %s", m.RecordID, len(m.Moves), m.From, m.To)
}
