package reconcile

import (
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
)

// Renumber rewrites section numbers to 1..n in stored order, then
// reclassifies and recomputes statistics. It is the explicit fix for
// duplicate or gapped numbering, which Reconcile only reports.
func Renumber(rec *ir.Record, table *policy.Table) (*Result, error) {
	return Reconcile(rec, table, WithFields(FieldNumbering|FieldParts|FieldStatistics))
}
