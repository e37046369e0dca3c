package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
	"github.com/roach88/mondai/internal/validate"
)

// Harness runs scenarios against a policy registry.
type Harness struct {
	registry *policy.Registry
	logger   *slog.Logger
}

// New creates a harness over registry. A nil logger discards output.
func New(registry *policy.Registry, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{registry: registry, logger: logger}
}

// Run executes a scenario against the built-in tables.
func Run(s *Scenario) (*Result, error) {
	reg, err := policy.Builtin()
	if err != nil {
		return nil, err
	}
	return New(reg, nil).Run(s)
}

// Run validates and reconciles the scenario's record, then checks the
// expectations. The error is reserved for scenarios that cannot run at all
// (unknown policy version, unencodable record); a record that fails is a
// Result with Pass == false.
func (h *Harness) Run(s *Scenario) (*Result, error) {
	table, err := h.registry.Get(s.Policy)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	fields := reconcile.DefaultFields
	if s.Fields != "" {
		if fields, err = reconcile.ParseFields(s.Fields); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	raw, err := json.Marshal(s.Record)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: encode record: %w", s.Name, err)
	}

	log := h.logger.With("scenario", s.Name, "policy", table.Version)
	result := NewResult(s.Name)
	result.Policy = table.Version

	report, err := validate.ValidateDocument(raw, table)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	result.Report = report
	log.Debug("validated", "valid", report.Valid, "issues", len(report.Issues))

	result.Reconciled, result.Err = reconcileDocument(raw, table, fields)
	if result.Err != nil {
		log.Debug("reconcile aborted", "error", result.Err)
	} else {
		log.Debug("reconciled", "changed", result.Reconciled.Changed, "diffs", len(result.Reconciled.Diffs))
		checkIdempotent(result, table, fields)
	}

	for _, msg := range EvaluateExpectations(result, s.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// RunAll runs every scenario and returns the results in order.
func (h *Harness) RunAll(scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := h.Run(s)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func reconcileDocument(raw []byte, table *policy.Table, fields reconcile.Field) (*reconcile.Result, error) {
	rec, err := dataset.Decode(raw)
	if err != nil {
		return nil, err
	}
	return reconcile.Reconcile(rec, table, reconcile.WithFields(fields))
}

func checkIdempotent(result *Result, table *policy.Table, fields reconcile.Field) {
	again, err := reconcile.Reconcile(result.Reconciled.Record, table, reconcile.WithFields(fields))
	if err != nil {
		result.AddError(fmt.Sprintf("second reconcile failed: %v", err))
		return
	}
	if again.Changed {
		result.AddError(fmt.Sprintf("second reconcile changed the record: %v", appliedKinds(again.Diffs)))
	}
}

func appliedKinds(diffs []reconcile.Diff) []ir.Kind {
	var out []ir.Kind
	for _, d := range diffs {
		if d.Applied {
			out = append(out, d.Kind)
		}
	}
	return out
}
