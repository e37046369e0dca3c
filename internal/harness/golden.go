package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mondai/internal/ir"
)

// Snapshot renders the result as canonical JSON: the validation issues,
// then either the reconcile error kind or the diffs, the reconciled parts
// and statistics. Messages are left out so wording changes do not churn
// golden files.
func Snapshot(r *Result) ([]byte, error) {
	issues := make([]any, len(r.Report.Issues))
	for i, issue := range r.Report.Issues {
		m := map[string]any{"code": issue.Code, "kind": string(issue.Kind)}
		if issue.Field != "" {
			m["field"] = issue.Field
		}
		issues[i] = m
	}
	snap := map[string]any{
		"name":   r.Name,
		"policy": r.Policy,
		"valid":  r.Report.Valid,
		"issues": issues,
	}

	if r.Err != nil {
		snap["error"] = string(ir.KindOf(r.Err))
		return ir.MarshalCanonical(snap)
	}

	out := r.Reconciled
	diffs := make([]any, len(out.Diffs))
	for i, d := range out.Diffs {
		m := map[string]any{
			"applied": d.Applied,
			"code":    d.Code,
			"field":   d.Field,
			"kind":    string(d.Kind),
		}
		if d.Stored != "" {
			m["stored"] = d.Stored
		}
		if d.Computed != "" {
			m["computed"] = d.Computed
		}
		diffs[i] = m
	}
	parts := make([]any, len(out.Record.Sections))
	for i, s := range out.Record.Sections {
		parts[i] = string(s.Part)
	}
	snap["changed"] = out.Changed
	snap["diffs"] = diffs
	snap["parts"] = parts

	if st := out.Record.Statistics; st != nil {
		stats := make(map[string]any, len(st.ByPart)+2)
		for c, n := range st.ByPart {
			stats[string(c)] = n
		}
		if st.TotalQuestions != nil {
			stats[statTotalQuestions] = *st.TotalQuestions
		}
		if st.TotalSections != nil {
			stats[statTotalSections] = *st.TotalSections
		}
		snap["statistics"] = stats
	}
	return ir.MarshalCanonical(snap)
}

// RunWithGolden runs a scenario, fails the test on any unmet expectation and
// compares its snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
