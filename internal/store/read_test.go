package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/roach88/mondai/internal/ir"
)

func TestListRuns_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, run := range []ir.Run{
		createTestRun("run-c", 3),
		createTestRun("run-a", 1),
		createTestRun("run-b", 2),
	} {
		if err := s.WriteRun(ctx, run); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	want := []string{"run-a", "run-b", "run-c"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("runs[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestListRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil {
		t.Error("ListRuns() returned nil, want empty slice")
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun() error = %v, want sql.ErrNoRows", err)
	}
}

func TestRunResults_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.WriteRun(ctx, createTestRun("run-1", 1)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	for _, res := range []ir.RunResult{
		createTestResult("run-1", "b.json", 2, ir.OutcomeUnchanged),
		createTestResult("run-1", "a.json", 2, ir.OutcomeUpdated),
		createTestResult("run-1", "c.json", 1, ir.OutcomeFailed),
	} {
		if err := s.WriteResult(ctx, res); err != nil {
			t.Fatalf("WriteResult() failed: %v", err)
		}
	}

	results, err := s.RunResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunResults() failed: %v", err)
	}
	want := []string{"c.json", "a.json", "b.json"}
	for i, res := range results {
		if res.Path != want[i] {
			t.Errorf("results[%d].Path = %s, want %s", i, res.Path, want[i])
		}
	}
}

func TestRecordHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-1", "run-2"} {
		if err := s.WriteRun(ctx, createTestRun(id, int64(i+1))); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}
	first := createTestResult("run-1", "a.json", 1, ir.OutcomeUpdated)
	second := createTestResult("run-2", "a.json", 1, ir.OutcomeUnchanged)
	other := createTestResult("run-2", "b.json", 2, ir.OutcomeUnchanged)
	for _, res := range []ir.RunResult{second, first, other} {
		if err := s.WriteResult(ctx, res); err != nil {
			t.Fatalf("WriteResult() failed: %v", err)
		}
	}

	history, err := s.RecordHistory(ctx, "rec-a.json")
	if err != nil {
		t.Fatalf("RecordHistory() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d entries, want 2", len(history))
	}
	if history[0].RunID != "run-1" || history[1].Outcome != ir.OutcomeUnchanged {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	if err != nil {
		t.Fatalf("MaxSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty ledger MaxSeq() = %d, want 0", seq)
	}

	if err := s.WriteRun(ctx, createTestRun("run-a", 4)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	if err := s.WriteResult(ctx, createTestResult("run-a", "a.json", 9, ir.OutcomeUpdated)); err != nil {
		t.Fatalf("WriteResult() failed: %v", err)
	}

	seq, err = s.MaxSeq(ctx)
	if err != nil {
		t.Fatalf("MaxSeq() failed: %v", err)
	}
	if seq != 9 {
		t.Errorf("MaxSeq() = %d, want 9", seq)
	}
}
