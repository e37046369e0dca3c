package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/roach88/mondai/internal/ir"
)

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1", 1)
	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	run.Command = "renumber"
	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("second WriteRun() failed: %v", err)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if got.Command != "reconcile" {
		t.Errorf("duplicate write replaced the run: command = %q", got.Command)
	}
}

func TestWriteResult_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteResult(context.Background(), createTestResult("missing", "a.json", 1, ir.OutcomeUpdated))
	if err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}

func TestWriteResult_RejectsUnknownOutcome(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.WriteRun(ctx, createTestRun("run-1", 1)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	if err := s.WriteResult(ctx, createTestResult("run-1", "a.json", 1, "exploded")); err == nil {
		t.Error("expected CHECK constraint error")
	}
}

func TestWriteResult_StoresDiffs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.WriteRun(ctx, createTestRun("run-1", 1)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	res := createTestResult("run-1", "a.json", 2, ir.OutcomeUpdated)
	res.Diffs = json.RawMessage(`[{"kind":"StatisticsMismatch","field":"statistics.reading"}]`)
	res.BeforeHash = "before"
	res.AfterHash = "after"
	if err := s.WriteResult(ctx, res); err != nil {
		t.Fatalf("WriteResult() failed: %v", err)
	}
	if err := s.WriteResult(ctx, createTestResult("run-1", "b.json", 3, ir.OutcomeUnchanged)); err != nil {
		t.Fatalf("WriteResult() failed: %v", err)
	}

	results, err := s.RunResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunResults() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if string(results[0].Diffs) != string(res.Diffs) {
		t.Errorf("diffs = %s, want %s", results[0].Diffs, res.Diffs)
	}
	if results[0].AfterHash != "after" || results[0].Level != ir.LevelN3 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if string(results[1].Diffs) != "[]" {
		t.Errorf("empty diffs stored as %q, want []", results[1].Diffs)
	}
}
