package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/mondai/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string, seq int64) ir.Run {
	return ir.Run{
		ID:            id,
		Command:       "reconcile",
		PolicyVersion: "v2",
		PolicyHash:    "test-hash",
		ToolVersion:   "0.3.0",
		Seq:           seq,
	}
}

// createTestResult creates a result with minimal required fields.
func createTestResult(runID, path string, seq int64, outcome ir.Outcome) ir.RunResult {
	return ir.RunResult{
		RunID:    runID,
		Seq:      seq,
		Path:     path,
		RecordID: "rec-" + path,
		Level:    ir.LevelN3,
		Outcome:  outcome,
	}
}
