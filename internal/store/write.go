package store

import (
	"context"
	"fmt"

	"github.com/roach88/mondai/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, command, policy_version, policy_hash, dry_run, tool_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Command,
		run.PolicyVersion,
		run.PolicyHash,
		run.DryRun,
		run.ToolVersion,
		run.Seq,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteResult inserts one record's outcome for a run.
// The run must exist (foreign key constraint). A second result for the same
// (run, path) is silently ignored.
func (s *Store) WriteResult(ctx context.Context, res ir.RunResult) error {
	diffs := string(res.Diffs)
	if diffs == "" {
		diffs = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results
		(run_id, seq, path, record_id, level, outcome, before_hash, after_hash, diffs, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO NOTHING
	`,
		res.RunID,
		res.Seq,
		res.Path,
		res.RecordID,
		int(res.Level),
		string(res.Outcome),
		res.BeforeHash,
		res.AfterHash,
		diffs,
		res.Error,
	)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
