package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/mondai/internal/ir"
)

// ListRuns returns every run, oldest first (ORDER BY seq ASC, id ASC).
// Returns an empty slice (not nil) when the ledger is empty.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, policy_version, policy_hash, dry_run, tool_version, seq
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, policy_version, policy_hash, dry_run, tool_version, seq
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// RunResults returns a run's results ordered by seq ASC, path ASC.
// Returns an empty slice (not nil) if the run has no results.
func (s *Store) RunResults(ctx context.Context, runID string) ([]ir.RunResult, error) {
	return s.queryResults(ctx, `
		SELECT run_id, seq, path, record_id, level, outcome, before_hash, after_hash, diffs, error
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC, path COLLATE BINARY ASC
	`, runID)
}

// RecordHistory returns every result for a record across runs, oldest first.
func (s *Store) RecordHistory(ctx context.Context, recordID string) ([]ir.RunResult, error) {
	return s.queryResults(ctx, `
		SELECT r.run_id, r.seq, r.path, r.record_id, r.level, r.outcome, r.before_hash, r.after_hash, r.diffs, r.error
		FROM results r
		JOIN runs ON runs.id = r.run_id
		WHERE r.record_id = ?
		ORDER BY runs.seq ASC, r.seq ASC, r.path COLLATE BINARY ASC
	`, recordID)
}

func (s *Store) queryResults(ctx context.Context, query string, arg any) ([]ir.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ir.RunResult{}
	for rows.Next() {
		var (
			res     ir.RunResult
			level   int
			outcome string
			diffs   string
		)
		if err := rows.Scan(&res.RunID, &res.Seq, &res.Path, &res.RecordID, &level, &outcome,
			&res.BeforeHash, &res.AfterHash, &diffs, &res.Error); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Level = ir.Level(level)
		res.Outcome = ir.Outcome(outcome)
		res.Diffs = json.RawMessage(diffs)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var run ir.Run
	err := row.Scan(&run.ID, &run.Command, &run.PolicyVersion, &run.PolicyHash,
		&run.DryRun, &run.ToolVersion, &run.Seq)
	if err == sql.ErrNoRows {
		return ir.Run{}, err
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// MaxSeq returns the highest seq recorded in the ledger, or 0 when it is
// empty. A new run continues numbering from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM runs), 0),
			COALESCE((SELECT MAX(seq) FROM results), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}
