// Package pipeline runs reconciliation over dataset files: load, reconcile
// the selected derived fields, write back only what changed, and record
// each outcome in the run ledger.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
)

// Ledger records runs and per-record results. *store.Store implements it.
type Ledger interface {
	WriteRun(ctx context.Context, run ir.Run) error
	WriteResult(ctx context.Context, res ir.RunResult) error
}

// Pipeline processes dataset entries under one policy table.
// The table is read-only for the whole run.
type Pipeline struct {
	table   *policy.Table
	fields  reconcile.Field
	command string
	workers int
	dryRun  bool
	logger  *slog.Logger
	ledger  Ledger
	clock   Sequencer
	newID   func() string
	locks   keyedMutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFields selects the derived fields to recompute.
func WithFields(f reconcile.Field) Option {
	return func(p *Pipeline) { p.fields = f }
}

// WithCommand names the run in the ledger ("reconcile", "renumber", ...).
func WithCommand(name string) Option {
	return func(p *Pipeline) { p.command = name }
}

// WithWorkers sets how many records are processed in parallel.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithDryRun reports what would change without writing any file.
func WithDryRun(dry bool) Option {
	return func(p *Pipeline) { p.dryRun = dry }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithLedger records the run and its results.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithClock sets the sequence source for ledger rows.
func WithClock(c Sequencer) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithRunID fixes the run ID, for deterministic tests.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.newID = func() string { return id } }
}

// New creates a pipeline for table.
func New(table *policy.Table, opts ...Option) *Pipeline {
	p := &Pipeline{
		table:   table,
		fields:  reconcile.DefaultFields,
		command: "reconcile",
		logger:  slog.Default(),
		clock:   &Clock{},
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.NumCPU()
	}
	return p
}

// Result is the outcome for one entry.
type Result struct {
	Entry      dataset.Entry    `json:"entry"`
	RecordID   string           `json:"record_id,omitempty"`
	Outcome    ir.Outcome       `json:"outcome"`
	Diffs      []reconcile.Diff `json:"diffs,omitempty"`
	BeforeHash string           `json:"before_hash,omitempty"`
	AfterHash  string           `json:"after_hash,omitempty"`
	Err        error            `json:"-"`
	Error      string           `json:"error,omitempty"`
}

// Run processes entries and returns the summary. Records are processed in
// parallel; writes to the same path are serialised. A record that fails is
// counted and the run moves on. When ctx is cancelled no further records
// are started and the context error is returned with the partial summary.
func (p *Pipeline) Run(ctx context.Context, entries []dataset.Entry) (*Summary, error) {
	hash, err := p.table.Hash()
	if err != nil {
		return nil, err
	}
	run := ir.Run{
		ID:            p.newID(),
		Command:       p.command,
		PolicyVersion: p.table.Version,
		PolicyHash:    hash,
		DryRun:        p.dryRun,
		ToolVersion:   ir.ToolVersion,
		Seq:           p.clock.Next(),
	}
	log := p.logger.With("run", run.ID)
	log.Info("run started",
		"command", run.Command,
		"policy", run.PolicyVersion,
		"fields", p.fields.String(),
		"records", len(entries),
		"dry_run", p.dryRun)

	// Ledger writes outlive cancellation: a record saved before the interrupt
	// still gets its row.
	ledgerCtx := context.WithoutCancel(ctx)
	if p.ledger != nil {
		if err := p.ledger.WriteRun(ledgerCtx, run); err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
	}

	results := make([]*Result, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		i, entry := i, entry
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := p.Process(entry)
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{RunID: run.ID, Command: run.Command, Policy: run.PolicyVersion, DryRun: p.dryRun}
	for _, res := range results {
		if res == nil {
			continue
		}
		summary.add(*res)
		if p.ledger != nil {
			if err := p.ledger.WriteResult(ledgerCtx, p.ledgerRow(run.ID, *res)); err != nil {
				return summary, fmt.Errorf("ledger: %w", err)
			}
		}
	}

	log.Info("run finished",
		"processed", summary.Total(),
		"updated", summary.Updated(),
		"failed", summary.Failed(),
		"skipped", len(entries)-summary.Total())

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Process loads, reconciles and, when needed, saves one entry. It never
// returns an error; failures are reported in the Result.
func (p *Pipeline) Process(entry dataset.Entry) Result {
	unlock := p.locks.Lock(entry.Path)
	defer unlock()

	res := Result{Entry: entry}
	log := p.logger.With("path", entry.Path)
	fail := func(err error) Result {
		res.Outcome = ir.OutcomeFailed
		res.Err = err
		res.Error = err.Error()
		log.Warn("record failed", "error", err, "kind", string(ir.KindOf(err)))
		return res
	}

	rec, err := dataset.Load(entry.Path)
	if err != nil {
		return fail(err)
	}
	res.RecordID = rec.ID
	log = log.With("record", rec.ID, "level", rec.Level.String())

	if entry.Level != 0 && rec.Level != 0 && entry.Level != rec.Level {
		log.Warn("record level differs from its directory", "directory", entry.Level.String())
	}

	if res.BeforeHash, err = ir.Fingerprint(rec); err != nil {
		return fail(err)
	}

	out, err := reconcile.Reconcile(rec, p.table, reconcile.WithFields(p.fields))
	if err != nil {
		return fail(err)
	}
	res.Diffs = out.Diffs
	if res.AfterHash, err = ir.Fingerprint(out.Record); err != nil {
		return fail(err)
	}

	for _, d := range out.Diffs {
		log.Debug("diff", "code", d.Code, "field", d.Field, "stored", d.Stored, "computed", d.Computed, "applied", d.Applied)
	}

	switch {
	case !out.Changed:
		res.Outcome = ir.OutcomeUnchanged
	case p.dryRun:
		res.Outcome = ir.OutcomeWouldUpdate
	default:
		if err := dataset.Save(entry.Path, out.Record); err != nil {
			return fail(err)
		}
		res.Outcome = ir.OutcomeUpdated
	}
	log.Info("record processed", "outcome", string(res.Outcome), "diffs", len(out.Diffs))
	return res
}

func (p *Pipeline) ledgerRow(runID string, res Result) ir.RunResult {
	row := ir.RunResult{
		RunID:      runID,
		Seq:        p.clock.Next(),
		Path:       res.Entry.Path,
		RecordID:   res.RecordID,
		Level:      res.Entry.Level,
		Outcome:    res.Outcome,
		BeforeHash: res.BeforeHash,
		AfterHash:  res.AfterHash,
		Error:      res.Error,
	}
	if len(res.Diffs) > 0 {
		if data, err := json.Marshal(res.Diffs); err == nil {
			row.Diffs = data
		}
	}
	return row
}
