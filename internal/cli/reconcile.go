package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/pipeline"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
	"github.com/roach88/mondai/internal/store"
)

// ReconcileOptions holds flags for the reconcile and renumber commands.
type ReconcileOptions struct {
	*RootOptions
	Fields  string
	DryRun  bool
	Workers int
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <record-or-dataset>...",
		Short: "Recompute derived fields and write back changed records",
		Long: `Recompute the derived fields of each record and write it back only when
something changed.

Fields:
  parts       - reclassify every section from its mondai number
  statistics  - recount questions per category from the sections
  numbering   - renumber sections 1..n in stored order (see renumber)

Duplicate mondai numbers are reported, never merged.

Examples:
  mondai reconcile ./exams
  mondai reconcile ./exams --fields statistics --dry-run
  mondai reconcile ./exams --db ./ledger.db --workers 8`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := reconcile.ParseFields(opts.Fields)
			if err != nil {
				return rootOpts.formatter(cmd).fail(ExitCommandError, ErrCodeArgs, err)
			}
			return runPipeline(opts, cmd, args, "reconcile", fields, nil)
		},
	}

	cmd.Flags().StringVar(&opts.Fields, "fields", reconcile.DefaultFields.String(), "derived fields to recompute")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report changes without writing")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "records processed in parallel (0 = one per CPU)")

	return cmd
}

// NewRenumberCommand creates the renumber command.
func NewRenumberCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "renumber <record-or-dataset>...",
		Short: "Renumber sections 1..n, then reclassify and recount",
		Long: `Renumber every record's sections sequentially from 1 in stored order,
then reclassify parts and recompute statistics.

This is the explicit fix for duplicate or gapped numbering; reconcile
never renumbers on its own.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := reconcile.FieldNumbering | reconcile.FieldParts | reconcile.FieldStatistics
			return runPipeline(opts, cmd, args, "renumber", fields, nil)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report changes without writing")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "records processed in parallel (0 = one per CPU)")

	return cmd
}

// runPipeline resolves the entries and the table, runs the pipeline and
// prints its summary. A nil table selects --policy.
func runPipeline(opts *ReconcileOptions, cmd *cobra.Command, paths []string, command string, fields reconcile.Field, table *policy.Table) error {
	formatter := opts.formatter(cmd)

	if table == nil {
		var err error
		if table, _, err = LoadTable(opts.RootOptions); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
		}
	}

	entries, err := collectAll(paths)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err)
	}

	summary, err := execPipeline(cmd, opts, entries, command, fields, table)
	if summary == nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, err)
	}

	out := runOutput{summary}
	if failed := summary.Failed(); failed > 0 || err != nil {
		msg := fmt.Sprintf("%d record(s) failed", failed)
		if err != nil {
			msg = fmt.Sprintf("run interrupted: %v", err)
		}
		if ferr := formatter.Failure(ErrCodeFailed, msg, out); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(out)
}

// execPipeline runs entries through a pipeline under table, recording the
// run in the ledger when --db is set. A nil summary means the run never
// started; a non-nil one with an error means it was cut short.
func execPipeline(cmd *cobra.Command, opts *ReconcileOptions, entries []dataset.Entry, command string, fields reconcile.Field, table *policy.Table) (*pipeline.Summary, error) {
	log := opts.logger()

	ctx, stop := signalContext(cmd)
	defer stop()

	pipeOpts := []pipeline.Option{
		pipeline.WithCommand(command),
		pipeline.WithFields(fields),
		pipeline.WithDryRun(opts.DryRun),
		pipeline.WithWorkers(opts.Workers),
		pipeline.WithLogger(log),
	}
	if opts.DB != "" {
		st, err := store.Open(opts.DB)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLedger, Message: fmt.Sprintf("open ledger: %v", err)}
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("error closing ledger", "error", closeErr)
			}
		}()
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLedger, Message: err.Error()}
		}
		pipeOpts = append(pipeOpts, pipeline.WithLedger(st), pipeline.WithClock(pipeline.NewClockAt(seq)))
	}

	summary, err := pipeline.New(table, pipeOpts...).Run(ctx, entries)
	if err != nil && summary != nil {
		log.Warn("run interrupted", "error", err)
	}
	return summary, err
}

// signalContext returns the command's context, cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runOutput renders a pipeline summary as text and passes it through as JSON.
type runOutput struct {
	*pipeline.Summary
}

func (o runOutput) String() string {
	s := o.Summary
	var b strings.Builder
	for _, r := range s.Results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(&b, "✗ %s: %s\n", r.Entry.Path, r.Error)
		case len(r.Diffs) > 0:
			fmt.Fprintf(&b, "%s %s (%s)\n", outcomeMark(r), r.Entry.Path, r.Outcome)
			for _, d := range r.Diffs {
				fmt.Fprintf(&b, "    %s\n", d.String())
			}
		}
	}
	verb := "updated"
	if s.DryRun {
		verb = "would update"
	}
	fmt.Fprintf(&b, "\n%-6s %6s %8s %10s %7s\n", "Level", "Total", "Changed", "Unchanged", "Failed")
	for _, l := range s.Levels {
		fmt.Fprintf(&b, "%-6s %6d %8d %10d %7d\n", l.Level, l.Total, l.Updated+l.WouldUpdate, l.Unchanged, l.Failed)
	}
	fmt.Fprintf(&b, "\n%s: %d record(s), %d %s, %d failed (policy %s, run %s)",
		s.Command, s.Total(), s.Updated(), verb, s.Failed(), s.Policy, s.RunID)
	return b.String()
}

func outcomeMark(r pipeline.Result) string {
	if r.Outcome == ir.OutcomeUnchanged {
		return "·"
	}
	return "✎"
}
