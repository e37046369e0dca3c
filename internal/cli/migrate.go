package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/reconcile"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	ReconcileOptions
	From  string
	To    string
	Apply bool
}

// MigrationReport lists the category moves between two policy versions.
type MigrationReport struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Migrations []*reconcile.Migration `json:"migrations"`
	Failures   []FileFailure          `json:"failures,omitempty"`
	Applied    *runOutput             `json:"applied,omitempty"`
}

// FileFailure is a record that could not be loaded or compared.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (r MigrationReport) String() string {
	var b strings.Builder
	moved := 0
	for _, m := range r.Migrations {
		if len(m.Moves) == 0 {
			continue
		}
		moved++
		fmt.Fprintln(&b, m.String())
		for _, mv := range m.Moves {
			fmt.Fprintf(&b, "    mondai %d: %s -> %s\n", mv.Mondai, displayCategory(string(mv.From)), displayCategory(string(mv.To)))
		}
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "✗ %s: %s\n", f.Path, f.Error)
	}
	fmt.Fprintf(&b, "%d of %d record(s) move from %s to %s", moved, len(r.Migrations), r.From, r.To)
	if r.Applied != nil {
		fmt.Fprintf(&b, "\n\n%s", r.Applied.String())
	}
	return b.String()
}

func displayCategory(c string) string {
	if c == "" {
		return "(unclassified)"
	}
	return c
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{ReconcileOptions: ReconcileOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "migrate <record-or-dataset>...",
		Short: "Show or apply category moves between policy versions",
		Long: `Compare how two policy versions classify each record's sections.

Without --apply nothing is written. With --apply every record is
reconciled under the --to table, so parts and statistics follow the new
mapping.

Examples:
  mondai migrate ./exams --from v1 --to v2
  mondai migrate ./exams --from v1 --to v2 --apply --db ./ledger.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "v1", "policy version records were written under")
	cmd.Flags().StringVar(&opts.To, "to", "", "target policy version (default: --policy, else v2)")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "reconcile every record under the target table")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "records processed in parallel when applying (0 = one per CPU)")

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command, paths []string) error {
	formatter := opts.formatter(cmd)

	reg, err := LoadRegistry(opts.RootOptions)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
	}
	from, err := reg.Get(opts.From)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUnknownPolicy, convertPolicyError(err))
	}
	to, err := reg.Get(opts.To)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUnknownPolicy, convertPolicyError(err))
	}

	entries, err := collectAll(paths)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err)
	}

	report := MigrationReport{From: from.Version, To: to.Version}
	for _, e := range entries {
		rec, err := dataset.Load(e.Path)
		if err == nil {
			var m *reconcile.Migration
			if m, err = reconcile.Migrate(rec, from, to); err == nil {
				report.Migrations = append(report.Migrations, m)
				continue
			}
		}
		report.Failures = append(report.Failures, FileFailure{Path: e.Path, Error: err.Error()})
	}

	if !opts.Apply {
		if len(report.Failures) > 0 {
			msg := fmt.Sprintf("%d record(s) could not be compared", len(report.Failures))
			if err := formatter.Failure(ErrCodeFailed, msg, report); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(report)
	}

	formatter.VerboseLog("Applying policy %s to %d record(s)", to.Version, len(entries))
	ropts := &ReconcileOptions{RootOptions: opts.RootOptions, Workers: opts.Workers}
	summary, runErr := execPipeline(cmd, ropts, entries, "migrate", reconcile.DefaultFields, to)
	if summary == nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, runErr)
	}
	report.Applied = &runOutput{summary}
	if summary.Failed() > 0 || len(report.Failures) > 0 || runErr != nil {
		msg := fmt.Sprintf("%d record(s) failed", summary.Failed())
		if err := formatter.Failure(ErrCodeFailed, msg, report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(report)
}
