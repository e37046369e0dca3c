package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Record string
}

// RunList is the output of history without arguments.
type RunList struct {
	Runs []ir.Run `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-36s %-10s %-7s %s", "SEQ", "RUN", "COMMAND", "POLICY", "MODE")
	for _, r := range l.Runs {
		mode := "write"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(&b, "\n%-5d %-36s %-10s %-7s %s", r.Seq, r.ID, r.Command, r.PolicyVersion, mode)
	}
	return b.String()
}

// ResultList is the output of history for one run or one record.
type ResultList struct {
	Run     *ir.Run        `json:"run,omitempty"`
	Record  string         `json:"record,omitempty"`
	Results []ir.RunResult `json:"results"`
}

func (l ResultList) String() string {
	var b strings.Builder
	switch {
	case l.Run != nil:
		fmt.Fprintf(&b, "run %s: %s under policy %s", l.Run.ID, l.Run.Command, l.Run.PolicyVersion)
	default:
		fmt.Fprintf(&b, "record %s", l.Record)
	}
	for _, r := range l.Results {
		fmt.Fprintf(&b, "\n%-5d %-13s %s", r.Seq, r.Outcome, r.Path)
		if r.Error != "" {
			fmt.Fprintf(&b, "\n      %s", r.Error)
		}
	}
	if len(l.Results) == 0 {
		b.WriteString("\nno results")
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs from the ledger",
		Long: `Show what previous reconcile, renumber and migrate runs did.

Without arguments every run is listed. With a run ID the run's per-record
outcomes are shown. With --record every outcome for one record ID is shown.
Requires --db (or ` + EnvDB + `).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Record, "record", "", "show every outcome for this record ID")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command, args []string) error {
	formatter := opts.formatter(cmd)

	if opts.DB == "" {
		return formatter.fail(ExitCommandError, ErrCodeLedger, fmt.Errorf("no ledger: set --db or %s", EnvDB))
	}
	if len(args) == 1 && opts.Record != "" {
		return formatter.fail(ExitCommandError, ErrCodeArgs, fmt.Errorf("give a run ID or --record, not both"))
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	switch {
	case opts.Record != "":
		results, err := st.RecordHistory(ctx, opts.Record)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLedger, err)
		}
		return formatter.Success(ResultList{Record: opts.Record, Results: results})

	case len(args) == 1:
		run, err := st.ReadRun(ctx, args[0])
		if errors.Is(err, sql.ErrNoRows) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("run %s not found", args[0]))
		}
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLedger, err)
		}
		results, err := st.RunResults(ctx, run.ID)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLedger, err)
		}
		return formatter.Success(ResultList{Run: &run, Results: results})

	default:
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLedger, err)
		}
		return formatter.Success(RunList{Runs: runs})
	}
}
