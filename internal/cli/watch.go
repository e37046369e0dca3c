package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
	"github.com/roach88/mondai/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	ReconcileOptions
	Fix      bool
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{ReconcileOptions: ReconcileOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch <dataset>...",
		Short: "Re-check records as they change on disk",
		Long: `Validate every record once, then again whenever a record file below the
dataset is created or written. With --fix changed records are reconciled
instead and written back when needed; the write is seen as a change and
checked again, which is a no-op.

Stops on SIGINT or SIGTERM.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "reconcile changed records instead of only validating them")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet period before changed files are checked")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command, roots []string) error {
	formatter := opts.formatter(cmd)
	log := opts.logger()

	table, _, err := LoadTable(opts.RootOptions)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
	}

	var entries []dataset.Entry
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("dataset directory not found: %s", root))
		}
		found, err := dataset.Discover(root)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeScanError, err)
		}
		entries = append(entries, found...)
	}
	entries = uniqueEntries(entries)

	check := func(ctx context.Context, entries []dataset.Entry) {
		if err := checkEntries(ctx, opts, cmd, formatter, entries, table); err != nil {
			log.Error("check failed", "error", err)
		}
	}

	w, err := watch.New(roots, func(ctx context.Context, changes []watch.Change) {
		var changed []dataset.Entry
		for _, c := range changes {
			if c.Removed {
				formatter.Text("- %s removed\n", c.Path)
				continue
			}
			changed = append(changed, dataset.EntryFor(c.Path))
		}
		if len(changed) > 0 {
			check(ctx, changed)
		}
	}, watch.Options{Debounce: opts.Debounce, Logger: log})
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScanError, err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	if len(entries) > 0 {
		check(ctx, entries)
	}
	formatter.VerboseLog("Watching %v under policy %s", roots, table.Version)
	return w.Run(ctx)
}

// checkEntries validates, or with --fix reconciles, entries and prints the
// outcome. Invalid records are reported, not returned as errors.
func checkEntries(ctx context.Context, opts *WatchOptions, cmd *cobra.Command, formatter *OutputFormatter, entries []dataset.Entry, table *policy.Table) error {
	if ctx.Err() != nil {
		return nil
	}
	if !opts.Fix {
		result, err := validateEntries(entries, table)
		if err != nil {
			return err
		}
		return formatter.Success(result)
	}
	summary, err := execPipeline(cmd, &opts.ReconcileOptions, entries, "watch", reconcile.DefaultFields, table)
	if summary == nil {
		return err
	}
	return formatter.Success(runOutput{summary})
}
