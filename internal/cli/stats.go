package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/roach88/mondai/internal/census"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Out        string
	Lang       string
	Classified bool
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <dataset>...",
		Short: "Count exams and questions per level, part and source",
		Long: `Count the dataset: exams and questions per level, questions per part,
exams per source. Parts are counted as stored. With --classified each
section is counted under the part its mondai number has in the --policy
table; records that cannot be classified are listed as skipped.

Examples:
  mondai stats ./exams
  mondai stats ./exams --classified --policy v1
  mondai stats ./exams --out census.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "also write the census as JSON to this file")
	cmd.Flags().StringVar(&opts.Lang, "lang", "en", "language tag for number formatting in text output")
	cmd.Flags().BoolVar(&opts.Classified, "classified", false, "count parts as classified by the policy instead of as stored")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command, paths []string) error {
	formatter := opts.formatter(cmd)

	tag, err := language.Parse(opts.Lang)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeArgs, fmt.Errorf("invalid --lang: %w", err))
	}

	entries, err := collectAll(paths)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err)
	}

	var collectOpts []census.Option
	if opts.Classified {
		table, _, err := LoadTable(opts.RootOptions)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
		}
		collectOpts = append(collectOpts, census.WithPolicy(table))
	}

	c := census.Collect(entries, collectOpts...)
	formatter.VerboseLog("Counted %d exam(s), %d file(s) skipped", c.TotalExams, len(c.Failures))

	if opts.Out != "" {
		if err := writeCensus(opts.Out, c); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
		formatter.VerboseLog("Wrote %s", opts.Out)
	}

	if formatter.JSON() {
		return formatter.Success(c)
	}
	if err := c.WriteText(formatter.Writer, tag); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	return nil
}

func writeCensus(path string, c *census.Census) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
