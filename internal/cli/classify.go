package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/ir"
)

// Classification is the category of one mondai number.
type Classification struct {
	Mondai int         `json:"mondai"`
	Part   ir.Category `json:"part,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ClassifyResult lists the classifications for one level.
type ClassifyResult struct {
	Policy string           `json:"policy"`
	Level  ir.Level         `json:"level"`
	Items  []Classification `json:"items"`
}

func (r ClassifyResult) String() string {
	var b strings.Builder
	for i, c := range r.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		if c.Error != "" {
			fmt.Fprintf(&b, "%s mondai %d: unclassified", r.Level, c.Mondai)
			continue
		}
		fmt.Fprintf(&b, "%s mondai %d: %s", r.Level, c.Mondai, c.Part)
	}
	return b.String()
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <level> <mondai>...",
		Short: "Print the category of mondai numbers",
		Long: `Print the category each mondai number maps to at a level.

Examples:
  mondai classify N3 1 6 9 13 14
  mondai classify 3 18 --policy v1`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(rootOpts, cmd, args[0], args[1:])
		},
	}
	return cmd
}

func runClassify(opts *RootOptions, cmd *cobra.Command, levelArg string, numbers []string) error {
	formatter := opts.formatter(cmd)

	level, err := ir.ParseLevel(levelArg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeArgs, err)
	}
	table, _, err := LoadTable(opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
	}
	if !table.HasLevel(level) {
		return formatter.fail(ExitCommandError, ir.KindUnknownLevel.Code(),
			fmt.Errorf("%s is not registered in policy %s", level, table.Version))
	}

	result := ClassifyResult{Policy: table.Version, Level: level}
	unclassified := 0
	for _, arg := range numbers {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return formatter.fail(ExitCommandError, ErrCodeArgs, fmt.Errorf("invalid mondai number %q", arg))
		}
		item := Classification{Mondai: n}
		part, err := table.Classify(level, n)
		switch {
		case errors.Is(err, ir.ErrUnclassifiedSection):
			item.Error = err.Error()
			unclassified++
		case err != nil:
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
		default:
			item.Part = part
		}
		result.Items = append(result.Items, item)
	}

	if unclassified > 0 {
		msg := fmt.Sprintf("%d number(s) unclassified", unclassified)
		if err := formatter.Failure(ir.KindUnclassifiedSection.Code(), msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}
