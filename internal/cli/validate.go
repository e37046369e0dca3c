package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/validate"
)

// FileReport is the validation report of one file.
type FileReport struct {
	Path string `json:"path"`
	*validate.Report
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Policy  string       `json:"policy"`
	Valid   int          `json:"valid"`
	Invalid int          `json:"invalid"`
	Reports []FileReport `json:"reports"`
}

// String renders the result as text: one summary line per record, the
// issues of invalid records indented below it.
func (r ValidationResult) String() string {
	var b strings.Builder
	for _, fr := range r.Reports {
		mark := "✓"
		if !fr.Valid {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", mark, fr.Path, fr.Summary())
		for _, issue := range fr.Issues {
			fmt.Fprintf(&b, "    %s\n", issue.Error())
		}
	}
	fmt.Fprintf(&b, "\n%d valid, %d invalid (policy %s)", r.Valid, r.Invalid, r.Policy)
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <record-or-dataset>...",
		Short: "Check records without modifying them",
		Long: `Check exam records against the policy table without modifying them.

Every problem is reported, in a fixed order: required fields, level,
sections, duplicate numbers, categories, statistics.

Exit codes:
  0 - All records valid
  1 - One or more records invalid
  2 - Command error (invalid paths, bad policy, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	table, _, err := LoadTable(opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
	}

	entries, err := collectAll(paths)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err)
	}
	formatter.VerboseLog("Validating %d record(s) against policy %s", len(entries), table.Version)

	result, err := validateEntries(entries, table)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}

	if result.Invalid > 0 {
		if err := formatter.Failure(ErrCodeFailed, fmt.Sprintf("%d record(s) invalid", result.Invalid), result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) invalid", result.Invalid))
	}
	return formatter.Success(result)
}

func validateEntries(entries []dataset.Entry, table *policy.Table) (ValidationResult, error) {
	result := ValidationResult{Policy: table.Version, Reports: make([]FileReport, 0, len(entries))}
	for _, e := range entries {
		report, err := validateFile(e.Path, table)
		if err != nil {
			return result, err
		}
		if report.Valid {
			result.Valid++
		} else {
			result.Invalid++
		}
		result.Reports = append(result.Reports, FileReport{Path: e.Path, Report: report})
	}
	return result, nil
}

func validateFile(path string, table *policy.Table) (*validate.Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read record: %v", err)}
	}
	return validate.ValidateDocument(raw, table)
}
