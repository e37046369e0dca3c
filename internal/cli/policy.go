package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mondai/internal/policy"
)

// PolicyInfo describes one registered table.
type PolicyInfo struct {
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	Deprecated  bool                `json:"deprecated"`
	Default     bool                `json:"default"`
	Hash        string              `json:"hash"`
	Levels      map[string][]string `json:"levels,omitempty"`
}

// PolicyList is the output of policy list.
type PolicyList struct {
	Policies []PolicyInfo `json:"policies"`
}

func (l PolicyList) String() string {
	var b strings.Builder
	for i, p := range l.Policies {
		if i > 0 {
			b.WriteByte('\n')
		}
		var flags []string
		if p.Default {
			flags = append(flags, "default")
		}
		if p.Deprecated {
			flags = append(flags, "deprecated")
		}
		fmt.Fprintf(&b, "%-4s %s", p.Version, p.Description)
		if len(flags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(flags, ", "))
		}
	}
	return b.String()
}

// String renders the table one level per block.
func (p PolicyInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "policy %s", p.Version)
	if p.Deprecated {
		b.WriteString(" (deprecated)")
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s", p.Description)
	}
	fmt.Fprintf(&b, "\nhash %s", p.Hash)
	for _, level := range []string{"N1", "N2", "N3", "N4", "N5"} {
		ranges, ok := p.Levels[level]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s", level)
		for _, r := range ranges {
			fmt.Fprintf(&b, "\n  %s", r)
		}
	}
	return b.String()
}

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and check policy tables",
		Long: `Inspect the registered policy tables.

Built-in tables are always registered. --policy-dir adds CUE tables and
--policy-file adds YAML tables; both are checked before use.`,
	}
	cmd.AddCommand(newPolicyListCommand(rootOpts))
	cmd.AddCommand(newPolicyShowCommand(rootOpts))
	cmd.AddCommand(newPolicyCheckCommand(rootOpts))
	return cmd
}

func newPolicyListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List registered policy versions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			reg, err := LoadRegistry(opts)
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
			}
			var list PolicyList
			for _, v := range reg.Versions() {
				t, err := reg.Get(v)
				if err != nil {
					return formatter.fail(ExitCommandError, ErrCodeUnknownPolicy, err)
				}
				info, err := describePolicy(t, reg.DefaultVersion(), false)
				if err != nil {
					return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
				}
				list.Policies = append(list.Policies, info)
			}
			return formatter.Success(list)
		},
	}
}

func newPolicyShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [version]",
		Short: "Print the ranges of a policy table",
		Long: `Print every level's ranges for one policy version.
Without an argument the --policy table (or the default) is shown.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			reg, err := LoadRegistry(opts)
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err)
			}
			version := opts.Policy
			if len(args) == 1 {
				version = args[0]
			}
			t, err := reg.Get(version)
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeUnknownPolicy, convertPolicyError(err))
			}
			info, err := describePolicy(t, reg.DefaultVersion(), true)
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
			}
			return formatter.Success(info)
		},
	}
}

func newPolicyCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.cue|file.yaml|dir>",
		Short: "Check policy sources without registering them",
		Long: `Compile or parse policy sources and run the table checks on them:
ranges start at 1, are contiguous and disjoint, and end unbounded
(deprecated tables may end bounded).

Exit codes:
  0 - All tables well formed
  1 - One or more tables failed their checks
  2 - Source could not be read or compiled`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyCheck(opts, cmd, args[0])
		},
	}
}

// PolicyCheckResult is the output of policy check.
type PolicyCheckResult struct {
	Path   string              `json:"path"`
	Tables []string            `json:"tables"`
	Errors []policy.CheckError `json:"errors,omitempty"`
}

func (r PolicyCheckResult) String() string {
	var b strings.Builder
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "✗ %s\n", e.Error())
	}
	if len(r.Errors) == 0 {
		fmt.Fprintf(&b, "✓ %s: %d table(s) well formed (%s)", r.Path, len(r.Tables), strings.Join(r.Tables, ", "))
	} else {
		fmt.Fprintf(&b, "%d problem(s) in %s", len(r.Errors), r.Path)
	}
	return b.String()
}

func runPolicyCheck(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := opts.formatter(cmd)

	tables, err := readPolicySource(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, convertPolicyError(err))
	}

	result := PolicyCheckResult{Path: path}
	for _, t := range tables {
		result.Tables = append(result.Tables, t.Version)
		result.Errors = append(result.Errors, t.Check()...)
	}
	formatter.VerboseLog("Checked %d table(s) from %s", len(tables), path)

	if len(result.Errors) > 0 {
		msg := fmt.Sprintf("%d policy problem(s)", len(result.Errors))
		if err := formatter.Failure(ErrCodePolicyInvalid, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// readPolicySource compiles a CUE file or directory, or parses a YAML file.
func readPolicySource(path string) ([]*policy.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if !info.IsDir() {
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			return policy.LoadYAMLFile(path)
		case ".cue":
		default:
			return nil, &LoadError{Code: ErrCodeArgs, Message: fmt.Sprintf("unsupported policy file %s (want .cue, .yaml or .yml)", path)}
		}
	}
	c, err := policy.NewCompiler()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return c.CompileDir(path)
	}
	return c.CompileFile(path)
}

func describePolicy(t *policy.Table, defaultVersion string, withRanges bool) (PolicyInfo, error) {
	hash, err := t.Hash()
	if err != nil {
		return PolicyInfo{}, err
	}
	info := PolicyInfo{
		Version:     t.Version,
		Description: t.Description,
		Deprecated:  t.Deprecated,
		Default:     t.Version == defaultVersion,
		Hash:        hash,
	}
	if withRanges {
		info.Levels = make(map[string][]string)
		for _, level := range t.SortedLevels() {
			ranges, _ := t.CategoryRanges(level)
			for _, r := range ranges {
				info.Levels[level.String()] = append(info.Levels[level.String()], r.String())
			}
		}
	}
	return info, nil
}
