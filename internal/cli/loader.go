package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/policy"
)

// LoadError represents an error that occurred while loading policy tables
// or dataset files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
// Record problems use the E2xx kind codes and policy table problems the
// E3xx check codes.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No record or policy files found
	ErrCodeLoadFailed    = "E004" // Policy compile or parse failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodePolicyInvalid = "E006" // Policy table failed its checks
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeUnknownPolicy = "E008" // Requested policy version not registered
	ErrCodeLedger        = "E009" // Run ledger unavailable
	ErrCodeArgs          = "E010" // Bad argument value
	ErrCodeFailed        = "E011" // Some records or scenarios failed
)

// LoadRegistry builds the policy registry: the built-in tables, then any
// CUE tables from --policy-dir, then any YAML tables from --policy-file.
// A --policy version becomes the registry default.
func LoadRegistry(opts *RootOptions) (*policy.Registry, error) {
	reg, err := policy.Builtin()
	if err != nil {
		return nil, convertPolicyError(err)
	}

	if opts.PolicyDir != "" {
		if _, err := os.Stat(opts.PolicyDir); err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("policy directory not found: %s", opts.PolicyDir)}
		}
		c, err := policy.NewCompiler()
		if err != nil {
			return nil, convertPolicyError(err)
		}
		tables, err := c.CompileDir(opts.PolicyDir)
		if err != nil {
			return nil, convertPolicyError(err)
		}
		if err := reg.Register(tables...); err != nil {
			return nil, convertPolicyError(err)
		}
	}

	if opts.PolicyFile != "" {
		if _, err := os.Stat(opts.PolicyFile); err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("policy file not found: %s", opts.PolicyFile)}
		}
		tables, err := policy.LoadYAMLFile(opts.PolicyFile)
		if err != nil {
			return nil, convertPolicyError(err)
		}
		if err := reg.Register(tables...); err != nil {
			return nil, convertPolicyError(err)
		}
	}

	if opts.Policy != "" {
		if err := reg.SetDefault(opts.Policy); err != nil {
			return nil, convertPolicyError(err)
		}
	}
	return reg, nil
}

// LoadTable builds the registry and selects --policy from it.
func LoadTable(opts *RootOptions) (*policy.Table, *policy.Registry, error) {
	reg, err := LoadRegistry(opts)
	if err != nil {
		return nil, nil, err
	}
	table, err := reg.Default()
	if err != nil {
		return nil, nil, convertPolicyError(err)
	}
	return table, reg, nil
}

// convertPolicyError maps policy package errors to a LoadError with position info.
func convertPolicyError(err error) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *policy.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var checkErrs policy.CheckErrors
	if errors.As(err, &checkErrs) {
		return &LoadError{Code: ErrCodePolicyInvalid, Message: checkErrs.Error()}
	}
	if errors.Is(err, policy.ErrUnknownVersion) {
		return &LoadError{Code: ErrCodeUnknownPolicy, Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// collectAll resolves every command argument to dataset entries.
func collectAll(paths []string) ([]dataset.Entry, error) {
	var entries []dataset.Entry
	for _, p := range paths {
		found, err := collectEntries(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	return uniqueEntries(entries), nil
}

// uniqueEntries drops entries whose file was already listed, keeping the
// first position. Overlapping arguments reach the same file more than once.
func uniqueEntries(entries []dataset.Entry) []dataset.Entry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		key, err := filepath.Abs(e.Path)
		if err != nil {
			key = filepath.Clean(e.Path)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// collectEntries resolves a command argument to dataset entries: a single
// record file, or every record below a dataset directory.
func collectEntries(path string) ([]dataset.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if !info.IsDir() {
		return []dataset.Entry{dataset.EntryFor(path)}, nil
	}
	entries, err := dataset.Discover(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning dataset: %v", err)}
	}
	if len(entries) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no record files found in %s", path)}
	}
	return entries, nil
}
