package policy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DefaultVersion is the canonical table used when no version is requested.
const DefaultVersion = "v2"

// ErrUnknownVersion is returned when a requested policy version is not registered.
var ErrUnknownVersion = errors.New("unknown policy version")

// Registry holds the named policy tables available to a run.
// Tables are checked on registration and immutable afterwards.
type Registry struct {
	mu         sync.RWMutex
	tables     map[string]*Table
	defaultVer string
}

// NewRegistry creates an empty registry whose default is DefaultVersion.
func NewRegistry() *Registry {
	return &Registry{
		tables:     make(map[string]*Table),
		defaultVer: DefaultVersion,
	}
}

// Builtin returns a registry holding the tables embedded in the binary.
func Builtin() (*Registry, error) {
	c, err := NewCompiler()
	if err != nil {
		return nil, err
	}
	tables, err := c.CompileBuiltin()
	if err != nil {
		return nil, fmt.Errorf("builtin policies: %w", err)
	}
	r := NewRegistry()
	if err := r.Register(tables...); err != nil {
		return nil, fmt.Errorf("builtin policies: %w", err)
	}
	return r, nil
}

// Register adds tables to the registry. A table that fails Check, or whose
// version is already registered, is rejected and nothing is added.
func (r *Registry) Register(tables ...*Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if errs := t.Check(); len(errs) > 0 {
			return errs
		}
		if _, ok := r.tables[t.Version]; ok || seen[t.Version] {
			return fmt.Errorf("policy %s is already registered", t.Version)
		}
		seen[t.Version] = true
	}
	for _, t := range tables {
		r.tables[t.Version] = t
	}
	return nil
}

// Get returns the table for version; "" selects the default.
func (r *Registry) Get(version string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if version == "" {
		version = r.defaultVer
	}
	t, ok := r.tables[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownVersion, version, r.versionsLocked())
	}
	return t, nil
}

// Default returns the default table.
func (r *Registry) Default() (*Table, error) {
	return r.Get("")
}

// SetDefault changes which version Get("") returns.
func (r *Registry) SetDefault(version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[version]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
	r.defaultVer = version
	return nil
}

// DefaultVersion returns the version Get("") resolves to.
func (r *Registry) DefaultVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultVer
}

// Versions returns every registered version, sorted.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versionsLocked()
}

func (r *Registry) versionsLocked() []string {
	out := make([]string, 0, len(r.tables))
	for v := range r.tables {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
