package policy

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mondai/internal/ir"
)

//go:embed tables/*.cue
var builtinFS embed.FS

const schemaFile = "tables/schema.cue"

// CompileError is a policy compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compiler turns CUE policy sources into Tables. Every source is unified
// with the embedded schema before its tables are extracted.
type Compiler struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewCompiler creates a compiler with the embedded schema loaded.
func NewCompiler() (*Compiler, error) {
	src, err := builtinFS.ReadFile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read policy schema: %w", err)
	}
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(src, cue.Filename(schemaFile))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return &Compiler{ctx: ctx, schema: schema}, nil
}

// CompileSource compiles one CUE source (a file's bytes) into its tables.
func (c *Compiler) CompileSource(filename string, src []byte) ([]*Table, error) {
	v := c.ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileTables(c.schema.Unify(v))
}

// CompileFile reads and compiles a CUE file from disk.
func (c *Compiler) CompileFile(path string) ([]*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return c.CompileSource(path, src)
}

// CompileDir compiles every .cue file below dir.
func (c *Compiler) CompileDir(dir string) ([]*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("policy directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy directory: not a directory: %s", dir)
	}
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan policy directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}
	var tables []*Table
	for _, f := range files {
		ts, err := c.CompileFile(f)
		if err != nil {
			return nil, err
		}
		tables = append(tables, ts...)
	}
	return tables, nil
}

// CompileBuiltin compiles the tables embedded in the binary.
func (c *Compiler) CompileBuiltin() ([]*Table, error) {
	entries, err := builtinFS.ReadDir("tables")
	if err != nil {
		return nil, fmt.Errorf("read builtin policies: %w", err)
	}
	var tables []*Table
	for _, e := range entries {
		name := "tables/" + e.Name()
		if name == schemaFile {
			continue
		}
		src, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read builtin policy %s: %w", name, err)
		}
		ts, err := c.CompileSource(name, src)
		if err != nil {
			return nil, err
		}
		tables = append(tables, ts...)
	}
	return tables, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// CompileTables extracts every table under the top-level "policy" struct.
func CompileTables(v cue.Value) ([]*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	policies := v.LookupPath(cue.ParsePath("policy"))
	if !policies.Exists() {
		return nil, &CompileError{Field: "policy", Message: "no policy tables defined", Pos: v.Pos()}
	}
	iter, err := policies.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var tables []*Table
	for iter.Next() {
		t, err := CompileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, &CompileError{Field: "policy", Message: "no policy tables defined", Pos: v.Pos()}
	}
	return tables, nil
}

// CompileTable parses one policy struct, e.g. the value at `policy: v2`.
func CompileTable(version string, v cue.Value) (*Table, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	t := &Table{Version: version, Levels: make(map[ir.Level][]Range)}

	if dv := v.LookupPath(cue.ParsePath("description")); dv.Exists() && dv.IsConcrete() {
		desc, err := dv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t.Description = desc
	}

	if dv := v.LookupPath(cue.ParsePath("deprecated")); dv.Exists() {
		def, _ := dv.Default()
		deprecated, err := def.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t.Deprecated = deprecated
	}

	levelsVal := v.LookupPath(cue.ParsePath("levels"))
	if !levelsVal.Exists() {
		return nil, &CompileError{Field: "levels", Message: "levels is required", Pos: v.Pos()}
	}
	iter, err := levelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		level, err := ir.ParseLevel(iter.Label())
		if err != nil {
			return nil, &CompileError{Field: "levels", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		ranges, err := compileRanges(iter.Value())
		if err != nil {
			return nil, err
		}
		t.Levels[level] = ranges
	}
	return t, nil
}

func compileRanges(v cue.Value) ([]Range, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ranges []Range
	for list.Next() {
		elem := list.Value()

		part, err := elem.LookupPath(cue.ParsePath("part")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		lower, err := elem.LookupPath(cue.ParsePath("lower")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r := Range{Category: ir.Category(part), Lower: int(lower)}

		if uv := elem.LookupPath(cue.ParsePath("upper")); uv.Exists() && uv.IsConcrete() {
			upper, err := uv.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			r.Upper = int(upper)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
