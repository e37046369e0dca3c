// Package dataset reads and writes exam records on disk.
//
// Layout: <root>/<N1..N5>/<source>/**/*.json, where source is usually
// "official" or "custom". Files are written back with two-space indent,
// literal UTF-8 and a trailing newline.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/validate"
)

// Known sources.
const (
	SourceOfficial = "official"
	SourceCustom   = "custom"
)

// Entry is one record file found by Discover.
type Entry struct {
	Path   string   `json:"path"`
	Level  ir.Level `json:"level"`
	Source string   `json:"source"`
}

// Discover lists every record file below root in level, source, path order.
// Directories directly under root that are not level names are skipped.
// If root holds an "exams" directory, that directory is used instead.
func Discover(root string) ([]Entry, error) {
	if info, err := os.Stat(filepath.Join(root, "exams")); err == nil && info.IsDir() {
		root = filepath.Join(root, "exams")
	}
	levelDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset root: %w", err)
	}

	var entries []Entry
	for _, ld := range levelDirs {
		if !ld.IsDir() || !strings.HasPrefix(strings.ToUpper(ld.Name()), "N") {
			continue
		}
		level, err := ir.ParseLevel(ld.Name())
		if err != nil || !level.Valid() {
			continue
		}
		found, err := discoverLevel(filepath.Join(root, ld.Name()), level)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Level != entries[j].Level {
			return entries[i].Level < entries[j].Level
		}
		if entries[i].Source != entries[j].Source {
			return entries[i].Source < entries[j].Source
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

func discoverLevel(dir string, level ir.Level) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsRecordFile(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			// Files directly under the level directory have no source.
			return nil
		}
		entries = append(entries, Entry{Path: path, Level: level, Source: parts[0]})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return entries, nil
}

// IsRecordFile reports whether path names a record: a .json file that is
// not hidden. Save's temporary files are hidden.
func IsRecordFile(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == ".json" && !strings.HasPrefix(base, ".")
}

// EntryFor builds the entry for a single file, reading level and source from
// its parent directories when they follow the <level>/<source>/ layout.
func EntryFor(path string) Entry {
	e := Entry{Path: path}
	dir := filepath.Dir(path)
	for i := 0; i < 2; i++ {
		name := filepath.Base(dir)
		if level, err := ir.ParseLevel(name); err == nil && level.Valid() && strings.HasPrefix(strings.ToUpper(name), "N") {
			e.Level = level
			break
		}
		if e.Source == "" && i == 0 {
			e.Source = name
		}
		dir = filepath.Dir(dir)
	}
	if e.Level == 0 {
		e.Source = ""
	}
	return e
}

// Decode type-checks raw against the record schema and decodes it.
// Schema or decode failures are returned as a MalformedRecord *ir.RecordError.
func Decode(raw []byte) (*ir.Record, error) {
	issues, err := validate.CheckSchema(raw)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, issue := range issues {
			msgs[i] = issue.Error()
		}
		return nil, ir.NewRecordError(ir.KindMalformedRecord, "", "", "%s", strings.Join(msgs, "; "))
	}

	var rec ir.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, ir.NewRecordError(ir.KindMalformedRecord, "", "", "decode: %v", err)
	}
	return &rec, nil
}

// Load reads and decodes the record at path.
func Load(path string) (*ir.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	rec, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Encode renders rec in the dataset's on-disk format.
func Encode(rec *ir.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

// Save writes rec to path through a temporary file in the same directory
// followed by a rename. An existing file's permissions are kept.
func Save(path string, rec *ir.Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
