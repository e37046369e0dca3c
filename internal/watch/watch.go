// Package watch reports record files that change below a dataset root.
//
// Events are collected per path and delivered in batches once the tree has
// been quiet for the debounce window, so an editor's write-rename-chmod
// sequence, or a reconcile run touching many files, arrives as one batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/mondai/internal/dataset"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 200 * time.Millisecond

// Change is one record file that was created, written, removed or renamed.
type Change struct {
	Path    string
	Removed bool
}

// Handler receives a batch of changes, sorted by path, one per file.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher watches every directory below its roots.
type Watcher struct {
	roots    []string
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// New creates a watcher over every directory below roots. Events are
// queued from the moment New returns; call Run to deliver them.
func New(roots []string, handler Handler, opts Options) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("watch: no roots")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		roots:    roots,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		fsw:      fsw,
	}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers batches until ctx is cancelled. Pending changes are dropped
// on cancellation. The watcher is closed on return and cannot be run again.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.logger.Debug("watching", "roots", w.roots, "dirs", len(w.fsw.WatchList()))

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !dataset.IsRecordFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			pending[event.Name] = event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timer, timerC = nil, nil
			w.handler(ctx, drain(pending))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// drain empties pending into a sorted batch. A file that was removed and
// then written again within the window counts as present.
func drain(pending map[string]bool) []Change {
	changes := make([]Change, 0, len(pending))
	for path, removed := range pending {
		if removed {
			if _, err := os.Stat(path); err == nil {
				removed = false
			}
		}
		changes = append(changes, Change{Path: path, Removed: removed})
		delete(pending, path)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
