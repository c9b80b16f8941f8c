// Package watcher implements the file-watch invalidation source: watched
// paths are mapped to tags, and debounced change bursts become tag events.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.InvalidationSource = (*Watcher)(nil)

// shouldSkipDirectories are directories that should not be watched.
var shouldSkipDirectories = map[string]bool{
	".git":         true,
	".jj":          true,
	"node_modules": true,
}

const eventChannelBuffer = 100

// Watcher implements file-based tag invalidation using fsnotify.
type Watcher struct {
	root      string
	rules     []rule
	fsWatcher *fsnotify.Watcher
	hashes    *contentCache
	logger    ports.Logger

	// mu guards events against a debounce timer firing after shutdown.
	mu     sync.Mutex
	closed bool
	events chan ports.TagEvent
}

// rule is a watch rule with its path resolved and its own debouncer.
type rule struct {
	domain.WatchRule
	absPath   string
	isDir     bool
	debouncer *Debouncer
}

// New creates a watcher for the given rules. Paths are resolved relative
// to root.
func New(root string, rules []domain.WatchRule, logger ports.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrWatcherStartFailed.Error())
	}

	w := &Watcher{
		root:      root,
		fsWatcher: fsWatcher,
		hashes:    newContentCache(),
		logger:    logger,
		events:    make(chan ports.TagEvent, eventChannelBuffer),
	}

	for _, r := range rules {
		absPath := r.Path
		if !filepath.IsAbs(absPath) {
			absPath = filepath.Join(root, r.Path)
		}
		w.rules = append(w.rules, rule{WatchRule: r, absPath: filepath.Clean(absPath)})
	}

	return w, nil
}

// Start registers all watch paths and begins producing events.
func (w *Watcher) Start(ctx context.Context) error {
	for i := range w.rules {
		r := &w.rules[i]

		info, err := os.Stat(r.absPath)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()), "path", r.absPath)
		}
		r.isDir = info.IsDir()

		if err := w.addPaths(r); err != nil {
			return err
		}

		tags := r.Tags
		source := r.Path
		r.debouncer = NewDebouncer(r.Debounce, func([]string) {
			w.emit(ports.TagEvent{Tags: tags, Source: source})
		})
	}

	go w.processEvents(ctx)

	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events returns an iterator of invalidation events.
func (w *Watcher) Events() iter.Seq[ports.TagEvent] {
	return func(yield func(ports.TagEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// addPaths registers the rule's path with fsnotify. For files the parent
// directory is watched, since editors typically replace files on save.
func (w *Watcher) addPaths(r *rule) error {
	if !r.isDir {
		if err := w.fsWatcher.Add(filepath.Dir(r.absPath)); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()), "path", r.absPath)
		}
		return nil
	}

	if !r.Recursive {
		if err := w.fsWatcher.Add(r.absPath); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()), "path", r.absPath)
		}
		return nil
	}

	for dir := range walkDirs(r.absPath) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()), "path", dir)
		}
	}
	return nil
}

// walkDirs yields root and all non-skipped subdirectories.
func walkDirs(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Skip unreadable directories and keep walking.
				return nil //nolint:nilerr
			}
			if d.IsDir() {
				if shouldSkipDirectories[d.Name()] {
					return fs.SkipDir
				}
				if !yield(path) {
					return filepath.SkipAll
				}
			}
			return nil
		})
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.closeEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()))
		}
	}
}

// handleEvent routes a raw fsnotify event to the debouncers of the rules
// it matches. Writes that do not change file content are dropped.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := filepath.Clean(event.Name)

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && !w.hashes.changed(path) {
		return
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.hashes.forget(path)
	}

	for i := range w.rules {
		r := &w.rules[i]
		if r.matches(path) {
			r.debouncer.Add(path)
		}
	}

	// New directories under a recursive rule need their own watch.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() && !shouldSkipDirectories[info.Name()] {
			for i := range w.rules {
				r := &w.rules[i]
				if r.isDir && r.Recursive && r.matches(path) {
					for dir := range walkDirs(path) {
						_ = w.fsWatcher.Add(dir)
					}
				}
			}
		}
	}
}

// emit delivers an event unless the watcher has shut down. Debounce timers
// outlive processEvents, so the send and the close share a lock.
func (w *Watcher) emit(event ports.TagEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	select {
	case w.events <- event:
	default:
		w.logger.Warn("invalidation event dropped, channel full")
	}
}

func (w *Watcher) closeEvents() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	close(w.events)
}

// matches reports whether a changed path falls under the rule.
func (r *rule) matches(path string) bool {
	if !r.isDir {
		return path == r.absPath
	}
	if !r.Recursive {
		return filepath.Dir(path) == r.absPath || path == r.absPath
	}
	return path == r.absPath || isUnder(r.absPath, path)
}

func isUnder(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
