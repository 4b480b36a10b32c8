// Package watcher keeps the catalog in step with a directory tree: files
// that are created or written are re-ingested after a short debounce, and
// removed files have their artifacts deleted.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/aidanlsb/sramp/internal/logger"
)

// Op is what the watcher did with a file.
type Op string

const (
	OpIngest Op = "ingest"
	OpRemove Op = "remove"
)

// Catalog receives file changes.
type Catalog interface {
	IngestPath(ctx context.Context, path string) error
	RemovePath(ctx context.Context, path string) error
}

// Config holds configuration options for the Watcher.
type Config struct {
	Root       string
	Catalog    Catalog
	Extensions []string      // Files watched, e.g. ".xsd"; empty means all files
	Debounce   time.Duration // Default: 200ms
	OnChange   func(path string, op Op, err error)
}

// Watcher monitors a directory tree and forwards changes to a Catalog.
type Watcher struct {
	root       string
	catalog    Catalog
	extensions map[string]bool
	debounce   time.Duration
	onChange   func(path string, op Op, err error)
	log        *zap.SugaredLogger

	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	mu        sync.Mutex

	// applyMu serializes catalog updates from the event loop and the
	// debounce loop.
	applyMu sync.Mutex
}

var ignoredDirs = map[string]bool{".git": true, "node_modules": true, ".svn": true}

// New creates a Watcher for cfg.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch root is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", cfg.Root)
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		root:       root,
		catalog:    cfg.Catalog,
		extensions: exts,
		debounce:   debounce,
		onChange:   cfg.OnChange,
		log:        logger.Named("watcher"),
		pending:    make(map[string]time.Time),
	}, nil
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string { return w.root }

// Sync ingests every matching file under the root. It returns the number of
// files ingested; failures are reported through OnChange.
func (w *Watcher) Sync(ctx context.Context) (int, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matches(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "walk %s", w.root)
	}

	ingested := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}
		if w.apply(ctx, path, OpIngest) == nil {
			ingested++
		}
	}
	return ingested, nil
}

// Start watches the root until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer w.fsWatcher.Close()

	if err := w.addWatchRecursive(w.root); err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.root)
	}
	w.log.Debugw("watching", "root", w.root)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !ignoredDirs[info.Name()] && w.fsWatcher != nil {
				if err := w.addWatchRecursive(path); err != nil {
					w.log.Warnw("failed to watch directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !w.matches(path) {
		return
	}
	w.log.Debugw("event", "op", event.Op.String(), "path", path)

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.schedule(path)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		_ = w.apply(ctx, path, OpRemove)
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = time.Now()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx, time.Now())
		}
	}
}

// processPending ingests files whose last change is older than the debounce
// delay at now.
func (w *Watcher) processPending(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, scheduledAt := range w.pending {
		if now.Sub(scheduledAt) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		_ = w.apply(ctx, path, OpIngest)
	}
}

func (w *Watcher) apply(ctx context.Context, path string, op Op) error {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()

	var err error
	switch op {
	case OpIngest:
		err = w.catalog.IngestPath(ctx, path)
	case OpRemove:
		err = w.catalog.RemovePath(ctx, path)
	}
	if err != nil {
		w.log.Warnw("catalog update failed", "op", op, "path", path, "error", err)
	}
	if w.onChange != nil {
		w.onChange(path, op, err)
	}
	return err
}

func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.log.Warnw("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// matches reports whether path is a watched file outside ignored directories.
func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if ignoredDirs[part] || strings.HasPrefix(part, ".") {
			return false
		}
	}
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
