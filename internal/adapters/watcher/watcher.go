// Package watcher implements recursive file system watching on top of fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// shouldSkipDirectories are directories that should not be watched.
var shouldSkipDirectories = map[string]bool{
	".git":         true,
	".jj":          true,
	"node_modules": true,
}

const eventChannelBuffer = 100

// DefaultPollInterval is how often a vanished root is checked for reappearance.
const DefaultPollInterval = 500 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify. Each instance is one
// independent watch handle.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	logger       ports.Logger
	events       chan ports.WatchEvent
	pollInterval time.Duration

	mu       sync.Mutex
	roots    map[string]bool
	missing  map[string]bool
	stopOnce sync.Once
	done     chan struct{}
	pollers  sync.WaitGroup
}

// NewWatcher creates a new file system watcher.
func NewWatcher(logger ports.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, domain.Classify(domain.ErrWatchSetupFailed, err)
	}
	return &Watcher{
		fsWatcher:    fsw,
		logger:       logger,
		events:       make(chan ports.WatchEvent, eventChannelBuffer),
		pollInterval: DefaultPollInterval,
		roots:        make(map[string]bool),
		missing:      make(map[string]bool),
		done:         make(chan struct{}),
	}, nil
}

// WithPollInterval overrides how often vanished roots are polled.
func (w *Watcher) WithPollInterval(d time.Duration) *Watcher {
	w.pollInterval = d
	return w
}

// Start begins watching every root recursively. A root that is missing or
// not a directory fails the whole call.
func (w *Watcher) Start(ctx context.Context, roots []string) error {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return zerr.With(domain.Classify(domain.ErrWatchSetupFailed, err), "path", root)
		}
		if !info.IsDir() {
			return domain.Annotate(domain.ErrWatchSetupFailed, "path", root)
		}
		if err := w.addRecursive(root); err != nil {
			return zerr.With(domain.Classify(domain.ErrWatchSetupFailed, err), "path", root)
		}
		w.mu.Lock()
		w.roots[filepath.Clean(root)] = true
		w.mu.Unlock()
	}

	go w.processEvents(ctx)

	return nil
}

// Stop stops the watcher and releases all resources. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// Events returns an iterator of file system events. It ends when the watcher stops.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	for dir := range watchRecursively(root) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}
	return nil
}

// watchRecursively walks the directory tree and yields all directories.
func watchRecursively(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // unreadable directories are skipped
			}
			if d.IsDir() {
				if path != root && shouldSkipDirectories[d.Name()] {
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

// processEvents converts raw fsnotify events and forwards them until the
// context ends or the watcher is stopped.
//
//nolint:cyclop // one select over events, errors and shutdown
func (w *Watcher) processEvents(ctx context.Context) {
	defer func() {
		w.pollers.Wait()
		close(w.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			watchEvent, ok := convertEvent(event)
			if !ok {
				continue
			}

			if watchEvent.Operation == ports.OpCreate {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !shouldSkipDirectories[info.Name()] {
					_ = w.addRecursive(event.Name)
				}
			}

			if watchEvent.Operation == ports.OpRemove || watchEvent.Operation == ports.OpRename {
				w.handleRootLoss(ctx, event.Name)
			}

			select {
			case w.events <- watchEvent:
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(zerr.Wrap(err, "file system watcher error"))
		}
	}
}

// handleRootLoss starts polling for a watched root that was removed.
func (w *Watcher) handleRootLoss(ctx context.Context, path string) {
	path = filepath.Clean(path)

	w.mu.Lock()
	isRoot := w.roots[path]
	alreadyMissing := w.missing[path]
	if isRoot && !alreadyMissing {
		w.missing[path] = true
	}
	w.mu.Unlock()

	if !isRoot || alreadyMissing {
		return
	}

	w.logger.Warn(domain.ErrWatchPathMissing.Error(), "path", path)
	w.pollers.Add(1)
	go func() {
		defer w.pollers.Done()
		w.awaitRoot(ctx, path)
	}()
}

// awaitRoot polls until path exists again, re-adds it and reports a create event.
func (w *Watcher) awaitRoot(ctx context.Context, path string) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(zerr.With(domain.Classify(domain.ErrWatchSetupFailed, err), "path", path))
				continue
			}

			w.mu.Lock()
			delete(w.missing, path)
			w.mu.Unlock()

			w.logger.Info("watched path is back", "path", path)
			select {
			case w.events <- ports.WatchEvent{Path: path, Operation: ports.OpCreate}:
			case <-ctx.Done():
			case <-w.done:
			}
			return
		}
	}
}

// convertEvent converts an fsnotify event to a ports.WatchEvent.
func convertEvent(event fsnotify.Event) (ports.WatchEvent, bool) {
	ev := ports.WatchEvent{Path: event.Name}

	switch {
	case event.Has(fsnotify.Write):
		ev.Operation = ports.OpWrite
	case event.Has(fsnotify.Create):
		ev.Operation = ports.OpCreate
	case event.Has(fsnotify.Remove):
		ev.Operation = ports.OpRemove
	case event.Has(fsnotify.Rename):
		ev.Operation = ports.OpRename
	default:
		return ports.WatchEvent{}, false
	}
	return ev, true
}
