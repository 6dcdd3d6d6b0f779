package orchestrator_test

import (
	"context"
	"iter"
	"sync"
	"testing"

	"go.trai.ch/tend/internal/adapters/fs"
	"go.trai.ch/tend/internal/adapters/telemetry"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/tend/internal/engine/orchestrator"
)

type logEntry struct {
	level string
	msg   string
	err   error
	args  []any
}

// recordingLogger keeps every entry so tests can assert on failures logged by watch loops.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(e logEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add(logEntry{level: "debug", msg: msg, args: args}) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add(logEntry{level: "info", msg: msg, args: args}) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add(logEntry{level: "warn", msg: msg, args: args}) }
func (l *recordingLogger) Error(err error, args ...any) {
	l.add(logEntry{level: "error", err: err, args: args})
}

func (l *recordingLogger) errors() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}

// fakeWatcher is a watch handle whose events are pushed by the test.
type fakeWatcher struct {
	events   chan ports.WatchEvent
	startErr error

	mu       sync.Mutex
	roots    []string
	stopped  bool
	stopOnce sync.Once
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan ports.WatchEvent, 16)}
}

func (w *fakeWatcher) Start(_ context.Context, roots []string) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roots = roots
	return nil
}

func (w *fakeWatcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.events)
	})
	return nil
}

func (w *fakeWatcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for ev := range w.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (w *fakeWatcher) emit(path string, op ports.WatchOp) {
	w.events <- ports.WatchEvent{Path: path, Operation: op}
}

func (w *fakeWatcher) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// fakeFactory hands out the given watchers in order.
type fakeFactory struct {
	mu       sync.Mutex
	watchers []*fakeWatcher
	next     int
}

func (f *fakeFactory) factory() ports.WatcherFactory {
	return func() (ports.Watcher, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w := f.watchers[f.next]
		f.next++
		return w, nil
	}
}

// recorder is a handler registry that appends each invoked task name.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(fn func(ctx context.Context, inv domain.Invocation) error) ports.Handler {
	return ports.HandlerFunc(func(ctx context.Context, inv domain.Invocation) error {
		r.mu.Lock()
		r.calls = append(r.calls, inv.Task)
		r.mu.Unlock()
		if fn == nil {
			return nil
		}
		return fn(ctx, inv)
	})
}

func (r *recorder) invoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newOrchestrator(t *testing.T, log ports.Logger, watchers ports.WatcherFactory, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	t.Helper()
	if log == nil {
		log = &recordingLogger{}
	}
	return orchestrator.New(log, telemetry.NewNoOpTracer(), fs.NewResolver(), fs.NewHasher(), watchers, opts...)
}
