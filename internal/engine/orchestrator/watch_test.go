package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/tend/internal/engine/orchestrator"
)

const settle = 100 * time.Millisecond

func (w *fakeWatcher) watchedRoots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roots
}

func jsRule() domain.WatchRule {
	return domain.WatchRule{
		Name:     "js",
		Patterns: []string{"src/**/*.js", "!src/vendor/**"},
		Tasks:    []string{"X", "Y"},
	}
}

func chainConfig(t *testing.T, rules ...domain.WatchRule) *domain.TaskConfig {
	t.Helper()
	cfg := mustConfig(t,
		domain.NewAtomicTask("X", "x", nil),
		domain.NewAtomicTask("Y", "y", nil),
	)
	for _, r := range rules {
		require.NoError(t, cfg.AddWatchRule(r))
	}
	return cfg
}

func startWatch(t *testing.T, o *orchestrator.Orchestrator, ctx context.Context, rules []domain.WatchRule) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- o.Watch(ctx, rules) }()
	synctest.Wait()
	return done
}

func TestWatch_RunsChainOnMatchingChange(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		rec := &recorder{}

		o := newOrchestrator(t, nil, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(nil)))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))

		cfg := chainConfig(t, jsRule())
		require.NoError(t, o.LoadConfig(cfg))
		root := cfg.Root()

		done := startWatch(t, o, t.Context(), cfg.WatchRules())
		assert.Equal(t, []string{filepath.Join(root, "src")}, w.watchedRoots())

		w.emit(filepath.Join(root, "src", "app", "main.js"), ports.OpWrite)
		w.emit(filepath.Join(root, "src", "app", "util.js"), ports.OpCreate)
		w.emit(filepath.Join(root, "src", "vendor", "lib.js"), ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{"X", "Y"}, rec.invoked(), "a burst of events runs the chain once")

		w.emit(filepath.Join(root, "src", "vendor", "lib.js"), ports.OpWrite)
		w.emit(filepath.Join(root, "README.md"), ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{"X", "Y"}, rec.invoked(), "excluded and unrelated paths do not trigger")

		o.Stop()
		require.NoError(t, <-done)
		assert.True(t, w.isStopped())
	})
}

func TestWatch_FailureIsIsolated(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		log := &recordingLogger{}
		rec := &recorder{}

		var calls atomic.Int32
		boom := errors.New("compile error")
		o := newOrchestrator(t, log, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(func(context.Context, domain.Invocation) error {
			if calls.Add(1) == 1 {
				return boom
			}
			return nil
		})))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))

		cfg := chainConfig(t, jsRule())
		require.NoError(t, o.LoadConfig(cfg))
		main := filepath.Join(cfg.Root(), "src", "main.js")

		done := startWatch(t, o, t.Context(), cfg.WatchRules())

		w.emit(main, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{"X"}, rec.invoked(), "Y is skipped after X fails")
		logged := log.errors()
		require.Len(t, logged, 1)
		require.ErrorIs(t, logged[0].err, boom)
		assert.Equal(t, []any{"rule", "js", "task", "X"}, logged[0].args)

		w.emit(main, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{"X", "X", "Y"}, rec.invoked(), "the next change runs the chain from the start")

		o.Stop()
		require.NoError(t, <-done)
	})
}

func TestWatch_QueuesOneFollowUpRun(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		rec := &recorder{}

		gate := make(chan struct{})
		var calls, inflight, maxInflight atomic.Int32
		o := newOrchestrator(t, nil, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(func(ctx context.Context, _ domain.Invocation) error {
			n := inflight.Add(1)
			defer inflight.Add(-1)
			if n > maxInflight.Load() {
				maxInflight.Store(n)
			}
			if calls.Add(1) == 1 {
				select {
				case <-gate:
				case <-ctx.Done():
				}
			}
			return nil
		})))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))

		cfg := chainConfig(t, jsRule())
		require.NoError(t, o.LoadConfig(cfg))
		main := filepath.Join(cfg.Root(), "src", "main.js")

		done := startWatch(t, o, t.Context(), cfg.WatchRules())

		w.emit(main, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		require.Equal(t, []string{"X"}, rec.invoked(), "first run is blocked inside X")

		// Two separate settled changes while the chain is running.
		w.emit(main, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		w.emit(main, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"X"}, rec.invoked(), "changes during a run are queued")

		close(gate)
		synctest.Wait()
		time.Sleep(time.Second)
		synctest.Wait()

		assert.Equal(t, []string{"X", "Y", "X", "Y"}, rec.invoked(), "exactly one follow-up run")
		assert.Equal(t, int32(1), maxInflight.Load())

		o.Stop()
		require.NoError(t, <-done)
	})
}

func TestWatch_EventFilter(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		rec := &recorder{}

		o := newOrchestrator(t, nil, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(nil)))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))

		rule := jsRule()
		rule.Tasks = []string{"X"}
		rule.Events = domain.EventMask(domain.ChangeAdded)
		cfg := chainConfig(t, rule)
		require.NoError(t, o.LoadConfig(cfg))
		path := filepath.Join(cfg.Root(), "src", "new.js")

		done := startWatch(t, o, t.Context(), cfg.WatchRules())

		w.emit(path, ports.OpWrite)
		w.emit(path, ports.OpRemove)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		assert.Empty(t, rec.invoked())

		w.emit(path, ports.OpCreate)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"X"}, rec.invoked())

		o.Stop()
		require.NoError(t, <-done)
	})
}

func TestWatch_RuleDebounceOverridesDefault(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		rec := &recorder{}

		o := newOrchestrator(t, nil, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(nil)))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))

		rule := jsRule()
		rule.Tasks = []string{"X"}
		rule.Debounce = time.Second
		cfg := chainConfig(t, rule)
		require.NoError(t, o.LoadConfig(cfg))

		done := startWatch(t, o, t.Context(), cfg.WatchRules())

		w.emit(filepath.Join(cfg.Root(), "src", "a.js"), ports.OpWrite)
		time.Sleep(500 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, rec.invoked())

		time.Sleep(time.Second)
		synctest.Wait()
		assert.Equal(t, []string{"X"}, rec.invoked())

		o.Stop()
		require.NoError(t, <-done)
	})
}

func TestWatch_AtBeginAndSkipUnchanged(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		rec := &recorder{}

		o := newOrchestrator(t, nil, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(nil)))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))

		cfg := chainConfig(t, domain.WatchRule{
			Name:          "css",
			Patterns:      []string{"src/*.css"},
			Tasks:         []string{"X"},
			AtBegin:       true,
			SkipUnchanged: true,
		})
		require.NoError(t, o.LoadConfig(cfg))

		style := filepath.Join(cfg.Root(), "src", "a.css")
		require.NoError(t, os.MkdirAll(filepath.Dir(style), domain.DirPerm))
		require.NoError(t, os.WriteFile(style, []byte("a{}"), domain.FilePerm))

		done := startWatch(t, o, t.Context(), cfg.WatchRules())
		assert.Equal(t, []string{"X"}, rec.invoked(), "atBegin runs once when watching starts")

		w.emit(style, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"X"}, rec.invoked(), "identical content is skipped")

		require.NoError(t, os.WriteFile(style, []byte("b{}"), domain.FilePerm))
		w.emit(style, ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"X", "X"}, rec.invoked())

		o.Stop()
		require.NoError(t, <-done)
	})
}

func TestWatch_SetupFailureReleasesHandles(t *testing.T) {
	ok := newFakeWatcher()
	broken := newFakeWatcher()
	broken.startErr = domain.ErrWatchSetupFailed
	factory := &fakeFactory{watchers: []*fakeWatcher{ok, broken}}

	o := newOrchestrator(t, nil, factory.factory())
	require.NoError(t, o.RegisterHandler("x", ports.HandlerFunc(func(context.Context, domain.Invocation) error {
		t.Error("no task may run when setup fails")
		return nil
	})))
	require.NoError(t, o.RegisterHandler("y", ports.HandlerFunc(func(context.Context, domain.Invocation) error {
		return nil
	})))

	css := domain.WatchRule{Name: "css", Patterns: []string{"missing/*.css"}, Tasks: []string{"X"}, AtBegin: true}
	cfg := chainConfig(t, jsRule(), css)
	require.NoError(t, o.LoadConfig(cfg))

	err := o.Watch(t.Context(), cfg.WatchRules())
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrWatchSetupFailed)

	assert.True(t, ok.isStopped(), "handles acquired before the failure are released")
	assert.True(t, broken.isStopped())
}

func TestWatch_FactoryFailureIsSetupError(t *testing.T) {
	limit := errors.New("too many open files")
	o := newOrchestrator(t, nil, func() (ports.Watcher, error) { return nil, limit })
	require.NoError(t, o.RegisterHandler("x", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))
	require.NoError(t, o.RegisterHandler("y", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))

	cfg := chainConfig(t, jsRule())
	require.NoError(t, o.LoadConfig(cfg))

	err := o.Watch(t.Context(), cfg.WatchRules())
	require.ErrorIs(t, err, domain.ErrWatchSetupFailed)
	require.ErrorIs(t, err, limit)
	assert.ErrorContains(t, err, "watch rule js")
}

func TestWatch_Preconditions(t *testing.T) {
	o := newOrchestrator(t, nil, (&fakeFactory{}).factory())
	require.ErrorIs(t, o.Watch(t.Context(), []domain.WatchRule{jsRule()}), domain.ErrNoConfigLoaded)

	require.NoError(t, o.RegisterHandler("x", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))
	require.NoError(t, o.RegisterHandler("y", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))
	require.NoError(t, o.LoadConfig(chainConfig(t)))
	require.ErrorIs(t, o.Watch(t.Context(), nil), domain.ErrNoWatchRules)
}

func TestWatch_CancelAndSingleSession(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}

		o := newOrchestrator(t, nil, factory.factory())
		require.NoError(t, o.RegisterHandler("x", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))
		require.NoError(t, o.RegisterHandler("y", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))
		cfg := chainConfig(t, jsRule())
		require.NoError(t, o.LoadConfig(cfg))

		ctx, cancel := context.WithCancel(t.Context())
		done := startWatch(t, o, ctx, cfg.WatchRules())

		require.ErrorIs(t, o.Watch(t.Context(), cfg.WatchRules()), domain.ErrWatchAlreadyActive)

		cancel()
		require.NoError(t, <-done)
		assert.True(t, w.isStopped())
	})
}

func TestWatchHandler_SelectsRules(t *testing.T) {
	o := newOrchestrator(t, nil, nil)
	require.NoError(t, o.RegisterHandler("x", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))
	require.NoError(t, o.RegisterHandler("y", ports.HandlerFunc(func(context.Context, domain.Invocation) error { return nil })))

	css := domain.WatchRule{Name: "css", Patterns: []string{"src/*.css"}, Tasks: []string{"Y"}}
	require.NoError(t, o.LoadConfig(chainConfig(t, jsRule(), css)))

	names := func(rules []domain.WatchRule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.Name)
		}
		return out
	}

	all, err := o.SelectRules(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"js", "css"}, names(all))

	one, err := o.SelectRules(domain.Options{"rules": []any{"css"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"css"}, names(one))

	single, err := o.SelectRules(domain.Options{"rules": "js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"js"}, names(single))

	_, err = o.SelectRules(domain.Options{"rules": []string{"sass"}})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrWatchRuleNotFound)
}

func TestWatchHandler_RunsAsTask(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newFakeWatcher()
		factory := &fakeFactory{watchers: []*fakeWatcher{w}}
		rec := &recorder{}

		o := newOrchestrator(t, nil, factory.factory(), orchestrator.WithDebounce(settle))
		require.NoError(t, o.RegisterHandler("x", rec.handler(nil)))
		require.NoError(t, o.RegisterHandler("y", rec.handler(nil)))
		require.NoError(t, o.RegisterHandler(domain.WatchHandlerName, o.WatchHandler()))

		cfg := chainConfig(t, jsRule())
		require.NoError(t, cfg.Add(domain.NewAtomicTask("watch:js", domain.WatchHandlerName, domain.Options{"rules": []string{"js"}})))
		cfg.SetDefault("watch:js")
		require.NoError(t, o.LoadConfig(cfg))

		done := make(chan error, 1)
		go func() { done <- o.Run(t.Context(), "") }()
		synctest.Wait()
		assert.Empty(t, rec.invoked(), "the default watch task does not build up front")

		w.emit(filepath.Join(cfg.Root(), "src", "main.js"), ports.OpWrite)
		time.Sleep(settle + 50*time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"X", "Y"}, rec.invoked())

		o.Stop()
		require.NoError(t, <-done)
	})
}
