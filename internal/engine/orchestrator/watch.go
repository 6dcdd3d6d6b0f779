package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// RuleState is the lifecycle state of one watch rule.
type RuleState string

const (
	// StateIdle indicates the rule is waiting for changes.
	StateIdle RuleState = "Idle"
	// StateTriggered indicates a settled change is about to run the rule's tasks.
	StateTriggered RuleState = "Triggered"
	// StateRunning indicates the rule's task list is executing.
	StateRunning RuleState = "Running"
	// StateFailed indicates the last run failed; the rule returns to Idle.
	StateFailed RuleState = "Failed"
)

// Watch observes every rule and runs its task list when a matching file
// changes. It blocks until ctx ends or Stop is called and then returns nil.
// Failing to acquire a watch handle is fatal; task failures are logged and
// watching continues. Every handle acquired is released before Watch returns.
func (o *Orchestrator) Watch(ctx context.Context, rules []domain.WatchRule) error {
	cfg := o.Config()
	if cfg == nil {
		return domain.ErrNoConfigLoaded
	}
	if len(rules) == 0 {
		return domain.ErrNoWatchRules
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !o.beginWatch(cancel) {
		return domain.ErrWatchAlreadyActive
	}
	defer o.endWatch()

	loops := make([]*ruleLoop, 0, len(rules))
	defer func() {
		for _, l := range loops {
			l.release()
		}
	}()

	for _, rule := range rules {
		l, err := o.acquire(ctx, cfg, rule)
		if err != nil {
			return err
		}
		loops = append(loops, l)
	}

	o.logger.Info("watching for changes", "rules", len(loops))

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error { return l.pump(gctx) })
		g.Go(func() error { return l.serve(gctx) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ruleLoop is the state of one watched rule: its handle, its debouncer and a
// single-slot queue of pending triggers.
type ruleLoop struct {
	o    *Orchestrator
	cfg  *domain.TaskConfig
	rule domain.WatchRule

	handle    ports.Watcher
	debouncer *Debouncer
	wake      chan struct{}

	releaseOnce sync.Once

	// Only touched by serve.
	state       RuleState
	fingerprint uint64
	hasPrint    bool
}

func (o *Orchestrator) acquire(ctx context.Context, cfg *domain.TaskConfig, rule domain.WatchRule) (*ruleLoop, error) {
	handle, err := o.watchers()
	if err != nil {
		return nil, setupError(rule.Name, err)
	}

	bases := o.resolver.Bases(cfg.Root(), rule.Patterns)
	if err := handle.Start(ctx, bases); err != nil {
		_ = handle.Stop()
		return nil, setupError(rule.Name, err)
	}

	window := rule.Debounce
	if window <= 0 {
		window = o.debounce
	}

	l := &ruleLoop{
		o:      o,
		cfg:    cfg,
		rule:   rule,
		handle: handle,
		wake:   make(chan struct{}, 1),
		state:  StateIdle,
	}
	l.debouncer = NewDebouncer(window, l.settled)

	if rule.SkipUnchanged {
		l.unchanged()
	}

	o.logger.Debug("watching rule", "rule", rule.Name, "paths", bases)
	return l, nil
}

// setupError reports a failure to start watching rule as ErrWatchSetupFailed.
func setupError(rule string, err error) error {
	if !errors.Is(err, domain.ErrWatchSetupFailed) {
		err = domain.Classify(domain.ErrWatchSetupFailed, err)
	}
	return zerr.With(zerr.Wrap(err, "watch rule "+rule), "rule", rule)
}

// release stops the debouncer and the watch handle.
func (l *ruleLoop) release() {
	l.releaseOnce.Do(func() {
		l.debouncer.Stop()
		if err := l.handle.Stop(); err != nil {
			l.o.logger.Warn("failed to release watch handle", "rule", l.rule.Name, "error", err.Error())
		}
	})
}

// pump forwards matching events to the debouncer until the handle closes.
func (l *ruleLoop) pump(ctx context.Context) error {
	for event := range l.handle.Events() {
		if ctx.Err() != nil {
			break
		}
		if l.matches(event) {
			l.debouncer.Add(event.Path)
		}
	}
	return nil
}

// settled runs on the debouncer's timer. A trigger that arrives while one is
// already queued is absorbed by it.
func (l *ruleLoop) settled(paths []string) {
	l.o.logger.Debug("change detected", "rule", l.rule.Name, "paths", paths)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// serve runs the rule's task list once per trigger, never concurrently with itself.
func (l *ruleLoop) serve(ctx context.Context) error {
	if l.rule.AtBegin {
		l.trigger(ctx, true)
	}
	for {
		select {
		case <-ctx.Done():
			// Stopping the handle ends pump's event iteration.
			l.release()
			return nil
		case <-l.wake:
			if ctx.Err() != nil {
				return nil
			}
			l.trigger(ctx, false)
		}
	}
}

// trigger runs the task list. Unless force is set, a rule with SkipUnchanged
// does nothing when its files hash the same as at the previous trigger.
func (l *ruleLoop) trigger(ctx context.Context, force bool) {
	l.transition(StateTriggered)

	if l.rule.SkipUnchanged && l.unchanged() && !force {
		l.o.logger.Debug("matched files are unchanged, skipping", "rule", l.rule.Name)
		l.transition(StateIdle)
		return
	}

	l.transition(StateRunning)
	for _, name := range l.rule.Tasks {
		err := l.o.Run(ctx, name)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			l.transition(StateIdle)
			return
		}
		l.transition(StateFailed)
		l.o.logger.Error(err, "rule", l.rule.Name, "task", failedTask(err, name))
		l.transition(StateIdle)
		return
	}
	l.transition(StateIdle)
}

func (l *ruleLoop) transition(s RuleState) {
	l.o.logger.Debug("rule state", "rule", l.rule.Name, "from", string(l.state), "to", string(s))
	l.state = s
}

// unchanged fingerprints the rule's files and reports whether they hash the
// same as at the previous call.
func (l *ruleLoop) unchanged() bool {
	root := l.cfg.Root()
	files, err := l.o.resolver.Resolve(root, l.rule.Patterns)
	if err != nil {
		return false
	}
	sum, err := l.o.hasher.Fingerprint(root, files)
	if err != nil {
		return false
	}
	same := l.hasPrint && sum == l.fingerprint
	l.fingerprint, l.hasPrint = sum, true
	return same
}

// matches re-evaluates the rule's patterns against one event.
func (l *ruleLoop) matches(event ports.WatchEvent) bool {
	if !l.rule.Events.Has(changeKind(event.Operation)) {
		return false
	}
	rel, err := filepath.Rel(l.cfg.Root(), event.Path)
	if err != nil {
		return false
	}
	return l.o.resolver.Match(l.rule.Patterns, filepath.ToSlash(rel))
}

func changeKind(op ports.WatchOp) domain.ChangeKind {
	switch op {
	case ports.OpCreate:
		return domain.ChangeAdded
	case ports.OpRemove, ports.OpRename:
		return domain.ChangeDeleted
	default:
		return domain.ChangeChanged
	}
}

// failedTask names the atomic task behind err, falling back to the step that was run.
func failedTask(err error, fallback string) string {
	var execErr *domain.TaskExecutionError
	if errors.As(err, &execErr) {
		return execErr.Task
	}
	return fallback
}

// WatchHandler returns the built-in "watch" handler. Its optional "rules"
// option limits the session to the named rules; otherwise every rule is watched.
func (o *Orchestrator) WatchHandler() ports.Handler {
	return ports.HandlerFunc(func(ctx context.Context, inv domain.Invocation) error {
		rules, err := o.SelectRules(inv.Options)
		if err != nil {
			return err
		}
		return o.Watch(ctx, rules)
	})
}

// SelectRules returns the rules named by the "rules" option in declared
// order, or every rule when the option is absent.
func (o *Orchestrator) SelectRules(opts domain.Options) ([]domain.WatchRule, error) {
	cfg := o.Config()
	if cfg == nil {
		return nil, domain.ErrNoConfigLoaded
	}

	var names []string
	if raw, ok := opts["rules"]; ok {
		if err := mapstructure.WeakDecode(raw, &names); err != nil {
			return nil, zerr.With(domain.Classify(domain.ErrInvalidOptions, err), "option", "rules")
		}
	}
	if len(names) == 0 {
		return cfg.WatchRules(), nil
	}

	rules := make([]domain.WatchRule, 0, len(names))
	for _, name := range names {
		rule, ok := cfg.WatchRule(name)
		if !ok {
			return nil, domain.Annotate(domain.ErrWatchRuleNotFound, "rule", name)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
