// Package orchestrator registers task handlers, validates task configurations
// and runs task chains on demand or in response to file changes.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
)

// Orchestrator owns a handler registry and one validated task configuration.
// Instances are independent; nothing is shared through package state.
type Orchestrator struct {
	logger   ports.Logger
	tracer   ports.Tracer
	resolver ports.PathResolver
	hasher   ports.Fingerprinter
	watchers ports.WatcherFactory
	debounce time.Duration

	mu       sync.RWMutex
	handlers map[string]ports.Handler
	cfg      *domain.TaskConfig

	watchMu     sync.Mutex
	cancelWatch context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDebounce sets the settle window used by rules without their own.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// New creates an Orchestrator with an empty handler registry.
func New(
	logger ports.Logger,
	tracer ports.Tracer,
	resolver ports.PathResolver,
	hasher ports.Fingerprinter,
	watchers ports.WatcherFactory,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		logger:   logger,
		tracer:   tracer,
		resolver: resolver,
		hasher:   hasher,
		watchers: watchers,
		debounce: domain.DefaultDebounce,
		handlers: make(map[string]ports.Handler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterHandler associates name with h. Names are unique per Orchestrator.
func (o *Orchestrator) RegisterHandler(name string, h ports.Handler) error {
	if name == "" || h == nil {
		return domain.ErrInvalidHandlerName
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.handlers[name]; exists {
		return domain.Annotate(domain.ErrDuplicateHandler, "handler", name)
	}
	o.handlers[name] = h
	return nil
}

// HasHandler reports whether name is registered.
func (o *Orchestrator) HasHandler(name string) bool {
	_, ok := o.handler(name)
	return ok
}

func (o *Orchestrator) handler(name string) (ports.Handler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[name]
	return h, ok
}

// LoadConfig validates cfg against the registered handlers and makes it the
// active configuration. Every problem is reported in one
// *domain.ConfigValidationError; on failure the previous configuration stays.
func (o *Orchestrator) LoadConfig(cfg *domain.TaskConfig) error {
	if cfg == nil {
		return domain.ErrNoConfigLoaded
	}

	problems := cfg.Validate(o.HasHandler)

	for task := range cfg.Tasks() {
		if task.IsComposite() {
			continue
		}
		h, ok := o.handler(task.Handler)
		if !ok {
			continue
		}
		if v, ok := h.(ports.OptionsValidator); ok {
			if err := v.ValidateOptions(task.Name, task.Options); err != nil {
				problems = append(problems, err)
			}
		}
	}

	if len(problems) > 0 {
		return &domain.ConfigValidationError{Problems: problems}
	}

	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	return nil
}

// Config returns the active configuration, or nil before LoadConfig succeeded.
func (o *Orchestrator) Config() *domain.TaskConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// Run executes the named task and waits for it. An empty name runs the
// default task. Composite tasks run their steps depth first in declared order
// and stop at the first failure, which is returned as a
// *domain.TaskExecutionError naming the failing atomic task.
func (o *Orchestrator) Run(ctx context.Context, name string) error {
	cfg := o.Config()
	if cfg == nil {
		return domain.ErrNoConfigLoaded
	}

	if name == "" {
		name = cfg.Default()
		if name == "" {
			return domain.ErrNoDefaultTask
		}
	}

	task, ok := cfg.Task(name)
	if !ok {
		return domain.Annotate(domain.ErrTaskNotFound, "task", name)
	}
	return o.run(ctx, cfg, task)
}

func (o *Orchestrator) run(ctx context.Context, cfg *domain.TaskConfig, task domain.TaskDefinition) error {
	if !task.IsComposite() {
		return o.invoke(ctx, cfg, task)
	}

	for _, step := range task.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, ok := cfg.Task(step)
		if !ok {
			return domain.Annotate(domain.ErrTaskNotFound, "task", step)
		}
		if err := o.run(ctx, cfg, next); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) invoke(ctx context.Context, cfg *domain.TaskConfig, task domain.TaskDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h, ok := o.handler(task.Handler)
	if !ok {
		return &domain.TaskExecutionError{
			Task: task.Name,
			Err:  domain.Annotate(domain.ErrUnknownHandler, "handler", task.Handler),
		}
	}

	spanCtx, span := o.tracer.Start(ctx, task.Name, ports.WithAttribute("handler", task.Handler))
	defer span.End()

	err := h.Handle(spanCtx, domain.Invocation{
		Task:    task.Name,
		Root:    cfg.Root(),
		Options: task.Options,
		Output:  span,
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)

	// A nested run already names its failing leaf.
	var execErr *domain.TaskExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return &domain.TaskExecutionError{Task: task.Name, Err: err}
}

// Stop ends the active watch session, if any. Watch then returns nil.
func (o *Orchestrator) Stop() {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()

	if o.cancelWatch != nil {
		o.cancelWatch()
	}
}

func (o *Orchestrator) beginWatch(cancel context.CancelFunc) bool {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()

	if o.cancelWatch != nil {
		return false
	}
	o.cancelWatch = cancel
	return true
}

func (o *Orchestrator) endWatch() {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	o.cancelWatch = nil
}
