// Package domain contains the core domain models for task configurations and watch rules.
package domain

import (
	"iter"
	"strings"
)

// TaskConfig is the ordered set of named tasks, the default task and the watch
// rules loaded from one task file. It is immutable once validated.
type TaskConfig struct {
	root        string
	tasks       map[string]TaskDefinition
	order       []string
	defaultTask string
	rules       map[string]WatchRule
	ruleOrder   []string
}

// NewTaskConfig creates an empty configuration rooted at root.
func NewTaskConfig(root string) *TaskConfig {
	return &TaskConfig{
		root:  root,
		tasks: make(map[string]TaskDefinition),
		rules: make(map[string]WatchRule),
	}
}

// Root returns the project root that relative paths resolve against.
func (c *TaskConfig) Root() string {
	return c.root
}

// Add registers a task. Names must be unique.
func (c *TaskConfig) Add(t TaskDefinition) error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrInvalidTaskName
	}
	if _, exists := c.tasks[t.Name]; exists {
		return Annotate(ErrTaskAlreadyExists, "task_name", t.Name)
	}
	c.tasks[t.Name] = t
	c.order = append(c.order, t.Name)
	return nil
}

// Task returns the named task.
func (c *TaskConfig) Task(name string) (TaskDefinition, bool) {
	t, ok := c.tasks[name]
	return t, ok
}

// Len returns the number of tasks.
func (c *TaskConfig) Len() int {
	return len(c.order)
}

// Tasks yields every task in declaration order.
func (c *TaskConfig) Tasks() iter.Seq[TaskDefinition] {
	return func(yield func(TaskDefinition) bool) {
		for _, name := range c.order {
			if !yield(c.tasks[name]) {
				return
			}
		}
	}
}

// SetDefault names the task run when no task is requested.
func (c *TaskConfig) SetDefault(name string) {
	c.defaultTask = name
}

// Default returns the default task name, or "" when none is configured.
func (c *TaskConfig) Default() string {
	return c.defaultTask
}

// AddWatchRule registers a watch rule. Names must be unique.
func (c *TaskConfig) AddWatchRule(r WatchRule) error {
	if _, exists := c.rules[r.Name]; exists {
		return Annotate(ErrWatchRuleExists, "rule", r.Name)
	}
	c.rules[r.Name] = r
	c.ruleOrder = append(c.ruleOrder, r.Name)
	return nil
}

// WatchRule returns the named rule.
func (c *TaskConfig) WatchRule(name string) (WatchRule, bool) {
	r, ok := c.rules[name]
	return r, ok
}

// WatchRules returns every rule in declaration order.
func (c *TaskConfig) WatchRules() []WatchRule {
	out := make([]WatchRule, 0, len(c.ruleOrder))
	for _, name := range c.ruleOrder {
		out = append(out, c.rules[name])
	}
	return out
}

// Validate checks the whole configuration in one pass and returns every problem found.
// hasHandler reports whether a handler identifier is registered.
func (c *TaskConfig) Validate(hasHandler func(string) bool) []error {
	var problems []error

	for _, name := range c.order {
		t := c.tasks[name]
		switch t.Kind {
		case KindAtomic:
			if t.Handler == "" {
				problems = append(problems, problem(ErrInvalidTaskDefinition, "task %q has no handler", name))
				continue
			}
			if hasHandler != nil && !hasHandler(t.Handler) {
				problems = append(problems, problem(ErrUnknownHandler, "task %q uses handler %q", name, t.Handler))
			}
		case KindComposite:
			for _, step := range t.Steps {
				if _, ok := c.tasks[step]; !ok {
					problems = append(problems, problem(ErrUnresolvedReference, "task %q references %q", name, step))
				}
			}
		}
	}

	problems = append(problems, c.findCycles()...)

	if c.defaultTask != "" {
		if _, ok := c.tasks[c.defaultTask]; !ok {
			problems = append(problems, problem(ErrUnresolvedReference, "default task %q is not defined", c.defaultTask))
		}
	}

	for _, name := range c.ruleOrder {
		problems = append(problems, c.validateRule(c.rules[name])...)
	}

	return problems
}

func (c *TaskConfig) validateRule(r WatchRule) []error {
	var problems []error
	if len(r.Patterns) == 0 || len(r.Tasks) == 0 {
		problems = append(problems, problem(ErrEmptyWatchRule, "watch rule %q", r.Name))
	}
	for _, name := range r.Tasks {
		if _, ok := c.tasks[name]; !ok {
			problems = append(problems, problem(ErrUnresolvedReference, "watch rule %q references %q", r.Name, name))
			continue
		}
		for _, leaf := range c.Leaves(name) {
			if leaf.Handler == WatchHandlerName {
				problems = append(problems,
					problem(ErrWatchTaskInRule, "watch rule %q reaches %q through %q", r.Name, leaf.Name, name))
			}
		}
	}
	return problems
}

// findCycles walks composite tasks depth first and reports each cycle once,
// as a path such as "a -> b -> a".
func (c *TaskConfig) findCycles() []error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(c.tasks))
	var path []string
	var problems []error

	var visit func(name string)
	visit = func(name string) {
		state[name] = visiting
		path = append(path, name)

		for _, step := range c.tasks[name].Steps {
			if _, ok := c.tasks[step]; !ok {
				continue
			}
			switch state[step] {
			case visiting:
				problems = append(problems, problem(ErrCycleDetected, "%s", cyclePath(path, step)))
			case unvisited:
				visit(step)
			}
		}

		state[name] = visited
		path = path[:len(path)-1]
	}

	for _, name := range c.order {
		if state[name] == unvisited {
			visit(name)
		}
	}
	return problems
}

func cyclePath(path []string, dep string) string {
	start := 0
	for i, node := range path {
		if node == dep {
			start = i
			break
		}
	}
	var b strings.Builder
	for _, node := range path[start:] {
		b.WriteString(node)
		b.WriteString(" -> ")
	}
	b.WriteString(dep)
	return b.String()
}

// Leaves returns the atomic tasks reachable from name in execution order.
// Unknown names and cycles are skipped; Validate reports them.
func (c *TaskConfig) Leaves(name string) []TaskDefinition {
	var out []TaskDefinition
	onPath := make(map[string]bool)

	var walk func(string)
	walk = func(n string) {
		t, ok := c.tasks[n]
		if !ok || onPath[n] {
			return
		}
		if t.Kind == KindAtomic {
			out = append(out, t)
			return
		}
		onPath[n] = true
		for _, step := range t.Steps {
			walk(step)
		}
		onPath[n] = false
	}
	walk(name)
	return out
}
