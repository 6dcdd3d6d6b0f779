package domain

import (
	"io"
	"strings"
)

// TaskKind distinguishes atomic tasks from composite ones.
type TaskKind uint8

const (
	// KindAtomic tasks invoke exactly one handler.
	KindAtomic TaskKind = iota
	// KindComposite tasks run other tasks in declared order.
	KindComposite
)

func (k TaskKind) String() string {
	if k == KindComposite {
		return "composite"
	}
	return "atomic"
}

// TargetSeparator joins a multi-task name and one of its targets, as in "concat:js".
const TargetSeparator = ":"

// Options holds handler-specific settings. The orchestrator never inspects them.
type Options map[string]any

// TaskDefinition is a tagged variant: either an atomic task bound to a handler
// or a composite task listing other task names.
type TaskDefinition struct {
	Name        string
	Kind        TaskKind
	Description string

	// Handler and Options are set for atomic tasks.
	Handler string
	Options Options

	// Steps is set for composite tasks.
	Steps []string
}

// NewAtomicTask returns a task that invokes handler with opts.
func NewAtomicTask(name, handler string, opts Options) TaskDefinition {
	return TaskDefinition{
		Name:    name,
		Kind:    KindAtomic,
		Handler: handler,
		Options: opts,
	}
}

// NewCompositeTask returns a task that runs steps in order.
func NewCompositeTask(name string, steps ...string) TaskDefinition {
	return TaskDefinition{
		Name:  name,
		Kind:  KindComposite,
		Steps: steps,
	}
}

// WithDescription returns a copy of t with the given description.
func (t TaskDefinition) WithDescription(desc string) TaskDefinition {
	t.Description = desc
	return t
}

// IsComposite reports whether t runs other tasks rather than a handler.
func (t TaskDefinition) IsComposite() bool {
	return t.Kind == KindComposite
}

// TargetName builds the name of a multi-task target.
func TargetName(task, target string) string {
	return task + TargetSeparator + target
}

// SplitTargetName splits "task:target". ok is false for names without a target.
func SplitTargetName(name string) (task, target string, ok bool) {
	return strings.Cut(name, TargetSeparator)
}

// Invocation is everything a handler receives for one atomic task run.
type Invocation struct {
	// Task is the name of the atomic task being run.
	Task string
	// Root is the project root; relative paths in options resolve against it.
	Root string
	// Options are the task's declared options, passed through unmodified.
	Options Options
	// Output receives human-readable progress and command output.
	Output io.Writer
}

// FileMapping pairs an ordered list of source patterns with one destination.
type FileMapping struct {
	Sources []string
	Dest    string
}

// Command describes one external process to run.
type Command struct {
	Args       []string
	WorkingDir string
	Env        map[string]string
}
