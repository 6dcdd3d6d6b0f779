package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrTaskAlreadyExists is returned when attempting to add a task with a name that already exists.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrInvalidTaskName is returned when a task name is empty or contains invalid characters.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrInvalidTaskDefinition is returned when a task block is neither atomic nor composite.
	ErrInvalidTaskDefinition = zerr.New("invalid task definition")

	// ErrTaskNotFound is returned when a requested task is not found in the configuration.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrUnresolvedReference is returned when a composite task or watch rule names an unknown task.
	ErrUnresolvedReference = zerr.New("unresolved task reference")

	// ErrUnknownHandler is returned when an atomic task names a handler that is not registered.
	ErrUnknownHandler = zerr.New("unknown handler")

	// ErrCycleDetected is returned when composite tasks reference each other in a loop.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrNoDefaultTask is returned when no task name is given and no default task is configured.
	ErrNoDefaultTask = zerr.New("no default task configured")

	// ErrNoConfigLoaded is returned when a task is run before a configuration was loaded.
	ErrNoConfigLoaded = zerr.New("no task configuration loaded")

	// ErrWatchRuleExists is returned when two watch rules share a name.
	ErrWatchRuleExists = zerr.New("watch rule already exists")

	// ErrWatchRuleNotFound is returned when a requested watch rule does not exist.
	ErrWatchRuleNotFound = zerr.New("watch rule not found")

	// ErrNoWatchRules is returned when a watch session is started without any rule.
	ErrNoWatchRules = zerr.New("no watch rules configured")

	// ErrEmptyWatchRule is returned when a watch rule has no file patterns or no tasks.
	ErrEmptyWatchRule = zerr.New("watch rule needs at least one file pattern and one task")

	// ErrWatchTaskInRule is returned when a watch rule would start another watch session.
	ErrWatchTaskInRule = zerr.New("watch rules cannot trigger watch tasks")

	// ErrInvalidWatchEvent is returned when a watch rule filters on an unknown event name.
	ErrInvalidWatchEvent = zerr.New("invalid watch event, expected 'all', 'added', 'changed' or 'deleted'")

	// ErrConfigValidation is the sentinel carried by every ConfigValidationError.
	ErrConfigValidation = zerr.New("invalid task configuration")

	// ErrDuplicateHandler is returned when a handler name is registered twice.
	ErrDuplicateHandler = zerr.New("handler already registered")

	// ErrInvalidHandlerName is returned when a handler is registered without a name.
	ErrInvalidHandlerName = zerr.New("handler name must not be empty")

	// ErrTaskExecutionFailed is the sentinel carried by every TaskExecutionError.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrBuildExecutionFailed is returned by the application when a requested run did not succeed.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrWatchSetupFailed is returned when a watch handle cannot be acquired.
	ErrWatchSetupFailed = zerr.New("failed to set up file watcher")

	// ErrWatchPathMissing is logged when a watched directory disappears after setup.
	ErrWatchPathMissing = zerr.New("watched path disappeared")

	// ErrWatchAlreadyActive is returned when Watch is called while a session is running.
	ErrWatchAlreadyActive = zerr.New("a watch session is already active")

	// ErrConfigNotFound is returned when no task file can be found.
	ErrConfigNotFound = zerr.New("could not find tend.yaml")

	// ErrConfigReadFailed is returned when the task file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the task file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidOptions is returned by handlers when task options cannot be decoded.
	ErrInvalidOptions = zerr.New("invalid task options")

	// ErrNoFilesConfigured is returned when a file handler has no src/dest or files mapping.
	ErrNoFilesConfigured = zerr.New("no files configured")

	// ErrNoSourcesMatched is returned when a source pattern matches nothing and nonull is set.
	ErrNoSourcesMatched = zerr.New("no source files matched")

	// ErrGlobFailed is returned when a glob pattern is malformed.
	ErrGlobFailed = zerr.New("failed to expand glob pattern")

	// ErrFileReadFailed is returned when a source file cannot be read.
	ErrFileReadFailed = zerr.New("failed to read file")

	// ErrFileWriteFailed is returned when a destination file cannot be written.
	ErrFileWriteFailed = zerr.New("failed to write file")

	// ErrMinifyFailed is returned when the minifier rejects its input.
	ErrMinifyFailed = zerr.New("failed to minify")

	// ErrEmptyCommand is returned when an exec task has no command.
	ErrEmptyCommand = zerr.New("command must not be empty")

	// ErrCommandFailed is returned when an external command exits with an unaccepted status.
	ErrCommandFailed = zerr.New("command failed")
)

// ConfigValidationError reports every problem found while validating a TaskConfig.
// Nothing has been executed when it is returned.
type ConfigValidationError struct {
	Problems []error
}

// Error lists each problem on its own line.
func (e *ConfigValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrConfigValidation.Error())
	fmt.Fprintf(&b, " (%d problem", len(e.Problems))
	if len(e.Problems) != 1 {
		b.WriteString("s")
	}
	b.WriteString(")")
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p.Error())
	}
	return b.String()
}

// Unwrap exposes the sentinel and every problem to errors.Is and errors.As.
func (e *ConfigValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Problems)+1)
	errs = append(errs, ErrConfigValidation)
	return append(errs, e.Problems...)
}

// TaskExecutionError is returned when an atomic task's handler reports failure.
// Task is the name of the failing leaf, not the composite that contained it.
type TaskExecutionError struct {
	Task string
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

// Unwrap exposes the sentinel and the handler's error.
func (e *TaskExecutionError) Unwrap() []error {
	return []error{ErrTaskExecutionFailed, e.Err}
}

// problem formats a validation problem around a sentinel so errors.Is keeps working.
func problem(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}

// Annotate attaches key/value context to a sentinel. The result still matches
// the sentinel with errors.Is and prints the sentinel's message.
func Annotate(sentinel error, key string, value any) error {
	return zerr.With(zerr.Wrap(sentinel, ""), key, value)
}

// Classify reports cause as an error of kind sentinel. errors.Is matches both.
func Classify(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &classifiedError{sentinel: sentinel, cause: cause}
}

type classifiedError struct {
	sentinel error
	cause    error
}

func (e *classifiedError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

// Message returns the sentinel's message without the cause.
func (e *classifiedError) Message() string {
	return e.sentinel.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Is(target error) bool {
	return target == e.sentinel
}
