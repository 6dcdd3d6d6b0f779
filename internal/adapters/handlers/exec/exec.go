// Package exec implements the exec handler, which runs one external command.
package exec

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/shlex"
	"go.trai.ch/tend/internal/adapters/handlers/taskopts"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

// Name is the handler identifier used in task files.
const Name = "exec"

// Options are the exec task options.
type Options struct {
	Command string            `mapstructure:"command"`
	Cwd     string            `mapstructure:"cwd"`
	Env     map[string]string `mapstructure:"env"`
	// Shell runs the command through "sh -c". Defaults to true.
	Shell *bool `mapstructure:"shell"`
	// ExitCodes lists the accepted exit statuses. Defaults to [0].
	ExitCodes []int `mapstructure:"exitCodes"`
}

func (o Options) exitCodes() []int {
	if len(o.ExitCodes) == 0 {
		return []int{0}
	}
	return o.ExitCodes
}

// argv builds the process arguments for the command.
func (o Options) argv() ([]string, error) {
	if strings.TrimSpace(o.Command) == "" {
		return nil, domain.ErrEmptyCommand
	}
	if o.Shell == nil || *o.Shell {
		return []string{"sh", "-c", o.Command}, nil
	}
	args, err := shlex.Split(o.Command)
	if err != nil {
		return nil, zerr.With(domain.Classify(domain.ErrInvalidOptions, err), "command", o.Command)
	}
	if len(args) == 0 {
		return nil, domain.ErrEmptyCommand
	}
	return args, nil
}

// Handler implements ports.Handler and ports.OptionsValidator.
type Handler struct {
	executor ports.Executor
}

// New creates an exec handler running commands through executor.
func New(executor ports.Executor) *Handler {
	return &Handler{executor: executor}
}

func parse(opts domain.Options) (Options, []string, error) {
	var o Options
	if err := taskopts.Decode(opts, &o); err != nil {
		return o, nil, err
	}
	args, err := o.argv()
	if err != nil {
		return o, nil, err
	}
	return o, args, nil
}

// ValidateOptions checks that a command is configured and can be split.
func (h *Handler) ValidateOptions(task string, opts domain.Options) error {
	if _, _, err := parse(opts); err != nil {
		return zerr.With(err, "task", task)
	}
	return nil
}

// Handle runs the command to completion. An exit status outside exitCodes fails the task.
func (h *Handler) Handle(ctx context.Context, inv domain.Invocation) error {
	opts, args, err := parse(inv.Options)
	if err != nil {
		return err
	}

	dir := inv.Root
	if opts.Cwd != "" {
		dir = opts.Cwd
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(inv.Root, filepath.FromSlash(dir))
		}
	}

	err = h.executor.Execute(ctx, domain.Command{
		Args:       args,
		WorkingDir: dir,
		Env:        opts.Env,
	}, inv.Output, inv.Output)

	code := exitCode(err)
	if slices.Contains(opts.exitCodes(), code) {
		return nil
	}
	if err == nil {
		return domain.Annotate(domain.ErrCommandFailed, "exit_code", code)
	}
	return err
}

// exitCode extracts the status reported by the executor. Success is 0 and
// errors without a status are -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var zErr *zerr.Error
	if errors.As(err, &zErr) {
		if code, ok := zErr.Metadata()["exit_code"].(int); ok {
			return code
		}
	}
	return -1
}
