// Package shell provides a process executor for running external commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/creack/pty"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec, with a PTY where available.
type Executor struct {
	logger ports.Logger
	usePTY bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithPTY selects whether commands run attached to a pseudo-terminal.
// Output from a PTY merges stdout and stderr into stdout.
func WithPTY(enabled bool) Option {
	return func(e *Executor) {
		e.usePTY = enabled
	}
}

// NewExecutor creates a new Executor. Commands run in a PTY by default so
// tools keep their colored output.
func NewExecutor(logger ports.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger: logger,
		usePTY: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs cmd and waits for it to complete. A non-zero exit is reported
// with "exit_code" metadata.
func (e *Executor) Execute(ctx context.Context, command domain.Command, stdout, stderr io.Writer) error {
	if len(command.Args) == 0 {
		return domain.ErrEmptyCommand
	}

	name := command.Args[0]
	args := command.Args[1:]

	cmdEnv := resolveEnvironment(os.Environ(), command.Env)

	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	build := func() *exec.Cmd {
		cmd := exec.CommandContext(ctx, executable, args...) //nolint:gosec // user provided command
		if len(cmd.Args) > 0 {
			cmd.Args[0] = name
		}
		cmd.Dir = command.WorkingDir
		cmd.Env = cmdEnv
		return cmd
	}

	e.logger.Debug("running command", "args", command.Args, "dir", command.WorkingDir)

	var err error
	if e.usePTY {
		err = e.runPTY(build, stdout, stderr)
	} else {
		err = runPipes(build(), stdout, stderr)
	}
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return zerr.With(zerr.With(domain.Classify(domain.ErrCommandFailed, err), "exit_code", exitCode), "command", name)
}

func (e *Executor) runPTY(build func() *exec.Cmd, stdout, stderr io.Writer) error {
	cmd := build()
	ptmx, err := pty.Start(cmd)
	if err != nil {
		// exec.Cmd cannot be started twice; the fallback gets a fresh one.
		e.logger.Debug("pty unavailable, falling back to pipes", "error", err.Error())
		return runPipes(build(), stdout, stderr)
	}

	out := &lineWriter{w: stdout}
	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		defer func() { _ = ptmx.Close() }()
		// A PTY reports EIO once the child exits; that is the normal end of output.
		_, _ = io.Copy(out, ptmx)
	}()

	err = cmd.Wait()
	<-ioDone
	_ = out.Close()
	return err
}

func runPipes(cmd *exec.Cmd, stdout, stderr io.Writer) error {
	var mu sync.Mutex
	out := &lineWriter{w: stdout, mu: &mu}
	errOut := &lineWriter{w: stderr, mu: &mu}
	cmd.Stdout = out
	cmd.Stderr = errOut

	err := cmd.Run()
	_ = out.Close()
	_ = errOut.Close()
	return err
}

// lineWriter forwards whole lines to w, dropping the carriage returns a PTY adds.
// Close flushes a trailing partial line.
type lineWriter struct {
	w   io.Writer
	mu  *sync.Mutex
	buf []byte
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.writeLine(l.buf[:i])
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

func (l *lineWriter) Close() error {
	if len(l.buf) > 0 {
		l.writeLine(l.buf)
		l.buf = nil
	}
	return nil
}

func (l *lineWriter) writeLine(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	out := make([]byte, 0, len(line)+1)
	out = append(out, line...)
	out = append(out, '\n')
	if l.mu != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	_, _ = l.w.Write(out)
}

// resolveEnvironment overlays the command's variables on the inherited environment.
// The result is sorted by key.
func resolveEnvironment(sysEnv []string, cmdEnv map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(cmdEnv))
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range cmdEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// lookPath searches for an executable in the directories named by the PATH environment variable.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
