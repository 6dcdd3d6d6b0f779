package shell_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tend/internal/adapters/shell"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func newExecutor(t *testing.T, opts ...shell.Option) *shell.Executor {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	return shell.NewExecutor(mockLogger, opts...)
}

func TestExecutor_Execute_SeparatesStreams(t *testing.T) {
	executor := newExecutor(t, shell.WithPTY(false))

	var stdout, stderr bytes.Buffer
	err := executor.Execute(context.Background(), domain.Command{
		Args:       []string{"sh", "-c", "echo line1; echo line2; echo oops >&2"},
		WorkingDir: t.TempDir(),
	}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "line1\nline2\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestExecutor_Execute_FragmentedOutput(t *testing.T) {
	executor := newExecutor(t, shell.WithPTY(false))

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), domain.Command{
		Args: []string{"sh", "-c", "printf part1; sleep 0.1; echo part2; printf tail"},
	}, &stdout, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "part1part2\ntail\n", stdout.String())
}

func TestExecutor_Execute_EnvironmentAndWorkingDir(t *testing.T) {
	executor := newExecutor(t, shell.WithPTY(false))
	dir := t.TempDir()

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), domain.Command{
		Args:       []string{"sh", "-c", "echo $TEND_VALUE; pwd"},
		WorkingDir: dir,
		Env:        map[string]string{"TEND_VALUE": "test-value-123"},
	}, &stdout, io.Discard)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "test-value-123\n")
	assert.Contains(t, stdout.String(), resolved)
}

func TestExecutor_Execute_ExitCode(t *testing.T) {
	executor := newExecutor(t, shell.WithPTY(false))

	err := executor.Execute(context.Background(), domain.Command{
		Args: []string{"sh", "-c", "exit 3"},
	}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCommandFailed)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Equal(t, 3, zErr.Metadata()["exit_code"])
	assert.Equal(t, "sh", zErr.Metadata()["command"])
}

func TestExecutor_Execute_EmptyCommand(t *testing.T) {
	executor := newExecutor(t)

	err := executor.Execute(context.Background(), domain.Command{}, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrEmptyCommand)
}

func TestExecutor_Execute_MissingBinary(t *testing.T) {
	executor := newExecutor(t, shell.WithPTY(false))

	err := executor.Execute(context.Background(), domain.Command{
		Args: []string{"definitely-not-a-real-binary-tend"},
	}, io.Discard, io.Discard)
	require.Error(t, err)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, -1, zErr.Metadata()["exit_code"])
}

func TestExecutor_Execute_ContextCancel(t *testing.T) {
	executor := newExecutor(t, shell.WithPTY(false))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := executor.Execute(ctx, domain.Command{
		Args: []string{"sleep", "5"},
	}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecutor_Execute_PTY(t *testing.T) {
	if _, err := os.Stat("/dev/ptmx"); err != nil {
		t.Skip("pseudo-terminals are not available")
	}
	executor := newExecutor(t)

	var stdout bytes.Buffer
	err := executor.Execute(context.Background(), domain.Command{
		Args: []string{"sh", "-c", "echo from-pty; echo also-stdout >&2"},
	}, &stdout, io.Discard)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "from-pty\n")
	assert.Contains(t, stdout.String(), "also-stdout\n")
	assert.NotContains(t, stdout.String(), "\r")
}
