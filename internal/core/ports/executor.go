// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/tend/internal/core/domain"
)

// Executor defines the interface for running external commands.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs cmd to completion, streaming its output to stdout and stderr.
	//
	// A non-zero exit status is returned as an error carrying an "exit_code"
	// metadata entry.
	Execute(ctx context.Context, cmd domain.Command, stdout, stderr io.Writer) error
}
