package ports

import (
	"context"

	"go.trai.ch/tend/internal/core/domain"
)

// Handler performs the work of an atomic task.
// Options are opaque to the orchestrator; the handler decodes and validates them.
//
//go:generate mockgen -source=handler.go -destination=mocks/mock_handler.go -package=mocks
type Handler interface {
	Handle(ctx context.Context, inv domain.Invocation) error
}

// OptionsValidator is implemented by handlers that can check their options
// before anything runs. Problems are reported together with other
// configuration errors.
type OptionsValidator interface {
	ValidateOptions(task string, opts domain.Options) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv domain.Invocation) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, inv domain.Invocation) error {
	return f(ctx, inv)
}
