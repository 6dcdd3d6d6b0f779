package ports

import "time"

// Renderer presents task progress. It is fed by the telemetry bridge so the
// orchestrator never writes to the terminal itself.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// OnTaskStart is called when a task begins execution.
	// spanID: unique identifier for this task execution
	// parentID: spanID of the parent task (empty if root)
	// name: human-readable task name
	// startTime: when the task started
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a task emits output.
	// data may contain partial lines.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a task finishes execution.
	// err is nil if successful.
	OnTaskComplete(spanID string, endTime time.Time, err error)

	// Flush writes any buffered partial lines.
	Flush() error
}
