package domain

import (
	"strings"
	"time"
)

// ChangeKind classifies a filesystem change.
type ChangeKind uint8

const (
	// ChangeAdded is reported for created files and directories.
	ChangeAdded ChangeKind = 1 << iota
	// ChangeChanged is reported for writes and permission changes.
	ChangeChanged
	// ChangeDeleted is reported for removed or renamed-away paths.
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeChanged:
		return "changed"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DefaultDebounce is the settle window for watch rules that do not set one.
const DefaultDebounce = 50 * time.Millisecond

// EventMask is a set of change kinds a watch rule reacts to.
type EventMask uint8

// AllEvents reacts to every kind of change.
const AllEvents = EventMask(ChangeAdded | ChangeChanged | ChangeDeleted)

// Has reports whether k is part of the mask. An empty mask accepts everything.
func (m EventMask) Has(k ChangeKind) bool {
	return m == 0 || m&EventMask(k) != 0
}

// ParseEventMask parses event names such as "all", "added", "changed" and "deleted".
func ParseEventMask(names ...string) (EventMask, error) {
	var m EventMask
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "all", "":
			m |= AllEvents
		case "added", "add", "create":
			m |= EventMask(ChangeAdded)
		case "changed", "change", "write":
			m |= EventMask(ChangeChanged)
		case "deleted", "delete", "remove":
			m |= EventMask(ChangeDeleted)
		default:
			return 0, Annotate(ErrInvalidWatchEvent, "event", name)
		}
	}
	if m == 0 {
		m = AllEvents
	}
	return m, nil
}

// WatchRule binds an ordered set of glob patterns to an ordered list of tasks.
// Patterns are relative to the project root, use "/" separators and may start
// with "!" to exclude paths matched by earlier patterns.
type WatchRule struct {
	Name     string
	Patterns []string
	Tasks    []string

	// Events limits which change kinds trigger the rule.
	Events EventMask
	// Debounce is the settle window. Zero uses the session default.
	Debounce time.Duration
	// AtBegin runs the task list once when watching starts.
	AtBegin bool
	// SkipUnchanged suppresses runs when matched files hash the same as last time.
	SkipUnchanged bool
}
