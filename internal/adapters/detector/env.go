// Package detector picks the log format from the terminal and CI environment.
package detector

import (
	"os"
	"strings"

	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// LogFormat selects how log records are rendered.
type LogFormat int

const (
	// FormatAuto picks a format from the environment.
	FormatAuto LogFormat = iota
	// FormatPretty renders coloured, human-readable lines.
	FormatPretty
	// FormatJSON renders one JSON object per record.
	FormatJSON
)

func (f LogFormat) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	default:
		return "auto"
	}
}

// ErrUnknownLogFormat is returned for log format names other than auto, pretty and json.
var ErrUnknownLogFormat = zerr.New("unknown log format, expected 'auto', 'pretty' or 'json'")

// ParseLogFormat parses a user-supplied format name. Empty means auto.
func ParseLogFormat(name string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return FormatAuto, nil
	case "pretty", "text":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatAuto, domain.Annotate(ErrUnknownLogFormat, "format", name)
	}
}

// IsCI reports whether a CI environment variable is set to a truthy value.
func IsCI() bool {
	ci := os.Getenv("CI")
	return ci == "true" || ci == "1"
}

// DetectEnvironment returns the format suited to the current process:
// pretty on an interactive stderr outside CI, JSON otherwise.
func DetectEnvironment() LogFormat {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))
	if !isTTY || IsCI() {
		return FormatJSON
	}
	return FormatPretty
}

// ResolveFormat applies an explicit choice over the detected one.
func ResolveFormat(detected, requested LogFormat) LogFormat {
	if requested == FormatAuto {
		return detected
	}
	return requested
}
