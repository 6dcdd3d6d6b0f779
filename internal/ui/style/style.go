// Package style holds the colours, icons and lipgloss styles shared by the
// logger, the task renderer and the CLI listings.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Accent = lipgloss.Color("#8B5CF6")
	Muted  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Dot     = "●"
	Arrow   = "→"
)

// Styles used by listings.
var (
	TaskName    = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	Description = lipgloss.NewStyle().Foreground(Muted)
	Heading     = lipgloss.NewStyle().Bold(true).Underline(true)
	Steps       = lipgloss.NewStyle().Italic(true).Foreground(Muted)
)
