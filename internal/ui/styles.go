package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "⚠"
)

// tone is the marker, label and color a result box is drawn with.
type tone struct {
	marker string
	label  string // empty for success
	color  lipgloss.Color
}

var tones = map[ResultType]tone{
	ResultSuccess: {marker: SuccessMarker, color: SuccessColor},
	ResultFailure: {marker: FailureMarker, label: "FAILED", color: ErrorColor},
	ResultWarning: {marker: WarningMarker, label: "WARNING", color: WarningColor},
}

func (t tone) title(text string) string {
	s := "   " + t.marker + "  "
	if t.label != "" {
		s += t.label + "  ─  "
	}
	return lipgloss.NewStyle().Foreground(t.color).Bold(true).Render(s + text)
}

var (
	keyStyle   = lipgloss.NewStyle().Foreground(MutedColor).Width(15)
	valueStyle = lipgloss.NewStyle().Foreground(TextColor)
	errorStyle = lipgloss.NewStyle().Foreground(ErrorColor)
	mutedStyle = lipgloss.NewStyle().Foreground(MutedColor)
)

// GetTerminalWidth returns the stdout width clamped to the supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clamp(width)
}

func clamp(width int) int {
	return min(max(width, MinTerminalWidth), MaxContentWidth)
}
