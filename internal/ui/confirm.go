package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box and asks the operator to type answer.
// It reports whether they did.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, answer string) bool {
	warn := NewWarningResult(title)
	for i, w := range warnings {
		warn.AddDetail(fmt.Sprintf("%d", i+1), w)
	}
	fmt.Fprintln(out, warn.Render())
	fmt.Fprintln(out)

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	fmt.Fprint(out, prompt.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", answer)))

	input, err := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.TrimSpace(input) == answer {
		return true
	}

	cancel := lipgloss.NewStyle().Foreground(MutedColor)
	fmt.Fprintln(out, cancel.Render("  Operation cancelled."))
	return false
}
