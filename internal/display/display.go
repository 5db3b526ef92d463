// Package display provides terminal formatting for fuc output.
package display

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Styles
	Dim       = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold      = lipgloss.NewStyle().Bold(true)
	Success   = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
)

// Header prints a bold section header.
func Header(text string) {
	fmt.Println(Bold.Render(text))
}

// SuccessMsg prints a green success line.
func SuccessMsg(format string, args ...any) {
	fmt.Println(Success.Render("✓ " + fmt.Sprintf(format, args...)))
}

// ErrorMsg prints a red error line.
func ErrorMsg(format string, args ...any) {
	fmt.Println(ErrStyle.Render("✗ " + fmt.Sprintf(format, args...)))
}

// Truncate shortens a string to max runes with an ellipsis.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// TimeAgoMillis formats an epoch-millisecond timestamp as a relative time.
func TimeAgoMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	d := time.Since(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
