package theme

import (
	"github.com/charmbracelet/lipgloss"

	"tether/internal/domain"
)

// Common styles used across CLI output
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSubtle)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)

var statusStyles = map[domain.SessionStatus]lipgloss.Style{
	domain.StatusActive:     lipgloss.NewStyle().Foreground(ColorActive),
	domain.StatusCreated:    lipgloss.NewStyle().Foreground(ColorCreated),
	domain.StatusPaused:     lipgloss.NewStyle().Foreground(ColorPaused),
	domain.StatusTerminated: lipgloss.NewStyle().Foreground(ColorTerminated),
}

// StatusStyle returns the render style for a session status.
func StatusStyle(status domain.SessionStatus) lipgloss.Style {
	if style, ok := statusStyles[status]; ok {
		return style
	}
	return lipgloss.NewStyle().Foreground(ColorNormal)
}
