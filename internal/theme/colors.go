package theme

import "github.com/charmbracelet/lipgloss"

// Color is an alias for lipgloss.Color for convenience
type Color = lipgloss.Color

// Brand colors
const (
	ColorPrimary Color = "99" // Purple - app name, titles
)

// Session status colors
const (
	ColorActive     Color = "2" // Green - agent running
	ColorCreated    Color = "3" // Yellow - not yet started
	ColorPaused     Color = "6" // Cyan - parked
	ColorTerminated Color = "8" // Gray - finished
)

// UI semantic colors
const (
	ColorMuted  Color = "241" // Gray - secondary text
	ColorNormal Color = "250" // Default text
	ColorSubtle Color = "245" // Light gray - labels
)
