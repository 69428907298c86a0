package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue
	PinkColor      = lipgloss.Color("#F472B6") // Pink

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Lifecycle state colors
	StateHidden   = lipgloss.Color("#9CA3AF") // Gray
	StatePeeking  = lipgloss.Color("#60A5FA") // Blue
	StateEngaged  = lipgloss.Color("#10B981") // Green
	StateFleeing  = lipgloss.Color("#FB923C") // Orange
	StateStopped  = lipgloss.Color("#F87171") // Red
	ModeMedia     = lipgloss.Color("#F472B6") // Pink
	ModeSummoning = lipgloss.Color("#FBBF24") // Yellow

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Status badge styles
	StatusBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Padding(0, 1).
			MarginRight(1)

	// Content area
	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	// Sidebar holding the status fields
	Sidebar = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	// Field label and value in the sidebar
	Label = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(14)

	Value = lipgloss.NewStyle().
		Foreground(TextColor)

	// Speech bubble for what the companion says
	Speech = lipgloss.NewStyle().
		Foreground(TextColor).
		Italic(true)

	// Help bar at bottom
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// Info message
	InfoMsg = lipgloss.NewStyle().
		Foreground(SecondaryColor)
)

// StateColor returns the color for a lifecycle state name
func StateColor(state string) lipgloss.Color {
	switch state {
	case "HIDDEN":
		return StateHidden
	case "PEEKING":
		return StatePeeking
	case "ENGAGED":
		return StateEngaged
	case "FLEEING":
		return StateFleeing
	case "STOPPED":
		return StateStopped
	default:
		return MutedColor
	}
}

// StateIcon returns an icon for a lifecycle state name
func StateIcon(state string) string {
	switch state {
	case "HIDDEN":
		return "○"
	case "PEEKING":
		return "◐"
	case "ENGAGED":
		return "●"
	case "FLEEING":
		return "↯"
	case "STOPPED":
		return "✗"
	default:
		return "●"
	}
}

// ModeColor returns the color for a behavior mode name
func ModeColor(mode string) lipgloss.Color {
	switch mode {
	case "IDLE":
		return SecondaryColor
	case "BUSY":
		return MutedColor
	case "MEDIA_PLAYING":
		return ModeMedia
	case "SUMMONING":
		return ModeSummoning
	default:
		return MutedColor
	}
}

// MoodColor returns a color for a mood label
func MoodColor(label string) lipgloss.Color {
	switch label {
	case "grumpy":
		return ErrorColor
	case "annoyed":
		return WarningColor
	case "happy":
		return SecondaryColor
	case "excited":
		return PinkColor
	default:
		return BlueColor
	}
}

// Badge renders text on a colored background
func Badge(text string, color lipgloss.Color) string {
	return StatusBadge.Background(color).Render(text)
}
