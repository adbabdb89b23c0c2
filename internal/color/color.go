package color

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette with light and dark variants.
var (
	ColorPrimary = lipgloss.AdaptiveColor{
		Light: "#5A56E0",
		Dark:  "#7571F9",
	}
	ColorSuccess = lipgloss.AdaptiveColor{
		Light: "#059669",
		Dark:  "#10B981",
	}
	ColorError = lipgloss.AdaptiveColor{
		Light: "#DC2626",
		Dark:  "#EF4444",
	}
	ColorWarning = lipgloss.AdaptiveColor{
		Light: "#D97706",
		Dark:  "#F59E0B",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#9CA3AF",
		Dark:  "#6B7280",
	}
)

// Styles used by command output.
var (
	TitleStyle   = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Initialize sets the background mode the adaptive colors resolve against.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}

// Status renders a node, pod or event status in the color of its health.
func Status(s string) string {
	switch strings.ToLower(s) {
	case "ready", "running", "succeeded", "completed", "normal", "true":
		return SuccessStyle.Render(s)
	case "pending", "containercreating", "warning", "unknown":
		return WarningStyle.Render(s)
	case "notready", "failed", "crashloopbackoff", "error", "evicted", "oomkilled", "false":
		return ErrorStyle.Render(s)
	default:
		return s
	}
}
