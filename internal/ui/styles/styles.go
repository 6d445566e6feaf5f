package styles

import "github.com/charmbracelet/lipgloss"

var (
	Title     = lipgloss.NewStyle().Bold(true)
	Header    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	Footer    = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	Box       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	FormBox   = Box.BorderForeground(lipgloss.Color("#7DCE13"))
	Danger    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	Warn      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	Good      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7AF"))
	Faint     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	Tag       = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFFF"))
	BadgeUp   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#5FD7AF"))
	BadgeDown = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF5F87"))
)

// Status styles an Up/Down label.
func Status(healthy bool) lipgloss.Style {
	if healthy {
		return Good
	}
	return Danger
}

func Badge(healthy bool) lipgloss.Style {
	if healthy {
		return BadgeUp
	}
	return BadgeDown
}
