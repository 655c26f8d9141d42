package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.AdaptiveColor{Light: "#4F46E5", Dark: "#818CF8"}
	accent  = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#5EEAD4"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	danger  = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
)

type styles struct {
	Header  lipgloss.Style
	User    lipgloss.Style
	Agent   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Confirm lipgloss.Style
	Input   lipgloss.Style
	Label   lipgloss.Style
	Footer  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			Padding(0, 1),
		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginTop(1),
		Agent: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginTop(1),
		Muted: lipgloss.NewStyle().Foreground(muted),
		Error: lipgloss.NewStyle().Foreground(danger),
		Confirm: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Label: lipgloss.NewStyle().Bold(true),
		Footer: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
	}
}
