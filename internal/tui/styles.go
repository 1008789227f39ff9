package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(cyanColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	currentCardStyle = cardStyle.Copy().
				BorderForeground(primaryColor)

	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(fgColor)
	doneTitleStyle = lipgloss.NewStyle().Strikethrough(true).Foreground(mutedColor)
	timeframeStyle = lipgloss.NewStyle().Foreground(cyanColor)
	mutedStyle     = lipgloss.NewStyle().Foreground(mutedColor)
	infoStyle      = lipgloss.NewStyle().Foreground(cyanColor)
	successStyle   = lipgloss.NewStyle().Foreground(successColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
)
