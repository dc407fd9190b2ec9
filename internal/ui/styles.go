package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	colorPrimary   = lipgloss.Color("#3CB371") // Medium sea green
	colorSecondary = lipgloss.Color("#98FB98") // Pale green
	colorDanger    = lipgloss.Color("#FF6B6B") // Red for errors
	colorWarning   = lipgloss.Color("#FFD93D") // Yellow for confirmations
	colorSuccess   = lipgloss.Color("#6BCF7F") // Green
	colorMuted     = lipgloss.Color("#6C757D") // Gray
	colorBorder    = lipgloss.Color("#2E8B57") // Border green

	// Title styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	activeTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(colorPrimary)

	// Content styles
	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	fieldErrorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			PaddingLeft(14)

	// Help text style
	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(1, 0)

	// Utility styles
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	filterStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	// Section header styles
	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				Padding(0, 1).
				MarginTop(1)

	sectionBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2).
			MarginBottom(1)

	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorWarning).
			Padding(1, 2)
)
