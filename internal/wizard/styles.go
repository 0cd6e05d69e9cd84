package wizard

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("86")
	green  = lipgloss.Color("42")
	red    = lipgloss.Color("196")
	blue   = lipgloss.Color("75")
	grey   = lipgloss.Color("240")
)

var (
	headerStyle        = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	sectionHeaderStyle = lipgloss.NewStyle().Foreground(accent).Bold(true).MarginTop(1)
	labelStyle         = lipgloss.NewStyle().Foreground(grey)
	infoStyle          = lipgloss.NewStyle().Foreground(blue)
	successStyle       = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(red).Bold(true)
	selectedStyle      = successStyle
	unselectedStyle    = labelStyle

	// Every screen sits in one rounded box
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(grey).
			Padding(1, 2)

	hintStyle = lipgloss.NewStyle().
			Foreground(blue).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1).
			MarginTop(1)

	keysStyle = lipgloss.NewStyle().Foreground(grey).Italic(true).MarginTop(1)
)

const (
	iconDatabase = "🗄"
	iconSecurity = "🔒"
	iconCheck    = "✓"
	iconCross    = "✗"
	iconSpinner  = "⏳"
	iconArrow    = "►"
	iconHint     = "💡"
)

func renderHeader(text string) string {
	return headerStyle.Render(text)
}

func renderSectionHeader(text string) string {
	return sectionHeaderStyle.Render(iconDatabase + " " + text)
}

func renderSuccess(text string) string {
	return successStyle.Render(iconCheck + " " + text)
}

func renderError(text string) string {
	return errorStyle.Render(iconCross + " " + text)
}

func renderInfo(text string) string {
	return hintStyle.Render(iconHint + " " + text)
}

// renderOption draws one entry of a vertical menu
func renderOption(selected bool, text string) string {
	if selected {
		return selectedStyle.Render(iconArrow + " " + text)
	}
	return unselectedStyle.Render("  " + text)
}

func renderStatusBar(keys string) string {
	return keysStyle.Render(keys)
}
