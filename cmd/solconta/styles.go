package main

import "github.com/charmbracelet/lipgloss"

var (
	incomeColor  = lipgloss.Color("#16a34a")
	expenseColor = lipgloss.Color("#dc2626")
	subtleColor  = lipgloss.Color("#6b7280")
	accentColor  = lipgloss.Color("#2563eb")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true)

	incomeStyle  = lipgloss.NewStyle().Foreground(incomeColor)
	expenseStyle = lipgloss.NewStyle().Foreground(expenseColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	successStyle = lipgloss.NewStyle().Foreground(incomeColor)
	errorStyle   = lipgloss.NewStyle().Foreground(expenseColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtleColor).
			Padding(0, 2)
)

// swatch renders a small block in a category's color.
func swatch(hex string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("■")
}
