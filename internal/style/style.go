// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"ecocivic/api/internal/badge"
)

var (
	// Success style for positive outcomes
	Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10")). // Green
		Bold(true)

	// Warning style for cautionary messages
	Warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color("11")). // Yellow
		Bold(true)

	// Error style for failures
	Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")). // Red
		Bold(true)

	Info = lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")) // Blue

	Dim = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")) // Gray

	Bold = lipgloss.NewStyle().
		Bold(true)

	// Points highlights scores in leaderboards and profiles
	Points = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	// Header is used for table headings
	Header = lipgloss.NewStyle().
		Bold(true).
		Underline(true)

	SuccessPrefix = Success.Render("✓")
	WarningPrefix = Warning.Render("⚠")
	ErrorPrefix   = Error.Render("✗")
	ArrowPrefix   = Info.Render("→")
)

// Badge renders a badge with its icon and display name.
func Badge(b badge.Badge) string {
	info := b.Info()
	return fmt.Sprintf("%s %s", info.Icon, Bold.Render(info.Name))
}

// Rank renders a leaderboard position; the podium gets medals.
func Rank(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return Dim.Render(fmt.Sprintf("#%d", rank))
}
