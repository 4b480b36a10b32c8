package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
// - Default: primary text (names, values)
// - Accent: UUIDs, headers of detail views
// - Muted: model/type locations, row numbers, hints

var (
	// Accent style for UUIDs and highlights
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))

	// Muted style for secondary info, hints, row numbers
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// AccentBold combines accent color with bold
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)
)
