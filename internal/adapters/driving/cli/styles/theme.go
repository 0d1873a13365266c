// Package styles provides the colour theme for terminal answer rendering.
package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colour palette.
type Theme struct {
	// Primary is the main accent colour.
	Primary lipgloss.Color

	// Secondary marks citations.
	Secondary lipgloss.Color

	// Muted is for less important text.
	Muted lipgloss.Color

	// Success indicates positive outcomes.
	Success lipgloss.Color

	// Warning indicates caution.
	Warning lipgloss.Color

	// Error indicates problems.
	Error lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	// Title style for headers.
	Title lipgloss.Style

	// Prompt style for the interactive prompt.
	Prompt lipgloss.Style

	// Citation style for inline [n] markers.
	Citation lipgloss.Style

	// Source style for resource locations.
	Source lipgloss.Style

	// Muted style for scores and hints.
	Muted lipgloss.Style

	// Error style for failures.
	Error lipgloss.Style

	// Success style for completed steps.
	Success lipgloss.Style

	// Warning style for partial results.
	Warning lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Prompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Citation: lipgloss.NewStyle().
			Foreground(theme.Secondary),

		Source: lipgloss.NewStyle().
			Underline(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// CitationMarker renders the 1-based marker for a document index.
func (s *Styles) CitationMarker(documentIndex int) string {
	return s.Citation.Render(fmt.Sprintf("[%d]", documentIndex+1))
}

// Similarity renders a similarity score.
func (s *Styles) Similarity(v float64) string {
	return s.Muted.Render(fmt.Sprintf("(%.2f)", v))
}
