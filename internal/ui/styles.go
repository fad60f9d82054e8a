package ui

import "github.com/charmbracelet/lipgloss"

// Theme is a small color palette
type Theme struct {
	Primary    string
	Secondary  string
	Subtle     string
	Background string
	Error      string
	Success    string
}

// DefaultTheme is the palette the UI renders with
var DefaultTheme = Theme{
	Primary:    "#7D56F4",
	Secondary:  "#04B575",
	Subtle:     "#737373",
	Background: "#FFFFFF",
	Error:      "#FF5F5F",
	Success:    "#04B575",
}

// Styles holds all the UI styles
type Styles struct {
	theme Theme

	Title     lipgloss.Style
	Normal    lipgloss.Style
	Help      lipgloss.Style
	Highlight lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Border    lipgloss.Style
	Detail    lipgloss.Style
	HelpKey   lipgloss.Style
	HelpDesc  lipgloss.Style
	HelpSep   lipgloss.Style
}

// NewStyles builds the style set for a theme
func NewStyles(t Theme) Styles {
	return Styles{
		theme: t,
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(t.Primary)).
			PaddingBottom(1),
		Normal: lipgloss.NewStyle(),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Subtle)).
			Italic(true),
		Highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(t.Secondary)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Error)),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(t.Success)),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Primary)).
			Padding(1, 3),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color(t.Subtle)).
			PaddingTop(1),
		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(t.Primary)),
		HelpDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Subtle)),
		HelpSep: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Subtle)),
	}
}

// DefaultStyles returns the default style set
func DefaultStyles() Styles {
	return NewStyles(DefaultTheme)
}
