// Package report renders run output: per-file summaries, totals, progress
// lines and history records.
package report

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is the colour scheme name.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type palette struct {
	Text, Dim, Accent, Word, Value, Heading, Warn, Error lipgloss.Color
}

// Tokyo Night
var darkPalette = palette{
	Text:    lipgloss.Color("#c0caf5"),
	Dim:     lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Word:    lipgloss.Color("#7dcfff"),
	Value:   lipgloss.Color("#9ece6a"),
	Heading: lipgloss.Color("#bb9af7"),
	Warn:    lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
}

var lightPalette = palette{
	Text:    lipgloss.Color("#343b58"),
	Dim:     lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Word:    lipgloss.Color("#166775"),
	Value:   lipgloss.Color("#485e30"),
	Heading: lipgloss.Color("#7847bd"),
	Warn:    lipgloss.Color("#8f5e15"),
	Error:   lipgloss.Color("#8c4351"),
}

// Styles are the lipgloss styles used by a Printer.
type Styles struct {
	renderer *lipgloss.Renderer
	palette  palette

	File    lipgloss.Style
	Total   lipgloss.Style
	Partial lipgloss.Style
	Word    lipgloss.Style
	Value   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds styles for theme on renderer r.
func NewStyles(r *lipgloss.Renderer, theme Theme) Styles {
	p := darkPalette
	if theme == ThemeLight {
		p = lightPalette
	}
	return Styles{
		renderer: r,
		palette:  p,
		File:     r.NewStyle().Foreground(p.Heading).Bold(true),
		Total:    r.NewStyle().Foreground(p.Accent).Bold(true),
		Partial:  r.NewStyle().Foreground(p.Warn).Bold(true),
		Word:     r.NewStyle().Foreground(p.Word),
		Value:    r.NewStyle().Foreground(p.Value).Bold(true),
		Dim:      r.NewStyle().Foreground(p.Dim),
		Label:    r.NewStyle().Foreground(p.Text),
		Warn:     r.NewStyle().Foreground(p.Warn),
		Error:    r.NewStyle().Foreground(p.Error).Bold(true),
	}
}

// Profile returns the colour profile styles render with.
func (s Styles) Profile() termenv.Profile { return s.renderer.ColorProfile() }

// NewRenderer returns a renderer for w using the given profile.
func NewRenderer(w io.Writer, profile termenv.Profile) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return r
}

// ColorProfile picks a colour profile from the environment. PGREPWC_COLOR
// (truecolor, 256, 16, none) wins; output that is not a terminal is plain;
// otherwise COLORTERM and TERM are consulted, falling back to ANSI256.
func ColorProfile(getenv func(string) string, isTerminal bool) termenv.Profile {
	switch strings.ToLower(getenv("PGREPWC_COLOR")) {
	case "truecolor", "true", "24bit":
		return termenv.TrueColor
	case "256", "ansi256":
		return termenv.ANSI256
	case "16", "ansi", "basic":
		return termenv.ANSI
	case "none", "off", "ascii":
		return termenv.Ascii
	}

	if !isTerminal || getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}

	colorTerm := getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		return termenv.TrueColor
	}

	term := getenv("TERM")
	if term == "dumb" {
		return termenv.Ascii
	}
	for _, t := range []string{"xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			return termenv.TrueColor
		}
	}
	if strings.Contains(term, "256color") {
		return termenv.ANSI256
	}
	if getenv("WT_SESSION") != "" || getenv("ITERM_SESSION_ID") != "" {
		return termenv.TrueColor
	}
	return termenv.ANSI256
}
