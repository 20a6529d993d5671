package ux

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by text output. The zero Styles
// renders plain text.
type Styles struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Failure lipgloss.Style
}

// NewStyles returns the colored palette, or plain styles when noColor
// is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{Title: plain, Key: plain, Value: plain, Muted: plain, Success: plain, Warning: plain, Failure: plain}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// KeyValue renders "key: value" with the key padded to width.
func (s Styles) KeyValue(key, value string, width int) string {
	return s.Key.Render(lipgloss.NewStyle().Width(width).Render(key+":")) + " " + s.Value.Render(value)
}
