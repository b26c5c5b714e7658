package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	ID      lipgloss.Style
	Key     lipgloss.Style
}

// newStyles builds styles bound to w. Without a terminal the profile is
// plain ASCII so no escape codes are written.
func newStyles(w io.Writer, tty bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !tty {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: r.NewStyle().Bold(true).Underline(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		ID:      r.NewStyle().Foreground(lipgloss.Color("14")),
		Key:     r.NewStyle().Foreground(lipgloss.Color("6")),
	}
}
