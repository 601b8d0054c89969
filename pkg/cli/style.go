package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of terminal output.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Failure lipgloss.Color
	Pending lipgloss.Color
	Dim     lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Success: lipgloss.Color("#3fb950"),
	Failure: lipgloss.Color("#f85149"),
	Pending: lipgloss.Color("#d29922"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Pending lipgloss.Style
	Help    lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Foreground(t.Primary),
		Success: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		Failure: lipgloss.NewStyle().Bold(true).Foreground(t.Failure),
		Pending: lipgloss.NewStyle().Foreground(t.Pending),
		Help:    lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Status renders a status name with its color.
func (s Styles) Status(status string) string {
	switch status {
	case "succeeded":
		return s.Success.Render(status)
	case "failed", "cancelled", "invalid":
		return s.Failure.Render(status)
	}
	return s.Pending.Render(status)
}

// Row is one line of a Table.
type Row []string

// Table writes rows as aligned columns with a styled header. Widths are
// measured with lipgloss so styled cells align.
func (s Styles) Table(w io.Writer, header Row, rows []Row) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(r[i]))
		}
	}
	line := func(cells Row, style *lipgloss.Style) string {
		var b strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if style != nil {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
			if i < len(widths)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		return strings.TrimRight(b.String(), " ")
	}
	fmt.Fprintln(w, line(header, &s.Title))
	for _, r := range rows {
		fmt.Fprintln(w, line(r, nil))
	}
}

// Print helpers for terminal output.

// PrintSuccess prints a success line to w.
func (s Styles) PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, s.Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// PrintFailure prints a failure line to w.
func (s Styles) PrintFailure(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, s.Failure.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// PrintInfo prints a dimmed line to w.
func (s Styles) PrintInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, s.Help.Render(fmt.Sprintf(format, args...)))
}
