package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
)

// Palette
var (
	accentColor = lipgloss.Color("#cba6f7")
	textColor   = lipgloss.Color("#cdd6f4")
	faintColor  = lipgloss.Color("#6c7086")
	borderColor = lipgloss.Color("#313244")
)

// styles renders for one output. Colours are dropped when the output is not a terminal.
type styles struct {
	header lipgloss.Style
	cell   lipgloss.Style
	faint  lipgloss.Style
	border lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1),
		cell:   r.NewStyle().Foreground(textColor).Padding(0, 1),
		faint:  r.NewStyle().Foreground(faintColor).Padding(0, 1),
		border: r.NewStyle().Foreground(borderColor),
	}
}

// table renders rows under headers. Columns listed in faint are dimmed.
func (s styles) table(headers []string, rows [][]string, faint ...int) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.header
			case lo.Contains(faint, col):
				return s.faint
			default:
				return s.cell
			}
		}).
		Render()
}
