package terminal

import (
	"io"
	"strconv"
	"strings"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/charmbracelet/lipgloss"
)

// maxCellWidth truncates long values in the table.
const maxCellWidth = 24

type styles struct {
	title    lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
	selected lipgloss.Style
	notice   lipgloss.Style
	err      lipgloss.Style
	faint    lipgloss.Style
	ok       lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		tab:      r.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8")),
		tabOn:    r.NewStyle().Padding(0, 1).Bold(true).Underline(true),
		header:   r.NewStyle().Bold(true),
		cell:     r.NewStyle(),
		selected: r.NewStyle().Foreground(lipgloss.Color("10")),
		notice:   r.NewStyle().Foreground(lipgloss.Color("11")),
		err:      r.NewStyle().Foreground(lipgloss.Color("9")),
		faint:    r.NewStyle().Faint(true),
		ok:       r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

func truncate(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > w {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// renderTabs draws the tab bar with the active tab highlighted.
func (st styles) renderTabs(tabs []*cases.Tab, active string) string {
	parts := make([]string, 0, len(tabs))
	for i, t := range tabs {
		label := strings.TrimSpace(t.Name)
		if t.Status == cases.StatusLoading {
			label += " …"
		}
		label = strconv.Itoa(i+1) + ":" + label
		if t.ID == active {
			parts = append(parts, st.tabOn.Render(label))
		} else {
			parts = append(parts, st.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// renderTable draws records as aligned columns. With a selection, the first
// column marks selected rows.
func (st styles) renderTable(columns []cases.Column, records []cases.Record, sel *cases.Selection) string {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c.Label)
	}
	cells := make([][]string, len(records))
	for r, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			v := truncate(c.Display(rec), maxCellWidth)
			row[i] = v
			if w := lipgloss.Width(v); w > widths[i] {
				widths[i] = w
			}
		}
		cells[r] = row
	}

	var b strings.Builder
	header := make([]string, 0, len(columns)+1)
	if sel != nil {
		header = append(header, "   ")
	}
	for i, c := range columns {
		header = append(header, st.header.Width(widths[i]+2).Render(" "+c.Label))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
	b.WriteByte('\n')

	for r, rec := range records {
		mark := "[ ]"
		style := st.cell
		if sel != nil && sel.Has(rec.ApplicationNo()) {
			mark = "[x]"
			style = st.selected
		}
		line := make([]string, 0, len(columns)+1)
		if sel != nil {
			line = append(line, style.Render(mark))
		}
		for i := range columns {
			line = append(line, style.Width(widths[i]+2).Render(" "+cells[r][i]))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, line...))
		b.WriteByte('\n')
	}
	return b.String()
}

// PrintTable writes records as an aligned table.
func PrintTable(w io.Writer, columns []cases.Column, records []cases.Record) error {
	_, err := io.WriteString(w, newStyles(w).renderTable(columns, records, nil))
	return err
}
