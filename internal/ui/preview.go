package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	ctable "github.com/mcao2/contact-enrich/internal/table"
)

// previewRows is how many enriched rows the done screen shows.
const previewRows = 10

// PreviewView shows the first rows of an enriched table.
type PreviewView struct {
	table   table.Model
	data    *ctable.Table
	label   int // column used to identify the row
	output  int // derived column
	rows    int
	cursor  int
	width   int
	columns []table.Column
}

func previewColumns(width int, labelTitle, outputTitle string) []table.Column {
	// Cell padding is 2 per column, plus a small margin.
	labelWidth := 24
	textWidth := width - 4 - labelWidth - 3*2 - 4
	if textWidth < 20 {
		textWidth = 20
	}
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: Truncate(labelTitle, labelWidth), Width: labelWidth},
		{Title: Truncate(outputTitle, textWidth), Width: textWidth},
	}
}

// NewPreviewView builds a preview of data, labelling rows with labelColumn.
func NewPreviewView(data *ctable.Table, labelColumn, outputColumn string, width int) PreviewView {
	pv := PreviewView{
		data:   data,
		label:  data.ColumnIndex(labelColumn),
		output: data.ColumnIndex(outputColumn),
		rows:   min(previewRows, data.Len()),
		width:  width,
	}
	if pv.label < 0 {
		pv.label = 0
	}

	pv.columns = previewColumns(width, data.Header[pv.label], outputColumn)
	pv.table = table.New(
		table.WithColumns(pv.columns),
		table.WithHeight(pv.rows+1),
		table.WithFocused(true),
	)
	pv.updateRows()
	return pv
}

// UpdateTableStyles updates the styles to match the current theme
func (pv *PreviewView) UpdateTableStyles(theme Theme) {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Subtle)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(theme.Primary))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(theme.Background)).
		Background(lipgloss.Color(theme.Primary)).
		Bold(false)
	pv.table.SetStyles(s)
}

func (pv *PreviewView) updateRows() {
	rows := make([]table.Row, pv.rows)
	for i := 0; i < pv.rows; i++ {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			Truncate(pv.cell(i, pv.label), pv.columns[1].Width),
			Truncate(pv.cell(i, pv.output), pv.columns[2].Width),
		}
	}
	pv.table.SetRows(rows)
}

func (pv PreviewView) cell(row, col int) string {
	if col < 0 || row >= pv.data.Len() || col >= len(pv.data.Rows[row]) {
		return ""
	}
	return strings.ReplaceAll(pv.data.Rows[row][col], "\n", " ")
}

// SetWidth re-lays the columns for a new terminal width.
func (pv *PreviewView) SetWidth(width int) {
	pv.width = width
	pv.columns = previewColumns(width, pv.columns[1].Title, pv.columns[2].Title)
	pv.table.SetColumns(pv.columns)
	pv.updateRows()
}

func (pv PreviewView) Cursor() int {
	return pv.cursor
}

// MoveCursor moves the selection, clamped to the previewed rows.
func (pv *PreviewView) MoveCursor(delta int) {
	if pv.rows == 0 {
		return
	}
	pv.cursor += delta
	if pv.cursor < 0 {
		pv.cursor = 0
	}
	if pv.cursor >= pv.rows {
		pv.cursor = pv.rows - 1
	}
	pv.table.SetCursor(pv.cursor)
}

// SelectedText returns the full derived text of the selected row.
func (pv PreviewView) SelectedText() string {
	if pv.rows == 0 || pv.output < 0 {
		return ""
	}
	return pv.data.Rows[pv.cursor][pv.output]
}

// DetailView renders the selected row's full derived text.
func (pv PreviewView) DetailView(styles Styles) string {
	text := pv.SelectedText()
	if text == "" {
		return ""
	}
	width := pv.width - 4
	if width < 20 {
		width = 20
	}
	return styles.Detail.Width(width).Render(text)
}

func (pv PreviewView) View() string {
	if pv.rows == 0 {
		return ""
	}
	return pv.table.View()
}

// Truncate shortens s to maxLen display cells, marking the cut with an ellipsis.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	return runewidth.Truncate(s, maxLen, "…")
}
