package display

import (
	"fmt"
	"io"
	"strings"
)

// Table renders bordered tables for CLI output.
type Table struct {
	// Plain drops ANSI styling, for files and pipes.
	Plain bool

	headers []string
	rows    [][]string // raw values (no color) for width calculation
	colored [][]string // colored values for rendering
	widths  []int
	right   []bool
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{headers: headers, widths: widths, right: make([]bool, len(headers))}
}

// AlignRight right-aligns the given columns, for numbers.
func (t *Table) AlignRight(cols ...int) {
	for _, c := range cols {
		if c >= 0 && c < len(t.right) {
			t.right[c] = true
		}
	}
}

// AddRow adds a row to the table. raw values are used for width; colored for display.
func (t *Table) AddRow(cols ...string) {
	t.AddColoredRow(cols, cols)
}

// AddColoredRow adds a row with separate raw (for widths) and colored (for display) values.
func (t *Table) AddColoredRow(raw []string, colored []string) {
	for i, c := range raw {
		if i < len(t.widths) && len(c) > t.widths[i] {
			t.widths[i] = len(c)
		}
	}
	t.rows = append(t.rows, raw)
	t.colored = append(t.colored, colored)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to the given writer with dim borders and bold headers.
func (t *Table) Render(w io.Writer) {
	if len(t.rows) == 0 && len(t.headers) == 0 {
		return
	}
	t.line(w, "┌", "┬", "┐")
	t.headerRow(w)
	t.line(w, "├", "┼", "┤")
	for i := range t.rows {
		cols := t.colored[i]
		if t.Plain {
			cols = t.rows[i]
		}
		t.coloredRow(w, t.rows[i], cols)
	}
	t.line(w, "└", "┴", "┘")
}

func (t *Table) border(s string) string { return paint(t.Plain, dim, s) }

func (t *Table) line(w io.Writer, left, mid, right string) {
	var sb strings.Builder
	sb.WriteString(left)
	for i, width := range t.widths {
		sb.WriteString(strings.Repeat("─", width+2))
		if i < len(t.widths)-1 {
			sb.WriteString(mid)
		}
	}
	sb.WriteString(right)
	fmt.Fprintln(w, t.border(sb.String()))
}

func (t *Table) headerRow(w io.Writer) {
	fmt.Fprint(w, t.border("│"))
	for i, width := range t.widths {
		h := ""
		if i < len(t.headers) {
			h = t.headers[i]
		}
		fmt.Fprintf(w, " %s %s", paint(t.Plain, bold, fmt.Sprintf("%-*s", width, h)), t.border("│"))
	}
	fmt.Fprintln(w)
}

func (t *Table) coloredRow(w io.Writer, rawCols, colorCols []string) {
	fmt.Fprint(w, t.border("│"))
	for i, width := range t.widths {
		raw := ""
		col := ""
		if i < len(rawCols) {
			raw = rawCols[i]
		}
		if i < len(colorCols) {
			col = colorCols[i]
		}
		// Pad based on raw (visible) length
		padding := width - len(raw)
		if padding < 0 {
			padding = 0
		}
		if t.right[i] {
			fmt.Fprintf(w, " %*s%s %s", padding, "", col, t.border("│"))
		} else {
			fmt.Fprintf(w, " %s%*s %s", col, padding, "", t.border("│"))
		}
	}
	fmt.Fprintln(w)
}

// RenderKeyValues renders a two-column key/value table with cyan keys.
func RenderKeyValues(w io.Writer, plain bool, kv [][2]string) {
	tbl := NewTable("Key", "Value")
	tbl.Plain = plain
	for _, p := range kv {
		tbl.AddColoredRow([]string{p[0], p[1]}, []string{Cyan(p[0]), p[1]})
	}
	tbl.Render(w)
}
