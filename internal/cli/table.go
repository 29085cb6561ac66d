package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes aligned columns with a styled header row.
type Table struct {
	w       *tabwriter.Writer
	columns int
}

// NewTable starts a table on out and writes its header.
func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{
		w:       tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
		columns: len(headers),
	}

	styled := make([]string, len(headers))
	rules := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = TableHeaderStyle.Render(h)
		rules[i] = strings.Repeat("-", max(len(h), 4))
	}
	t.line(styled)
	t.line(rules)
	return t
}

// Row adds a row. Missing cells are left blank, extra cells are dropped.
func (t *Table) Row(cells ...string) {
	row := make([]string, t.columns)
	copy(row, cells)
	t.line(row)
}

// Flush writes the buffered rows.
func (t *Table) Flush() error {
	return t.w.Flush()
}

func (t *Table) line(cells []string) {
	fmt.Fprintln(t.w, strings.Join(cells, "\t"))
}
