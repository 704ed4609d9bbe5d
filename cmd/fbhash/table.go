package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// resultTable collects command output rows. Columns whose cells all parse
// as numbers are right-aligned so scores and counts line up.
type resultTable struct {
	headers []string
	rows    [][]string
	caption string
}

func newResultTable(headers ...string) *resultTable {
	return &resultTable{headers: headers}
}

// addRow appends a row, padding or truncating it to the header width.
func (t *resultTable) addRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *resultTable) setCaption(format string, args ...any) {
	t.caption = fmt.Sprintf(format, args...)
}

func (t *resultTable) render(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(t.headers))
	for i, h := range t.headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range t.rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	numeric := numericColumns(len(t.headers), t.rows)
	configs := make([]table.ColumnConfig, len(t.headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if numeric[i] {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	if t.caption != "" {
		tw.SetCaption(t.caption)
	}
	fmt.Fprintln(w, tw.Render())
}

// numericColumns reports, per column, whether every non-empty cell is a
// number. A column with no values is not numeric.
func numericColumns(width int, rows [][]string) []bool {
	numeric := make([]bool, width)
	for col := range width {
		seen := false
		numeric[col] = true
		for _, row := range rows {
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric[col] = false
				break
			}
		}
		numeric[col] = numeric[col] && seen
	}
	return numeric
}
