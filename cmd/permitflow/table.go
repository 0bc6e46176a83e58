package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableColumn names a header cell; numeric columns (counts, sizes) are
// right-aligned.
type tableColumn struct {
	header  string
	numeric bool
}

// Fixed column sets for the CLI views.
var (
	sessionColumns = []tableColumn{
		{header: "User"},
		{header: "State"},
		{header: "District"},
		{header: "Window"},
		{header: "Records", numeric: true},
		{header: "Eligible", numeric: true},
		{header: "PDFs", numeric: true},
		{header: "Updated"},
	}
	dependencyColumns = []tableColumn{
		{header: "Dependency"},
		{header: "Command"},
		{header: "Status"},
		{header: "Purpose"},
	}
	settingColumns = []tableColumn{
		{header: "Setting"},
		{header: "Value"},
	}
)

func renderTable(columns []tableColumn, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col.header
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
