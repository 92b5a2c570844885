package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// column describes one output column: header text, right alignment for
// counts, and an optional width cap for free-form fields like titles.
type column struct {
	header   string
	numeric  bool
	widthMax int
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		header[i] = col.header
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if col.numeric {
			cfg.Align = text.AlignRight
		}
		if col.widthMax > 0 {
			cfg.WidthMax = col.widthMax
			cfg.WidthMaxEnforcer = func(value string, maxLen int) string {
				return truncate(value, maxLen)
			}
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

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

	return tw.Render()
}

var titleCaser = cases.Title(language.Und)

// statusLabel renders lifecycle tokens for table display.
func statusLabel(value string) string {
	if value == "" {
		return "-"
	}
	return titleCaser.String(value)
}
