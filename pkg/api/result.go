package api

import (
	"strings"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// QueryResult 物化的查询结果：列定义与行数据
type QueryResult struct {
	Columns []types.Column
	Rows    [][]types.Value
}

// RowCount 行数
func (r *QueryResult) RowCount() int {
	return len(r.Rows)
}

// ColumnCount 列数
func (r *QueryResult) ColumnCount() int {
	return len(r.Columns)
}

// FormatResult 将结果渲染为对齐的 ASCII 表格
func FormatResult(result *QueryResult) string {
	headers := make([]string, len(result.Columns))
	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		headers[i] = col.QualifiedName()
		widths[i] = len(headers[i])
	}

	cells := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = v.String()
			if len(cells[i][j]) > widths[j] {
				widths[j] = len(cells[i][j])
			}
		}
	}

	var sb strings.Builder
	writeSeparator := func() {
		sb.WriteString("+")
		for _, w := range widths {
			sb.WriteString(strings.Repeat("-", w+2))
			sb.WriteString("+")
		}
		sb.WriteString("\n")
	}
	writeRow := func(values []string) {
		sb.WriteString("|")
		for i, v := range values {
			sb.WriteString(" ")
			sb.WriteString(v)
			sb.WriteString(strings.Repeat(" ", widths[i]-len(v)+1))
			sb.WriteString("|")
		}
		sb.WriteString("\n")
	}

	writeSeparator()
	writeRow(headers)
	writeSeparator()
	for _, row := range cells {
		writeRow(row)
	}
	writeSeparator()
	return sb.String()
}
