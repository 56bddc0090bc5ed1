package prompt

import (
	"fmt"
	"strings"
)

// EncodeTable renders rows in a compact header-declared tabular form that
// models parse reliably while costing far fewer prompt tokens than JSON:
//
//	files[2]{path,size,reason}:
//	  main.go,1204,entry point
//	  api/handler.go,3400,handles requests
//
// Cells containing the delimiter, quotes or newlines are quoted CSV-style.
func EncodeTable(name string, fields []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:\n", name, len(rows), strings.Join(fields, ","))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = encodeCell(cell)
		}
		b.WriteString("  ")
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func encodeCell(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `"`, `""`), "\n", " ") + `"`
}
