package out

import (
	"strings"

	"github.com/ryanuber/columnize"
)

// Table aligns rows under header. The first row is the column header; an empty
// row set renders as "(none)".
func Table(header string, rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = strings.ReplaceAll(c, "|", "/")
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	if len(lines) == 0 {
		return header + "\n(none)"
	}
	return header + "\n" + columnize.SimpleFormat(lines)
}
