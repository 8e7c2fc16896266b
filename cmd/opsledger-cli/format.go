package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// maxCellWidth keeps free-text columns (descriptions, rejection reasons)
// from blowing out the table layout.
const maxCellWidth = 60

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func clipCell(cell string) string {
	if len(cell) <= maxCellWidth {
		return cell
	}

	return cell[:maxCellWidth-3] + "..."
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := range row {
			if i >= len(widths) {
				break
			}
			row[i] = clipCell(row[i])
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.Reset()
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			fmt.Fprintf(&b, "%-*s", w, cell)
		}
		fmt.Println(strings.TrimRight(b.String(), " "))
	}

	writeRow(headers)

	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)

	for _, row := range rows {
		writeRow(row)
	}
}

func formatQuiet(id string) {
	fmt.Println(id)
}

// output renders v per the --format flag. Table rendering is column-set
// specific, so commands that support it call formatTable themselves before
// reaching here; everything else falls back to JSON.
func output(v any, quietVal string) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quietVal)
	default:
		formatJSON(v)
	}
}
