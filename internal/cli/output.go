package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// ExitError signals a non-zero exit code without printing an error message.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "" }

func jsonPrint(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCells writes one line per cell: address, formula, display value
func printCells(w io.Writer, cells []spreadsheet.CellView) {
	for _, cell := range cells {
		fmt.Fprintf(w, "%-8s %-30s %s\n", cell.Address, cell.Formula, cell.Display)
	}
}

// countErrors counts cells whose display value is a formula error
func countErrors(cells []spreadsheet.CellView) int {
	n := 0
	for _, cell := range cells {
		if strings.HasPrefix(cell.Display, "#ERROR: ") {
			n++
		}
	}
	return n
}

// parseAssignment splits "A1=value". the value keeps any further '=',
// so "B1==A1*2" stores the formula "=A1*2".
func parseAssignment(s string) (address, value string, err error) {
	address, value, ok := strings.Cut(s, "=")
	address = strings.TrimSpace(address)
	if !ok || address == "" {
		return "", "", fmt.Errorf("invalid assignment %q: want ADDRESS=VALUE", s)
	}
	return address, value, nil
}
