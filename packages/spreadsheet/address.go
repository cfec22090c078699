package spreadsheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CellAddress is a zero-based grid position
type CellAddress struct {
	Row    int
	Column int
}

// String renders the address in "B12" form
func (a CellAddress) String() string {
	return AddressOf(a.Row, a.Column)
}

var (
	// addressPattern matches a whole address like A1 or AA100
	addressPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

	// referencePattern finds cell references embedded in formula text
	referencePattern = regexp.MustCompile(`[A-Z]+[0-9]+`)

	// rangePattern finds Corner:Corner range references in formula text
	rangePattern = regexp.MustCompile(`([A-Z]+[0-9]+)\s*:\s*([A-Z]+[0-9]+)`)
)

// IndexToColumn maps a zero-based column index to its letters. columns
// are base-26 with no zero digit: 0=A, 25=Z, 26=AA.
func IndexToColumn(index int) string {
	if index < 0 {
		return ""
	}
	var buf [16]byte
	pos := len(buf)
	for temp := index; temp >= 0; temp = temp/26 - 1 {
		pos--
		buf[pos] = byte('A' + temp%26)
	}
	return string(buf[pos:])
}

// ColumnToIndex is the inverse of IndexToColumn. letters must be A-Z.
func ColumnToIndex(column string) int {
	result := 0
	for i := 0; i < len(column); i++ {
		result = result*26 + int(column[i]-'A'+1)
	}
	return result - 1
}

// isColumnLetters reports whether s is a valid column label
func isColumnLetters(s string) bool {
	if s == "" || len(s) > 7 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// AddressOf renders zero-based coordinates as an address, e.g. (0, 1) -> "B1"
func AddressOf(row, col int) string {
	return IndexToColumn(col) + strconv.Itoa(row+1)
}

// ParseAddress parses an address like "B12" into zero-based coordinates
func ParseAddress(address string) (CellAddress, error) {
	m := addressPattern.FindStringSubmatch(address)
	if m == nil || len(m[1]) > 7 {
		return CellAddress{}, invalidAddress(address)
	}
	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return CellAddress{}, invalidAddress(address)
	}
	return CellAddress{Row: row - 1, Column: ColumnToIndex(m[1])}, nil
}

func invalidAddress(address string) *SpreadsheetError {
	return NewSpreadsheetError(ErrorCodeInvalidAddress, fmt.Sprintf("Invalid address %s", address))
}

// RangeAddress represents a normalized rectangle of cells
type RangeAddress struct {
	StartRow    int
	StartColumn int
	EndRow      int
	EndColumn   int
}

// newRangeAddress normalizes two corners so start <= end on both axes
func newRangeAddress(a, b CellAddress) RangeAddress {
	return RangeAddress{
		StartRow:    min(a.Row, b.Row),
		StartColumn: min(a.Column, b.Column),
		EndRow:      max(a.Row, b.Row),
		EndColumn:   max(a.Column, b.Column),
	}
}

// Contains reports whether a cell lies inside the range
func (r RangeAddress) Contains(addr CellAddress) bool {
	return addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

// Size returns the number of cells in the range
func (r RangeAddress) Size() int {
	return (r.EndRow - r.StartRow + 1) * (r.EndColumn - r.StartColumn + 1)
}

func (r RangeAddress) String() string {
	return AddressOf(r.StartRow, r.StartColumn) + ":" + AddressOf(r.EndRow, r.EndColumn)
}

// ParseRange parses "A1:B2" notation. corners may be given in any order.
func ParseRange(text string) (RangeAddress, error) {
	first, second, ok := strings.Cut(text, ":")
	if !ok {
		return RangeAddress{}, invalidAddress(text)
	}
	a, err := ParseAddress(strings.TrimSpace(first))
	if err != nil {
		return RangeAddress{}, err
	}
	b, err := ParseAddress(strings.TrimSpace(second))
	if err != nil {
		return RangeAddress{}, err
	}
	return newRangeAddress(a, b), nil
}

// ExpandRange lists every address between two corners, row-major: rows
// from top to bottom, and within each row columns from left to right.
// the order does not depend on which corner comes first.
func ExpandRange(corner1, corner2 string) ([]string, error) {
	a, err := ParseAddress(corner1)
	if err != nil {
		return nil, err
	}
	b, err := ParseAddress(corner2)
	if err != nil {
		return nil, err
	}
	r := newRangeAddress(a, b)
	result := make([]string, 0, r.Size())
	for addr := range r.Iterate() {
		result = append(result, addr.String())
	}
	return result, nil
}

// extractReferences returns the distinct cell references in formula text
// in order of first appearance. quoted string literals are skipped.
func extractReferences(text string) []string {
	matches := referencePattern.FindAllString(stripStrings(text), -1)
	seen := make(map[string]struct{}, len(matches))
	result := make([]string, 0, len(matches))
	for _, ref := range matches {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		result = append(result, ref)
	}
	return result
}

// stripStrings blanks out double-quoted literals so that text inside them
// is never mistaken for a reference
func stripStrings(text string) string {
	if !strings.ContainsRune(text, '"') {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	inQuotes := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '"' && (i == 0 || text[i-1] != '\\') {
			inQuotes = !inQuotes
			b.WriteByte(' ')
			continue
		}
		if inQuotes {
			b.WriteByte(' ')
		} else {
			b.WriteByte(ch)
		}
	}
	return b.String()
}
