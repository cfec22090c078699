package spreadsheet

import (
	"iter"
	"strings"
)

// Iterate yields every address in the range, row-major
func (r RangeAddress) Iterate() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := r.StartRow; row <= r.EndRow; row++ {
			for col := r.StartColumn; col <= r.EndColumn; col++ {
				if !yield(CellAddress{Row: row, Column: col}) {
					return
				}
			}
		}
	}
}

// Rows yields the addresses of the range grouped by row, top to bottom
func (r RangeAddress) Rows() iter.Seq[[]CellAddress] {
	return func(yield func([]CellAddress) bool) {
		for row := r.StartRow; row <= r.EndRow; row++ {
			cells := make([]CellAddress, 0, r.EndColumn-r.StartColumn+1)
			for col := r.StartColumn; col <= r.EndColumn; col++ {
				cells = append(cells, CellAddress{Row: row, Column: col})
			}
			if !yield(cells) {
				return
			}
		}
	}
}

// Range represents a lazy range type for memory-efficient formula evaluation
type Range interface {
	GetBounds() RangeAddress
	Iterate() iter.Seq[*Cell]
	IterateValues() iter.Seq[Primitive]
}

// CellRange implements Range for lazy cell iteration over a worksheet
type CellRange struct {
	bounds    RangeAddress
	worksheet *Worksheet
}

// GetBounds returns the range boundaries
func (r *CellRange) GetBounds() RangeAddress {
	return r.bounds
}

// Iterate returns an iterator over all cells in the range. absent cells
// are yielded as empty placeholders so positions are never skipped.
func (r *CellRange) Iterate() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		if r.worksheet == nil {
			return
		}

		for addr := range r.bounds.Iterate() {
			cell := r.worksheet.GetCell(addr)
			if cell == nil {
				cell = &Cell{Address: addr}
			}
			if !yield(cell) {
				return
			}
		}
	}
}

// IterateValues returns an iterator over the resolved cell values in the
// range: formula cells contribute their display value
func (r *CellRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for cell := range r.Iterate() {
			if !yield(resolvedValue(cell)) {
				return
			}
		}
	}
}

// resolvedValue is what a function sees when it reads a cell
func resolvedValue(cell *Cell) Primitive {
	if cell == nil {
		return nil
	}
	if cell.Kind == CellKindFormula {
		return cell.DisplayValue
	}
	return cell.Value
}

// rowSignatureSeparator joins cell values into a row signature
const rowSignatureSeparator = "|"

// FindAndReplace replaces every occurrence of find with replace in the text
// cells of the range spanned by two corners. matching is literal and case
// sensitive. numeric and formula cells are left alone. each changed cell is
// written back through Set, so it is reclassified and its dependents are
// recalculated. returns the number of cells changed.
func (s *Spreadsheet) FindAndReplace(corner1, corner2, find, replace string) (int, error) {
	bounds, err := s.resolveRange(corner1, corner2)
	if err != nil {
		return 0, err
	}
	if find == "" {
		return 0, nil
	}

	// collect first so writes don't disturb the scan
	type change struct {
		addr  CellAddress
		value string
	}
	var changes []change
	for cell := range s.rangeOf(bounds).Iterate() {
		text, ok := cell.Value.(string)
		if !ok || cell.Kind != CellKindText || !strings.Contains(text, find) {
			continue
		}
		changes = append(changes, change{cell.Address, strings.ReplaceAll(text, find, replace)})
	}

	for _, c := range changes {
		if _, err := s.write(c.addr, c.value); err != nil {
			return 0, err
		}
	}
	return len(changes), nil
}

// RemoveDuplicateRows blanks every row of the range whose cell values match
// an earlier row of the same range. the first occurrence is kept and the
// grid keeps its shape. returns the number of rows blanked.
func (s *Spreadsheet) RemoveDuplicateRows(corner1, corner2 string) (int, error) {
	bounds, err := s.resolveRange(corner1, corner2)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	var duplicates [][]CellAddress
	for row := range bounds.Rows() {
		parts := make([]string, len(row))
		for i, addr := range row {
			if cell := s.worksheet.GetCell(addr); cell != nil {
				parts[i] = toText(cell.Value)
			}
		}
		signature := strings.Join(parts, rowSignatureSeparator)
		if _, dup := seen[signature]; dup {
			duplicates = append(duplicates, row)
			continue
		}
		seen[signature] = struct{}{}
	}

	for _, row := range duplicates {
		for _, addr := range row {
			if s.worksheet.GetCell(addr) == nil {
				continue
			}
			if _, err := s.write(addr, nil); err != nil {
				return 0, err
			}
		}
	}
	return len(duplicates), nil
}

// rangeOf returns a lazy view over the given bounds
func (s *Spreadsheet) rangeOf(bounds RangeAddress) *CellRange {
	return &CellRange{bounds: bounds, worksheet: s.worksheet}
}

// resolveRange parses two corners for a structural operation. malformed
// corners are an InvalidArgument failure; bounds outside the grid are
// OutOfRange.
func (s *Spreadsheet) resolveRange(corner1, corner2 string) (RangeAddress, error) {
	a, err := s.resolveAddress(corner1)
	if err != nil {
		return RangeAddress{}, err
	}
	b, err := s.resolveAddress(corner2)
	if err != nil {
		return RangeAddress{}, err
	}
	return newRangeAddress(a, b), nil
}
