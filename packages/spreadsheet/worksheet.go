package spreadsheet

import (
	"maps"
	"slices"
)

const (
	DefaultColumnCount = 26
	DefaultRowCount    = 100
	DefaultColumnWidth = 100.0
	DefaultRowHeight   = 25.0

	// upper bounds on the grid shape. a snapshot or a structural edit can
	// never grow past them.
	DefaultMaxRowCount    = 100_000
	DefaultMaxColumnCount = 16_384
)

// Worksheet is the grid: sparse cell storage bounded by a row and column
// count, plus per-row and per-column geometry.
//
// architecture:
// - only non-empty cells have entries; an absent address reads as empty
// - geometry maps hold only sizes that differ from the defaults
// - structural edits re-key entries instead of moving a dense array
type Worksheet struct {
	cells map[CellAddress]*Cell

	rows    int
	columns int

	defaultColumnWidth float64
	defaultRowHeight   float64
	columnWidths       map[int]float64 // column index -> width
	rowHeights         map[int]float64 // row index -> height
}

// NewWorksheet creates an empty worksheet of the given shape
func NewWorksheet(rows, columns int, columnWidth, rowHeight float64) *Worksheet {
	return &Worksheet{
		cells:              make(map[CellAddress]*Cell),
		rows:               rows,
		columns:            columns,
		defaultColumnWidth: columnWidth,
		defaultRowHeight:   rowHeight,
		columnWidths:       make(map[int]float64),
		rowHeights:         make(map[int]float64),
	}
}

// InBounds reports whether an address lies inside the grid
func (w *Worksheet) InBounds(addr CellAddress) bool {
	return addr.Row >= 0 && addr.Row < w.rows && addr.Column >= 0 && addr.Column < w.columns
}

// GetCell retrieves the cell at an address, nil when absent
func (w *Worksheet) GetCell(addr CellAddress) *Cell {
	return w.cells[addr]
}

// GetOrCreateCell returns the cell at an address, creating an empty one
func (w *Worksheet) GetOrCreateCell(addr CellAddress) *Cell {
	if cell, exists := w.cells[addr]; exists {
		return cell
	}
	cell := &Cell{Address: addr}
	w.cells[addr] = cell
	return cell
}

// RemoveCell removes the cell at an address
func (w *Worksheet) RemoveCell(addr CellAddress) {
	delete(w.cells, addr)
}

// GetTotalCells returns the total number of non-empty cells
func (w *Worksheet) GetTotalCells() int {
	return len(w.cells)
}

// Addresses returns every occupied address in row-major order
func (w *Worksheet) Addresses() []CellAddress {
	return slices.SortedFunc(maps.Keys(w.cells), compareAddresses)
}

// ColumnWidth returns the width of a column
func (w *Worksheet) ColumnWidth(col int) float64 {
	if width, exists := w.columnWidths[col]; exists {
		return width
	}
	return w.defaultColumnWidth
}

// SetColumnWidth records a column width
func (w *Worksheet) SetColumnWidth(col int, width float64) {
	if width == w.defaultColumnWidth {
		delete(w.columnWidths, col)
		return
	}
	w.columnWidths[col] = width
}

// RowHeight returns the height of a row
func (w *Worksheet) RowHeight(row int) float64 {
	if height, exists := w.rowHeights[row]; exists {
		return height
	}
	return w.defaultRowHeight
}

// SetRowHeight records a row height
func (w *Worksheet) SetRowHeight(row int, height float64) {
	if height == w.defaultRowHeight {
		delete(w.rowHeights, row)
		return
	}
	w.rowHeights[row] = height
}

// rekey moves every cell through fn. fn returns false to drop a cell.
func (w *Worksheet) rekey(fn func(CellAddress) (CellAddress, bool)) {
	next := make(map[CellAddress]*Cell, len(w.cells))
	for addr, cell := range w.cells {
		moved, keep := fn(addr)
		if !keep {
			continue
		}
		cell.Address = moved
		next[moved] = cell
	}
	w.cells = next
}

// shiftSizes moves per-index geometry through the same rule as the cells
func shiftSizes(sizes map[int]float64, fn func(int) (int, bool)) map[int]float64 {
	next := make(map[int]float64, len(sizes))
	for index, size := range sizes {
		if moved, keep := fn(index); keep {
			next[moved] = size
		}
	}
	return next
}

// InsertRow inserts an empty row at index; rows at or below it move down
func (w *Worksheet) InsertRow(index int) {
	shift := func(row int) (int, bool) {
		if row >= index {
			return row + 1, true
		}
		return row, true
	}
	w.rekey(func(addr CellAddress) (CellAddress, bool) {
		addr.Row, _ = shift(addr.Row)
		return addr, true
	})
	w.rowHeights = shiftSizes(w.rowHeights, shift)
	w.rows++
}

// DeleteRow removes the row at index; rows below it move up
func (w *Worksheet) DeleteRow(index int) {
	shift := func(row int) (int, bool) {
		switch {
		case row == index:
			return 0, false
		case row > index:
			return row - 1, true
		}
		return row, true
	}
	w.rekey(func(addr CellAddress) (CellAddress, bool) {
		row, keep := shift(addr.Row)
		addr.Row = row
		return addr, keep
	})
	w.rowHeights = shiftSizes(w.rowHeights, shift)
	w.rows--
}

// InsertColumn inserts an empty column at index; columns at or right of
// it move right
func (w *Worksheet) InsertColumn(index int) {
	shift := func(col int) (int, bool) {
		if col >= index {
			return col + 1, true
		}
		return col, true
	}
	w.rekey(func(addr CellAddress) (CellAddress, bool) {
		addr.Column, _ = shift(addr.Column)
		return addr, true
	})
	w.columnWidths = shiftSizes(w.columnWidths, shift)
	w.columns++
}

// DeleteColumn removes the column at index; columns right of it move left
func (w *Worksheet) DeleteColumn(index int) {
	shift := func(col int) (int, bool) {
		switch {
		case col == index:
			return 0, false
		case col > index:
			return col - 1, true
		}
		return col, true
	}
	w.rekey(func(addr CellAddress) (CellAddress, bool) {
		col, keep := shift(addr.Column)
		addr.Column = col
		return addr, keep
	})
	w.columnWidths = shiftSizes(w.columnWidths, shift)
	w.columns--
}
