package spreadsheet

import (
	"fmt"
	"strconv"

	"github.com/tiendc/go-deepcopy"
)

// SnapshotCell is the serialized form of one cell
type SnapshotCell struct {
	ID           string     `json:"id"`
	Value        Primitive  `json:"value"`
	DisplayValue Primitive  `json:"displayValue,omitempty"`
	Type         string     `json:"type"`
	Format       CellFormat `json:"format"`
	Formula      string     `json:"formula,omitempty"`
}

// Snapshot is a whole grid in serialized form. column widths are keyed by
// column letters and row heights by 1-based row number, as in the UI.
type Snapshot struct {
	Cells        map[string]SnapshotCell `json:"cells"`
	ColumnWidths map[string]float64      `json:"columnWidths"`
	RowHeights   map[string]float64      `json:"rowHeights"`
	ColumnCount  int                     `json:"columnCount"`
	RowCount     int                     `json:"rowCount"`
}

// Clone returns an independent copy of the snapshot
func (snap *Snapshot) Clone() (*Snapshot, error) {
	var out Snapshot
	if err := deepcopy.Copy(&out, *snap); err != nil {
		return nil, NewApplicationError(Internal, fmt.Sprintf("Cannot copy snapshot: %v", err))
	}
	return &out, nil
}

// Snapshot serializes the grid. errors are stored as their display text.
func (s *Spreadsheet) Snapshot() *Snapshot {
	w := s.worksheet
	snap := &Snapshot{
		Cells:        make(map[string]SnapshotCell, w.GetTotalCells()),
		ColumnWidths: make(map[string]float64, w.columns),
		RowHeights:   make(map[string]float64, w.rows),
		ColumnCount:  w.columns,
		RowCount:     w.rows,
	}

	for _, addr := range w.Addresses() {
		cell := w.GetCell(addr)
		display := cell.DisplayValue
		if err := checkForError(display); err != nil {
			display = err.Error()
		}
		snap.Cells[addr.String()] = SnapshotCell{
			ID:           addr.String(),
			Value:        cell.Value,
			DisplayValue: display,
			Type:         cell.Kind.String(),
			Format:       cell.Format,
			Formula:      cell.Formula,
		}
	}
	for col := 0; col < w.columns; col++ {
		snap.ColumnWidths[IndexToColumn(col)] = w.ColumnWidth(col)
	}
	for row := 0; row < w.rows; row++ {
		snap.RowHeights[strconv.Itoa(row+1)] = w.RowHeight(row)
	}
	return snap
}

// Load replaces the whole grid with a snapshot and recalculates every
// formula. the snapshot is validated first; on error the grid is left as it
// was. the caller's snapshot is never modified or retained.
func (s *Spreadsheet) Load(in *Snapshot) error {
	if in == nil {
		return NewApplicationError(InvalidArgument, "Snapshot is nil")
	}
	snap, err := in.Clone()
	if err != nil {
		return err
	}

	if snap.RowCount <= 0 {
		snap.RowCount = s.options.rows
	}
	if snap.ColumnCount <= 0 {
		snap.ColumnCount = s.options.columns
	}
	if snap.RowCount > s.options.maxRows || snap.ColumnCount > s.options.maxColumns {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Snapshot grid %dx%d exceeds the maximum of %dx%d",
			snap.ColumnCount, snap.RowCount, s.options.maxColumns, s.options.maxRows))
	}

	w := NewWorksheet(snap.RowCount, snap.ColumnCount, s.options.columnWidth, s.options.rowHeight)
	for key, sc := range snap.Cells {
		id := key
		if sc.ID != "" {
			id = sc.ID
		}
		addr, err := ParseAddress(id)
		if err != nil {
			return NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid cell address in snapshot: %s", id))
		}
		if !w.InBounds(addr) {
			return NewApplicationError(OutOfRange, fmt.Sprintf("Snapshot cell %s is outside the %dx%d grid", id, w.columns, w.rows))
		}

		raw := sc.Value
		if sc.Formula != "" {
			raw = sc.Formula
		}
		value, kind := Classify(raw)
		if value == nil && sc.Format.IsZero() {
			continue
		}

		cell := w.GetOrCreateCell(addr)
		cell.Value, cell.Kind, cell.Format = value, kind, sc.Format
		if kind == CellKindFormula {
			cell.Formula = value.(string)
		} else {
			cell.DisplayValue = value
		}
	}
	for letters, width := range snap.ColumnWidths {
		if !isColumnLetters(letters) {
			continue
		}
		if col := ColumnToIndex(letters); col >= 0 && col < w.columns && width > 0 {
			w.SetColumnWidth(col, width)
		}
	}
	for number, height := range snap.RowHeights {
		if row, err := strconv.Atoi(number); err == nil && row >= 1 && row <= w.rows && height > 0 {
			w.SetRowHeight(row-1, height)
		}
	}

	s.worksheet = w
	s.restructure()
	return nil
}

// Clear resets to an empty grid of the configured default shape
func (s *Spreadsheet) Clear() {
	s.worksheet = NewWorksheet(s.options.rows, s.options.columns, s.options.columnWidth, s.options.rowHeight)
	s.formulas.Clear()
	s.dependencyGraph.Clear()
}
