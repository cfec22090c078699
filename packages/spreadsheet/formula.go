package spreadsheet

// compiledFormula is the cached parse of one formula text
type compiledFormula struct {
	formula *Formula
	ast     ASTNode // nil for function calls or when parseErr is set
	// parseErr is kept so every evaluation reports the same message
	parseErr error
	// references are the single-cell references outside of ranges, in
	// order of appearance
	references []string
	// ranges are the Corner:Corner references, normalized
	ranges []RangeAddress
}

// FormulaTable stores formulas centrally, keyed by their text, so cells
// holding identical formulas share one parse.
type FormulaTable struct {
	byText    map[string]uint32           // formula text -> formula ID
	compiled  map[uint32]*compiledFormula // formula ID -> cached parse
	refCounts map[uint32]int              // formula ID -> reference count

	// cell tracking

	cellsUsingFormula map[uint32]map[CellAddress]struct{} // formula ID -> cells using it
	formulaAtCell     map[CellAddress]uint32              // cell -> formula ID (reverse index)

	nextID uint32
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		byText:            make(map[string]uint32),
		compiled:          make(map[uint32]*compiledFormula),
		refCounts:         make(map[uint32]int),
		cellsUsingFormula: make(map[uint32]map[CellAddress]struct{}),
		formulaAtCell:     make(map[CellAddress]uint32),
		nextID:            1, // start at 1, reserve 0 for no formula
	}
}

// compile parses a formula and extracts its references
func compile(text string) *compiledFormula {
	formula := ParseFormula(text)
	cf := &compiledFormula{formula: formula}

	body := stripStrings(text)
	for _, m := range rangePattern.FindAllStringSubmatch(body, -1) {
		if r, err := ParseRange(m[1] + ":" + m[2]); err == nil {
			cf.ranges = append(cf.ranges, r)
		}
	}
	cf.references = extractReferences(rangePattern.ReplaceAllString(body, " "))

	if formula.Call == nil {
		cf.ast, cf.parseErr = ParseExpression(formula.Expression)
	}
	return cf
}

// InternFormula adds a formula or increments its reference count if it
// already exists. tracks the cell using this formula. returns the formula ID.
func (ft *FormulaTable) InternFormula(text string, cell CellAddress) uint32 {
	// a cell holds at most one formula
	if oldID, exists := ft.formulaAtCell[cell]; exists {
		ft.RemoveCellReference(oldID, cell)
	}

	if id, exists := ft.byText[text]; exists {
		ft.refCounts[id]++
		ft.trackCellUsage(id, cell)
		return id
	}

	id := ft.nextID
	ft.byText[text] = id
	ft.compiled[id] = compile(text)
	ft.refCounts[id] = 1
	ft.trackCellUsage(id, cell)
	ft.nextID++

	return id
}

// trackCellUsage adds a cell to the set of cells using a formula
func (ft *FormulaTable) trackCellUsage(formulaID uint32, cell CellAddress) {
	if ft.cellsUsingFormula[formulaID] == nil {
		ft.cellsUsingFormula[formulaID] = make(map[CellAddress]struct{})
	}
	ft.cellsUsingFormula[formulaID][cell] = struct{}{}
	ft.formulaAtCell[cell] = formulaID
}

// RemoveCellReference removes a cell reference from a formula. returns true
// if the formula was removed due to zero references.
func (ft *FormulaTable) RemoveCellReference(formulaID uint32, cell CellAddress) bool {
	if cells, exists := ft.cellsUsingFormula[formulaID]; exists {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(ft.cellsUsingFormula, formulaID)
		}
	}
	delete(ft.formulaAtCell, cell)

	ft.refCounts[formulaID]--
	if ft.refCounts[formulaID] <= 0 {
		ft.removeFormula(formulaID)
		return true
	}
	return false
}

// ReleaseCell drops whatever formula a cell holds
func (ft *FormulaTable) ReleaseCell(cell CellAddress) {
	if id, exists := ft.formulaAtCell[cell]; exists {
		ft.RemoveCellReference(id, cell)
	}
}

// removeFormula removes a formula and all its tracking data
func (ft *FormulaTable) removeFormula(formulaID uint32) {
	if cf, exists := ft.compiled[formulaID]; exists {
		delete(ft.byText, cf.formula.Text)
	}
	delete(ft.compiled, formulaID)
	delete(ft.refCounts, formulaID)
	delete(ft.cellsUsingFormula, formulaID)
}

// GetFormulaAtCell returns the compiled formula held by a cell
func (ft *FormulaTable) GetFormulaAtCell(cell CellAddress) (*compiledFormula, bool) {
	id, exists := ft.formulaAtCell[cell]
	if !exists {
		return nil, false
	}
	cf, exists := ft.compiled[id]
	return cf, exists
}

// GetCellsUsingFormula returns all cells holding the given formula text
func (ft *FormulaTable) GetCellsUsingFormula(text string) []CellAddress {
	id, exists := ft.byText[text]
	if !exists {
		return nil
	}
	cells := ft.cellsUsingFormula[id]
	result := make([]CellAddress, 0, len(cells))
	for cell := range cells {
		result = append(result, cell)
	}
	return result
}

// GetReferenceCount returns the reference count for a formula text
func (ft *FormulaTable) GetReferenceCount(text string) int {
	return ft.refCounts[ft.byText[text]]
}

// Count returns the number of unique formulas
func (ft *FormulaTable) Count() int {
	return len(ft.byText)
}

// Clear removes all formulas from the table
func (ft *FormulaTable) Clear() {
	ft.byText = make(map[string]uint32)
	ft.compiled = make(map[uint32]*compiledFormula)
	ft.refCounts = make(map[uint32]int)
	ft.cellsUsingFormula = make(map[uint32]map[CellAddress]struct{})
	ft.formulaAtCell = make(map[CellAddress]uint32)
	ft.nextID = 1
}
