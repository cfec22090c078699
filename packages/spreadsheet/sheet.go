package spreadsheet

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. Errors raised by APIs that do not return enough error
	// information may be converted to this error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, such
	// as a malformed address.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity was not found.
	NotFound AppErrorCode = 5

	// FailedPrecondition indicates operation was rejected because the
	// system is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range, e.g.
	// a write outside the grid bounds.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

func (c AppErrorCode) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case FailedPrecondition:
		return "failed_precondition"
	case OutOfRange:
		return "out_of_range"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// AppError represents errors at the application level (not
// spreadsheet formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// options holds the shape a spreadsheet starts with and returns to on Clear
type options struct {
	rows        int
	columns     int
	maxRows     int
	maxColumns  int
	columnWidth float64
	rowHeight   float64
}

// Option configures a Spreadsheet
type Option func(*options)

// WithDimensions sets the row and column count
func WithDimensions(rows, columns int) Option {
	return func(o *options) {
		if rows > 0 {
			o.rows = rows
		}
		if columns > 0 {
			o.columns = columns
		}
	}
}

// WithMaxDimensions caps the row and column count that Load and the
// insert operations accept
func WithMaxDimensions(rows, columns int) Option {
	return func(o *options) {
		if rows > 0 {
			o.maxRows = rows
		}
		if columns > 0 {
			o.maxColumns = columns
		}
	}
}

// WithDefaultSizes sets the default column width and row height
func WithDefaultSizes(columnWidth, rowHeight float64) Option {
	return func(o *options) {
		if columnWidth > 0 {
			o.columnWidth = columnWidth
		}
		if rowHeight > 0 {
			o.rowHeight = rowHeight
		}
	}
}

// CascadeResult reports what a write recalculated
type CascadeResult struct {
	Recomputed []string // formula cells re-evaluated, in evaluation order
	Circular   []string // cells found in a cycle, now holding a circular reference error
}

// Spreadsheet is the main spreadsheet class that combines storage, parsing,
// dependency tracking, and formula evaluation into a unified API. it is not
// safe for concurrent use: every call runs to completion, cascade included,
// and owners must serialize access.
type Spreadsheet struct {
	options         options
	worksheet       *Worksheet
	formulas        *FormulaTable
	dependencyGraph *DependencyGraph
	functions       *BuiltInFunctions
}

// NewSpreadsheet creates a new spreadsheet instance
func NewSpreadsheet(opts ...Option) *Spreadsheet {
	o := options{
		rows:        DefaultRowCount,
		columns:     DefaultColumnCount,
		maxRows:     DefaultMaxRowCount,
		maxColumns:  DefaultMaxColumnCount,
		columnWidth: DefaultColumnWidth,
		rowHeight:   DefaultRowHeight,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.rows = min(o.rows, o.maxRows)
	o.columns = min(o.columns, o.maxColumns)

	return &Spreadsheet{
		options:         o,
		worksheet:       NewWorksheet(o.rows, o.columns, o.columnWidth, o.rowHeight),
		formulas:        NewFormulaTable(),
		dependencyGraph: NewDependencyGraph(),
		functions:       NewDefaultBuiltInFunctions(),
	}
}

// resolveAddress parses a cell address and checks it against the grid
func (s *Spreadsheet) resolveAddress(address string) (CellAddress, error) {
	addr, err := ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid address: %s", address))
	}
	if !s.worksheet.InBounds(addr) {
		return CellAddress{}, NewApplicationError(OutOfRange,
			fmt.Sprintf("Address %s is outside the %dx%d grid", address, s.worksheet.columns, s.worksheet.rows))
	}
	return addr, nil
}

type SpreadsheetInterface interface {
	// cell methods

	Get(address string) (Primitive, error)
	GetCell(address string) (CellView, bool, error)
	Set(address string, value Primitive) error
	Write(address string, value Primitive) (CascadeResult, error)
	SetFormula(address string, formula string) error
	Remove(address string) error
	SetFormat(address string, format CellFormat) error

	// structural methods

	InsertRow(index int) error
	DeleteRow(index int) error
	InsertColumn(index int) error
	DeleteColumn(index int) error

	// range methods

	FindAndReplace(corner1, corner2, find, replace string) (int, error)
	RemoveDuplicateRows(corner1, corner2 string) (int, error)

	// common methods

	Recalculate() CascadeResult
	Snapshot() *Snapshot
	Load(snapshot *Snapshot) error
	Clear()
}

// Implementation of SpreadsheetInterface

var _ SpreadsheetInterface = (*Spreadsheet)(nil)

// Get retrieves the display value of a cell: the computed result for
// formula cells, the stored value otherwise. absent cells read as nil.
func (s *Spreadsheet) Get(address string) (Primitive, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}

	cell := s.worksheet.GetCell(addr)
	if cell == nil {
		return nil, nil
	}
	return cell.DisplayValue, nil
}

// GetCell returns a copy of a cell. the bool is false for absent cells.
func (s *Spreadsheet) GetCell(address string) (CellView, bool, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return CellView{}, false, err
	}

	cell := s.worksheet.GetCell(addr)
	if cell == nil {
		return CellView{Address: addr.String(), Kind: CellKindText.String()}, false, nil
	}
	return cell.view(), true, nil
}

// Set sets the value of a cell and recalculates everything depending on it
func (s *Spreadsheet) Set(address string, value Primitive) error {
	_, err := s.Write(address, value)
	return err
}

// Write classifies a raw input, stores it, computes the cell's display
// value and cascades to every dependent. nil or "" empties the cell.
func (s *Spreadsheet) Write(address string, value Primitive) (CascadeResult, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return CascadeResult{}, err
	}
	return s.write(addr, value)
}

// SetFormula stores a formula, adding the leading '=' when missing
func (s *Spreadsheet) SetFormula(address string, formula string) error {
	if !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}
	return s.Set(address, formula)
}

// Remove removes a cell, format included
func (s *Spreadsheet) Remove(address string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	if cell := s.worksheet.GetCell(addr); cell != nil {
		cell.Format = CellFormat{}
	}
	_, err = s.write(addr, nil)
	return err
}

// SetFormat replaces a cell's format. formats never affect evaluation.
func (s *Spreadsheet) SetFormat(address string, format CellFormat) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	if format.IsZero() {
		if cell := s.worksheet.GetCell(addr); cell != nil {
			cell.Format = format
			if cell.isEmpty() {
				s.worksheet.RemoveCell(addr)
			}
		}
		return nil
	}
	s.worksheet.GetOrCreateCell(addr).Format = format
	return nil
}

// MergeFormat updates only the attributes the patch sets and returns the
// resulting format
func (s *Spreadsheet) MergeFormat(address string, patch FormatPatch) (CellFormat, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return CellFormat{}, err
	}
	var current CellFormat
	if cell := s.worksheet.GetCell(addr); cell != nil {
		current = cell.Format
	}
	merged := current.Apply(patch)
	if err := s.SetFormat(address, merged); err != nil {
		return CellFormat{}, err
	}
	return merged, nil
}

func (s *Spreadsheet) write(addr CellAddress, input Primitive) (CascadeResult, error) {
	value, kind := Classify(input)

	// the old formula, if any, no longer holds
	s.formulas.ReleaseCell(addr)
	s.dependencyGraph.RemoveNode(addr)

	if value == nil {
		if cell := s.worksheet.GetCell(addr); cell != nil {
			cell.Value, cell.Formula, cell.DisplayValue, cell.Kind = nil, "", nil, CellKindText
			if cell.isEmpty() {
				s.worksheet.RemoveCell(addr)
			}
		}
	} else {
		cell := s.worksheet.GetOrCreateCell(addr)
		cell.Value, cell.Kind = value, kind
		if kind == CellKindFormula {
			cell.Formula = value.(string)
			cell.DisplayValue = nil
			s.registerFormula(addr, cell.Formula)
		} else {
			cell.Formula = ""
			cell.DisplayValue = value
		}
	}

	return s.cascade(s.dependencyGraph.GetAffectedCells(addr)), nil
}

// registerFormula records a formula in the formula table and its
// references in the dependency graph
func (s *Spreadsheet) registerFormula(addr CellAddress, formula string) {
	s.formulas.InternFormula(formula, addr)
	cf, _ := s.formulas.GetFormulaAtCell(addr)

	references := make([]CellAddress, 0, len(cf.references))
	for _, ref := range cf.references {
		if refAddr, err := ParseAddress(ref); err == nil {
			references = append(references, refAddr)
		}
	}
	s.dependencyGraph.SetFormula(addr, formula, references, cf.ranges)
}

// rebuildIndex re-registers every formula after cells were re-keyed
func (s *Spreadsheet) rebuildIndex() {
	s.formulas.Clear()
	s.dependencyGraph.Clear()
	for _, addr := range s.worksheet.Addresses() {
		if cell := s.worksheet.GetCell(addr); cell.Kind == CellKindFormula {
			s.registerFormula(addr, cell.Formula)
		}
	}
}

// cascade recomputes the given cells, each exactly once, precedents first.
// cells in a cycle get a circular reference error instead.
func (s *Spreadsheet) cascade(cells []CellAddress) CascadeResult {
	var result CascadeResult
	order, cyclic := s.dependencyGraph.GetCalculationOrder(cells)
	for _, addr := range order {
		cell := s.worksheet.GetCell(addr)
		if cell == nil || cell.Kind != CellKindFormula {
			continue
		}
		if _, isCyclic := cyclic[addr]; isCyclic {
			cell.DisplayValue = NewSpreadsheetError(ErrorCodeCircularReference, "")
			result.Circular = append(result.Circular, addr.String())
		} else {
			cell.DisplayValue = s.evaluate(addr, cell)
		}
		result.Recomputed = append(result.Recomputed, addr.String())
	}
	return result
}

// Recalculate re-evaluates every formula in dependency order
func (s *Spreadsheet) Recalculate() CascadeResult {
	return s.cascade(s.dependencyGraph.FormulaCells())
}

// evaluate computes a formula cell's display value. errors become values.
func (s *Spreadsheet) evaluate(addr CellAddress, cell *Cell) Primitive {
	cf, exists := s.formulas.GetFormulaAtCell(addr)
	if !exists {
		cf = compile(cell.Formula)
	}

	value, err := s.evaluateFormula(addr, cf)
	if err != nil {
		return asSpreadsheetError(err)
	}
	if num, ok := value.(float64); ok && (math.IsNaN(num) || math.IsInf(num, 0)) {
		return NewSpreadsheetError(ErrorCodeInvalidCalculation, "")
	}
	return value
}

func (s *Spreadsheet) evaluateFormula(addr CellAddress, cf *compiledFormula) (Primitive, error) {
	if cf.formula.Call != nil {
		return s.evaluateCall(addr, cf.formula.Call)
	}

	expression := cf.formula.Expression
	if expression == "" {
		return nil, NewSpreadsheetError(ErrorCodeInvalidCalculation, "")
	}

	// a formula naming its own cell is rejected before anything else
	if slices.Contains(extractReferences(expression), addr.String()) {
		return nil, NewSpreadsheetError(ErrorCodeCircularReference, "")
	}

	if cf.parseErr != nil {
		return nil, cf.parseErr
	}
	num, err := cf.ast.Eval(s)
	if err != nil {
		return nil, err
	}
	return num, nil
}

// resolveNumber substitutes a reference inside arithmetic: absent cells
// and anything non-numeric count as 0
func (s *Spreadsheet) resolveNumber(ref string) (float64, error) {
	addr, err := ParseAddress(ref)
	if err != nil {
		return 0, nil
	}
	num, ok := toNumber(resolvedValue(s.worksheet.GetCell(addr)))
	if !ok || math.IsInf(num, 0) {
		return 0, nil
	}
	return num, nil
}

func (s *Spreadsheet) evaluateCall(addr CellAddress, call *FunctionCall) (Primitive, error) {
	args := make([]any, 0, len(call.Args))
	for _, arg := range call.Args {
		value, err := s.resolveArgument(addr, arg)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}
	return s.functions.Call(call.Name, args...)
}

// numberLiteralPattern is a plain decimal literal, the only number form a
// formula can spell
var numberLiteralPattern = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// wholeRangePattern matches an argument that is exactly one range
var wholeRangePattern = regexp.MustCompile(`^([A-Z]+[0-9]+)\s*:\s*([A-Z]+[0-9]+)$`)

// resolveArgument turns one argument text into a Range or a scalar.
// only a malformed range fails the call; a failing nested call or
// arithmetic argument becomes a value that aggregates skip.
func (s *Spreadsheet) resolveArgument(addr CellAddress, arg string) (any, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}

	if text, ok := unquote(arg); ok {
		return text, nil
	}

	if call, ok := parseFunctionCall(arg); ok {
		value, err := s.evaluateCall(addr, call)
		if err != nil {
			return asSpreadsheetError(err), nil
		}
		return value, nil
	}

	if strings.Contains(arg, ":") {
		m := wholeRangePattern.FindStringSubmatch(arg)
		if m == nil {
			return nil, invalidAddress(arg)
		}
		bounds, err := ParseRange(m[1] + ":" + m[2])
		if err != nil {
			return nil, err
		}
		return s.rangeOf(s.clip(bounds)), nil
	}

	if addressPattern.MatchString(arg) {
		refAddr, err := ParseAddress(arg)
		if err != nil {
			return nil, nil
		}
		return resolvedValue(s.worksheet.GetCell(refAddr)), nil
	}

	if numberLiteralPattern.MatchString(arg) {
		if num, ok := parseNumeric(arg); ok {
			return num, nil
		}
	}

	ast, err := ParseExpression(arg)
	if err != nil {
		return nil, nil
	}
	num, err := ast.Eval(s)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return nil, nil
	}
	return num, nil
}

// clip limits a range to the grid. cells past the edge are always empty.
func (s *Spreadsheet) clip(bounds RangeAddress) RangeAddress {
	bounds.EndRow = min(bounds.EndRow, s.worksheet.rows-1)
	bounds.EndColumn = min(bounds.EndColumn, s.worksheet.columns-1)
	return bounds
}

// InsertRow inserts an empty row before the zero-based index. formula text
// is kept as written.
func (s *Spreadsheet) InsertRow(index int) error {
	if index < 0 || index > s.worksheet.rows {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Row index %d out of range", index))
	}
	if s.worksheet.rows >= s.options.maxRows {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Grid already has the maximum of %d rows", s.options.maxRows))
	}
	s.worksheet.InsertRow(index)
	s.restructure()
	return nil
}

// DeleteRow deletes the row at the zero-based index; the rows below move up
func (s *Spreadsheet) DeleteRow(index int) error {
	if index < 0 || index >= s.worksheet.rows {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Row index %d out of range", index))
	}
	if s.worksheet.rows == 1 {
		return NewApplicationError(FailedPrecondition, "Cannot delete the last row")
	}
	s.worksheet.DeleteRow(index)
	s.restructure()
	return nil
}

// InsertColumn inserts an empty column before the zero-based index
func (s *Spreadsheet) InsertColumn(index int) error {
	if index < 0 || index > s.worksheet.columns {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Column index %d out of range", index))
	}
	if s.worksheet.columns >= s.options.maxColumns {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Grid already has the maximum of %d columns", s.options.maxColumns))
	}
	s.worksheet.InsertColumn(index)
	s.restructure()
	return nil
}

// DeleteColumn deletes the column at the zero-based index
func (s *Spreadsheet) DeleteColumn(index int) error {
	if index < 0 || index >= s.worksheet.columns {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Column index %d out of range", index))
	}
	if s.worksheet.columns == 1 {
		return NewApplicationError(FailedPrecondition, "Cannot delete the last column")
	}
	s.worksheet.DeleteColumn(index)
	s.restructure()
	return nil
}

// restructure brings the index and every display value back in line with
// the re-keyed grid
func (s *Spreadsheet) restructure() {
	s.rebuildIndex()
	s.Recalculate()
}

// ColumnWidth returns the width of a zero-based column
func (s *Spreadsheet) ColumnWidth(col int) float64 {
	return s.worksheet.ColumnWidth(col)
}

// SetColumnWidth sets the width of a zero-based column
func (s *Spreadsheet) SetColumnWidth(col int, width float64) error {
	if col < 0 || col >= s.worksheet.columns {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Column index %d out of range", col))
	}
	if width <= 0 {
		return NewApplicationError(InvalidArgument, "Column width must be positive")
	}
	s.worksheet.SetColumnWidth(col, width)
	return nil
}

// RowHeight returns the height of a zero-based row
func (s *Spreadsheet) RowHeight(row int) float64 {
	return s.worksheet.RowHeight(row)
}

// SetRowHeight sets the height of a zero-based row
func (s *Spreadsheet) SetRowHeight(row int, height float64) error {
	if row < 0 || row >= s.worksheet.rows {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Row index %d out of range", row))
	}
	if height <= 0 {
		return NewApplicationError(InvalidArgument, "Row height must be positive")
	}
	s.worksheet.SetRowHeight(row, height)
	return nil
}

// Dimensions returns the row and column count
func (s *Spreadsheet) Dimensions() (rows, columns int) {
	return s.worksheet.rows, s.worksheet.columns
}

// Addresses returns every occupied address, row-major
func (s *Spreadsheet) Addresses() []string {
	addrs := s.worksheet.Addresses()
	result := make([]string, len(addrs))
	for i, addr := range addrs {
		result[i] = addr.String()
	}
	return result
}

// Cells returns a view of every occupied cell, row-major
func (s *Spreadsheet) Cells() []CellView {
	addrs := s.worksheet.Addresses()
	result := make([]CellView, len(addrs))
	for i, addr := range addrs {
		result[i] = s.worksheet.GetCell(addr).view()
	}
	return result
}

// Views returns a view for each address, absent cells included. invalid
// addresses are skipped.
func (s *Spreadsheet) Views(addresses ...string) []CellView {
	result := make([]CellView, 0, len(addresses))
	for _, address := range addresses {
		if view, _, err := s.GetCell(address); err == nil {
			result = append(result, view)
		}
	}
	return result
}

// GetDependencyGraph returns the dependency graph for diagnostic purposes
func (s *Spreadsheet) GetDependencyGraph() *DependencyGraph {
	return s.dependencyGraph
}

// GetFormulaTable returns the formula table for diagnostic purposes
func (s *Spreadsheet) GetFormulaTable() *FormulaTable {
	return s.formulas
}

// RunnableSpreadsheet chains writes against one spreadsheet. the first
// failing step is kept and every later step becomes a no-op, so a script
// of edits can be checked once at the end.
type RunnableSpreadsheet struct {
	spreadsheet *Spreadsheet
	err         error
	printLn     func(string)
}

// NewRunnableSpreadsheet starts a chain on an empty spreadsheet. printLn
// receives the output of Log and CheckError.
func NewRunnableSpreadsheet(printLn func(string), opts ...Option) *RunnableSpreadsheet {
	return &RunnableSpreadsheet{
		spreadsheet: NewSpreadsheet(opts...),
		printLn:     printLn,
	}
}

// Load replaces the grid with a snapshot
func (r *RunnableSpreadsheet) Load(snap *Snapshot) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.Load(snap)
	return r
}

// Set writes one cell
func (r *RunnableSpreadsheet) Set(address string, value Primitive) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.Set(address, value)
	return r
}

// SetBatch writes cells in address order, so the result does not depend
// on map iteration
func (r *RunnableSpreadsheet) SetBatch(cells map[string]Primitive) *RunnableSpreadsheet {
	for _, address := range slices.Sorted(maps.Keys(cells)) {
		r.Set(address, cells[address])
	}
	return r
}

// Value reads one display value; nil once the chain has failed
func (r *RunnableSpreadsheet) Value(address string) Primitive {
	values := r.Values(address)
	if values == nil {
		return nil
	}
	return values[0]
}

// Values reads display values in the order given
func (r *RunnableSpreadsheet) Values(addresses ...string) []Primitive {
	if r.err != nil {
		return nil
	}
	values := make([]Primitive, len(addresses))
	for i, address := range addresses {
		val, err := r.spreadsheet.Get(address)
		if err != nil {
			r.err = err
			return nil
		}
		values[i] = val
	}
	return values
}

// Log prints "ADDRESS: display" for one cell
func (r *RunnableSpreadsheet) Log(address string) *RunnableSpreadsheet {
	val := r.Value(address)
	if r.err != nil {
		return r
	}
	if val == nil {
		r.printLn(fmt.Sprintf("%s: <empty>", address))
	} else {
		r.printLn(fmt.Sprintf("%s: %s", address, toText(val)))
	}
	return r
}

// CheckError prints the held error, if any
func (r *RunnableSpreadsheet) CheckError() *RunnableSpreadsheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Error returns the first failure of the chain
func (r *RunnableSpreadsheet) Error() error {
	return r.err
}

// Reset forgets the held error
func (r *RunnableSpreadsheet) Reset() *RunnableSpreadsheet {
	r.err = nil
	return r
}

// Spreadsheet returns the underlying spreadsheet, failed chain or not
func (r *RunnableSpreadsheet) Spreadsheet() *Spreadsheet {
	return r.spreadsheet
}

// Run ends the chain
func (r *RunnableSpreadsheet) Run() (*Spreadsheet, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.spreadsheet, nil
}
