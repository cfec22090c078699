package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Primitive represents basic cell value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - nil: empty/null cells
//   - *SpreadsheetError: error values produced by evaluation
type Primitive any

// ErrorCode classifies the errors a formula can evaluate to. errors are
// stored as display values, never returned past the evaluation boundary.
type ErrorCode uint8

const (
	ErrorCodeInvalidAddress     ErrorCode = 1 // malformed address text
	ErrorCodeUnknownFunction    ErrorCode = 2 // function name outside the supported set
	ErrorCodeCircularReference  ErrorCode = 3 // formula depends on itself
	ErrorCodeInvalidCalculation ErrorCode = 4 // arithmetic produced NaN or +/-Inf
	ErrorCodeEvaluation         ErrorCode = 5 // all other substitution/parse failures
)

// ErrorMapper maps error codes to their default messages
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeInvalidAddress:     "Invalid address",
	ErrorCodeUnknownFunction:    "Unknown function",
	ErrorCodeCircularReference:  "Circular reference",
	ErrorCodeInvalidCalculation: "Invalid calculation",
	ErrorCodeEvaluation:         "Unknown error",
}

const errorPrefix = "#ERROR: "

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

// Error renders the display form, e.g. "#ERROR: Circular reference"
func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return errorPrefix + e.Message
	}
	return errorPrefix + ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// asSpreadsheetError converts any evaluation failure into an error value
func asSpreadsheetError(err error) *SpreadsheetError {
	if err == nil {
		return nil
	}
	if spreadsheetErr, ok := err.(*SpreadsheetError); ok {
		return spreadsheetErr
	}
	return NewSpreadsheetError(ErrorCodeEvaluation, err.Error())
}

// checkForError returns the error if value is a *SpreadsheetError, nil otherwise
func checkForError(value Primitive) *SpreadsheetError {
	if err, ok := value.(*SpreadsheetError); ok {
		return err
	}
	return nil
}

// CellKind is derived from a cell's stored value
type CellKind uint8

const (
	CellKindText    CellKind = 0
	CellKindNumber  CellKind = 1
	CellKindFormula CellKind = 2
)

func (k CellKind) String() string {
	switch k {
	case CellKindNumber:
		return "number"
	case CellKindFormula:
		return "formula"
	default:
		return "text"
	}
}

// ParseCellKind is the inverse of CellKind.String
func ParseCellKind(s string) CellKind {
	switch s {
	case "number":
		return CellKindNumber
	case "formula":
		return CellKindFormula
	default:
		return CellKindText
	}
}

// CellFormat is presentation metadata. the engine stores it and never
// interprets it.
type CellFormat struct {
	Bold            bool    `json:"bold,omitempty"`
	Italic          bool    `json:"italic,omitempty"`
	FontSize        float64 `json:"fontSize,omitempty"`
	Color           string  `json:"color,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	TextAlign       string  `json:"textAlign,omitempty"`
}

// FormatPatch is a partial CellFormat: nil fields keep the current value
type FormatPatch struct {
	Bold            *bool    `json:"bold,omitempty"`
	Italic          *bool    `json:"italic,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	Color           *string  `json:"color,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	TextAlign       *string  `json:"textAlign,omitempty"`
}

// Apply returns f with the patch's set fields laid over it
func (f CellFormat) Apply(patch FormatPatch) CellFormat {
	if patch.Bold != nil {
		f.Bold = *patch.Bold
	}
	if patch.Italic != nil {
		f.Italic = *patch.Italic
	}
	if patch.FontSize != nil {
		f.FontSize = *patch.FontSize
	}
	if patch.Color != nil {
		f.Color = *patch.Color
	}
	if patch.BackgroundColor != nil {
		f.BackgroundColor = *patch.BackgroundColor
	}
	if patch.TextAlign != nil {
		f.TextAlign = *patch.TextAlign
	}
	return f
}

// IsZero reports whether no format attribute is set
func (f CellFormat) IsZero() bool {
	return f == CellFormat{}
}

// Cell represents a grid cell with its data and metadata
type Cell struct {
	Address      CellAddress // zero-based position
	Value        Primitive   // raw stored content; for formulas the full "=..." text
	Formula      string      // formula text including the leading '=', formula cells only
	DisplayValue Primitive   // cached result of the most recent computation
	Kind         CellKind
	Format       CellFormat
}

// isEmpty reports whether the cell carries nothing worth keeping
func (c *Cell) isEmpty() bool {
	return c.Value == nil && c.Formula == "" && c.Format.IsZero()
}

// CellView is a read-only copy of a cell handed to collaborators
type CellView struct {
	Address      string     `json:"address"`
	Value        Primitive  `json:"value"`
	Formula      string     `json:"formula,omitempty"`
	DisplayValue Primitive  `json:"displayValue"`
	Display      string     `json:"display"`
	Kind         string     `json:"kind"`
	Format       CellFormat `json:"format"`
}

func (c *Cell) view() CellView {
	display := c.DisplayValue
	if err := checkForError(display); err != nil {
		display = err.Error()
	}
	return CellView{
		Address:      c.Address.String(),
		Value:        c.Value,
		Formula:      c.Formula,
		DisplayValue: display,
		Display:      toText(c.DisplayValue),
		Kind:         c.Kind.String(),
		Format:       c.Format,
	}
}

// Classify decides how a raw write is stored: text beginning with '='
// is a formula, numeric-parseable text or numbers are numbers, anything
// else is text. nil and "" mean empty.
func Classify(input Primitive) (value Primitive, kind CellKind) {
	switch v := input.(type) {
	case nil:
		return nil, CellKindText
	case string:
		if v == "" {
			return nil, CellKindText
		}
		if v[0] == '=' {
			return v, CellKindFormula
		}
		if num, ok := parseNumeric(v); ok {
			return num, CellKindNumber
		}
		return v, CellKindText
	case float64:
		return v, CellKindNumber
	case float32:
		return float64(v), CellKindNumber
	case int:
		return float64(v), CellKindNumber
	case int64:
		return float64(v), CellKindNumber
	case int32:
		return float64(v), CellKindNumber
	case uint32:
		return float64(v), CellKindNumber
	case bool:
		// booleans have no kind of their own; they are kept as their text
		return strconv.FormatBool(v), CellKindText
	default:
		return fmt.Sprint(v), CellKindText
	}
}

// parseNumeric accepts trimmed, non-empty, finite decimal text
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// toNumber coerces a value to a number. only numbers and numeric text
// convert; empty, errors and other text do not.
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return parseNumeric(v)
	default:
		return 0, false
	}
}

// isNumeric reports whether a value coerces to a number
func isNumeric(value Primitive) bool {
	_, ok := toNumber(value)
	return ok
}

// toText converts value to its display text
func toText(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case *SpreadsheetError:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// formatNumber renders numbers in shortest round-trip form without a
// trailing ".0" for integers
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
