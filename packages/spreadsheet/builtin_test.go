package spreadsheet

import (
	"math"
	"testing"
)

func columnRange(t *testing.T, values ...Primitive) Range {
	t.Helper()
	w := NewWorksheet(len(values), 1, DefaultColumnWidth, DefaultRowHeight)
	for row, value := range values {
		if value == nil {
			continue
		}
		cell := w.GetOrCreateCell(CellAddress{Row: row, Column: 0})
		cell.Value, cell.Kind = Classify(value)
		cell.DisplayValue = cell.Value
	}
	return &CellRange{
		bounds:    RangeAddress{StartRow: 0, StartColumn: 0, EndRow: len(values) - 1, EndColumn: 0},
		worksheet: w,
	}
}

func TestBuiltInAggregates(t *testing.T) {
	bf := NewDefaultBuiltInFunctions()
	mixed := columnRange(t, 1.0, "x", nil, 3.0, NewSpreadsheetError(ErrorCodeEvaluation, ""), "4")

	tests := []struct {
		name     string
		args     []any
		expected float64
	}{
		{"SUM", []any{mixed}, 8},
		{"SUM", []any{mixed, 2.0, "skip", nil}, 10},
		{"SUM", nil, 0},
		{"AVERAGE", []any{mixed}, 8.0 / 3.0},
		{"AVERAGE", []any{"a", nil}, 0},
		{"MAX", []any{mixed, -1.0}, 4},
		{"MAX", []any{"a"}, 0},
		{"MIN", []any{mixed, -1.0}, -1},
		{"MIN", nil, 0},
		{"COUNT", []any{mixed, 7.0}, 4},
		{"count", []any{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := bf.Call(tt.name, tt.args...)
			if err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			num, ok := result.(float64)
			if !ok {
				t.Fatalf("%s returned %T, want float64", tt.name, result)
			}
			if diff := num - tt.expected; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("%s = %v, want %v", tt.name, num, tt.expected)
			}
		})
	}
}

func TestBuiltInTextFunctions(t *testing.T) {
	bf := NewDefaultBuiltInFunctions()
	failure := NewSpreadsheetError(ErrorCodeUnknownFunction, "Unknown function FOO")

	tests := []struct {
		name     string
		args     []any
		expected string
	}{
		{"TRIM", []any{"  Hi  "}, "Hi"},
		{"UPPER", []any{"  Hi  "}, "  HI  "},
		{"LOWER", []any{"  Hi  "}, "  hi  "},
		{"UPPER", []any{"ǆ straße"}, "Ǆ STRASSE"},
		{"LOWER", []any{"ÀÉÎ"}, "àéî"},
		{"UPPER", []any{1.5}, "1.5"},
		{"TRIM", []any{nil}, ""},
		{"TRIM", nil, ""},
		{"UPPER", []any{columnRange(t, "a")}, ""},
		{"LOWER", []any{"ONE", "TWO"}, "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := bf.Call(tt.name, tt.args...)
			if err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			if result != tt.expected {
				t.Errorf("%s(%v) = %q, want %q", tt.name, tt.args, result, tt.expected)
			}
		})
	}

	// an error argument propagates
	_, err := bf.Call("TRIM", failure)
	if err != failure {
		t.Errorf("TRIM(error) = %v, want the argument's error", err)
	}
}

func TestBuiltInUnknownFunction(t *testing.T) {
	bf := NewDefaultBuiltInFunctions()
	_, err := bf.Call("CONCAT", "a", "b")
	spreadsheetErr, ok := err.(*SpreadsheetError)
	if !ok {
		t.Fatalf("Call(CONCAT) error = %v, want a SpreadsheetError", err)
	}
	if spreadsheetErr.ErrorCode != ErrorCodeUnknownFunction {
		t.Errorf("error code = %v, want UnknownFunction", spreadsheetErr.ErrorCode)
	}
	if spreadsheetErr.Error() != "#ERROR: Unknown function CONCAT" {
		t.Errorf("Error() = %q", spreadsheetErr.Error())
	}

	// the message keeps the name as written
	_, err = bf.Call("concat")
	if err == nil || err.Error() != "#ERROR: Unknown function concat" {
		t.Errorf("Call(concat) error = %v", err)
	}

	for _, name := range bf.Names() {
		if _, err := bf.Call(name); err != nil {
			t.Errorf("Call(%s) with no arguments failed: %v", name, err)
		}
	}
}

func TestBuiltInSumIsExact(t *testing.T) {
	bf := NewDefaultBuiltInFunctions()
	tiny, small, tenth, fifth := 1e-16, 2e-16, 0.1, 0.2
	tests := []struct {
		args     []any
		expected float64
	}{
		{[]any{1e-20}, 1e-20},
		{[]any{columnRange(t, tiny, small)}, tiny + small},
		{[]any{tenth, fifth}, tenth + fifth},
		{[]any{math.MaxFloat64, math.MaxFloat64}, math.Inf(1)},
	}
	for _, tt := range tests {
		result, err := bf.SUM(tt.args...)
		if err != nil {
			t.Fatalf("SUM(%v) failed: %v", tt.args, err)
		}
		if result != tt.expected {
			t.Errorf("SUM(%v) = %v, want %v", tt.args, result, tt.expected)
		}
	}
}
