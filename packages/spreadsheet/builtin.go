package spreadsheet

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuiltInFunctions contains all spreadsheet built-in functions. arguments
// arrive already resolved: each is a Range or a scalar Primitive.
type BuiltInFunctions struct {
	upper cases.Caser
	lower cases.Caser
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions with default
// implementations
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{
		upper: cases.Upper(language.Und),
		lower: cases.Lower(language.Und),
	}
}

// Names lists the supported function names
func (bf *BuiltInFunctions) Names() []string {
	return []string{"SUM", "AVERAGE", "MAX", "MIN", "COUNT", "TRIM", "UPPER", "LOWER"}
}

// Call invokes a built-in function by name, ignoring case, with the given
// arguments
func (bf *BuiltInFunctions) Call(name string, args ...any) (Primitive, error) {
	switch strings.ToUpper(name) {
	case "SUM":
		return bf.SUM(args...)
	case "AVERAGE":
		return bf.AVERAGE(args...)
	case "MAX":
		return bf.MAX(args...)
	case "MIN":
		return bf.MIN(args...)
	case "COUNT":
		return bf.COUNT(args...)
	case "TRIM":
		return bf.TRIM(args...)
	case "UPPER":
		return bf.UPPER(args...)
	case "LOWER":
		return bf.LOWER(args...)
	default:
		return nil, NewSpreadsheetError(ErrorCodeUnknownFunction, fmt.Sprintf("Unknown function %s", name))
	}
}

// numbers yields every numeric input across the arguments. ranges are
// flattened; anything that does not coerce to a number is skipped.
func numbers(args []any, fn func(float64)) {
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if num, ok := toNumber(value); ok {
					fn(num)
				}
			}
			continue
		}
		if num, ok := toNumber(arg); ok {
			fn(num)
		}
	}
}

func (bf *BuiltInFunctions) SUM(args ...any) (Primitive, error) {
	sum := 0.0
	numbers(args, func(num float64) {
		sum += num
	})
	return sum, nil
}

// AVERAGE returns 0 when there is nothing to average
func (bf *BuiltInFunctions) AVERAGE(args ...any) (Primitive, error) {
	sum := 0.0
	count := 0
	numbers(args, func(num float64) {
		sum += num
		count++
	})
	if count == 0 {
		return 0.0, nil
	}
	return sum / float64(count), nil
}

// MAX returns 0 when there are no numeric inputs
func (bf *BuiltInFunctions) MAX(args ...any) (Primitive, error) {
	result := math.Inf(-1)
	found := false
	numbers(args, func(num float64) {
		result = math.Max(result, num)
		found = true
	})
	if !found {
		return 0.0, nil
	}
	return result, nil
}

// MIN returns 0 when there are no numeric inputs
func (bf *BuiltInFunctions) MIN(args ...any) (Primitive, error) {
	result := math.Inf(1)
	found := false
	numbers(args, func(num float64) {
		result = math.Min(result, num)
		found = true
	})
	if !found {
		return 0.0, nil
	}
	return result, nil
}

func (bf *BuiltInFunctions) COUNT(args ...any) (Primitive, error) {
	count := 0
	numbers(args, func(float64) {
		count++
	})
	return float64(count), nil
}

// textArgument returns the first argument as text. a missing argument, an
// empty value or a range read as "".
func textArgument(args []any) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if err := checkForError(args[0]); err != nil {
		return "", err
	}
	if _, ok := args[0].(Range); ok {
		return "", nil
	}
	return toText(args[0]), nil
}

func (bf *BuiltInFunctions) UPPER(args ...any) (Primitive, error) {
	text, err := textArgument(args)
	if err != nil {
		return nil, err
	}
	return bf.upper.String(text), nil
}

func (bf *BuiltInFunctions) LOWER(args ...any) (Primitive, error) {
	text, err := textArgument(args)
	if err != nil {
		return nil, err
	}
	return bf.lower.String(text), nil
}

func (bf *BuiltInFunctions) TRIM(args ...any) (Primitive, error) {
	text, err := textArgument(args)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(text), nil
}
