package spreadsheet

import (
	"reflect"
	"testing"
)

func parseExpression(expression string) bool {
	_, err := ParseExpression(expression)
	return err == nil
}

type staticResolver map[string]float64

func (r staticResolver) resolveNumber(ref string) (float64, error) {
	return r[ref], nil
}

func TestParserBasicExpressions(t *testing.T) {
	validExpressions := []string{
		"1+2",
		"A1",
		"A1 + B2 * 3",
		"(A1+B1)/2",
		"-A1",
		"5--3",
		"+4",
		"1.5 - .5",
		"AA100*ZZ1",
		"((1))",
	}

	for _, expression := range validExpressions {
		t.Run(expression, func(t *testing.T) {
			if !parseExpression(expression) {
				t.Errorf("Failed to parse valid expression: %s", expression)
			}
		})
	}
}

func TestParserInvalidExpressions(t *testing.T) {
	invalidExpressions := []string{
		"",
		"1+",
		"(1+2",
		"1+2)",
		"A1:B2",
		"hello",
		"ABC",
		"1 2",
		`"text"`,
		"2^3",
		".",
		"1E5",
		"1e2+1",
		"1.5e3",
	}

	for _, expression := range invalidExpressions {
		t.Run(expression, func(t *testing.T) {
			if parseExpression(expression) {
				t.Errorf("Expected expression to fail but it succeeded: %s", expression)
			}
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		expression string
		expected   float64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"10-4-3", 3},
		{"16/4/2", 2},
		{"5--3", 8},
		{"-2*-3", 6},
		{"2*A1+B1", 25},
		{"A1/B1", 2},
	}

	resolver := staticResolver{"A1": 10, "B1": 5}
	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			ast, err := ParseExpression(tt.expression)
			if err != nil {
				t.Fatalf("ParseExpression(%q) failed: %v", tt.expression, err)
			}
			actual, err := ast.Eval(resolver)
			if err != nil {
				t.Fatalf("Eval(%q) failed: %v", tt.expression, err)
			}
			if actual != tt.expected {
				t.Errorf("Eval(%q) = %v, want %v", tt.expression, actual, tt.expected)
			}
		})
	}
}

func TestParserToString(t *testing.T) {
	ast, err := ParseExpression("1+A1*-2")
	if err != nil {
		t.Fatalf("ParseExpression failed: %v", err)
	}
	if got := ast.ToString(); got != "(1+(A1*-2))" {
		t.Errorf("ToString() = %q", got)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, errs := NewLexer("A1 + 23").Tokenize()
	if len(errs) > 0 {
		t.Fatalf("Tokenize failed: %v", errs)
	}
	expected := []Token{
		{Type: TokenCell, Value: "A1", Pos: 0},
		{Type: TokenOperator, Value: "+", Pos: 3},
		{Type: TokenNumber, Value: "23", Pos: 5},
		{Type: TokenEOF, Pos: 7},
	}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("Tokenize() = %+v, want %+v", tokens, expected)
	}
}

func TestLexerHasNoExponent(t *testing.T) {
	// E5 after a number is a reference, as the dependency extractor sees it
	tokens, errs := NewLexer("1E5").Tokenize()
	if len(errs) > 0 {
		t.Fatalf("Tokenize failed: %v", errs)
	}
	expected := []Token{
		{Type: TokenNumber, Value: "1", Pos: 0},
		{Type: TokenCell, Value: "E5", Pos: 1},
		{Type: TokenEOF, Pos: 3},
	}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("Tokenize() = %+v, want %+v", tokens, expected)
	}
	if refs := extractReferences("1E5+1"); !reflect.DeepEqual(refs, []string{"E5"}) {
		t.Errorf("extractReferences = %v, want [E5]", refs)
	}
}

func TestParseFormula(t *testing.T) {
	tests := []struct {
		formula    string
		name       string
		args       []string
		expression string
	}{
		{"=SUM(A1:A3)", "SUM", []string{"A1:A3"}, ""},
		{"= sum(A1, B2 ) ", "sum", []string{"A1", "B2"}, ""},
		{"=A1+B1", "", nil, "A1+B1"},
		{"=(A1+B1)*2", "", nil, "(A1+B1)*2"},
		{"=SUM(A1, MAX(B1, B2), 3)", "SUM", []string{"A1", "MAX(B1, B2)", "3"}, ""},
		{`=UPPER("a, b")`, "UPPER", []string{`"a, b"`}, ""},
		{`=UPPER("say \"hi, there\"", A1)`, "UPPER", []string{`"say \"hi, there\""`, "A1"}, ""},
		{"=TRIM()", "TRIM", nil, ""},
		{"=SUM(A1,,A2)", "SUM", []string{"A1", "", "A2"}, ""},
		{"=", "", nil, ""},
		{"=FOO1(A1)", "", nil, "FOO1(A1)"},
		{"=SUM(A1)+SUM(A10)", "", nil, "SUM(A1)+SUM(A10)"},
		{"=MAX(A1)*(B1)", "", nil, "MAX(A1)*(B1)"},
		{`=UPPER(")(")`, "UPPER", []string{`")("`}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			formula := ParseFormula(tt.formula)
			if formula.Text != tt.formula {
				t.Errorf("Text = %q, want %q", formula.Text, tt.formula)
			}
			if tt.name == "" {
				if formula.Call != nil {
					t.Fatalf("expected a bare expression, got call %s", formula.Call)
				}
				if formula.Expression != tt.expression {
					t.Errorf("Expression = %q, want %q", formula.Expression, tt.expression)
				}
				return
			}
			if formula.Call == nil {
				t.Fatalf("expected a function call, got expression %q", formula.Expression)
			}
			if formula.Call.Name != tt.name {
				t.Errorf("Name = %q, want %q", formula.Call.Name, tt.name)
			}
			if !reflect.DeepEqual(formula.Call.Args, tt.args) {
				t.Errorf("Args = %q, want %q", formula.Call.Args, tt.args)
			}
		})
	}
}

func TestSplitArgumentsTolerance(t *testing.T) {
	// unbalanced input never fails, it only splits less
	tests := []struct {
		input    string
		expected []string
	}{
		{`"open, quote`, []string{`"open, quote`}},
		{"(1, 2", []string{"(1, 2"}},
		{"1), 2", []string{"1), 2"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		if got := splitArguments(tt.input); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("splitArguments(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
