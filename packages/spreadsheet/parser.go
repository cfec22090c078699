package spreadsheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// functionCallPattern recognizes NAME(args) spanning the whole expression
var functionCallPattern = regexp.MustCompile(`^([A-Za-z_]+)\((.*)\)$`)

// Formula is a parsed formula. exactly one of Call and Expression is set;
// an empty formula ("=") has neither.
type Formula struct {
	Text       string        // original text including '='
	Call       *FunctionCall // NAME(args) form
	Expression string        // bare arithmetic form
}

// FunctionCall is a function name with its raw argument texts
type FunctionCall struct {
	Name string // as written; dispatch ignores case
	Args []string
}

func (f *FunctionCall) String() string {
	return f.Name + "(" + strings.Join(f.Args, ", ") + ")"
}

// ParseFormula strips the leading '=' and splits a formula into a function
// call or a bare expression. parsing never fails: unbalanced parentheses
// and quotes are handled on a best-effort basis and surface as evaluation
// errors later.
func ParseFormula(text string) *Formula {
	expression := strings.TrimSpace(strings.TrimPrefix(text, "="))
	formula := &Formula{Text: text}
	if call, ok := parseFunctionCall(expression); ok {
		formula.Call = call
		return formula
	}
	formula.Expression = expression
	return formula
}

func parseFunctionCall(expression string) (*FunctionCall, bool) {
	m := functionCallPattern.FindStringSubmatch(expression)
	if m == nil || !enclosesArguments(m[2]) {
		return nil, false
	}
	return &FunctionCall{
		Name: m[1],
		Args: splitArguments(m[2]),
	}, true
}

// enclosesArguments reports whether the final ')' closes the call's own
// '('. in SUM(A1)+SUM(A2) it does not: the argument text closes early.
func enclosesArguments(argsText string) bool {
	inQuotes := false
	depth := 0
	for i := 0; i < len(argsText); i++ {
		switch ch := argsText[i]; {
		case ch == '"' && (i == 0 || argsText[i-1] != '\\'):
			inQuotes = !inQuotes
		case ch == '(' && !inQuotes:
			depth++
		case ch == ')' && !inQuotes:
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return true
}

// splitArguments splits on commas that are neither nested in parentheses
// nor inside a double-quoted string. a backslash escapes a quote.
func splitArguments(argsText string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	parenCount := 0

	for i := 0; i < len(argsText); i++ {
		ch := argsText[i]
		switch {
		case ch == '"' && (i == 0 || argsText[i-1] != '\\'):
			inQuotes = !inQuotes
			current.WriteByte(ch)
		case ch == '(' && !inQuotes:
			parenCount++
			current.WriteByte(ch)
		case ch == ')' && !inQuotes:
			parenCount--
			current.WriteByte(ch)
		case ch == ',' && !inQuotes && parenCount == 0:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		args = append(args, last)
	}
	return args
}

// unquote returns the contents of a "..." literal with \" unescaped
func unquote(arg string) (string, bool) {
	if len(arg) < 2 || arg[0] != '"' || arg[len(arg)-1] != '"' {
		return "", false
	}
	return strings.ReplaceAll(arg[1:len(arg)-1], `\"`, `"`), true
}

type NodePosition struct {
	Start int
	End   int
}

// referenceResolver supplies numeric values for cell references during
// expression evaluation
type referenceResolver interface {
	resolveNumber(ref string) (float64, error)
}

// ASTNode is a node of a parsed arithmetic expression
type ASTNode interface {
	Eval(r referenceResolver) (float64, error)
	GetPosition() NodePosition
	ToString() string
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(r referenceResolver) (float64, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return formatNumber(n.Value)
}

// CellRefNode represents a cell reference, substituted by its numeric value
type CellRefNode struct {
	Address  string
	Position NodePosition
}

func (n *CellRefNode) Eval(r referenceResolver) (float64, error) {
	return r.resolveNumber(n.Address)
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return n.Address
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(r referenceResolver) (float64, error) {
	left, err := n.Left.Eval(r)
	if err != nil {
		return 0, err
	}
	right, err := n.Right.Eval(r)
	if err != nil {
		return 0, err
	}

	// division by zero is not an error here: it yields +/-Inf or NaN,
	// which the caller reports as an invalid calculation
	switch n.Op {
	case BinOpAdd:
		return left + right, nil
	case BinOpSubtract:
		return left - right, nil
	case BinOpMultiply:
		return left * right, nil
	case BinOpDivide:
		return left / right, nil
	}
	return math.NaN(), nil
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	var op string
	switch n.Op {
	case BinOpAdd:
		op = "+"
	case BinOpSubtract:
		op = "-"
	case BinOpMultiply:
		op = "*"
	case BinOpDivide:
		op = "/"
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), op, n.Right.ToString())
}

// UnaryOpNode represents a unary sign
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(r referenceResolver) (float64, error) {
	value, err := n.Operand.Eval(r)
	if err != nil {
		return 0, err
	}
	if n.Op == UnaryOpMinus {
		return -value, nil
	}
	return value, nil
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	if n.Op == UnaryOpMinus {
		return "-" + n.Operand.ToString()
	}
	return "+" + n.Operand.ToString()
}

// NewParser creates a new parser over lexed tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseExpression lexes and parses a bare arithmetic expression
func ParseExpression(expression string) (ASTNode, error) {
	tokens, lexErrors := NewLexer(expression).Tokenize()
	if len(lexErrors) > 0 {
		return nil, NewSpreadsheetError(ErrorCodeEvaluation, strings.Join(lexErrors, "; "))
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return nil, NewSpreadsheetError(ErrorCodeEvaluation, "Empty expression")
	}

	node, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, NewSpreadsheetError(ErrorCodeEvaluation,
			fmt.Sprintf("Unexpected token '%s' at position %d", tok.Value, tok.Pos))
	}

	return node, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// parseAddition handles addition and subtraction (lowest precedence)
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.Type != TokenOperator {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.Type != TokenOperator {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseUnary handles leading signs, which may repeat ("--1")
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.current()
	if tok.Type == TokenOperator && (tok.Value == "+" || tok.Value == "-") {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := UnaryOpPlus
		if tok.Value == "-" {
			op = UnaryOpMinus
		}
		return &UnaryOpNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
		}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles numbers, cell references and parenthesized groups
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		value, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewSpreadsheetError(ErrorCodeEvaluation, fmt.Sprintf("Invalid number %s", tok.Value))
		}
		return &NumberNode{
			Value:    value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenCell:
		p.pos++
		return &CellRefNode{
			Address:  tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenLeftParen:
		p.pos++
		node, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRightParen {
			return nil, NewSpreadsheetError(ErrorCodeEvaluation, "Missing closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, NewSpreadsheetError(ErrorCodeEvaluation, "Unexpected end of expression")
	}

	return nil, NewSpreadsheetError(ErrorCodeEvaluation,
		fmt.Sprintf("Unexpected token '%s' at position %d", tok.Value, tok.Pos))
}
