package spreadsheet

import "fmt"

// TokenType represents different types of tokens in arithmetic expressions
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenCell
	TokenOperator
	TokenLeftParen
	TokenRightParen
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

// character classification constants. slightly easier to read.
const (
	charTab      = '\t'
	charNewline  = '\n'
	charReturn   = '\r'
	charSpace    = ' '
	charLParen   = '('
	charRParen   = ')'
	charAsterisk = '*'
	charPlus     = '+'
	charMinus    = '-'
	charPeriod   = '.'
	charSlash    = '/'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte position in input
}

// Lexer tokenizes bare arithmetic expressions. the input is ASCII by
// construction: anything outside the expression alphabet is an error.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
	errors []string
}

// NewLexer creates a new lexer for an expression without the leading '='
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		tokens: []Token{},
	}
}

// Tokenize scans the whole input. the token list always ends with
// TokenEOF; lexing stops at the first error.
func (l *Lexer) Tokenize() ([]Token, []string) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
			return l.tokens, l.errors
		}

		tok, ok := l.nextToken()
		if !ok {
			l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
			return l.tokens, l.errors
		}
		l.tokens = append(l.tokens, tok)
	}
}

func (l *Lexer) nextToken() (Token, bool) {
	start := l.pos
	ch := l.input[l.pos]

	switch {
	case l.isDigit(ch) || ch == charPeriod:
		return l.scanNumber()
	case l.isUpper(ch):
		return l.scanCell()
	case ch == charPlus || ch == charMinus || ch == charAsterisk || ch == charSlash:
		l.pos++
		return Token{Type: TokenOperator, Value: string(ch), Pos: start}, true
	case ch == charLParen:
		l.pos++
		return Token{Type: TokenLeftParen, Value: "(", Pos: start}, true
	case ch == charRParen:
		l.pos++
		return Token{Type: TokenRightParen, Value: ")", Pos: start}, true
	}

	l.errors = append(l.errors, fmt.Sprintf("Unexpected character '%c' at position %d", ch, start))
	return Token{}, false
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isUpper(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

// scanNumber reads digits with an optional fraction. there is no exponent
// form: in 1E5 the E5 is a cell reference.
func (l *Lexer) scanNumber() (Token, bool) {
	start := l.pos
	digits := 0
	for l.pos < len(l.input) && l.isDigit(l.input[l.pos]) {
		l.pos++
		digits++
	}
	if l.pos < len(l.input) && l.input[l.pos] == charPeriod {
		l.pos++
		for l.pos < len(l.input) && l.isDigit(l.input[l.pos]) {
			l.pos++
			digits++
		}
	}
	if digits == 0 {
		l.errors = append(l.errors, fmt.Sprintf("Unexpected character '.' at position %d", start))
		return Token{}, false
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}, true
}

// scanCell reads uppercase letters followed by digits. letters without
// digits are not a value in this expression language.
func (l *Lexer) scanCell() (Token, bool) {
	start := l.pos
	for l.pos < len(l.input) && l.isUpper(l.input[l.pos]) {
		l.pos++
	}
	lettersEnd := l.pos
	for l.pos < len(l.input) && l.isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == lettersEnd {
		l.errors = append(l.errors, fmt.Sprintf("Unexpected identifier %s", l.input[start:lettersEnd]))
		return Token{}, false
	}
	return Token{Type: TokenCell, Value: l.input[start:l.pos], Pos: start}, true
}
