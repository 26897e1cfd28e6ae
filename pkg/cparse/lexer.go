package cparse

import (
	"fmt"
	"unicode"
)

var keywords = map[string]TokenType{
	"int":      INT,
	"double":   DOUBLE,
	"void":     VOID,
	"signed":   SIGNED,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"do":       DO,
	"for":      FOR,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
}

// operators lists every punctuator, longest first so that a prefix never
// shadows a longer match.
var operators = []struct {
	text string
	tt   TokenType
}{
	{"<<=", SHL_ASSIGN},
	{">>=", SHR_ASSIGN},
	{"++", PLUS_PLUS},
	{"--", MINUS_MINUS},
	{"+=", PLUS_ASSIGN},
	{"-=", MINUS_ASSIGN},
	{"*=", STAR_ASSIGN},
	{"/=", SLASH_ASSIGN},
	{"%=", PERCENT_ASSIGN},
	{"&=", AMP_ASSIGN},
	{"|=", PIPE_ASSIGN},
	{"^=", CARET_ASSIGN},
	{"&&", AND_LOGICAL},
	{"||", OR_LOGICAL},
	{"<<", SHL},
	{">>", SHR},
	{"==", EQUALS},
	{"!=", NOT_EQ},
	{"<=", LESS_EQ},
	{">=", GREATER_EQ},
	{"{", LBRACE},
	{"}", RBRACE},
	{"(", LPAREN},
	{")", RPAREN},
	{";", SEMICOLON},
	{",", COMMA},
	{":", COLON},
	{"?", QUESTION},
	{"+", PLUS},
	{"-", MINUS},
	{"*", STAR},
	{"/", SLASH},
	{"%", PERCENT},
	{"&", AMP},
	{"|", PIPE},
	{"^", CARET},
	{"~", TILDE},
	{"!", NOT},
	{"<", LESS},
	{">", GREATER},
	{"=", ASSIGN},
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) hasPrefix(s string) bool {
	rs := []rune(s)
	if l.pos+len(rs) > len(l.src) {
		return false
	}
	for i, r := range rs {
		if l.src[l.pos+i] != r {
			return false
		}
	}
	return true
}

// skipTrivia discards whitespace and both comment styles.
func (l *Lexer) skipTrivia() error {
	for l.pos < len(l.src) {
		switch {
		case unicode.IsSpace(l.peek()):
			l.advance()
		case l.peek() == '/' && l.peek2() == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case l.peek() == '/' && l.peek2() == '*':
			startLine := l.line
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.peek() == '*' && l.peek2() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

// scanNumber takes the whole preprocessing-number lexeme (digits, letters,
// dots), so that hex, octal-looking and floating literals arrive intact.
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && (isIdentPart(l.peek()) || l.peek() == '.') {
		l.advance()
	}
	return Token{Type: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: l.line}, nil
	}

	ch := l.peek()
	if isIdentStart(ch) {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peek2())) {
		return l.scanNumber(), nil
	}

	line := l.line
	for _, op := range operators {
		if l.hasPrefix(op.text) {
			for range op.text {
				l.advance()
			}
			return Token{Type: op.tt, Lexeme: op.text, Line: line}, nil
		}
	}
	return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It stops at the first illegal character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
