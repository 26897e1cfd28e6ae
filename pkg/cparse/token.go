package cparse

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER
	NUMBER // numeric lexeme, validated later by the abstractor

	// Keywords
	INT
	DOUBLE
	VOID
	SIGNED
	IF
	ELSE
	WHILE
	DO
	FOR
	RETURN
	BREAK
	CONTINUE

	// Delimiters
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	SEMICOLON
	COMMA
	COLON
	QUESTION

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP
	PIPE
	CARET
	TILDE
	NOT
	SHL
	SHR
	AND_LOGICAL
	OR_LOGICAL
	PLUS_PLUS
	MINUS_MINUS

	EQUALS
	NOT_EQ
	LESS
	GREATER
	LESS_EQ
	GREATER_EQ

	// Assignment operators
	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
	AMP_ASSIGN
	PIPE_ASSIGN
	CARET_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN
)

var tokenNames = [...]string{
	EOF:            "EOF",
	IDENTIFIER:     "IDENTIFIER",
	NUMBER:         "NUMBER",
	INT:            "INT",
	DOUBLE:         "DOUBLE",
	VOID:           "VOID",
	SIGNED:         "SIGNED",
	IF:             "IF",
	ELSE:           "ELSE",
	WHILE:          "WHILE",
	DO:             "DO",
	FOR:            "FOR",
	RETURN:         "RETURN",
	BREAK:          "BREAK",
	CONTINUE:       "CONTINUE",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	SEMICOLON:      "SEMICOLON",
	COMMA:          "COMMA",
	COLON:          "COLON",
	QUESTION:       "QUESTION",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	AMP:            "AMP",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	NOT:            "NOT",
	SHL:            "SHL",
	SHR:            "SHR",
	AND_LOGICAL:    "AND_LOGICAL",
	OR_LOGICAL:     "OR_LOGICAL",
	PLUS_PLUS:      "PLUS_PLUS",
	MINUS_MINUS:    "MINUS_MINUS",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	AMP_ASSIGN:     "AMP_ASSIGN",
	PIPE_ASSIGN:    "PIPE_ASSIGN",
	CARET_ASSIGN:   "CARET_ASSIGN",
	SHL_ASSIGN:     "SHL_ASSIGN",
	SHR_ASSIGN:     "SHR_ASSIGN",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsTypeSpecifier reports whether tt can start a declaration.
func (tt TokenType) IsTypeSpecifier() bool {
	switch tt {
	case INT, DOUBLE, VOID, SIGNED:
		return true
	}
	return false
}

// IsAssignment reports whether tt is = or a compound assignment operator.
func (tt TokenType) IsAssignment() bool {
	return tt >= ASSIGN && tt <= SHR_ASSIGN
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
