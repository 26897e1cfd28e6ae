package cparse

import (
	"fmt"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds the
// raw parse tree.
//
// Grammar:
//
//	unit        = external* EOF
//	external    = specifiers declarator ( block | initRest ("," initDecl)* ";" )
//	specifiers  = ("int" | "double" | "void" | "signed")+
//	declarator  = "*" declarator | IDENTIFIER [ "(" params ")" ]
//	params      = [ param ("," param)* ]
//	param       = specifiers [ declarator ]
//	initDecl    = declarator [ "=" assignment ]
//	statement   = block | declaration | if | while | do | for | return
//	            | "break" ";" | "continue" ";" | ";" | expression ";"
//	expression  = assignment ("," assignment)*
//	assignment  = conditional [ assignOp assignment ]
//	conditional = logicalOr [ "?" expression ":" conditional ]
//	logicalOr   = logicalAnd ("||" logicalAnd)*
//	logicalAnd  = bitOr ("&&" bitOr)*
//	bitOr       = bitXor ("|" bitXor)*
//	bitXor      = bitAnd ("^" bitAnd)*
//	bitAnd      = equality ("&" equality)*
//	equality    = relational (("==" | "!=") relational)*
//	relational  = shift (("<" | ">" | "<=" | ">=") shift)*
//	shift       = additive (("<<" | ">>") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = ("-" | "+" | "!" | "~" | "*" | "&" | "++" | "--") unary | postfix
//	postfix     = primary ( "(" args ")" | "++" | "--" )*
//	primary     = NUMBER | IDENTIFIER | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}
	return fmt.Errorf("line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		line := 0
		if len(p.tokens) > 0 {
			line = p.tokens[len(p.tokens)-1].Line
		}
		return Token{Type: EOF, Line: line}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// Parse builds the parse tree of a translation unit: a list of
// FunctionDefinition and Declaration nodes.
func Parse(tokens []Token, rawSource string) ([]*Node, error) {
	p := NewParser(tokens, rawSource)
	var unit []*Node
	for p.peek().Type != EOF {
		n, err := p.parseExternal()
		if err != nil {
			return nil, err
		}
		unit = append(unit, n)
	}
	return unit, nil
}

// ParseSource runs Lex and Parse over already preprocessed source.
func ParseSource(src string) ([]*Node, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, src)
}

func (p *Parser) parseExternal() (*Node, error) {
	start := p.peek()
	if !start.Type.IsTypeSpecifier() {
		return nil, p.fmtError(start, "executable statement %q found outside of function body", start.Lexeme)
	}
	specs := p.parseSpecifiers()
	decl, err := p.parseDeclarator()
	if err != nil {
		return nil, err
	}

	if p.peek().Type == LBRACE && declaresFunction(decl) {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return newNode(TagFunctionDefinition, start.Line, specs, decl, []*Node{}, body), nil
	}
	return p.parseDeclarationRest(start, specs, decl)
}

// declaresFunction reports whether the declarator, under any pointer
// prefixes, is a function declarator.
func declaresFunction(decl *Node) bool {
	for decl != nil && decl.Tag == TagPointerDeclarator {
		decl = decl.Child(0)
	}
	return decl != nil && decl.Tag == TagFunctionDeclarator
}

func (p *Parser) parseSpecifiers() []string {
	var specs []string
	for p.peek().Type.IsTypeSpecifier() {
		specs = append(specs, p.advance().Lexeme)
	}
	return specs
}

func (p *Parser) parseDeclarator() (*Node, error) {
	if p.peek().Type == STAR {
		star := p.advance()
		inner, err := p.parseDeclarator()
		if err != nil {
			return nil, err
		}
		return newNode(TagPointerDeclarator, star.Line, inner), nil
	}

	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	name := newNode(TagIdentifier, nameTok.Line, nameTok.Lexeme)
	if p.peek().Type != LPAREN {
		return name, nil
	}

	p.advance() // (
	params := []*Node{}
	if p.peek().Type != RPAREN {
		for {
			param, err := p.parseParameter()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return newNode(TagFunctionDeclarator, nameTok.Line, name, params), nil
}

func (p *Parser) parseParameter() (*Node, error) {
	tok := p.peek()
	if !tok.Type.IsTypeSpecifier() {
		return nil, p.fmtError(tok, "expected parameter type, got %s (%q)", tok.Type, tok.Lexeme)
	}
	specs := p.parseSpecifiers()
	if p.peek().Type == COMMA || p.peek().Type == RPAREN {
		return newNode(TagTypeOnlyParameterDeclaration, tok.Line, specs), nil
	}
	decl, err := p.parseDeclarator()
	if err != nil {
		return nil, err
	}
	return newNode(TagParameterDeclaration, tok.Line, specs, decl), nil
}

// parseDeclarationRest finishes a declaration whose specifiers and first
// declarator have been consumed.
func (p *Parser) parseDeclarationRest(start Token, specs []string, first *Node) (*Node, error) {
	var inits []*Node
	decl := first
	for {
		var init *Node
		if p.peek().Type == ASSIGN {
			p.advance()
			var err error
			init, err = p.parseAssignment()
			if err != nil {
				return nil, err
			}
		}
		inits = append(inits, newNode(TagInitDeclarator, decl.Line, decl, init))

		if p.peek().Type != COMMA {
			break
		}
		p.advance()
		var err error
		decl, err = p.parseDeclarator()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return newNode(TagDeclaration, start.Line, specs, inits), nil
}

func (p *Parser) parseDeclaration() (*Node, error) {
	start := p.peek()
	specs := p.parseSpecifiers()
	decl, err := p.parseDeclarator()
	if err != nil {
		return nil, err
	}
	return p.parseDeclarationRest(start, specs, decl)
}

func (p *Parser) parseBlock() (*Node, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	items := []*Node{}
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		item, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return newNode(TagBlock, open.Line, items), nil
}

func (p *Parser) parseStatement() (*Node, error) {
	tok := p.peek()
	switch tok.Type {
	case LBRACE:
		return p.parseBlock()

	case INT, DOUBLE, VOID, SIGNED:
		return p.parseDeclaration()

	case IF:
		p.advance()
		test, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		then, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		var els *Node
		if p.peek().Type == ELSE {
			p.advance()
			if els, err = p.parseStatement(); err != nil {
				return nil, err
			}
		}
		return newNode(TagIf, tok.Line, test, then, els), nil

	case WHILE:
		p.advance()
		test, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return newNode(TagWhile, tok.Line, test, body), nil

	case DO:
		p.advance()
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(WHILE); err != nil {
			return nil, err
		}
		test, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return newNode(TagDoWhile, tok.Line, body, test), nil

	case FOR:
		return p.parseFor()

	case RETURN:
		p.advance()
		var expr *Node
		if p.peek().Type != SEMICOLON {
			var err error
			if expr, err = p.parseExpression(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return newNode(TagReturn, tok.Line, expr), nil

	case BREAK, CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		if tok.Type == BREAK {
			return newNode(TagBreak, tok.Line), nil
		}
		return newNode(TagContinue, tok.Line), nil

	case SEMICOLON:
		p.advance()
		return newNode(TagNullStatement, tok.Line), nil

	case EOF:
		return nil, p.fmtError(tok, "unexpected end of input")
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return newNode(TagExpressionStatement, tok.Line, expr), nil
}

func (p *Parser) parseParenExpression() (*Node, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseFor parses for ( init; test; update ) body. Init is a Declaration, an
// expression or nil.
func (p *Parser) parseFor() (*Node, error) {
	forTok := p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var init *Node
	var err error
	switch {
	case p.peek().Type.IsTypeSpecifier():
		if init, err = p.parseDeclaration(); err != nil {
			return nil, err
		}
	case p.peek().Type == SEMICOLON:
		p.advance()
	default:
		if init, err = p.parseExpression(); err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
	}

	var test *Node
	if p.peek().Type != SEMICOLON {
		if test, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	var update *Node
	if p.peek().Type != RPAREN {
		if update, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return newNode(TagFor, forTok.Line, init, test, update, body), nil
}

func (p *Parser) parseExpression() (*Node, error) {
	expr, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == COMMA {
		tok := p.advance()
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		expr = newNode(TagComma, tok.Line, expr, right)
	}
	return expr, nil
}

func (p *Parser) parseAssignment() (*Node, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if !p.peek().Type.IsAssignment() {
		return left, nil
	}
	op := p.advance()
	right, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return newNode(TagAssign, op.Line, left, op.Lexeme, right), nil
}

func (p *Parser) parseConditional() (*Node, error) {
	test, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != QUESTION {
		return test, nil
	}
	q := p.advance()
	consequent, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	alternate, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return newNode(TagConditional, q.Line, test, consequent, alternate), nil
}

// binaryLevels lists the left-associative binary operators from loosest to
// tightest binding.
var binaryLevels = [][]TokenType{
	{OR_LOGICAL},
	{AND_LOGICAL},
	{PIPE},
	{CARET},
	{AMP},
	{EQUALS, NOT_EQ},
	{LESS, GREATER, LESS_EQ, GREATER_EQ},
	{SHL, SHR},
	{PLUS, MINUS},
	{STAR, SLASH, PERCENT},
}

func (p *Parser) parseBinary(level int) (*Node, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for containsToken(binaryLevels[level], p.peek().Type) {
		op := p.advance()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = newNode(TagBinaryOp, op.Line, op.Lexeme, left, right)
	}
	return left, nil
}

func containsToken(set []TokenType, tt TokenType) bool {
	for _, t := range set {
		if t == tt {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() (*Node, error) {
	switch p.peek().Type {
	case MINUS, PLUS, NOT, TILDE, STAR, AMP, PLUS_PLUS, MINUS_MINUS:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return newNode(TagUnaryOp, op.Line, op.Lexeme, operand), nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (*Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case LPAREN:
			open := p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = newNode(TagFunctionCall, open.Line, expr, args)
		case PLUS_PLUS, MINUS_MINUS:
			op := p.advance()
			expr = newNode(TagPostupdate, op.Line, op.Lexeme, expr)
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallArgs() ([]*Node, error) {
	args := []*Node{}
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (*Node, error) {
	tok := p.peek()
	switch tok.Type {
	case NUMBER:
		p.advance()
		return newNode(TagConst, tok.Line, tok.Lexeme), nil
	case IDENTIFIER:
		p.advance()
		return newNode(TagVar, tok.Line, tok.Lexeme), nil
	case LPAREN:
		return p.parseParenExpression()
	}
	return nil, p.fmtError(tok, "expected expression, got %s (%q)", tok.Type, tok.Lexeme)
}
