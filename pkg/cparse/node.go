package cparse

import (
	"fmt"
	"strings"
)

// Parse tree tags.
const (
	TagFunctionDefinition           = "FunctionDefinition"
	TagDeclaration                  = "Declaration"
	TagInitDeclarator               = "InitDeclarator"
	TagIdentifier                   = "Identifier"
	TagPointerDeclarator            = "PointerDeclarator"
	TagFunctionDeclarator           = "FunctionDeclarator"
	TagParameterDeclaration         = "ParameterDeclaration"
	TagTypeOnlyParameterDeclaration = "TypeOnlyParameterDeclaration"

	TagBlock               = "Block"
	TagExpressionStatement = "ExpressionStatement"
	TagIf                  = "If"
	TagWhile               = "While"
	TagDoWhile             = "DoWhile"
	TagFor                 = "For"
	TagBreak               = "Break"
	TagContinue            = "Continue"
	TagReturn              = "Return"
	TagNullStatement       = "NullStatement"

	TagConst        = "Const"
	TagVar          = "Var"
	TagBinaryOp     = "BinaryOp"
	TagUnaryOp      = "UnaryOp"
	TagAssign       = "Assign"
	TagPostupdate   = "Postupdate"
	TagFunctionCall = "FunctionCall"
	TagComma        = "Comma"
	TagConditional  = "Conditional"
)

// Node is a raw parse tree node: a tag and an ordered parameter list. Each
// parameter is a string, *Node, []*Node, []string or nil, depending on the
// tag.
type Node struct {
	Tag    string
	Params []any
	Line   int
}

func newNode(tag string, line int, params ...any) *Node {
	return &Node{Tag: tag, Params: params, Line: line}
}

func (n *Node) param(i int) any {
	if n == nil || i >= len(n.Params) {
		return nil
	}
	return n.Params[i]
}

// Child returns parameter i as a node, or nil.
func (n *Node) Child(i int) *Node {
	c, _ := n.param(i).(*Node)
	return c
}

// Str returns parameter i as a string, or "".
func (n *Node) Str(i int) string {
	s, _ := n.param(i).(string)
	return s
}

// List returns parameter i as a node list.
func (n *Node) List(i int) []*Node {
	l, _ := n.param(i).([]*Node)
	return l
}

// Strings returns parameter i as a string list.
func (n *Node) Strings(i int) []string {
	l, _ := n.param(i).([]string)
	return l
}

// String renders the node as an s-expression, e.g.
// (BinaryOp "+" (Const "1") (Var "x")).
func (n *Node) String() string {
	if n == nil {
		return "nil"
	}
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(n.Tag)
	for _, p := range n.Params {
		sb.WriteString(" ")
		switch v := p.(type) {
		case nil:
			sb.WriteString("nil")
		case string:
			fmt.Fprintf(&sb, "%q", v)
		case *Node:
			sb.WriteString(v.String())
		case []string:
			fmt.Fprintf(&sb, "%q", v)
		case []*Node:
			sb.WriteString("[")
			for i, c := range v {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(c.String())
			}
			sb.WriteString("]")
		default:
			fmt.Fprintf(&sb, "%v", v)
		}
	}
	sb.WriteString(")")
	return sb.String()
}
