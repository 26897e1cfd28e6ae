package cparse

import (
	"strings"
	"testing"
)

// TestParse checks the rendered tree of small translation units.
func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Global Declaration",
			input:    "int x = 10, *p;",
			expected: `(Declaration ["int"] [(InitDeclarator (Identifier "x") (Const "10")) (InitDeclarator (PointerDeclarator (Identifier "p")) nil)])`,
		},
		{
			name:     "Prototype With Void Parameter",
			input:    "int f(void);",
			expected: `(Declaration ["int"] [(InitDeclarator (FunctionDeclarator (Identifier "f") [(TypeOnlyParameterDeclaration ["void"])]) nil)])`,
		},
		{
			name:  "Function Definition",
			input: "signed int add(int a, double b) { return a + 1; }",
			expected: `(FunctionDefinition ["signed" "int"] (FunctionDeclarator (Identifier "add") ` +
				`[(ParameterDeclaration ["int"] (Identifier "a")) (ParameterDeclaration ["double"] (Identifier "b"))]) [] ` +
				`(Block [(Return (BinaryOp "+" (Var "a") (Const "1")))]))`,
		},
		{
			name:  "Precedence",
			input: "int f() { x = a + b * c == d || e && g; }",
			expected: `(FunctionDefinition ["int"] (FunctionDeclarator (Identifier "f") []) [] (Block [(ExpressionStatement ` +
				`(Assign (Var "x") "=" (BinaryOp "||" (BinaryOp "==" (BinaryOp "+" (Var "a") (BinaryOp "*" (Var "b") (Var "c"))) (Var "d")) ` +
				`(BinaryOp "&&" (Var "e") (Var "g")))))]))`,
		},
		{
			name:  "Assignment Is Right Associative",
			input: "int f() { a = b += 2; }",
			expected: `(FunctionDefinition ["int"] (FunctionDeclarator (Identifier "f") []) [] (Block [(ExpressionStatement ` +
				`(Assign (Var "a") "=" (Assign (Var "b") "+=" (Const "2"))))]))`,
		},
		{
			name:  "Unary Postfix And Call",
			input: "int f() { return -*p + g(x++, !y); }",
			expected: `(FunctionDefinition ["int"] (FunctionDeclarator (Identifier "f") []) [] (Block [(Return ` +
				`(BinaryOp "+" (UnaryOp "-" (UnaryOp "*" (Var "p"))) (FunctionCall (Var "g") [(Postupdate "++" (Var "x")) (UnaryOp "!" (Var "y"))])))]))`,
		},
		{
			name:  "Comma And Conditional",
			input: "int f() { return a, b ? c : d; }",
			expected: `(FunctionDefinition ["int"] (FunctionDeclarator (Identifier "f") []) [] (Block [(Return ` +
				`(Comma (Var "a") (Conditional (Var "b") (Var "c") (Var "d"))))]))`,
		},
		{
			name:  "Control Flow",
			input: "void f() { if (a) ; else { break; } while (b) continue; do x; while (c); }",
			expected: `(FunctionDefinition ["void"] (FunctionDeclarator (Identifier "f") []) [] (Block [` +
				`(If (Var "a") (NullStatement) (Block [(Break)])) ` +
				`(While (Var "b") (Continue)) ` +
				`(DoWhile (ExpressionStatement (Var "x")) (Var "c"))]))`,
		},
		{
			name:  "For Clauses",
			input: "void f() { for (int i = 0; i < 3; i++) ; for (;;) ; for (i = 0;;) ; }",
			expected: `(FunctionDefinition ["void"] (FunctionDeclarator (Identifier "f") []) [] (Block [` +
				`(For (Declaration ["int"] [(InitDeclarator (Identifier "i") (Const "0"))]) (BinaryOp "<" (Var "i") (Const "3")) (Postupdate "++" (Var "i")) (NullStatement)) ` +
				`(For nil nil nil (NullStatement)) ` +
				`(For (Assign (Var "i") "=" (Const "0")) nil nil (NullStatement))]))`,
		},
		{
			name:     "Pointer Returning Function",
			input:    "int *id(int *p) { return p; }",
			expected: `(FunctionDefinition ["int"] (PointerDeclarator (FunctionDeclarator (Identifier "id") [(ParameterDeclaration ["int"] (PointerDeclarator (Identifier "p")))])) [] (Block [(Return (Var "p"))]))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := ParseSource(tt.input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(unit) != 1 {
				t.Fatalf("expected 1 top-level node, got %d", len(unit))
			}
			if got := unit[0].String(); got != tt.expected {
				t.Errorf("tree mismatch\n got: %s\nwant: %s", got, tt.expected)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"Statement At Top Level", "x = 1;", "outside of function body"},
		{"Missing Semicolon", "int x = 1", "expected SEMICOLON"},
		{"Bad Parameter", "int f(x) { }", "expected parameter type"},
		{"Unclosed Block", "int f() { return 1;", "expected RBRACE"},
		{"Missing Expression", "int f() { return +; }", "expected expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource(tt.input)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantMsg)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseErrorShowsSource(t *testing.T) {
	_, err := ParseSource("int f() {\n  return 1 +;\n}")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 2") || !strings.Contains(err.Error(), "|> return 1 +;") {
		t.Errorf("error lacks line or snippet: %v", err)
	}
}

func TestNodeAccessors(t *testing.T) {
	n := newNode(TagAssign, 3, newNode(TagVar, 3, "x"), "+=", newNode(TagConst, 3, "1"))
	if n.Child(0).Str(0) != "x" || n.Str(1) != "+=" || n.Child(2).Str(0) != "1" {
		t.Errorf("accessors returned wrong params: %s", n)
	}
	if n.Child(1) != nil || n.Child(9) != nil || n.List(0) != nil {
		t.Errorf("mismatched accessors should return zero values")
	}
}
