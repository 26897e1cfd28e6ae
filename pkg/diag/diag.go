// Package diag defines the errors raised by the abstraction and code
// generation phases. Every failure is fatal to the compilation unit; the first
// one is reported and nothing is emitted.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a compile error.
type Kind int

const (
	MalformedConstant Kind = iota
	UndeclaredVariable
	DuplicateDeclaration
	UnrecognisedConstruct
	TypeMismatch
	UnsupportedType
	UnsupportedOperator
	UnsupportedCast
	UnsupportedOperandType
	UnsupportedCallTarget
	BreakOutsideLoop
	ContinueOutsideLoop
	UnresolvedVariable
	NonConstantInitializer
)

var kindNames = [...]string{
	MalformedConstant:      "MalformedConstant",
	UndeclaredVariable:     "UndeclaredVariable",
	DuplicateDeclaration:   "DuplicateDeclaration",
	UnrecognisedConstruct:  "UnrecognisedConstruct",
	TypeMismatch:           "TypeMismatch",
	UnsupportedType:        "UnsupportedType",
	UnsupportedOperator:    "UnsupportedOperator",
	UnsupportedCast:        "UnsupportedCast",
	UnsupportedOperandType: "UnsupportedOperandType",
	UnsupportedCallTarget:  "UnsupportedCallTarget",
	BreakOutsideLoop:       "BreakOutsideLoop",
	ContinueOutsideLoop:    "ContinueOutsideLoop",
	UnresolvedVariable:     "UnresolvedVariable",
	NonConstantInitializer: "NonConstantInitializer",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Internal reports whether the kind signals a compiler bug rather than bad
// input.
func (k Kind) Internal() bool {
	return k == UnresolvedVariable || k == UnsupportedOperandType
}

// Error is a compile error. Construct names the kind of source construct
// involved (e.g. "binary operator"), Detail the offending value.
type Error struct {
	Kind      Kind
	Construct string
	Detail    string
	Line      int // 0 when unknown
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Construct)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

// New builds an Error with a formatted detail.
func New(kind Kind, construct, format string, args ...any) *Error {
	return &Error{Kind: kind, Construct: construct, Detail: fmt.Sprintf(format, args...)}
}

// AtLine attaches a source line to err if it is an *Error without one.
func AtLine(err error, line int) error {
	var de *Error
	if line > 0 && errors.As(err, &de) && de.Line == 0 {
		de.Line = line
	}
	return err
}

// Is reports whether err (or anything it wraps) is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// KindOf returns the kind of err and whether err is a compile error at all.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
