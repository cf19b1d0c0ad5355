package compiler

import (
	"errors"
	"fmt"
)

// ErrClassNameMismatch is returned when a class file defines a class whose
// name differs from the file name.
var ErrClassNameMismatch = errors.New("class name does not match file name")

// ---------------------------------------------------------------------------
// ParseError: Structured compile errors
// ---------------------------------------------------------------------------

// ParseError is a compile error in class source. Compilation of the whole
// unit stops at the first one.
type ParseError struct {
	File      string
	Line      int
	Column    int
	Msg       string
	Text      string // text of the token found
	RawBuffer string // the source line being parsed
	Expected  TokenType
	Found     TokenType
	Cause     error // set when a nested class load failed
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: error: %s: %s", e.File, e.Line, e.Column, e.Msg, e.RawBuffer)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// foundString renders the found token for messages, with its text when
// the token kind carries one.
func foundString(t Token) string {
	if t.Type.printable() {
		return fmt.Sprintf("%s (%s)", t.Type, t.Text)
	}
	return t.Type.String()
}

// bailout carries a *ParseError out of the recursive descent. Compile
// recovers it at the unit boundary.
type bailout struct {
	err *ParseError
}

// recoverParseError converts a bailout panic into an error. Other panics
// propagate.
func recoverParseError(errp *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*errp = b.err
	}
}
