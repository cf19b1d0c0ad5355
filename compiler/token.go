package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenNone TokenType = iota
	TokenEOF
	TokenError

	// Punctuation
	TokenNewTerm   // (
	TokenEndTerm   // )
	TokenNewBlock  // [
	TokenEndBlock  // ]
	TokenColon     // :
	TokenPeriod    // .
	TokenExit      // ^
	TokenAssign    // :=
	TokenPound     // #
	TokenSeparator // ----

	// Single-character operators
	TokenNot   // ~
	TokenAnd   // &
	TokenOr    // |
	TokenStar  // *
	TokenDiv   // /
	TokenMod   // \
	TokenPlus  // +
	TokenMinus // -
	TokenEqual // =
	TokenMore  // >
	TokenLess  // <
	TokenComma // ,
	TokenAt    // @
	TokenPer   // %

	// Tokens whose text matters in diagnostics. Keep them last: printable
	// relies on the ordering.
	TokenInteger          // 42
	TokenDouble           // 3.14
	TokenString           // 'hello'
	TokenIdentifier       // foo, Bar
	TokenKeyword          // foo:
	TokenKeywordSequence  // at:put:
	TokenOperatorSequence // <=, ~=, >>>
	TokenPrimitive        // primitive
)

var tokenNames = map[TokenType]string{
	TokenNone:             "NONE",
	TokenEOF:              "EOF",
	TokenError:            "ERROR",
	TokenNewTerm:          "NewTerm",
	TokenEndTerm:          "EndTerm",
	TokenNewBlock:         "NewBlock",
	TokenEndBlock:         "EndBlock",
	TokenColon:            "Colon",
	TokenPeriod:           "Period",
	TokenExit:             "Exit",
	TokenAssign:           "Assign",
	TokenPound:            "Pound",
	TokenSeparator:        "Separator",
	TokenNot:              "Not",
	TokenAnd:              "And",
	TokenOr:               "Or",
	TokenStar:             "Star",
	TokenDiv:              "Div",
	TokenMod:              "Mod",
	TokenPlus:             "Plus",
	TokenMinus:            "Minus",
	TokenEqual:            "Equal",
	TokenMore:             "More",
	TokenLess:             "Less",
	TokenComma:            "Comma",
	TokenAt:               "At",
	TokenPer:              "Per",
	TokenInteger:          "Integer",
	TokenDouble:           "Double",
	TokenString:           "STString",
	TokenIdentifier:       "Identifier",
	TokenKeyword:          "Keyword",
	TokenKeywordSequence:  "KeywordSequence",
	TokenOperatorSequence: "OperatorSequence",
	TokenPrimitive:        "Primitive",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// printable reports whether a token's text is shown next to its type in
// diagnostics.
func (t TokenType) printable() bool {
	return t >= TokenInteger
}

// singleOperators maps each operator character to its token type.
var singleOperators = map[rune]TokenType{
	'~':  TokenNot,
	'&':  TokenAnd,
	'|':  TokenOr,
	'*':  TokenStar,
	'/':  TokenDiv,
	'\\': TokenMod,
	'+':  TokenPlus,
	'-':  TokenMinus,
	'=':  TokenEqual,
	'>':  TokenMore,
	'<':  TokenLess,
	',':  TokenComma,
	'@':  TokenAt,
	'%':  TokenPer,
}

// isOperatorChar reports whether r may appear in a binary selector.
func isOperatorChar(r rune) bool {
	_, ok := singleOperators[r]
	return ok
}

// isBinaryToken reports whether t can name a binary message.
func isBinaryToken(t TokenType) bool {
	return (t >= TokenNot && t <= TokenPer) || t == TokenOperatorSequence
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type TokenType
	Text string   // the token text; string contents with escapes resolved
	Pos  Position // start position
}

func (t Token) String() string {
	if t.Type.printable() {
		return fmt.Sprintf("%s(%q)", t.Type, t.Text)
	}
	return t.Type.String()
}
