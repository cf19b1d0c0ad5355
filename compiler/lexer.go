package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for class source
// ---------------------------------------------------------------------------

// Lexer tokenizes class source text. It offers one token of lookahead
// through Peek.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)

	peeked  *Token
	current Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	return l.peekCharAt(0)
}

// peekCharAt returns the character n positions after the next one.
func (l *Lexer) peekCharAt(n int) rune {
	p := l.readPos
	for ; n > 0 && p < len(l.input); n-- {
		_, size := utf8.DecodeRuneInString(l.input[p:])
		p += size
	}
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// Line returns the current line number.
func (l *Lexer) Line() int { return l.line }

// Column returns the current column.
func (l *Lexer) Column() int { return l.col }

// LineAt returns the raw text of the source line containing offset, for
// diagnostics.
func (l *Lexer) LineAt(offset int) string {
	if offset > len(l.input) {
		offset = len(l.input)
	}
	start := strings.LastIndexByte(l.input[:offset], '\n') + 1
	rest := l.input[start:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimRight(rest, "\r")
}

// Next consumes and returns the next token.
func (l *Lexer) Next() Token {
	if l.peeked != nil {
		l.current = *l.peeked
		l.peeked = nil
		return l.current
	}
	l.current = l.scan()
	return l.current
}

// Peek returns the token after the current one without consuming it.
func (l *Lexer) Peek() Token {
	if l.peeked == nil {
		t := l.scan()
		l.peeked = &t
	}
	return *l.peeked
}

// HasPeeked reports whether a lookahead token is buffered.
func (l *Lexer) HasPeeked() bool { return l.peeked != nil }

// scan reads one token from the input.
func (l *Lexer) scan() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}

	case l.ch == '\'':
		return l.readString(pos)

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenNewBlock, Text: "[", Pos: pos}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenEndBlock, Text: "]", Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenNewTerm, Text: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenEndTerm, Text: ")", Pos: pos}

	case l.ch == '#':
		l.readChar()
		return Token{Type: TokenPound, Text: "#", Pos: pos}

	case l.ch == '^':
		l.readChar()
		return Token{Type: TokenExit, Text: "^", Pos: pos}

	case l.ch == '.':
		l.readChar()
		return Token{Type: TokenPeriod, Text: ".", Pos: pos}

	case l.ch == ':':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenAssign, Text: ":=", Pos: pos}
		}
		return Token{Type: TokenColon, Text: ":", Pos: pos}

	case l.ch == '-' && l.peekChar() == '-' && l.peekCharAt(1) == '-' && l.peekCharAt(2) == '-':
		start := l.pos
		for l.ch == '-' {
			l.readChar()
		}
		return Token{Type: TokenSeparator, Text: l.input[start:l.pos], Pos: pos}

	case isOperatorChar(l.ch):
		return l.readOperator(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch):
		return l.readIdentifierOrKeyword(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Text: string(ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace and "..." comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch != '"' {
			return
		}
		l.readChar()
		for l.ch != '"' && !l.atEOF() {
			l.readChar()
		}
		if l.ch == '"' {
			l.readChar()
		}
	}
}

func (l *Lexer) atEOF() bool {
	return l.ch == 0 && l.pos >= len(l.input)
}

// readOperator reads a single operator or a run of operator characters.
func (l *Lexer) readOperator(pos Position) Token {
	if !isOperatorChar(l.peekChar()) {
		ch := l.ch
		l.readChar()
		return Token{Type: singleOperators[ch], Text: string(ch), Pos: pos}
	}
	start := l.pos
	for isOperatorChar(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenOperatorSequence, Text: l.input[start:l.pos], Pos: pos}
}

// readString reads a string literal. Backslash escapes are resolved.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening '

	var sb strings.Builder
	for l.ch != '\'' {
		if l.atEOF() {
			return Token{Type: TokenError, Text: "unterminated string", Pos: pos}
		}
		if l.ch == '\\' {
			l.readChar()
			sb.WriteRune(unescape(l.ch))
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing '

	return Token{Type: TokenString, Text: sb.String(), Pos: pos}
}

func unescape(ch rune) rune {
	switch ch {
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 'f':
		return '\f'
	case '0':
		return 0
	}
	return ch // \' and \\ and anything else stand for themselves
}

// readNumber reads an integer or double literal. A sign is never part of
// the token; the parser handles negative literals.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	isDouble := false
	if l.ch == '.' && isDigit(l.peekChar()) {
		isDouble = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') &&
		(isDigit(l.peekChar()) || (l.peekChar() == '-' || l.peekChar() == '+') && isDigit(l.peekCharAt(1))) {
		isDouble = true
		l.readChar()
		if l.ch == '-' || l.ch == '+' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isDouble {
		return Token{Type: TokenDouble, Text: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenInteger, Text: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier, a keyword (foo:), or a
// keyword sequence (at:put:) when every part ends in a colon.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	l.readIdentifierPart()

	if l.ch != ':' || l.peekChar() == '=' {
		text := l.input[start:l.pos]
		if text == "primitive" {
			return Token{Type: TokenPrimitive, Text: text, Pos: pos}
		}
		return Token{Type: TokenIdentifier, Text: text, Pos: pos}
	}
	l.readChar() // consume :

	if end := l.keywordSequenceEnd(); end > l.pos {
		for l.pos < end {
			l.readChar()
		}
		return Token{Type: TokenKeywordSequence, Text: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenKeyword, Text: l.input[start:l.pos], Pos: pos}
}

func (l *Lexer) readIdentifierPart() {
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
}

// keywordSequenceEnd scans ahead from the current character for further
// "name:" parts written without spaces. It answers the offset after the
// last complete part, or the current offset if there is none.
func (l *Lexer) keywordSequenceEnd() int {
	end := l.pos
	p := l.pos
	for p < len(l.input) {
		r, _ := utf8.DecodeRuneInString(l.input[p:])
		if !isLetter(r) {
			break
		}
		q := p
		for q < len(l.input) {
			r, size := utf8.DecodeRuneInString(l.input[q:])
			if !isLetter(r) && !isDigit(r) && r != '_' {
				break
			}
			q += size
		}
		if q >= len(l.input) || l.input[q] != ':' || (q+1 < len(l.input) && l.input[q+1] == '=') {
			break
		}
		p = q + 1
		end = p
	}
	return end
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
