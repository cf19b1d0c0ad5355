package compiler

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/chazu/som/vm"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser with on-the-fly code generation
// ---------------------------------------------------------------------------

// Parser parses one class definition and generates bytecode for its
// methods as it goes. There is no syntax tree: each production emits into
// the MethodGen of the method or block being parsed.
//
// Errors abort the whole unit. They travel as a bailout panic and are
// turned back into a *ParseError by Classdef.
type Parser struct {
	lexer    *Lexer
	universe *vm.Universe
	file     string
	curToken Token
	class    *ClassGen
}

// NewParser creates a parser for source. file names the source in
// diagnostics.
func NewParser(u *vm.Universe, source, file string) *Parser {
	p := &Parser{
		lexer:    NewLexer(source),
		universe: u,
		file:     file,
	}
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.lexer.Next()
}

// peekToken returns the token after the current one.
func (p *Parser) peekToken() Token {
	return p.lexer.Peek()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) curTokenIsBinary() bool {
	return isBinaryToken(p.curToken.Type)
}

// symIsMethod reports whether the current token can start a message or a
// method pattern.
func (p *Parser) symIsMethod() bool {
	return p.curTokenIs(TokenIdentifier) || p.curTokenIs(TokenKeyword) || p.curTokenIsBinary()
}

// accept advances if the current token matches.
func (p *Parser) accept(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect advances if the current token matches, otherwise aborts the
// unit.
func (p *Parser) expect(t TokenType) {
	if p.accept(t) {
		return
	}
	p.fail(t, "unexpected symbol, expected %s, but found %s", t, foundString(p.curToken))
}

// fail aborts parsing with a ParseError located at the current token.
func (p *Parser) fail(expected TokenType, format string, args ...any) {
	p.failWith(expected, nil, format, args...)
}

func (p *Parser) failWith(expected TokenType, cause error, format string, args ...any) {
	panic(bailout{&ParseError{
		File:      p.file,
		Line:      p.curToken.Pos.Line,
		Column:    p.curToken.Pos.Column,
		Msg:       fmt.Sprintf(format, args...),
		Text:      p.curToken.Text,
		RawBuffer: p.lexer.LineAt(p.curToken.Pos.Offset),
		Expected:  expected,
		Found:     p.curToken.Type,
		Cause:     cause,
	}})
}

// ---------------------------------------------------------------------------
// Literal pool access
// ---------------------------------------------------------------------------

func (p *Parser) addLiteral(g *MethodGen, v vm.Value) {
	if _, err := g.addLiteral(v); err != nil {
		p.fail(TokenNone, "%s", err)
	}
}

func (p *Parser) addLiteralIfAbsent(g *MethodGen, v vm.Value) {
	if _, err := g.addLiteralIfAbsent(v); err != nil {
		p.fail(TokenNone, "%s", err)
	}
}

// ---------------------------------------------------------------------------
// Class definitions
// ---------------------------------------------------------------------------

// Classdef parses a complete class definition:
//
//	Name = [Superclass] ( fields methods [---- fields methods] )
func (p *Parser) Classdef() (cg *ClassGen, err error) {
	defer recoverParseError(&err)

	p.class = newClassGen()
	p.class.name = vm.Intern(p.curToken.Text)
	p.expect(TokenIdentifier)
	p.expect(TokenEqual)

	p.superclass()

	p.expect(TokenNewTerm)
	p.classBody()

	if p.accept(TokenSeparator) {
		p.class.startClassSide()
		p.classBody()
	}
	p.expect(TokenEndTerm)

	return p.class, nil
}

// superclass reads the optional superclass name. An omitted name means
// Object; nil makes a root class.
func (p *Parser) superclass() {
	superName := vm.Intern("Object")
	if p.curTokenIs(TokenIdentifier) {
		superName = vm.Intern(p.curToken.Text)
		p.nextToken()
	}
	p.class.superName = superName

	if superName.Name() == "nil" {
		return
	}
	super, err := p.universe.LoadClass(superName)
	if err != nil || super == nil {
		p.failWith(TokenNone, err, "Was not able to load super class: %s", superName.Name())
	}
	p.class.inheritFrom(super)
}

func (p *Parser) classBody() {
	p.fields()
	for p.symIsMethod() {
		g := newMethodGen(p.class, nil)
		g.addArgument("self")

		p.method(g)
		p.class.addMethod(g.assemble())
	}
}

func (p *Parser) fields() {
	if !p.accept(TokenOr) {
		return
	}
	for p.curTokenIs(TokenIdentifier) {
		p.class.addField(vm.Intern(p.variable()))
	}
	p.expect(TokenOr)
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func (p *Parser) method(g *MethodGen) {
	p.pattern(g)
	p.expect(TokenEqual)
	if p.curTokenIs(TokenPrimitive) {
		g.primitive = true
		p.expect(TokenPrimitive)
		return
	}
	p.methodBlock(g)
}

func (p *Parser) pattern(g *MethodGen) {
	switch p.curToken.Type {
	case TokenIdentifier:
		g.signature = p.unarySelector()
	case TokenKeyword:
		var kw strings.Builder
		for p.curTokenIs(TokenKeyword) {
			kw.WriteString(p.keyword())
			g.addArgumentIfAbsent(p.argument())
		}
		g.signature = vm.Intern(kw.String())
	default:
		g.signature = p.binarySelector()
		g.addArgumentIfAbsent(p.argument())
	}
}

// methodBlock parses a method body. A body whose last statement is not
// terminated by a period answers self.
func (p *Parser) methodBlock(g *MethodGen) {
	p.expect(TokenNewTerm)
	p.blockContents(g)
	if !g.finished {
		g.emitPop()
		g.emitPushArgument(0, 0)
		g.emitReturnLocal()
		g.finished = true
	}
	p.expect(TokenEndTerm)
}

func (p *Parser) unarySelector() *vm.Symbol {
	return vm.Intern(p.identifier())
}

func (p *Parser) binarySelector() *vm.Symbol {
	s := p.curToken.Text
	if !p.curTokenIsBinary() {
		p.expect(TokenNone)
	}
	p.nextToken()
	return vm.Intern(s)
}

// identifier accepts an identifier. The word primitive is an ordinary
// identifier outside a method definition.
func (p *Parser) identifier() string {
	s := p.curToken.Text
	if !p.accept(TokenPrimitive) {
		p.expect(TokenIdentifier)
	}
	return s
}

func (p *Parser) keyword() string {
	s := p.curToken.Text
	p.expect(TokenKeyword)
	return s
}

func (p *Parser) argument() string { return p.variable() }

func (p *Parser) variable() string { return p.identifier() }

// ---------------------------------------------------------------------------
// Bodies and statements
// ---------------------------------------------------------------------------

func (p *Parser) blockContents(g *MethodGen) {
	if p.accept(TokenOr) {
		for p.curTokenIs(TokenIdentifier) {
			g.addLocalIfAbsent(p.variable())
		}
		p.expect(TokenOr)
	}
	p.blockBody(g, false)
}

// blockBody parses a statement sequence. seenPeriod reports whether the
// previous statement ended with a period, in which case its value has
// been popped.
func (p *Parser) blockBody(g *MethodGen, seenPeriod bool) {
	switch {
	case p.accept(TokenExit):
		p.result(g)

	case p.curTokenIs(TokenEndBlock):
		if seenPeriod {
			// blocks answer their last expression, period or not
			g.removeLastBytecode()
		}
		if g.blockMethod && !g.hasBytecodes() {
			p.pushNil(g)
		}
		g.emitReturnLocal()
		g.finished = true

	case p.curTokenIs(TokenEndTerm):
		// end of a method body: answer self
		g.emitPushArgument(0, 0)
		g.emitReturnLocal()
		g.finished = true

	default:
		p.expression(g)
		if p.accept(TokenPeriod) {
			g.emitPop()
			p.blockBody(g, true)
		}
	}
}

// result compiles ^expr. In a block it returns from the enclosing method.
func (p *Parser) result(g *MethodGen) {
	p.expression(g)
	if g.blockMethod {
		g.emitReturnNonLocal()
	} else {
		g.emitReturnLocal()
	}
	g.finished = true
	p.accept(TokenPeriod)
}

func (p *Parser) pushNil(g *MethodGen) {
	nilSym := vm.Intern("nil")
	p.addLiteralIfAbsent(g, nilSym)
	g.emitPushGlobal(nilSym)
}

func (p *Parser) expression(g *MethodGen) {
	if p.peekToken().Type == TokenAssign {
		p.assignation(g)
	} else {
		p.evaluation(g)
	}
}

// assignation compiles a := b := expr: the value is duplicated once per
// target, then stored into each.
func (p *Parser) assignation(g *MethodGen) {
	targets := p.assignments(nil)
	p.evaluation(g)
	for range targets {
		g.emitDup()
	}
	for _, name := range targets {
		p.genPopVariable(g, name)
	}
}

func (p *Parser) assignments(targets []string) []string {
	if !p.curTokenIs(TokenIdentifier) {
		p.expect(TokenIdentifier)
	}
	targets = append(targets, p.variable())
	p.expect(TokenAssign)
	if p.curTokenIs(TokenIdentifier) && p.peekToken().Type == TokenAssign {
		return p.assignments(targets)
	}
	return targets
}

func (p *Parser) evaluation(g *MethodGen) {
	superSend := p.primary(g)
	if p.symIsMethod() {
		p.messages(g, superSend)
	}
}

// primary compiles a variable, a parenthesized expression, a block or a
// literal. It reports whether the primary was super.
func (p *Parser) primary(g *MethodGen) bool {
	switch p.curToken.Type {
	case TokenIdentifier:
		name := p.variable()
		if name == "super" {
			p.genPushVariable(g, "self")
			return true
		}
		p.genPushVariable(g, name)

	case TokenNewTerm:
		p.nestedTerm(g)

	case TokenNewBlock:
		bg := newMethodGen(g.holder, g)
		p.nestedBlock(bg)
		block := bg.assembleMethod()
		p.addLiteral(g, block)
		g.emitPushBlock(block)

	default:
		p.literal(g)
	}
	return false
}

func (p *Parser) nestedTerm(g *MethodGen) {
	p.expect(TokenNewTerm)
	p.expression(g)
	p.expect(TokenEndTerm)
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// messages compiles unary+ binary* [keyword] | binary+ [keyword] | keyword.
// Only the first message of the chain can be a super send.
func (p *Parser) messages(g *MethodGen, superSend bool) {
	switch {
	case p.curTokenIs(TokenIdentifier):
		for p.curTokenIs(TokenIdentifier) {
			p.unaryMessage(g, superSend)
			superSend = false
		}
		for p.curTokenIsBinary() {
			p.binaryMessage(g, false)
		}
		if p.curTokenIs(TokenKeyword) {
			p.keywordMessage(g, false)
		}

	case p.curTokenIsBinary():
		for p.curTokenIsBinary() {
			p.binaryMessage(g, superSend)
			superSend = false
		}
		if p.curTokenIs(TokenKeyword) {
			p.keywordMessage(g, false)
		}

	default:
		p.keywordMessage(g, superSend)
	}
}

func (p *Parser) emitSend(g *MethodGen, selector *vm.Symbol, superSend bool) {
	if superSend {
		g.emitSuperSend(selector)
	} else {
		g.emitSend(selector)
	}
}

func (p *Parser) unaryMessage(g *MethodGen, superSend bool) {
	sel := p.unarySelector()
	p.addLiteralIfAbsent(g, sel)
	p.emitSend(g, sel, superSend)
}

func (p *Parser) binaryMessage(g *MethodGen, superSend bool) {
	sel := p.binarySelector()
	p.addLiteralIfAbsent(g, sel)
	p.binaryOperand(g)
	p.emitSend(g, sel, superSend)
}

func (p *Parser) binaryOperand(g *MethodGen) bool {
	superSend := p.primary(g)
	for p.curTokenIs(TokenIdentifier) {
		p.unaryMessage(g, superSend)
		superSend = false
	}
	return superSend
}

func (p *Parser) keywordMessage(g *MethodGen, superSend bool) {
	var kw strings.Builder
	for {
		kw.WriteString(p.keyword())
		p.formula(g)
		if !p.curTokenIs(TokenKeyword) {
			break
		}
	}
	sel := vm.Intern(kw.String())
	p.addLiteralIfAbsent(g, sel)
	p.emitSend(g, sel, superSend)
}

func (p *Parser) formula(g *MethodGen) {
	superSend := p.binaryOperand(g)
	if p.curTokenIsBinary() {
		p.binaryMessage(g, superSend)
	}
	for p.curTokenIsBinary() {
		p.binaryMessage(g, false)
	}
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// literalArray is a parsed #( ... ) literal. Elements are vm.Values or
// nested literalArrays.
type literalArray []any

func (p *Parser) literal(g *MethodGen) {
	p.emitLiteral(g, p.literalValue())
}

// literalValue parses one literal without emitting any code.
func (p *Parser) literalValue() any {
	switch p.curToken.Type {
	case TokenPound:
		if p.peekToken().Type == TokenNewTerm {
			return p.literalArray()
		}
		return p.literalSymbol()
	case TokenString:
		return vm.String(p.string())
	default:
		return p.literalNumber()
	}
}

func (p *Parser) emitLiteral(g *MethodGen, lit any) {
	switch v := lit.(type) {
	case literalArray:
		p.emitArray(g, v)
	case vm.Value:
		p.addLiteralIfAbsent(g, v)
		g.emitPushConstant(v)
	}
}

// emitArray builds an array literal at run time:
//
//	Array new: n. then for each element: at: i put: element
//
// at:put: answers the array, so it stays on the stack throughout.
func (p *Parser) emitArray(g *MethodGen, elems literalArray) {
	arrayName := vm.Intern("Array")
	newSel := vm.Intern("new:")
	atPutSel := vm.Intern("at:put:")
	size := vm.Integer(len(elems))

	p.addLiteralIfAbsent(g, arrayName)
	g.emitPushGlobal(arrayName)
	p.addLiteralIfAbsent(g, size)
	g.emitPushConstant(size)
	p.addLiteralIfAbsent(g, newSel)
	g.emitSend(newSel)

	for i, elem := range elems {
		index := vm.Integer(i + 1)
		p.addLiteralIfAbsent(g, index)
		g.emitPushConstant(index)
		p.emitLiteral(g, elem)
		p.addLiteralIfAbsent(g, atPutSel)
		g.emitSend(atPutSel)
	}
}

func (p *Parser) literalArray() literalArray {
	p.expect(TokenPound)
	p.expect(TokenNewTerm)
	elems := literalArray{}
	for !p.curTokenIs(TokenEndTerm) {
		if p.curTokenIs(TokenEOF) {
			p.expect(TokenEndTerm)
		}
		elems = append(elems, p.literalValue())
	}
	p.expect(TokenEndTerm)
	return elems
}

func (p *Parser) literalSymbol() *vm.Symbol {
	p.expect(TokenPound)
	if p.curTokenIs(TokenString) {
		return vm.Intern(p.string())
	}
	return p.selector()
}

func (p *Parser) selector() *vm.Symbol {
	switch {
	case p.curTokenIsBinary():
		return p.binarySelector()
	case p.curTokenIs(TokenKeyword), p.curTokenIs(TokenKeywordSequence):
		s := p.curToken.Text
		p.nextToken()
		return vm.Intern(s)
	default:
		return p.unarySelector()
	}
}

func (p *Parser) string() string {
	s := p.curToken.Text
	p.expect(TokenString)
	return s
}

// literalNumber parses an optionally negated number. Integers that do not
// fit in 64 bits become big integers.
func (p *Parser) literalNumber() vm.Value {
	negative := p.accept(TokenMinus)
	text := p.curToken.Text
	switch p.curToken.Type {
	case TokenInteger:
		var v vm.Value
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			if negative {
				n = -n
			}
			v = vm.Integer(n)
		} else {
			b, ok := new(big.Int).SetString(text, 10)
			if !ok {
				p.fail(TokenInteger, "parsing number literal failed: '%s'", text)
			}
			if negative {
				b.Neg(b)
			}
			v = vm.NewBigInteger(b)
		}
		p.nextToken()
		return v

	case TokenDouble:
		d, err := strconv.ParseFloat(text, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			p.fail(TokenDouble, "Could not parse double. Expected a number but got '%s'", text)
		}
		p.nextToken()
		if negative {
			d = -d
		}
		return vm.Double(d)
	}
	p.fail(TokenInteger, "unexpected symbol, expected %s, but found %s", TokenInteger, foundString(p.curToken))
	return nil
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// nestedBlock parses [ :a :b | locals body ] into g, a fresh context
// chained to the enclosing one. Argument 0 is the block itself.
func (p *Parser) nestedBlock(g *MethodGen) {
	g.addArgumentIfAbsent("$block self")

	p.expect(TokenNewBlock)
	if p.curTokenIs(TokenColon) {
		for p.curTokenIs(TokenColon) {
			p.expect(TokenColon)
			g.addArgumentIfAbsent(p.argument())
		}
		p.expect(TokenOr)
	}

	g.signature = vm.Intern("$block method" + strings.Repeat(":", len(g.arguments)-1))

	p.blockContents(g)

	// Without an explicit return the last expression was not followed by
	// a period, so its value is on the stack.
	if !g.finished {
		if !g.hasBytecodes() {
			p.pushNil(g)
		}
		g.emitReturnLocal()
		g.finished = true
	}

	p.expect(TokenEndBlock)
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// genPushVariable resolves name as a local or argument of this or an
// enclosing context, then as a field, and finally as a global looked up
// at run time.
func (p *Parser) genPushVariable(g *MethodGen, name string) {
	if index, level, isArg, ok := g.findVariable(name); ok {
		if isArg {
			g.emitPushArgument(index, level)
		} else {
			g.emitPushLocal(index, level)
		}
		return
	}
	sym := vm.Intern(name)
	if g.holder.hasField(sym) {
		g.emitPushField(g.holder.fieldIndex(sym))
		return
	}
	p.addLiteralIfAbsent(g, sym)
	g.emitPushGlobal(sym)
}

func (p *Parser) genPopVariable(g *MethodGen, name string) {
	if index, level, isArg, ok := g.findVariable(name); ok {
		if isArg {
			g.emitPopArgument(index, level)
		} else {
			g.emitPopLocal(index, level)
		}
		return
	}
	sym := vm.Intern(name)
	if !g.holder.hasField(sym) {
		p.fail(TokenNone, "Trying to write to field with the name '%s', but field does not seem exist in class.", name)
	}
	g.emitPopField(g.holder.fieldIndex(sym))
}
