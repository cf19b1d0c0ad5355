package vm

import "fmt"

// ---------------------------------------------------------------------------
// Invokable: Bytecode methods and primitives
// ---------------------------------------------------------------------------

// Invokable is anything a selector can resolve to. It has exactly two
// implementations, *Method and *Primitive; the interpreter tells them apart
// with a type switch when it dispatches.
type Invokable interface {
	Value
	Signature() *Symbol
	Holder() *Class
	SetHolder(c *Class)
	invokable()
}

// ---------------------------------------------------------------------------
// Method: Compiled bytecode
// ---------------------------------------------------------------------------

// Method is a compiled method or block body.
type Method struct {
	signature *Symbol
	holder    *Class

	bytecode  []byte
	literals  []Value
	numArgs   int // including self (or the block itself)
	numLocals int
	maxStack  int

	cache inlineCache
}

func (*Method) somValue()  {}
func (*Method) invokable() {}

// NewMethod creates a method. The bytecode and literals are owned by the
// method from here on.
func NewMethod(signature *Symbol, bytecode []byte, literals []Value, numArgs, numLocals, maxStack int) *Method {
	return &Method{
		signature: signature,
		bytecode:  bytecode,
		literals:  literals,
		numArgs:   numArgs,
		numLocals: numLocals,
		maxStack:  maxStack,
		cache:     newInlineCache(len(bytecode)),
	}
}

// Signature returns the selector.
func (m *Method) Signature() *Symbol { return m.signature }

// Holder returns the class the method is installed in.
func (m *Method) Holder() *Class { return m.holder }

// SetHolder sets the holder. Block methods nested in the literal pool
// inherit it.
func (m *Method) SetHolder(c *Class) {
	m.holder = c
	for _, lit := range m.literals {
		if block, ok := lit.(*Method); ok {
			block.SetHolder(c)
		}
	}
}

// Bytecode returns the instruction bytes. Callers must not modify them.
func (m *Method) Bytecode() []byte { return m.bytecode }

// Literals returns the literal pool. Callers must not modify it.
func (m *Method) Literals() []Value { return m.literals }

// Literal returns the literal at index; an index outside the pool is an
// internal error.
func (m *Method) Literal(index int) Value {
	if index < 0 || index >= len(m.literals) {
		panic(fmt.Sprintf("vm: literal index %d out of range in %s (pool has %d)", index, m, len(m.literals)))
	}
	return m.literals[index]
}

// NumArguments returns the argument count, including self.
func (m *Method) NumArguments() int { return m.numArgs }

// NumLocals returns the number of local variables.
func (m *Method) NumLocals() int { return m.numLocals }

// MaxStack returns the precomputed operand stack depth.
func (m *Method) MaxStack() int { return m.maxStack }

// CacheStats returns the inline cache hit and miss counts of this method.
func (m *Method) CacheStats() (hits, misses uint64) {
	return m.cache.hits, m.cache.misses
}

func (m *Method) String() string {
	return qualifiedName(m.holder, m.signature)
}

// ---------------------------------------------------------------------------
// Primitive: Native routines
// ---------------------------------------------------------------------------

// PrimitiveFunc is a native routine. It runs on the caller's frame: it pops
// its arguments and the receiver and pushes exactly one result. It may send
// further messages through interp.
type PrimitiveFunc func(interp *Interpreter, frame *Frame) error

// Primitive is an invokable backed by a Go function.
type Primitive struct {
	signature *Symbol
	holder    *Class
	fn        PrimitiveFunc
	empty     bool
}

func (*Primitive) somValue()  {}
func (*Primitive) invokable() {}

// NewPrimitive wraps fn as an invokable for signature.
func NewPrimitive(signature *Symbol, fn PrimitiveFunc) *Primitive {
	return &Primitive{signature: signature, fn: fn}
}

// NewEmptyPrimitive is the placeholder for a method declared as primitive
// in source before its native routine is installed. When invoked it logs a
// warning and answers the receiver.
func NewEmptyPrimitive(signature *Symbol) *Primitive {
	p := &Primitive{signature: signature, empty: true}
	p.fn = func(interp *Interpreter, frame *Frame) error {
		interp.universe.log.Warningf("undefined primitive %s called", qualifiedName(p.holder, p.signature))
		frame.PopN(signature.NumSignatureArguments() - 1)
		return nil
	}
	return p
}

// Signature returns the selector.
func (p *Primitive) Signature() *Symbol { return p.signature }

// Holder returns the class the primitive is installed in.
func (p *Primitive) Holder() *Class { return p.holder }

// SetHolder sets the holder.
func (p *Primitive) SetHolder(c *Class) { p.holder = c }

// IsEmpty reports whether no native routine has been installed.
func (p *Primitive) IsEmpty() bool { return p.empty }

// Call runs the native routine on frame.
func (p *Primitive) Call(interp *Interpreter, frame *Frame) error {
	return p.fn(interp, frame)
}

func (p *Primitive) String() string {
	return qualifiedName(p.holder, p.signature)
}

func qualifiedName(holder *Class, sig *Symbol) string {
	className := "?"
	if holder != nil && holder.name != nil {
		className = holder.name.name
	}
	sigName := "?"
	if sig != nil {
		sigName = sig.name
	}
	return className + ">>" + sigName
}
