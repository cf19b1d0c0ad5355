package compiler

import (
	"fmt"
	"slices"

	"github.com/chazu/som/vm"
)

// maxLiterals bounds a literal pool: operands address it with one byte.
const maxLiterals = 128

// ---------------------------------------------------------------------------
// MethodGen: Code generation context for one method or block
// ---------------------------------------------------------------------------

// MethodGen accumulates the arguments, locals, literals and bytecode of a
// method or block while it is parsed. Block contexts chain to the context
// they are nested in, which is how captured variables are resolved.
type MethodGen struct {
	holder      *ClassGen
	outer       *MethodGen
	blockMethod bool

	signature *vm.Symbol
	arguments []string
	locals    []string
	literals  []vm.Value
	primitive bool
	finished  bool

	code *vm.BytecodeBuilder
}

// newMethodGen creates a context for a method of holder, or for a block
// nested in outer when outer is non-nil.
func newMethodGen(holder *ClassGen, outer *MethodGen) *MethodGen {
	return &MethodGen{
		holder:      holder,
		outer:       outer,
		blockMethod: outer != nil,
		code:        vm.NewBytecodeBuilder(),
	}
}

func (g *MethodGen) addArgument(name string) {
	g.arguments = append(g.arguments, name)
}

func (g *MethodGen) addArgumentIfAbsent(name string) bool {
	if slices.Contains(g.arguments, name) {
		return false
	}
	g.arguments = append(g.arguments, name)
	return true
}

func (g *MethodGen) addLocalIfAbsent(name string) bool {
	if slices.Contains(g.locals, name) {
		return false
	}
	g.locals = append(g.locals, name)
	return true
}

// findVariable resolves name to a local or argument slot. Each enclosing
// context searched adds one to level.
func (g *MethodGen) findVariable(name string) (index, level int, isArgument, found bool) {
	for ctx := g; ctx != nil; ctx = ctx.outer {
		if i := slices.Index(ctx.locals, name); i >= 0 {
			return i, level, false, true
		}
		if i := slices.Index(ctx.arguments, name); i >= 0 {
			return i, level, true, true
		}
		level++
	}
	return 0, 0, false, false
}

// ---------------------------------------------------------------------------
// Literal pool
// ---------------------------------------------------------------------------

// addLiteral appends v to the pool unconditionally.
func (g *MethodGen) addLiteral(v vm.Value) (byte, error) {
	i := len(g.literals)
	if i >= maxLiterals {
		return 0, fmt.Errorf("The method %s has more than the supported %d literal values. "+
			"Please split the method. The literal to be added is: %s",
			g.qualifiedSignature(), maxLiterals-1, vm.Describe(v))
	}
	g.literals = append(g.literals, v)
	return byte(i), nil
}

// addLiteralIfAbsent interns v in the pool and answers its index.
func (g *MethodGen) addLiteralIfAbsent(v vm.Value) (byte, error) {
	if i := g.findLiteral(v); i >= 0 {
		return byte(i), nil
	}
	return g.addLiteral(v)
}

func (g *MethodGen) findLiteral(v vm.Value) int {
	return slices.IndexFunc(g.literals, func(lit vm.Value) bool {
		return literalEqual(lit, v)
	})
}

// literalEqual compares numbers and strings by value and everything else
// by identity.
func literalEqual(a, b vm.Value) bool {
	if x, ok := a.(*vm.BigInteger); ok {
		y, ok := b.(*vm.BigInteger)
		return ok && x.Big().Cmp(y.Big()) == 0
	}
	return a == b
}

// literalIndex answers the pool index of a literal that has already been
// added.
func (g *MethodGen) literalIndex(v vm.Value) byte {
	i := g.findLiteral(v)
	if i < 0 {
		panic(fmt.Sprintf("compiler: literal %s missing from pool of %s", vm.Describe(v), g.qualifiedSignature()))
	}
	return byte(i)
}

func (g *MethodGen) qualifiedSignature() string {
	className := "?"
	if g.holder != nil && g.holder.name != nil {
		className = g.holder.name.Name()
	}
	sig := "?"
	if g.signature != nil {
		sig = g.signature.Name()
	}
	return className + ">>" + sig
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (g *MethodGen) hasBytecodes() bool { return g.code.Len() > 0 }

// removeLastBytecode drops the speculative POP emitted after a statement.
func (g *MethodGen) removeLastBytecode() { g.code.RemoveLast() }

func (g *MethodGen) emitDup() { g.code.Emit(vm.OpDup) }
func (g *MethodGen) emitPop() { g.code.Emit(vm.OpPop) }
func (g *MethodGen) emitReturnLocal() { g.code.Emit(vm.OpReturnLocal) }
func (g *MethodGen) emitReturnNonLocal() { g.code.Emit(vm.OpReturnNonLocal) }

func (g *MethodGen) emitPushLocal(index, level int) {
	g.code.Emit(vm.OpPushLocal, byte(index), byte(level))
}

func (g *MethodGen) emitPushArgument(index, level int) {
	g.code.Emit(vm.OpPushArgument, byte(index), byte(level))
}

func (g *MethodGen) emitPushField(index int) {
	g.code.Emit(vm.OpPushField, byte(index))
}

func (g *MethodGen) emitPushBlock(block *vm.Method) {
	g.code.Emit(vm.OpPushBlock, g.literalIndex(block))
}

func (g *MethodGen) emitPushConstant(v vm.Value) {
	g.code.Emit(vm.OpPushConstant, g.literalIndex(v))
}

func (g *MethodGen) emitPushGlobal(name *vm.Symbol) {
	g.code.Emit(vm.OpPushGlobal, g.literalIndex(name))
}

func (g *MethodGen) emitPopLocal(index, level int) {
	g.code.Emit(vm.OpPopLocal, byte(index), byte(level))
}

func (g *MethodGen) emitPopArgument(index, level int) {
	g.code.Emit(vm.OpPopArgument, byte(index), byte(level))
}

func (g *MethodGen) emitPopField(index int) {
	g.code.Emit(vm.OpPopField, byte(index))
}

func (g *MethodGen) emitSend(selector *vm.Symbol) {
	g.code.Emit(vm.OpSend, g.literalIndex(selector))
}

func (g *MethodGen) emitSuperSend(selector *vm.Symbol) {
	g.code.Emit(vm.OpSuperSend, g.literalIndex(selector))
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

// computeStackDepth answers the deepest operand stack the bytecode can
// reach, in one forward pass.
func (g *MethodGen) computeStackDepth() int {
	return stackDepth(g.code.Bytes(), g.literals)
}

func stackDepth(bc []byte, literals []vm.Value) int {
	depth, maxDepth := 0, 0
	for i := 0; i < len(bc); {
		op := vm.Opcode(bc[i])
		if !op.Valid() {
			panic(fmt.Sprintf("compiler: illegal bytecode %d", bc[i]))
		}
		switch op {
		case vm.OpSend, vm.OpSuperSend:
			// The receiver and arguments are replaced by the result.
			sel := literals[bc[i+1]].(*vm.Symbol)
			depth += 1 - sel.NumSignatureArguments()
		default:
			depth += op.Info().StackEffect
		}
		maxDepth = max(maxDepth, depth)
		i += op.Length()
	}
	return maxDepth
}

// assemble produces the invokable: an empty primitive for methods marked
// primitive, a bytecode method otherwise. The holder is set when the
// class is assembled.
func (g *MethodGen) assemble() vm.Invokable {
	if g.primitive {
		return vm.NewEmptyPrimitive(g.signature)
	}
	return g.assembleMethod()
}

func (g *MethodGen) assembleMethod() *vm.Method {
	return vm.NewMethod(
		g.signature,
		slices.Clone(g.code.Bytes()),
		slices.Clone(g.literals),
		len(g.arguments),
		len(g.locals),
		g.computeStackDepth(),
	)
}
