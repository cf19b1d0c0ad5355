package vm

import (
	"errors"
	"fmt"
	"io"
)

// ErrNoFallback is returned when a language-level escape send
// (doesNotUnderstand:arguments:, unknownGlobal:, escapedBlock:) is itself
// not understood by the receiver.
var ErrNoFallback = errors.New("escape selector not understood")

// ---------------------------------------------------------------------------
// Interpreter: The dispatch loop
// ---------------------------------------------------------------------------

// Interpreter executes bytecode on a chain of frames. It is single
// threaded; each Universe owns one.
type Interpreter struct {
	universe *Universe
	frame    *Frame
	depth    int

	stats    Stats
	observer func(*Frame) // called for every frame as it is popped
}

func newInterpreter(u *Universe) *Interpreter {
	return &Interpreter{universe: u}
}

// Universe returns the universe the interpreter runs in.
func (i *Interpreter) Universe() *Universe { return i.universe }

// Frame returns the current frame.
func (i *Interpreter) Frame() *Frame { return i.frame }

// Stats returns a snapshot of the execution counters.
func (i *Interpreter) Stats() Stats { return i.stats }

// PushNewFrame activates method on top of the current frame.
func (i *Interpreter) PushNewFrame(method *Method, context *Frame) *Frame {
	i.frame = newFrame(i.frame, method, context, i.universe.Nil)
	i.depth++
	i.stats.FramesPushed++
	if uint64(i.depth) > i.stats.MaxCallDepth {
		i.stats.MaxCallDepth = uint64(i.depth)
	}
	return i.frame
}

func (i *Interpreter) popFrame() *Frame {
	f := i.frame
	i.frame = f.previous
	f.clearPrevious()
	i.depth--
	if i.observer != nil {
		i.observer(f)
	}
	return f
}

func (i *Interpreter) popFrameAndPushResult(result Value) {
	numArgs := i.popFrame().method.numArgs
	i.frame.PopN(numArgs)
	i.frame.Push(result)
}

// Start runs the fetch-decode-execute loop until a HALT instruction and
// answers the value on top of the halting frame's stack.
func (i *Interpreter) Start() (Value, error) {
	for {
		f := i.frame
		m := f.method
		bci := f.bci
		op := Opcode(m.bytecode[bci])
		if !op.Valid() {
			panic(fmt.Sprintf("vm: illegal bytecode %d at %s@%d", byte(op), m, bci))
		}
		f.bci = bci + opcodeTable[op].Length
		i.stats.Bytecodes++

		switch op {
		case OpHalt:
			return f.StackElement(0), nil

		case OpDup:
			f.Push(f.StackElement(0))

		case OpPushLocal:
			f.Push(f.Local(int(m.bytecode[bci+1]), int(m.bytecode[bci+2])))

		case OpPushArgument:
			f.Push(f.Argument(int(m.bytecode[bci+1]), int(m.bytecode[bci+2])))

		case OpPushField:
			f.Push(fieldOf(f.Self(), int(m.bytecode[bci+1])))

		case OpPushBlock:
			if err := i.doPushBlock(f, bci); err != nil {
				return nil, err
			}

		case OpPushConstant:
			f.Push(m.Literal(int(m.bytecode[bci+1])))

		case OpPushGlobal:
			if err := i.doPushGlobal(f, bci); err != nil {
				return nil, err
			}

		case OpPop:
			f.Pop()

		case OpPopLocal:
			f.SetLocal(int(m.bytecode[bci+1]), int(m.bytecode[bci+2]), f.Pop())

		case OpPopArgument:
			f.SetArgument(int(m.bytecode[bci+1]), int(m.bytecode[bci+2]), f.Pop())

		case OpPopField:
			setFieldOf(f.Self(), int(m.bytecode[bci+1]), f.Pop())

		case OpSend:
			if err := i.doSend(f, bci); err != nil {
				return nil, err
			}

		case OpSuperSend:
			if err := i.doSuperSend(f, bci); err != nil {
				return nil, err
			}

		case OpReturnLocal:
			i.popFrameAndPushResult(f.Pop())

		case OpReturnNonLocal:
			if err := i.doReturnNonLocal(f); err != nil {
				return nil, err
			}
		}
	}
}

func (i *Interpreter) doPushBlock(f *Frame, bci int) error {
	blockMethod, ok := f.method.Literal(int(f.method.bytecode[bci+1])).(*Method)
	if !ok {
		panic(fmt.Sprintf("vm: PUSH_BLOCK operand is not a method in %s@%d", f.method, bci))
	}
	class, err := i.universe.blockClassFor(blockMethod.numArgs)
	if err != nil {
		return err
	}
	f.Push(&Block{method: blockMethod, context: f, class: class})
	return nil
}

func (i *Interpreter) doPushGlobal(f *Frame, bci int) error {
	name := f.method.Literal(int(f.method.bytecode[bci+1])).(*Symbol)
	if global, ok := i.universe.Global(name); ok {
		f.Push(global)
		return nil
	}
	i.stats.UnknownGlobals++
	return i.sendEscape(f.Self(), i.universe.symUnknownGlobal, name)
}

func (i *Interpreter) doSend(f *Frame, bci int) error {
	selector := f.method.Literal(int(f.method.bytecode[bci+1])).(*Symbol)
	receiver := f.StackElement(selector.numArgs - 1)
	class := i.universe.ClassOf(receiver)

	i.stats.Sends++
	inv, hit := f.method.cache.lookup(bci, class, selector)
	if hit {
		i.stats.CacheHits++
	} else {
		i.stats.CacheMisses++
	}
	if inv == nil {
		return i.sendDoesNotUnderstand(selector)
	}
	return i.invoke(inv, f)
}

func (i *Interpreter) doSuperSend(f *Frame, bci int) error {
	selector := f.method.Literal(int(f.method.bytecode[bci+1])).(*Symbol)
	i.stats.SuperSends++

	var inv Invokable
	if super := f.method.holder.superclass; super != nil {
		inv = super.Lookup(selector)
	}
	if inv == nil {
		return i.sendDoesNotUnderstand(selector)
	}
	return i.invoke(inv, f)
}

func (i *Interpreter) doReturnNonLocal(f *Frame) error {
	result := f.Pop()
	home := f.OuterContext()
	i.stats.NonLocalReturns++

	if !i.isLive(home) {
		// The home method has already returned. Unwind only the block's own
		// activation and hand the block to the object that sent it #value.
		i.stats.EscapedBlocks++
		block := f.Argument(0, 0)
		sender := f.previous.OuterContext().Argument(0, 0)
		i.popFrame()
		i.frame.PopN(f.method.numArgs)
		return i.sendEscape(sender, i.universe.symEscapedBlock, block)
	}

	for i.frame != home {
		i.popFrame()
	}
	i.popFrameAndPushResult(result)
	return nil
}

// isLive reports whether home is still on the call chain of the current
// frame.
func (i *Interpreter) isLive(home *Frame) bool {
	if !home.HasPrevious() {
		return false
	}
	for f := i.frame; f != nil; f = f.previous {
		if f == home {
			return true
		}
	}
	return false
}

// unwindTo pops frames until target is current. Popped frames lose their
// caller link, so blocks they created count as escaped.
func (i *Interpreter) unwindTo(target *Frame) {
	for i.frame != nil && i.frame != target {
		i.popFrame()
	}
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// invoke runs inv for a send whose receiver and arguments are on top of
// frame's stack.
func (i *Interpreter) invoke(inv Invokable, frame *Frame) error {
	switch inv := inv.(type) {
	case *Method:
		i.stats.MethodCalls++
		i.PushNewFrame(inv, nil).copyArgumentsFrom(frame)
		return nil
	case *Primitive:
		i.stats.PrimitiveCalls++
		return inv.Call(i, frame)
	}
	panic(fmt.Sprintf("vm: cannot invoke %T", inv))
}

// ActivateBlock pushes a frame for block, whose receiver and arguments are
// on top of frame's stack.
func (i *Interpreter) ActivateBlock(block *Block, frame *Frame) {
	i.stats.BlockCalls++
	i.PushNewFrame(block.method, block.context).copyArgumentsFrom(frame)
}

// Perform dispatches selector with the receiver and arguments already on
// top of the current frame, starting the lookup at class.
func (i *Interpreter) Perform(class *Class, selector *Symbol) error {
	var inv Invokable
	if class != nil {
		inv = class.Lookup(selector)
	}
	if inv == nil {
		return i.sendDoesNotUnderstand(selector)
	}
	return i.invoke(inv, i.frame)
}

// sendDoesNotUnderstand replaces a failed send on the current frame's
// stack with doesNotUnderstand:arguments: to the original receiver.
func (i *Interpreter) sendDoesNotUnderstand(selector *Symbol) error {
	i.stats.DoesNotUnderstand++
	f := i.frame
	n := selector.numArgs
	args := NewArray(n-1, i.universe.Nil)
	for j := n - 2; j >= 0; j-- {
		args.AtPut(j, f.Pop())
	}
	receiver := f.Pop()
	return i.sendEscape(receiver, i.universe.symDoesNotUnderstand, selector, args)
}

// sendEscape sends one of the escape selectors. A receiver that does not
// understand it is a hard error rather than another escape.
func (i *Interpreter) sendEscape(receiver Value, selector *Symbol, args ...Value) error {
	f := i.frame
	inv := i.universe.ClassOf(receiver).Lookup(selector)
	if inv == nil {
		return fmt.Errorf("%w: %s does not understand %s", ErrNoFallback, Describe(receiver), selector)
	}
	f.Push(receiver)
	for _, arg := range args {
		f.Push(arg)
	}
	return i.invoke(inv, f)
}

// ---------------------------------------------------------------------------
// Entry from Go
// ---------------------------------------------------------------------------

// invokeFromGo runs inv on receiver and args under a synthetic bootstrap
// frame whose only instruction is HALT, and answers the result. Frames
// pushed by the call are popped afterwards, also when it fails, so calls
// may nest.
func (i *Interpreter) invokeFromGo(receiver Value, inv Invokable, args []Value) (Value, error) {
	saved, savedDepth := i.frame, i.depth
	defer func() {
		i.unwindTo(saved)
		i.frame, i.depth = saved, savedDepth
	}()

	boot := NewMethod(i.universe.symBootstrap, []byte{byte(OpHalt)}, nil, 1, 0, 1+len(args))
	boot.holder = i.universe.SystemClass
	f := i.PushNewFrame(boot, nil)
	f.Push(receiver)
	for _, arg := range args {
		f.Push(arg)
	}
	if err := i.invoke(inv, f); err != nil {
		return nil, err
	}
	return i.Start()
}

// PrintStackTrace writes the call chain, innermost first.
func (i *Interpreter) PrintStackTrace(w io.Writer) {
	for f := i.frame; f != nil; f = f.previous {
		fmt.Fprintf(w, "%s @%d\n", f.method, f.bci)
	}
}

// ---------------------------------------------------------------------------
// Field access
// ---------------------------------------------------------------------------

func fieldOf(self Value, index int) Value {
	switch s := self.(type) {
	case *Object:
		return s.fields[index]
	case *Class:
		return s.fields[index]
	}
	panic(fmt.Sprintf("vm: %s has no fields", Describe(self)))
}

func setFieldOf(self Value, index int, v Value) {
	switch s := self.(type) {
	case *Object:
		s.fields[index] = v
		return
	case *Class:
		s.fields[index] = v
		return
	}
	panic(fmt.Sprintf("vm: %s has no fields", Describe(self)))
}
