package vm

// ---------------------------------------------------------------------------
// Frame: Activation records
// ---------------------------------------------------------------------------

// frameHeadroom is the number of stack slots allocated beyond a method's
// computed depth. Escape sends (unknownGlobal:, doesNotUnderstand:arguments:,
// escapedBlock:) push their receiver and argument into the frame that
// triggered them.
const frameHeadroom = 2

// Frame is one method or block activation. Its slots are laid out as
// arguments, then locals, then the operand stack.
//
// A frame has two links. previous is the caller, used to return; it is
// cleared when the frame is popped. context is the lexically enclosing
// frame of a block activation, used for outer variable access and
// non-local return; it is nil for method activations. A popped frame stays
// alive for as long as a block references it through context.
type Frame struct {
	method   *Method
	previous *Frame
	context  *Frame

	stack       []Value
	sp          int // index of the top element
	localOffset int
	bci         int

	peak int // highest operand stack occupancy seen
}

func newFrame(previous *Frame, method *Method, context *Frame, nilValue Value) *Frame {
	size := method.numArgs + method.numLocals + method.maxStack + frameHeadroom
	f := &Frame{
		method:      method,
		previous:    previous,
		context:     context,
		stack:       make([]Value, size),
		localOffset: method.numArgs,
	}
	for i := range f.stack {
		f.stack[i] = nilValue
	}
	f.sp = f.localOffset + method.numLocals - 1
	return f
}

// Method returns the method being executed.
func (f *Frame) Method() *Method { return f.method }

// HasPrevious reports whether the frame is still on the call stack.
func (f *Frame) HasPrevious() bool { return f.previous != nil }

func (f *Frame) clearPrevious() { f.previous = nil }

// ContextAt walks level context links up from f.
func (f *Frame) ContextAt(level int) *Frame {
	frame := f
	for ; level > 0; level-- {
		frame = frame.context
	}
	return frame
}

// OuterContext returns the frame of the method that lexically encloses f.
func (f *Frame) OuterContext() *Frame {
	frame := f
	for frame.context != nil {
		frame = frame.context
	}
	return frame
}

// Self returns the receiver of the enclosing method.
func (f *Frame) Self() Value {
	return f.OuterContext().stack[0]
}

// BytecodeIndex returns the offset of the next instruction.
func (f *Frame) BytecodeIndex() int { return f.bci }

// SetBytecodeIndex moves the program counter.
func (f *Frame) SetBytecodeIndex(bci int) { f.bci = bci }

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

// Push pushes v on the operand stack.
func (f *Frame) Push(v Value) {
	f.sp++
	if f.sp == len(f.stack) {
		f.stack = append(f.stack, v)
	} else {
		f.stack[f.sp] = v
	}
	if depth := f.Depth(); depth > f.peak {
		f.peak = depth
	}
}

// Pop removes and returns the top of the operand stack.
func (f *Frame) Pop() Value {
	v := f.stack[f.sp]
	f.sp--
	return v
}

// PopN discards n elements.
func (f *Frame) PopN(n int) {
	f.sp -= n
}

// StackElement returns the element index slots below the top.
func (f *Frame) StackElement(index int) Value {
	return f.stack[f.sp-index]
}

// Depth returns the current operand stack occupancy.
func (f *Frame) Depth() int {
	return f.sp - (f.localOffset + f.method.numLocals - 1)
}

// PeakDepth returns the highest operand stack occupancy observed.
func (f *Frame) PeakDepth() int { return f.peak }

// resetStack empties the operand stack and rewinds the program counter.
func (f *Frame) resetStack() {
	f.sp = f.localOffset + f.method.numLocals - 1
	f.bci = 0
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// Local returns local index in the frame level context links away.
func (f *Frame) Local(index, level int) Value {
	ctx := f.ContextAt(level)
	return ctx.stack[ctx.localOffset+index]
}

// SetLocal sets local index in the frame level context links away.
func (f *Frame) SetLocal(index, level int, v Value) {
	ctx := f.ContextAt(level)
	ctx.stack[ctx.localOffset+index] = v
}

// Argument returns argument index in the frame level context links away.
// Argument 0 is the receiver.
func (f *Frame) Argument(index, level int) Value {
	return f.ContextAt(level).stack[index]
}

// SetArgument sets argument index in the frame level context links away.
func (f *Frame) SetArgument(index, level int, v Value) {
	f.ContextAt(level).stack[index] = v
}

// copyArgumentsFrom copies the receiver and arguments of a send from the
// top of the caller's stack. They stay on the caller's stack until return.
func (f *Frame) copyArgumentsFrom(caller *Frame) {
	n := f.method.numArgs
	for i := 0; i < n; i++ {
		f.stack[i] = caller.StackElement(n - 1 - i)
	}
}
