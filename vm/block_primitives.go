package vm

import "strings"

// ---------------------------------------------------------------------------
// Block Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installBlockPrimitives(c *Class) {
	// restart - rewind the sending frame to its first instruction. Block
	// looping methods end with "self restart" to iterate without recursion.
	definePrimitive(c, "restart", func(_ *Interpreter, f *Frame) error {
		f.Pop()
		f.resetStack()
		return nil
	})

	// numArgs - declared arguments, excluding the block itself
	definePrimitive(c, "numArgs", unary(func(recv Value) (Value, error) {
		b, ok := recv.(*Block)
		if !ok {
			return nil, primitiveFailure("numArgs", "expected a Block, got %s", Describe(recv))
		}
		return Integer(b.NumArguments() - 1), nil
	}))
}

// blockSelector answers the evaluation selector for a block class taking
// numArgs arguments, counting the block: value, value:, value:with:, ...
func blockSelector(numArgs int) string {
	switch numArgs {
	case 1:
		return "value"
	case 2:
		return "value:"
	}
	return "value:" + strings.Repeat("with:", numArgs-2)
}

// blockEvaluationPrimitive activates the receiving block with the arguments
// on top of the sender's stack. The block frame's context is the frame that
// created the block.
func blockEvaluationPrimitive(numArgs int) *Primitive {
	return NewPrimitive(Intern(blockSelector(numArgs)), func(interp *Interpreter, f *Frame) error {
		block, ok := f.StackElement(numArgs - 1).(*Block)
		if !ok {
			return primitiveFailure(blockSelector(numArgs), "receiver is not a Block")
		}
		interp.ActivateBlock(block, f)
		return nil
	})
}
