package vm

// ---------------------------------------------------------------------------
// Method and Primitive Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installMethodPrimitives(c *Class) {
	u.installInvokablePrimitives(c)
}

func (u *Universe) installPrimitivePrimitives(c *Class) {
	u.installInvokablePrimitives(c)
}

// installInvokablePrimitives defines the reflective protocol shared by
// bytecode methods and native primitives.
func (u *Universe) installInvokablePrimitives(c *Class) {
	definePrimitive(c, "signature", unary(func(recv Value) (Value, error) {
		inv, err := asInvokable("signature", recv)
		if err != nil {
			return nil, err
		}
		return inv.Signature(), nil
	}))

	definePrimitive(c, "holder", unary(func(recv Value) (Value, error) {
		inv, err := asInvokable("holder", recv)
		if err != nil {
			return nil, err
		}
		if inv.Holder() == nil {
			return u.Nil, nil
		}
		return inv.Holder(), nil
	}))

	// invokeOn:with: - run the invokable on a receiver with an Array of
	// arguments, bypassing lookup
	definePrimitive(c, "invokeOn:with:", func(interp *Interpreter, f *Frame) error {
		args, err := asArray("invokeOn:with:", f.Pop())
		if err != nil {
			return err
		}
		receiver := f.Pop()
		inv, err := asInvokable("invokeOn:with:", f.Pop())
		if err != nil {
			return err
		}
		if want := inv.Signature().NumSignatureArguments() - 1; want != args.Len() {
			return primitiveFailure("invokeOn:with:", "%s takes %d arguments, got %d", inv.Signature(), want, args.Len())
		}
		f.Push(receiver)
		for _, arg := range args.elems {
			f.Push(arg)
		}
		return interp.invoke(inv, f)
	})
}

func asInvokable(selector string, v Value) (Invokable, error) {
	if inv, ok := v.(Invokable); ok {
		return inv, nil
	}
	return nil, primitiveFailure(selector, "expected a Method or Primitive, got %s", Describe(v))
}
