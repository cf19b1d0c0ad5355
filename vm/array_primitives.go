package vm

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installArrayPrimitives(c *Class) {
	// at: - 1-based element access
	definePrimitive(c, "at:", binary(func(recv, arg Value) (Value, error) {
		a, err := asArray("at:", recv)
		if err != nil {
			return nil, err
		}
		i, err := checkIndex("at:", arg, a.Len())
		if err != nil {
			return nil, err
		}
		return a.elems[i], nil
	}))

	// at:put: - store, answering the receiver
	definePrimitive(c, "at:put:", ternary(func(recv, idx, val Value) (Value, error) {
		a, err := asArray("at:put:", recv)
		if err != nil {
			return nil, err
		}
		i, err := checkIndex("at:put:", idx, a.Len())
		if err != nil {
			return nil, err
		}
		a.elems[i] = val
		return a, nil
	}))

	definePrimitive(c, "length", unary(func(recv Value) (Value, error) {
		a, err := asArray("length", recv)
		if err != nil {
			return nil, err
		}
		return Integer(a.Len()), nil
	}))

	// Array class>>new: - an Array of nils
	definePrimitive(c.class, "new:", binary(func(_, arg Value) (Value, error) {
		n, err := asInteger("new:", arg)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, primitiveFailure("new:", "negative size %d", n)
		}
		return NewArray(int(n), u.Nil), nil
	}))
}
