package vm

// ---------------------------------------------------------------------------
// Class Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installClassPrimitives(c *Class) {
	// new - allocate an instance with every field nil
	definePrimitive(c, "new", unary(func(recv Value) (Value, error) {
		class, err := asClass("new", recv)
		if err != nil {
			return nil, err
		}
		return u.NewInstance(class), nil
	}))

	// name - the class name as a Symbol
	definePrimitive(c, "name", unary(func(recv Value) (Value, error) {
		class, err := asClass("name", recv)
		if err != nil {
			return nil, err
		}
		return class.name, nil
	}))

	// superclass - the superclass, or nil for a root class
	definePrimitive(c, "superclass", unary(func(recv Value) (Value, error) {
		class, err := asClass("superclass", recv)
		if err != nil {
			return nil, err
		}
		if class.superclass == nil {
			return u.Nil, nil
		}
		return class.superclass, nil
	}))

	// methods - the class's own invokables
	definePrimitive(c, "methods", unary(func(recv Value) (Value, error) {
		class, err := asClass("methods", recv)
		if err != nil {
			return nil, err
		}
		a := NewArray(len(class.invokables), u.Nil)
		for i, inv := range class.invokables {
			a.AtPut(i, inv)
		}
		return a, nil
	}))

	// fields - instance field names, inherited ones first
	definePrimitive(c, "fields", unary(func(recv Value) (Value, error) {
		class, err := asClass("fields", recv)
		if err != nil {
			return nil, err
		}
		a := NewArray(len(class.instanceFields), u.Nil)
		for i, name := range class.instanceFields {
			a.AtPut(i, name)
		}
		return a, nil
	}))
}
