package vm

import (
	"errors"
	"fmt"
)

// ErrPrimitiveFailed is wrapped by every error a native routine returns for
// operands it cannot handle.
var ErrPrimitiveFailed = errors.New("primitive failed")

// ---------------------------------------------------------------------------
// Primitive sets
// ---------------------------------------------------------------------------

// registerPrimitives binds the built-in primitive sets to class names. A set
// is installed when a class of that name is loaded and declares at least one
// primitive.
func (u *Universe) registerPrimitives() {
	u.primitives = make(map[string]func(c *Class))
	for name, install := range map[string]func(c *Class){
		"Object":    u.installObjectPrimitives,
		"Class":     u.installClassPrimitives,
		"System":    u.installSystemPrimitives,
		"Integer":   u.installIntegerPrimitives,
		"Double":    u.installDoublePrimitives,
		"String":    u.installStringPrimitives,
		"Symbol":    u.installSymbolPrimitives,
		"Array":     u.installArrayPrimitives,
		"Method":    u.installMethodPrimitives,
		"Primitive": u.installPrimitivePrimitives,
		"Block":     u.installBlockPrimitives,
	} {
		u.RegisterPrimitives(name, install)
	}
}

// RegisterPrimitives binds install to className, replacing any set already
// registered for it. Embedders use it to add native classes of their own;
// it must be called before the class is loaded.
func (u *Universe) RegisterPrimitives(className string, install func(c *Class)) {
	u.primitives[className] = install
}

func (u *Universe) installPrimitives(c *Class) {
	install, ok := u.primitives[c.name.name]
	if !ok {
		u.log.Warning("class declares primitives but no set is registered", "universe", u.ID, "class", c.name.name)
		return
	}
	install(c)
}

// ---------------------------------------------------------------------------
// Definition helpers
// ---------------------------------------------------------------------------

// definePrimitive installs fn as selector in c.
func definePrimitive(c *Class, selector string, fn PrimitiveFunc) {
	c.AddMethod(NewPrimitive(Intern(selector), fn))
}

// unary adapts a receiver-only routine to the frame protocol.
func unary(fn func(recv Value) (Value, error)) PrimitiveFunc {
	return func(_ *Interpreter, f *Frame) error {
		result, err := fn(f.Pop())
		if err != nil {
			return err
		}
		f.Push(result)
		return nil
	}
}

// binary adapts a one-argument routine to the frame protocol.
func binary(fn func(recv, arg Value) (Value, error)) PrimitiveFunc {
	return func(_ *Interpreter, f *Frame) error {
		arg := f.Pop()
		result, err := fn(f.Pop(), arg)
		if err != nil {
			return err
		}
		f.Push(result)
		return nil
	}
}

// ternary adapts a two-argument routine to the frame protocol.
func ternary(fn func(recv, arg1, arg2 Value) (Value, error)) PrimitiveFunc {
	return func(_ *Interpreter, f *Frame) error {
		arg2 := f.Pop()
		arg1 := f.Pop()
		result, err := fn(f.Pop(), arg1, arg2)
		if err != nil {
			return err
		}
		f.Push(result)
		return nil
	}
}

func primitiveFailure(selector string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrPrimitiveFailed, selector, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Operand coercion
// ---------------------------------------------------------------------------

func asInteger(selector string, v Value) (int64, error) {
	if n, ok := v.(Integer); ok {
		return int64(n), nil
	}
	return 0, primitiveFailure(selector, "expected an Integer, got %s", Describe(v))
}

func asText(selector string, v Value) (string, error) {
	switch s := v.(type) {
	case String:
		return string(s), nil
	case *Symbol:
		return s.name, nil
	}
	return "", primitiveFailure(selector, "expected a String, got %s", Describe(v))
}

func asSymbol(selector string, v Value) (*Symbol, error) {
	switch s := v.(type) {
	case *Symbol:
		return s, nil
	case String:
		return Intern(string(s)), nil
	}
	return nil, primitiveFailure(selector, "expected a Symbol, got %s", Describe(v))
}

func asArray(selector string, v Value) (*Array, error) {
	if a, ok := v.(*Array); ok {
		return a, nil
	}
	return nil, primitiveFailure(selector, "expected an Array, got %s", Describe(v))
}

func asClass(selector string, v Value) (*Class, error) {
	if c, ok := v.(*Class); ok {
		return c, nil
	}
	return nil, primitiveFailure(selector, "expected a Class, got %s", Describe(v))
}

// checkIndex converts a 1-based index into a 0-based one for a sequence of
// length n.
func checkIndex(selector string, v Value, n int) (int, error) {
	i, err := asInteger(selector, v)
	if err != nil {
		return 0, err
	}
	if i < 1 || i > int64(n) {
		return 0, primitiveFailure(selector, "index %d out of bounds [1..%d]", i, n)
	}
	return int(i - 1), nil
}
