package vm

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ---------------------------------------------------------------------------
// Object Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installObjectPrimitives(c *Class) {
	// == - identity
	definePrimitive(c, "==", binary(func(recv, arg Value) (Value, error) {
		return u.Bool(recv == arg), nil
	}))

	// hashcode - identity hash
	definePrimitive(c, "hashcode", unary(func(recv Value) (Value, error) {
		return identityHash(recv), nil
	}))

	// objectSize - number of slots
	definePrimitive(c, "objectSize", unary(func(recv Value) (Value, error) {
		switch r := recv.(type) {
		case *Object:
			return Integer(r.NumFields()), nil
		case *Array:
			return Integer(r.Len()), nil
		case *Class:
			return Integer(len(r.fields)), nil
		}
		return Integer(0), nil
	}))

	// class - the receiver's class
	definePrimitive(c, "class", unary(func(recv Value) (Value, error) {
		return u.ClassOf(recv), nil
	}))

	// respondsTo: - whether a lookup of the selector succeeds
	definePrimitive(c, "respondsTo:", binary(func(recv, arg Value) (Value, error) {
		sel, err := asSymbol("respondsTo:", arg)
		if err != nil {
			return nil, err
		}
		return u.Bool(u.ClassOf(recv).Lookup(sel) != nil), nil
	}))

	// halt - report a breakpoint and continue
	definePrimitive(c, "halt", func(interp *Interpreter, f *Frame) error {
		fmt.Fprintln(u.errOut, "BREAKPOINT")
		interp.PrintStackTrace(u.errOut)
		return nil
	})

	// perform: - send a selector named at run time
	definePrimitive(c, "perform:", func(interp *Interpreter, f *Frame) error {
		sel, err := asSymbol("perform:", f.Pop())
		if err != nil {
			return err
		}
		return interp.Perform(u.ClassOf(f.StackElement(0)), sel)
	})

	// perform:inSuperclass: - send starting the lookup at a given class
	definePrimitive(c, "perform:inSuperclass:", func(interp *Interpreter, f *Frame) error {
		class, err := asClass("perform:inSuperclass:", f.Pop())
		if err != nil {
			return err
		}
		sel, err := asSymbol("perform:inSuperclass:", f.Pop())
		if err != nil {
			return err
		}
		return interp.Perform(class, sel)
	})

	// perform:withArguments: - send with arguments taken from an Array
	definePrimitive(c, "perform:withArguments:", func(interp *Interpreter, f *Frame) error {
		args, err := asArray("perform:withArguments:", f.Pop())
		if err != nil {
			return err
		}
		sel, err := asSymbol("perform:withArguments:", f.Pop())
		if err != nil {
			return err
		}
		for _, arg := range args.elems {
			f.Push(arg)
		}
		return interp.Perform(u.ClassOf(f.StackElement(args.Len())), sel)
	})

	// perform:withArguments:inSuperclass:
	definePrimitive(c, "perform:withArguments:inSuperclass:", func(interp *Interpreter, f *Frame) error {
		const sel = "perform:withArguments:inSuperclass:"
		class, err := asClass(sel, f.Pop())
		if err != nil {
			return err
		}
		args, err := asArray(sel, f.Pop())
		if err != nil {
			return err
		}
		selector, err := asSymbol(sel, f.Pop())
		if err != nil {
			return err
		}
		for _, arg := range args.elems {
			f.Push(arg)
		}
		return interp.Perform(class, selector)
	})

	// instVarAt: - read a field by 1-based index
	definePrimitive(c, "instVarAt:", binary(func(recv, arg Value) (Value, error) {
		fields, err := fieldsOf("instVarAt:", recv)
		if err != nil {
			return nil, err
		}
		i, err := checkIndex("instVarAt:", arg, len(fields))
		if err != nil {
			return nil, err
		}
		return fields[i], nil
	}))

	// instVarAt:put: - write a field by 1-based index, answering the value
	definePrimitive(c, "instVarAt:put:", ternary(func(recv, idx, val Value) (Value, error) {
		fields, err := fieldsOf("instVarAt:put:", recv)
		if err != nil {
			return nil, err
		}
		i, err := checkIndex("instVarAt:put:", idx, len(fields))
		if err != nil {
			return nil, err
		}
		fields[i] = val
		return val, nil
	}))
}

func fieldsOf(selector string, v Value) ([]Value, error) {
	switch o := v.(type) {
	case *Object:
		return o.fields, nil
	case *Class:
		return o.fields, nil
	}
	return nil, primitiveFailure(selector, "%s has no fields", Describe(v))
}

// identityHash answers a hash that is stable for the lifetime of v. Value
// types hash their contents; reference types hash their address, which the
// Go collector never moves.
func identityHash(v Value) Value {
	switch x := v.(type) {
	case Integer:
		return x
	case String:
		return stringHash(string(x))
	case Double:
		return Integer(int64(xxh3.HashString(formatDouble(float64(x))) >> 1))
	}
	return Integer(int64(xxh3.HashString(fmt.Sprintf("%p", v)) >> 1))
}

func stringHash(s string) Integer {
	return Integer(int64(xxh3.HashString(s) >> 1))
}
