package vm

import (
	"fmt"
	"strconv"
)

// Value is anything the interpreter can hold in a frame slot.
//
// The set of implementations is closed:
//   - Integer and *BigInteger (both instances of Integer)
//   - Double
//   - String and *Symbol
//   - *Array
//   - *Object (plain instances, including nil, true, false and system)
//   - *Block
//   - *Class
//   - *Method and *Primitive
type Value interface {
	somValue()
}

// Integer is a fixed-width integer. Arithmetic that overflows promotes to
// *BigInteger.
type Integer int64

// Double is a floating point number.
type Double float64

// String is an immutable character string.
type String string

func (Integer) somValue() {}
func (Double) somValue()  {}
func (String) somValue()  {}
func (*Symbol) somValue() {}

// ---------------------------------------------------------------------------
// Object: Plain instances
// ---------------------------------------------------------------------------

// Object is an instance of a class compiled from source.
type Object struct {
	class  *Class
	fields []Value
}

func (*Object) somValue() {}

// NewObject allocates an instance of class with every field set to nilValue.
func NewObject(class *Class, nilValue Value) *Object {
	obj := &Object{class: class}
	if class != nil {
		obj.fields = make([]Value, class.NumInstanceFields())
		for i := range obj.fields {
			obj.fields[i] = nilValue
		}
	}
	return obj
}

// Class returns the class of the object.
func (obj *Object) Class() *Class { return obj.class }

// SetClass replaces the object's class. Only used while bootstrapping.
func (obj *Object) SetClass(c *Class) { obj.class = c }

// Field returns the field at index.
func (obj *Object) Field(index int) Value { return obj.fields[index] }

// SetField sets the field at index.
func (obj *Object) SetField(index int, v Value) { obj.fields[index] = v }

// NumFields returns the number of fields.
func (obj *Object) NumFields() int { return len(obj.fields) }

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a fixed-size indexable collection.
type Array struct {
	elems []Value
}

func (*Array) somValue() {}

// NewArray returns an array of n elements initialized to fill.
func NewArray(n int, fill Value) *Array {
	a := &Array{elems: make([]Value, n)}
	for i := range a.elems {
		a.elems[i] = fill
	}
	return a
}

// NewArrayOf wraps values in an array without copying.
func NewArrayOf(values ...Value) *Array {
	return &Array{elems: values}
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// At returns the element at the zero-based index i.
func (a *Array) At(i int) Value { return a.elems[i] }

// AtPut sets the element at the zero-based index i.
func (a *Array) AtPut(i int, v Value) { a.elems[i] = v }

// Elements returns the backing slice.
func (a *Array) Elements() []Value { return a.elems }

// ---------------------------------------------------------------------------
// Block: Closures
// ---------------------------------------------------------------------------

// Block pairs a block method with the frame it was created in.
type Block struct {
	method  *Method
	context *Frame
	class   *Class
}

func (*Block) somValue() {}

// Method returns the block's compiled method.
func (b *Block) Method() *Method { return b.method }

// Context returns the frame the block was created in.
func (b *Block) Context() *Frame { return b.context }

// NumArguments returns the block's argument count, including the block
// itself.
func (b *Block) NumArguments() int { return b.method.NumArguments() }

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// Describe renders a value for dumps and diagnostics. It never sends
// messages.
func Describe(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case *BigInteger:
		return v.String()
	case Double:
		return formatDouble(float64(v))
	case String:
		return strconv.Quote(string(v))
	case *Symbol:
		return v.String()
	case *Array:
		return fmt.Sprintf("an Array(%d)", v.Len())
	case *Object:
		if v.class == nil {
			return "an Object"
		}
		return "a " + v.class.Name().Name()
	case *Block:
		return "a Block"
	case *Class:
		return v.Name().Name()
	case *Method:
		return v.String()
	case *Primitive:
		return v.String()
	}
	return fmt.Sprintf("%v", v)
}

func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'I' {
			return s
		}
	}
	return s + ".0"
}
