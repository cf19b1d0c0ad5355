package vm

import "math"

// ---------------------------------------------------------------------------
// Double Primitives
// ---------------------------------------------------------------------------

func (u *Universe) installDoublePrimitives(c *Class) {
	arith := func(selector string, op func(a, b float64) float64) {
		definePrimitive(c, selector, binary(func(recv, arg Value) (Value, error) {
			b, ok := toFloat(arg)
			if !ok {
				return nil, primitiveFailure(selector, "expected a number, got %s", Describe(arg))
			}
			return Double(op(float64(recv.(Double)), b)), nil
		}))
	}
	arith("+", func(a, b float64) float64 { return a + b })
	arith("-", func(a, b float64) float64 { return a - b })
	arith("*", func(a, b float64) float64 { return a * b })
	arith("//", func(a, b float64) float64 { return a / b })
	arith("%", math.Mod)

	// Comparison
	definePrimitive(c, "=", binary(func(recv, arg Value) (Value, error) {
		cmp, ok := compareNumbers(recv, arg)
		return u.Bool(ok && cmp == 0), nil
	}))
	definePrimitive(c, "<", binary(func(recv, arg Value) (Value, error) {
		cmp, ok := compareNumbers(recv, arg)
		if !ok {
			return nil, primitiveFailure("<", "expected a number, got %s", Describe(arg))
		}
		return u.Bool(cmp < 0), nil
	}))

	// Conversion
	definePrimitive(c, "asString", unary(func(recv Value) (Value, error) {
		return String(formatDouble(float64(recv.(Double)))), nil
	}))
	definePrimitive(c, "round", unary(func(recv Value) (Value, error) {
		return Integer(int64(math.Round(float64(recv.(Double))))), nil
	}))
	definePrimitive(c, "asInteger", unary(func(recv Value) (Value, error) {
		return Integer(int64(math.Trunc(float64(recv.(Double))))), nil
	}))

	// Functions
	definePrimitive(c, "sqrt", unary(func(recv Value) (Value, error) {
		return Double(math.Sqrt(float64(recv.(Double)))), nil
	}))
	definePrimitive(c, "sin", unary(func(recv Value) (Value, error) {
		return Double(math.Sin(float64(recv.(Double)))), nil
	}))
	definePrimitive(c, "cos", unary(func(recv Value) (Value, error) {
		return Double(math.Cos(float64(recv.(Double)))), nil
	}))
}
