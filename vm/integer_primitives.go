package vm

import (
	"math"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Integer Primitives
// ---------------------------------------------------------------------------

// Integer primitives accept Integer and *BigInteger receivers alike. A
// Double argument moves the operation to floating point; any other mix
// works on big.Int and normalizes the result back to Integer when it fits.

func (u *Universe) installIntegerPrimitives(c *Class) {
	// Arithmetic
	definePrimitive(c, "+", binary(func(recv, arg Value) (Value, error) {
		return integerArith("+", recv, arg, addIntegers, (*big.Int).Add, func(a, b float64) float64 { return a + b })
	}))
	definePrimitive(c, "-", binary(func(recv, arg Value) (Value, error) {
		return integerArith("-", recv, arg, subtractIntegers, (*big.Int).Sub, func(a, b float64) float64 { return a - b })
	}))
	definePrimitive(c, "*", binary(func(recv, arg Value) (Value, error) {
		return integerArith("*", recv, arg, multiplyIntegers, (*big.Int).Mul, func(a, b float64) float64 { return a * b })
	}))

	// / - integer division truncating toward zero
	definePrimitive(c, "/", binary(func(recv, arg Value) (Value, error) {
		if d, ok := arg.(Double); ok {
			a, _ := toFloat(recv)
			return Integer(int64(a / float64(d))), nil
		}
		if isZeroInteger(arg) {
			return nil, primitiveFailure("/", "division by zero")
		}
		return integerArith("/", recv, arg, func(a, b int64) Value {
			if a == math.MinInt64 && b == -1 {
				return NewBigInteger(new(big.Int).Neg(big.NewInt(a)))
			}
			return Integer(a / b)
		}, (*big.Int).Quo, nil)
	}))

	// // - floating point division
	definePrimitive(c, "//", binary(func(recv, arg Value) (Value, error) {
		a, _ := toFloat(recv)
		b, ok := toFloat(arg)
		if !ok {
			return nil, primitiveFailure("//", "expected a number, got %s", Describe(arg))
		}
		return Double(a / b), nil
	}))

	// % - modulo with the sign of the divisor
	definePrimitive(c, "%", binary(func(recv, arg Value) (Value, error) {
		if d, ok := arg.(Double); ok {
			a, _ := toFloat(recv)
			return Double(floatMod(a, float64(d))), nil
		}
		if isZeroInteger(arg) {
			return nil, primitiveFailure("%", "division by zero")
		}
		return integerArith("%", recv, arg, func(a, b int64) Value {
			if b == -1 {
				return Integer(0)
			}
			m := a % b
			if m != 0 && (m < 0) != (b < 0) {
				m += b
			}
			return Integer(m)
		}, func(z, a, b *big.Int) *big.Int { return z.Set(floorMod(a, b)) }, nil)
	}))

	// rem: - remainder with the sign of the dividend
	definePrimitive(c, "rem:", binary(func(recv, arg Value) (Value, error) {
		if isZeroInteger(arg) {
			return nil, primitiveFailure("rem:", "division by zero")
		}
		return integerArith("rem:", recv, arg, func(a, b int64) Value {
			if b == -1 {
				return Integer(0)
			}
			return Integer(a % b)
		}, (*big.Int).Rem, nil)
	}))

	// Bit operations
	definePrimitive(c, "&", binary(func(recv, arg Value) (Value, error) {
		return integerArith("&", recv, arg, func(a, b int64) Value { return Integer(a & b) }, (*big.Int).And, nil)
	}))
	definePrimitive(c, "bitXor:", binary(func(recv, arg Value) (Value, error) {
		return integerArith("bitXor:", recv, arg, func(a, b int64) Value { return Integer(a ^ b) }, (*big.Int).Xor, nil)
	}))
	definePrimitive(c, "<<", binary(func(recv, arg Value) (Value, error) {
		n, err := asInteger("<<", arg)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, primitiveFailure("<<", "negative shift %d", n)
		}
		a, _ := toBig(recv)
		return NewBigInteger(new(big.Int).Lsh(a, uint(n))), nil
	}))
	definePrimitive(c, ">>>", binary(func(recv, arg Value) (Value, error) {
		n, err := asInteger(">>>", arg)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, primitiveFailure(">>>", "negative shift %d", n)
		}
		a, _ := toBig(recv)
		return NewBigInteger(new(big.Int).Rsh(a, uint(n))), nil
	}))

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
		return String(Describe(recv)), nil
	}))
	definePrimitive(c, "asDouble", unary(func(recv Value) (Value, error) {
		f, _ := toFloat(recv)
		return Double(f), nil
	}))

	// sqrt - an Integer when the root is exact, otherwise a Double
	definePrimitive(c, "sqrt", unary(func(recv Value) (Value, error) {
		if b, ok := recv.(*BigInteger); ok && b.v.Sign() > 0 {
			r := new(big.Int).Sqrt(b.v)
			if new(big.Int).Mul(r, r).Cmp(b.v) == 0 {
				return NewBigInteger(r), nil
			}
		}
		f, _ := toFloat(recv)
		root := math.Sqrt(f)
		if root == math.Trunc(root) && !math.IsInf(root, 0) {
			return Integer(int64(root)), nil
		}
		return Double(root), nil
	}))

	// atRandom - a random Integer in [0, self)
	definePrimitive(c, "atRandom", unary(func(recv Value) (Value, error) {
		n, err := asInteger("atRandom", recv)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return Integer(0), nil
		}
		return Integer(rand.Int63n(n)), nil
	}))

	// Integer class>>fromString:
	definePrimitive(c.class, "fromString:", binary(func(_, arg Value) (Value, error) {
		s, err := asText("fromString:", arg)
		if err != nil {
			return nil, err
		}
		return ParseInteger(s)
	}))
}

// ParseInteger parses decimal text into an Integer, or a *BigInteger when it
// does not fit in 64 bits.
func ParseInteger(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Integer(n), nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, primitiveFailure("fromString:", "invalid integer %q", s)
	}
	return NewBigInteger(b), nil
}

// integerArith dispatches a binary operation on the operand kinds. floatOp
// may be nil for operations that have no floating point form.
func integerArith(
	selector string,
	recv, arg Value,
	intOp func(a, b int64) Value,
	bigOp func(z, a, b *big.Int) *big.Int,
	floatOp func(a, b float64) float64,
) (Value, error) {
	if d, ok := arg.(Double); ok && floatOp != nil {
		a, _ := toFloat(recv)
		return Double(floatOp(a, float64(d))), nil
	}
	if a, ok := recv.(Integer); ok {
		if b, ok := arg.(Integer); ok {
			return intOp(int64(a), int64(b)), nil
		}
	}
	a, okA := toBig(recv)
	b, okB := toBig(arg)
	if !okA || !okB {
		return nil, primitiveFailure(selector, "expected an Integer, got %s", Describe(arg))
	}
	return NewBigInteger(bigOp(new(big.Int), a, b)), nil
}

func isZeroInteger(v Value) bool {
	n, ok := v.(Integer)
	return ok && n == 0
}

// toFloat widens any number to float64.
func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Integer:
		return float64(n), true
	case *BigInteger:
		f, _ := new(big.Float).SetInt(n.v).Float64()
		return f, true
	case Double:
		return float64(n), true
	}
	return 0, false
}

// compareNumbers orders two numbers of any kind. The second result is false
// when either operand is not a number.
func compareNumbers(a, b Value) (int, bool) {
	_, aDouble := a.(Double)
	_, bDouble := b.(Double)
	if aDouble || bDouble {
		x, okA := toFloat(a)
		y, okB := toFloat(b)
		if !okA || !okB {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		case x == y:
			return 0, true
		}
		return 2, true // NaN compares unequal to everything
	}
	if x, ok := a.(Integer); ok {
		if y, ok := b.(Integer); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	x, okA := toBig(a)
	y, okB := toBig(b)
	if !okA || !okB {
		return 0, false
	}
	return x.Cmp(y), true
}

// floatMod answers a modulo b with the sign of b.
func floatMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
