package vm

import (
	"math"
	"math/big"
)

// BigInteger is an arbitrary precision integer. Results that fit in 64 bits
// are always demoted back to Integer, so a BigInteger value never holds a
// number Integer could represent.
type BigInteger struct {
	v *big.Int
}

func (*BigInteger) somValue() {}

// Big returns the underlying value. Callers must not mutate it.
func (b *BigInteger) Big() *big.Int { return b.v }

func (b *BigInteger) String() string { return b.v.String() }

// NewBigInteger normalizes an arbitrary precision result: it answers an
// Integer when v fits in 64 bits and a *BigInteger otherwise.
func NewBigInteger(v *big.Int) Value {
	if v.IsInt64() {
		return Integer(v.Int64())
	}
	return &BigInteger{v: v}
}

// toBig widens an Integer or *BigInteger. The second result is false for any
// other value.
func toBig(v Value) (*big.Int, bool) {
	switch v := v.(type) {
	case Integer:
		return big.NewInt(int64(v)), true
	case *BigInteger:
		return v.v, true
	}
	return nil, false
}

func addIntegers(a, b int64) Value {
	s := a + b
	if (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0) {
		return NewBigInteger(new(big.Int).Add(big.NewInt(a), big.NewInt(b)))
	}
	return Integer(s)
}

func subtractIntegers(a, b int64) Value {
	d := a - b
	if (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0) {
		return NewBigInteger(new(big.Int).Sub(big.NewInt(a), big.NewInt(b)))
	}
	return Integer(d)
}

func multiplyIntegers(a, b int64) Value {
	if a == 0 || b == 0 {
		return Integer(0)
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return NewBigInteger(new(big.Int).Mul(big.NewInt(a), big.NewInt(b)))
	}
	return Integer(p)
}

// floorMod answers a modulo b with the sign of b.
func floorMod(a, b *big.Int) *big.Int {
	m := new(big.Int).Rem(a, b)
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		m.Add(m, b)
	}
	return m
}
