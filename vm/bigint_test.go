package vm

import (
	"math"
	"math/big"
	"testing"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big literal %q", s)
	}
	return b
}

func TestNewBigIntegerNormalizes(t *testing.T) {
	if v := NewBigInteger(big.NewInt(42)); v != Integer(42) {
		t.Errorf("NewBigInteger(42) = %#v, want Integer(42)", v)
	}
	if v := NewBigInteger(big.NewInt(math.MinInt64)); v != Integer(math.MinInt64) {
		t.Errorf("NewBigInteger(MinInt64) = %#v, want Integer", v)
	}
	huge := new(big.Int).Add(big.NewInt(math.MaxInt64), big.NewInt(1))
	if _, ok := NewBigInteger(huge).(*BigInteger); !ok {
		t.Errorf("NewBigInteger(MaxInt64+1) is not a BigInteger")
	}
}

func TestIntegerOverflowPromotion(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b int64) Value
		a, b int64
		want string
	}{
		{"max+max", addIntegers, math.MaxInt64, math.MaxInt64, "18446744073709551614"},
		{"min+min", addIntegers, math.MinInt64, math.MinInt64, "-18446744073709551616"},
		{"min-1", subtractIntegers, math.MinInt64, 1, "-9223372036854775809"},
		{"max-(-1)", subtractIntegers, math.MaxInt64, -1, "9223372036854775808"},
		{"max*2", multiplyIntegers, math.MaxInt64, 2, "18446744073709551614"},
		{"min*-1", multiplyIntegers, math.MinInt64, -1, "9223372036854775808"},
		{"-1*min", multiplyIntegers, -1, math.MinInt64, "9223372036854775808"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.fn(tc.a, tc.b).(*BigInteger)
			if !ok {
				t.Fatalf("result is not a BigInteger")
			}
			if got.Big().Cmp(bigFromString(t, tc.want)) != 0 {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestIntegerArithmeticWithoutOverflow(t *testing.T) {
	tests := []struct {
		name string
		got  Value
		want Integer
	}{
		{"add", addIntegers(3, 4), 7},
		{"add mixed signs", addIntegers(math.MaxInt64, math.MinInt64), -1},
		{"sub", subtractIntegers(3, 10), -7},
		{"sub to min", subtractIntegers(math.MinInt64+1, 1), math.MinInt64},
		{"mul", multiplyIntegers(-6, 7), -42},
		{"mul zero", multiplyIntegers(0, math.MinInt64), 0},
		{"mul min by one", multiplyIntegers(math.MinInt64, 1), math.MinInt64},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %#v, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestFloorMod(t *testing.T) {
	tests := []struct{ a, b, want int64 }{
		{7, 3, 1},
		{-7, 3, 2},
		{7, -3, -2},
		{-7, -3, -1},
		{6, 3, 0},
	}
	for _, tc := range tests {
		got := floorMod(big.NewInt(tc.a), big.NewInt(tc.b))
		if got.Int64() != tc.want {
			t.Errorf("floorMod(%d, %d) = %s, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestToBig(t *testing.T) {
	if b, ok := toBig(Integer(-3)); !ok || b.Int64() != -3 {
		t.Errorf("toBig(Integer) = (%v, %v)", b, ok)
	}
	if _, ok := toBig(Double(1)); ok {
		t.Error("toBig accepted a Double")
	}
}
