package vm_test

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/som/compiler"
	"github.com/chazu/som/vm"
)

type testUniverse struct {
	*vm.Universe
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

// newTestUniverse bootstraps a universe whose classpath holds the given
// class sources, keyed by class name.
func newTestUniverse(t *testing.T, classes map[string]string) *testUniverse {
	t.Helper()
	dir := t.TempDir()
	for name, src := range classes {
		if err := os.WriteFile(filepath.Join(dir, name+compiler.FileExtension), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	u := compiler.NewUniverse()
	tu := &testUniverse{Universe: u, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	u.SetOutput(tu.out, tu.errOut)
	u.SetAvoidExit(true)
	u.SetClassPath(dir)
	if _, err := u.InitializeObjectSystem(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return tu
}

func (tu *testUniverse) interpret(t *testing.T, class, selector string) vm.Value {
	t.Helper()
	v, err := tu.Interpret(class, selector)
	if err != nil {
		t.Fatalf("%s>>%s: %v\nstderr: %s", class, selector, err, tu.errOut)
	}
	return v
}

func (tu *testUniverse) instance(t *testing.T, class string) *vm.Object {
	t.Helper()
	c, err := tu.LoadClass(vm.Intern(class))
	if err != nil || c == nil {
		t.Fatalf("LoadClass(%s) = (%v, %v)", class, c, err)
	}
	return tu.NewInstance(c)
}

func (tu *testUniverse) send(t *testing.T, receiver vm.Value, selector string, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := tu.Send(receiver, selector, args...)
	if err != nil {
		t.Fatalf("%s %s: %v", vm.Describe(receiver), selector, err)
	}
	return v
}

func arrayOf(t *testing.T, v vm.Value) []vm.Value {
	t.Helper()
	a, ok := v.(*vm.Array)
	if !ok {
		t.Fatalf("got %s, want an Array", vm.Describe(v))
	}
	return a.Elements()
}

func TestArithmetic(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Calc": `Calc = (
    ----
    leftToRight = ( ^3 + 4 * 2 )
    keywordLast = ( ^3 + 4 max: 2 * 5 )
    mixed = ( ^1 + 2.5 )
    modulo = ( ^-7 % 3 )
    loop = ( | sum | sum := 0. 1 to: 10 do: [:i | sum := sum + i ]. ^sum )
)`,
	})

	tests := []struct {
		selector string
		want     vm.Value
	}{
		{"leftToRight", vm.Integer(14)},
		{"keywordLast", vm.Integer(10)},
		{"mixed", vm.Double(3.5)},
		{"modulo", vm.Integer(2)},
		{"loop", vm.Integer(55)},
	}
	for _, tc := range tests {
		if got := tu.interpret(t, "Calc", tc.selector); got != tc.want {
			t.Errorf("%s = %s, want %s", tc.selector, vm.Describe(got), vm.Describe(tc.want))
		}
	}
}

func TestOverflowPromotion(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Big": `Big = (
    ----
    maxPlusMax = ( ^9223372036854775807 + 9223372036854775807 )
    backDown = ( ^(9223372036854775807 + 1) - 1 )
    square = ( ^4294967296 * 4294967296 )
    literal = ( ^100000000000000000000 - 99999999999999999999 )
)`,
	})

	sum, ok := tu.interpret(t, "Big", "maxPlusMax").(*vm.BigInteger)
	if !ok {
		t.Fatal("maxPlusMax is not a BigInteger")
	}
	want := new(big.Int).Mul(big.NewInt(math.MaxInt64), big.NewInt(2))
	if sum.Big().Cmp(want) != 0 {
		t.Errorf("maxPlusMax = %s, want %s", sum, want)
	}

	if got := tu.interpret(t, "Big", "backDown"); got != vm.Integer(math.MaxInt64) {
		t.Errorf("backDown = %s (%T), want an Integer", vm.Describe(got), got)
	}
	if _, ok := tu.interpret(t, "Big", "square").(*vm.BigInteger); !ok {
		t.Error("square is not a BigInteger")
	}
	if got := tu.interpret(t, "Big", "literal"); got != vm.Integer(1) {
		t.Errorf("literal = %s (%T), want Integer 1", vm.Describe(got), got)
	}
}

func TestImplicitReturns(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Implicit": `Implicit = (
    foo = ( ^1 )
    bar = ( ^2 )
    method = ( self foo. self bar )
    methodWithPeriod = ( self foo. self bar. )
    block = ( ^[ self foo. self bar ] value )
    blockWithPeriod = ( ^[ self foo. self bar. ] value )
    empty = ( ^[] value )
    emptyWithArgument = ( ^[:x | ] value: 3 )
)`,
	})
	obj := tu.instance(t, "Implicit")

	tests := []struct {
		selector string
		want     vm.Value
	}{
		{"method", obj},
		{"methodWithPeriod", obj},
		{"block", vm.Integer(2)},
		{"blockWithPeriod", vm.Integer(2)},
		{"empty", tu.Nil},
		{"emptyWithArgument", tu.Nil},
	}
	for _, tc := range tests {
		if got := tu.send(t, obj, tc.selector); got != tc.want {
			t.Errorf("%s = %s, want %s", tc.selector, vm.Describe(got), vm.Describe(tc.want))
		}
	}
}

func TestFieldOrder(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Base": `Base = ( | x | setX: v = ( x := v ) )`,
		"Sub":  `Sub = Base ( | y | setY: v = ( y := v ) sum = ( ^x + y ) )`,
	})
	obj := tu.instance(t, "Sub")
	tu.send(t, obj, "setX:", vm.Integer(1))
	tu.send(t, obj, "setY:", vm.Integer(2))

	if obj.NumFields() != 2 {
		t.Fatalf("fields = %d, want 2", obj.NumFields())
	}
	if obj.Field(0) != vm.Integer(1) || obj.Field(1) != vm.Integer(2) {
		t.Errorf("fields = [%s %s], want [1 2]", vm.Describe(obj.Field(0)), vm.Describe(obj.Field(1)))
	}
	if got := tu.send(t, obj, "sum"); got != vm.Integer(3) {
		t.Errorf("sum = %s, want 3", vm.Describe(got))
	}
}

func TestClassSideFields(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Counter": `Counter = (
    ----
    | count |
    next = ( count isNil ifTrue: [ count := 0 ]. count := count + 1. ^count )
)`,
	})
	tu.interpret(t, "Counter", "next")
	tu.interpret(t, "Counter", "next")
	if got := tu.interpret(t, "Counter", "next"); got != vm.Integer(3) {
		t.Errorf("third next = %s, want 3", vm.Describe(got))
	}
}

func TestSuperSend(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Animal": `Animal = ( sound = ( ^'...' ) describe = ( ^'I say ' + self sound ) )`,
		"Dog":    `Dog = Animal ( sound = ( ^'woof' ) describe = ( ^super describe + '!' ) )`,
		"Puppy":  `Puppy = Dog ( sound = ( ^'yip' ) )`,
	})
	if got := tu.send(t, tu.instance(t, "Dog"), "describe"); got != vm.String("I say woof!") {
		t.Errorf("Dog describe = %s", vm.Describe(got))
	}
	// super is bound to the holder of the method, not the receiver's class
	if got := tu.send(t, tu.instance(t, "Puppy"), "describe"); got != vm.String("I say yip!") {
		t.Errorf("Puppy describe = %s", vm.Describe(got))
	}
}

func TestClosures(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Closure": `Closure = (
    ----
    makeCounter = ( | n | n := 0. ^[ n := n + 1 ] )
    counter = ( | c | c := self makeCounter. c value. c value. ^c value )
    adder: x = ( ^[:y | x + y ] )
    curry = ( ^(self adder: 10) value: 5 )
    nested = ( | a | a := 1. ^[:b | [:c | a + b + c ] ] value: 2 )
    nestedCall = ( ^(self nested) value: 3 )
)`,
	})

	tests := []struct {
		selector string
		want     vm.Value
	}{
		{"counter", vm.Integer(3)},
		{"curry", vm.Integer(15)},
		{"nestedCall", vm.Integer(6)},
	}
	for _, tc := range tests {
		if got := tu.interpret(t, "Closure", tc.selector); got != tc.want {
			t.Errorf("%s = %s, want %s", tc.selector, vm.Describe(got), vm.Describe(tc.want))
		}
	}
}

func TestNonLocalReturn(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Finder": `Finder = (
    ----
    find: x in: arr = ( arr do: [:e | e = x ifTrue: [ ^e * 10 ] ]. ^0 )
    outer = ( | r | r := self find: 2 in: #(1 2 3). ^r + 1 )
    missing = ( ^self find: 9 in: #(1 2 3) )
    loopExit = ( | i | i := 0. [ true ] whileTrue: [ i := i + 1. i = 5 ifTrue: [ ^i ] ] )
)`,
	})

	tests := []struct {
		selector string
		want     vm.Value
	}{
		{"outer", vm.Integer(21)},
		{"missing", vm.Integer(0)},
		{"loopExit", vm.Integer(5)},
	}
	for _, tc := range tests {
		if got := tu.interpret(t, "Finder", tc.selector); got != tc.want {
			t.Errorf("%s = %s, want %s", tc.selector, vm.Describe(got), vm.Describe(tc.want))
		}
	}
	if tu.Stats().NonLocalReturns == 0 {
		t.Error("no non-local returns counted")
	}
}

func TestEscapedBlock(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Escaper": `Escaper = (
    ----
    makeBlock = ( ^[ ^42 ] )
    run = ( | b | b := self makeBlock. ^b value )
    escapedBlock: block = ( ^Array with: #escaped with: block )
)`,
		"Plain": `Plain = (
    ----
    makeBlock = ( ^[ ^42 ] )
    run = ( ^self makeBlock value )
)`,
	})

	result := arrayOf(t, tu.interpret(t, "Escaper", "run"))
	if result[0] != vm.Intern("escaped") {
		t.Errorf("escapedBlock: answered %s", vm.Describe(result[0]))
	}
	if _, ok := result[1].(*vm.Block); !ok {
		t.Errorf("escapedBlock: argument = %s, want the block", vm.Describe(result[1]))
	}
	if tu.Stats().EscapedBlocks != 1 {
		t.Errorf("EscapedBlocks = %d, want 1", tu.Stats().EscapedBlocks)
	}

	tu.interpret(t, "Plain", "run")
	if !strings.Contains(tu.errOut.String(), "Block has escaped and cannot be executed") {
		t.Errorf("stderr = %q", tu.errOut)
	}
	if tu.LastExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", tu.LastExitCode())
	}
}

func TestEscapedBlockAfterError(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Stash": `Stash = (
    ----
    stash = ( system global: #kept put: [:x | ^x]. ^1 + nil )
    use = ( ^(system global: #kept) value: 42 )
    escapedBlock: block = ( ^#escaped )
)`,
	})

	if _, err := tu.Interpret("Stash", "stash"); !errors.Is(err, vm.ErrPrimitiveFailed) {
		t.Fatalf("err = %v, want ErrPrimitiveFailed", err)
	}
	if f := tu.Interpreter().Frame(); f != nil {
		t.Fatalf("frame %s left on the chain after a failure", f.Method())
	}

	// The home method of the stored block was abandoned, so ^x escapes.
	if got := tu.interpret(t, "Stash", "use"); got != vm.Intern("escaped") {
		t.Errorf("use = %s, want #escaped", vm.Describe(got))
	}
	if tu.Stats().EscapedBlocks != 1 {
		t.Errorf("EscapedBlocks = %d, want 1", tu.Stats().EscapedBlocks)
	}
}

func TestExitStopsInterpreter(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Quitter": `Quitter = ( ---- run = ( system exit: 3. ^#after ) )`,
	})
	tu.SetAvoidExit(false)

	_, err := tu.Interpret("Quitter", "run")
	var exit *vm.ExitError
	if !errors.As(err, &exit) || exit.Code != 3 {
		t.Fatalf("err = %v, want an exit with code 3", err)
	}
	if tu.LastExitCode() != 3 {
		t.Errorf("LastExitCode = %d, want 3", tu.LastExitCode())
	}
	if f := tu.Interpreter().Frame(); f != nil {
		t.Errorf("frame %s left on the chain after exit", f.Method())
	}

	tu.SetAvoidExit(true)
	if got := tu.interpret(t, "Quitter", "run"); got != vm.Intern("after") {
		t.Errorf("avoided exit answered %s, want #after", vm.Describe(got))
	}
}

func TestDoesNotUnderstand(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Proxy": `Proxy = (
    doesNotUnderstand: selector arguments: args = ( ^Array with: selector with: args )
    ----
    run = ( ^self new frobnicate: 3 with: 4 )
    unary = ( ^self new zork )
)`,
		"Strict": `Strict = ( ---- run = ( ^self new zork ) )`,
	})

	result := arrayOf(t, tu.interpret(t, "Proxy", "run"))
	if result[0] != vm.Intern("frobnicate:with:") {
		t.Errorf("selector = %s", vm.Describe(result[0]))
	}
	args := arrayOf(t, result[1])
	if len(args) != 2 || args[0] != vm.Integer(3) || args[1] != vm.Integer(4) {
		t.Errorf("arguments = %v, want [3 4]", args)
	}

	unary := arrayOf(t, tu.interpret(t, "Proxy", "unary"))
	if unary[0] != vm.Intern("zork") || len(arrayOf(t, unary[1])) != 0 {
		t.Errorf("unary DNU = %s %s", vm.Describe(unary[0]), vm.Describe(unary[1]))
	}

	tu.interpret(t, "Strict", "run")
	if !strings.Contains(tu.errOut.String(), "Method zork not found in class Strict") {
		t.Errorf("stderr = %q", tu.errOut)
	}
	if tu.Stats().DoesNotUnderstand < 3 {
		t.Errorf("DoesNotUnderstand = %d, want at least 3", tu.Stats().DoesNotUnderstand)
	}
}

func TestUnknownGlobal(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Lazy": `Lazy = (
    ----
    run = ( ^Zork )
    unknownGlobal: name = ( ^name )
)`,
		"Loader": `Loader = ( ---- run = ( ^Helper new answer ) )`,
		"Helper": `Helper = ( answer = ( ^7 ) )`,
	})

	if got := tu.interpret(t, "Lazy", "run"); got != vm.Intern("Zork") {
		t.Errorf("unknownGlobal: answered %s, want #Zork", vm.Describe(got))
	}
	if got := tu.interpret(t, "Loader", "run"); got != vm.Integer(7) {
		t.Errorf("lazily loaded Helper answered %s, want 7", vm.Describe(got))
	}
	if _, ok := tu.Global(vm.Intern("Helper")); !ok {
		t.Error("Helper was not bound as a global after loading")
	}
	if tu.Stats().UnknownGlobals < 2 {
		t.Errorf("UnknownGlobals = %d, want at least 2", tu.Stats().UnknownGlobals)
	}
}

func TestNoFallback(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Bare": `Bare = nil ( run = ( ^self zork ) )`,
	})
	_, err := tu.Send(tu.instance(t, "Bare"), "run")
	if !errors.Is(err, vm.ErrNoFallback) {
		t.Errorf("err = %v, want ErrNoFallback", err)
	}
}

func TestPrimitiveFailure(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Bad": `Bad = ( ---- run = ( ^1 + 'one' ) ok = ( ^1 + 1 ) )`,
	})
	_, err := tu.Interpret("Bad", "run")
	if !errors.Is(err, vm.ErrPrimitiveFailed) {
		t.Fatalf("err = %v, want ErrPrimitiveFailed", err)
	}
	if got := tu.interpret(t, "Bad", "ok"); got != vm.Integer(2) {
		t.Errorf("universe unusable after a failure: ok = %s", vm.Describe(got))
	}
}

func TestRegisterPrimitives(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Native": `Native = (
    answer = primitive
    ----
    run = ( ^self new answer + 1 )
)`,
	})

	tu.RegisterPrimitives("Native", func(c *vm.Class) {
		c.AddMethod(vm.NewPrimitive(vm.Intern("answer"), func(interp *vm.Interpreter, f *vm.Frame) error {
			f.Pop()
			f.Push(vm.Integer(41))
			return nil
		}))
	})

	if got := tu.interpret(t, "Native", "run"); got != vm.Integer(42) {
		t.Errorf("run = %s, want 42", vm.Describe(got))
	}
}

func TestPolymorphicSendSite(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"A":    `A = ( tag = ( ^1 ) )`,
		"B":    `B = ( tag = ( ^2 ) )`,
		"C":    `C = B ( tag = ( ^super tag + 1 ) )`,
		"Poly": `Poly = ( ---- run = ( ^(Array with: A new with: B new with: C new) collect: [:e | e tag ] ) )`,
	})

	for round := 0; round < 3; round++ {
		got := arrayOf(t, tu.interpret(t, "Poly", "run"))
		for i, want := range []vm.Value{vm.Integer(1), vm.Integer(2), vm.Integer(3)} {
			if got[i] != want {
				t.Errorf("round %d: element %d = %s, want %s", round, i, vm.Describe(got[i]), vm.Describe(want))
			}
		}
	}

	poly, _ := tu.LoadClass(vm.Intern("Poly"))
	run := poly.Class().LookupLocal(vm.Intern("run")).(*vm.Method)
	var block *vm.Method
	for _, lit := range run.Literals() {
		if m, ok := lit.(*vm.Method); ok {
			block = m
		}
	}
	if block == nil {
		t.Fatal("collect: block not found")
	}
	var site int
	for _, in := range vm.Decode(block.Bytecode()) {
		if in.Op == vm.OpSend {
			site = in.Offset
		}
	}

	a, _ := tu.LoadClass(vm.Intern("A"))
	b, _ := tu.LoadClass(vm.Intern("B"))
	if c, inv := block.CacheEntry(site); c != a || inv != a.Lookup(vm.Intern("tag")) {
		t.Errorf("first slot = (%v, %v), want A>>tag", c, inv)
	}
	if c, inv := block.CacheEntry(site + 1); c != b || inv != b.Lookup(vm.Intern("tag")) {
		t.Errorf("second slot = (%v, %v), want B>>tag", c, inv)
	}
	if hits, _ := block.CacheStats(); hits == 0 {
		t.Error("no cache hits at the tag send site")
	}
}

func TestStackDepthIsSound(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Work": `Work = (
    ----
    run = (
        | arr total |
        arr := Array new: 10 withAll: 3.
        total := arr inject: 0 into: [:acc :e | acc + (e * (e max: 2)) ].
        #(1 2 3) do: [:e | total := total + e ].
        ^(self fib: 10) + total + (self find: 3)
    )
    fib: n = ( n < 2 ifTrue: [ ^n ]. ^(self fib: n - 1) + (self fib: n - 2) )
    find: x = ( #(1 2 3 4) do: [:e | e = x ifTrue: [ ^e ] ]. ^nil )
)`,
	})

	frames := 0
	tu.Interpreter().SetFrameObserver(func(f *vm.Frame) {
		frames++
		if f.PeakDepth() > f.Method().MaxStack() {
			t.Errorf("%s peaked at %d, computed depth %d", f.Method(), f.PeakDepth(), f.Method().MaxStack())
		}
	})
	defer tu.Interpreter().SetFrameObserver(nil)

	if got := tu.interpret(t, "Work", "run"); got != vm.Integer(55+90+6+3) {
		t.Errorf("run = %s, want %d", vm.Describe(got), 55+90+6+3)
	}
	if frames < 100 {
		t.Errorf("observed only %d frames", frames)
	}
}

func TestInitializeRunsApplication(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Hello": `Hello = ( run = ( 'Hello, World' println ) )`,
		"Echo":  `Echo = ( run: args = ( args do: [:a | system printString: a. system printString: ' ' ] ) )`,
	})

	if _, err := tu.Initialize([]string{"Hello"}); err != nil {
		t.Fatal(err)
	}
	if tu.out.String() != "Hello, World\n" {
		t.Errorf("stdout = %q", tu.out)
	}

	tu.out.Reset()
	if _, err := tu.Initialize([]string{"Echo", "a", "b"}); err != nil {
		t.Fatal(err)
	}
	if tu.out.String() != "Echo a b " {
		t.Errorf("stdout = %q", tu.out)
	}
}

func TestEval(t *testing.T) {
	tu := newTestUniverse(t, nil)

	first, err := tu.Eval("3 + 4.", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tu.Eval("it * 2", first)
	if err != nil {
		t.Fatal(err)
	}
	if second != vm.Integer(14) {
		t.Errorf("it * 2 = %s, want 14", vm.Describe(second))
	}
	s, err := tu.PrintString(vm.NewArrayOf(vm.Integer(1), vm.String("x")))
	if err != nil {
		t.Fatal(err)
	}
	if s != "#(1 'x' )" {
		t.Errorf("printString = %q", s)
	}

	if _, err := tu.Eval("3 +", nil); err == nil {
		t.Error("malformed statement compiled")
	}
}

func TestDumpBytecodes(t *testing.T) {
	tu := newTestUniverse(t, map[string]string{
		"Dumped": `Dumped = ( answer = ( ^42 ) )`,
	})
	tu.SetDumpBytecodes(true)
	tu.instance(t, "Dumped")

	dump := tu.errOut.String()
	for _, want := range []string{"Dumped>>answer", "PUSH_CONSTANT", "; 42", "RETURN_LOCAL"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump lacks %q:\n%s", want, dump)
		}
	}
}
