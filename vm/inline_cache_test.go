package vm

import (
	"testing"
)

func testClass(name string, selectors ...string) *Class {
	c := NewClass(nil)
	c.SetName(Intern(name))
	var methods []Invokable
	for _, sel := range selectors {
		methods = append(methods, NewEmptyPrimitive(Intern(sel)))
	}
	c.SetMethods(methods)
	return c
}

func TestInlineCacheMonomorphic(t *testing.T) {
	ic := newInlineCache(4)
	class := testClass("A", "foo")
	foo := Intern("foo")

	inv, hit := ic.lookup(0, class, foo)
	if hit {
		t.Error("first lookup reported a hit")
	}
	if inv != class.LookupLocal(foo) {
		t.Errorf("got %v, want A>>foo", inv)
	}

	inv, hit = ic.lookup(0, class, foo)
	if !hit || inv != class.LookupLocal(foo) {
		t.Errorf("second lookup = (%v, %v), want a hit on A>>foo", inv, hit)
	}
	if ic.hits != 1 || ic.misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1 and 1", ic.hits, ic.misses)
	}
}

func TestInlineCacheBimorphic(t *testing.T) {
	ic := newInlineCache(4)
	a := testClass("A", "foo")
	b := testClass("B", "foo")
	foo := Intern("foo")

	ic.lookup(0, a, foo)
	ic.lookup(0, b, foo)

	if c, inv := ic.entry(0); c != a || inv != a.LookupLocal(foo) {
		t.Errorf("slot 0 = (%v, %v), want A", c, inv)
	}
	if c, inv := ic.entry(1); c != b || inv != b.LookupLocal(foo) {
		t.Errorf("slot 1 = (%v, %v), want B", c, inv)
	}

	for _, class := range []*Class{a, b, a, b} {
		inv, hit := ic.lookup(0, class, foo)
		if !hit {
			t.Errorf("%s missed a filled site", class.Name().Name())
		}
		if inv != class.LookupLocal(foo) {
			t.Errorf("%s dispatched to %v", class.Name().Name(), inv)
		}
	}
}

func TestInlineCacheMegamorphicFallsBack(t *testing.T) {
	ic := newInlineCache(4)
	foo := Intern("foo")
	classes := []*Class{testClass("A", "foo"), testClass("B", "foo"), testClass("C", "foo")}

	for round := 0; round < 3; round++ {
		for _, class := range classes {
			inv, _ := ic.lookup(0, class, foo)
			if inv != class.Lookup(foo) {
				t.Fatalf("round %d: %s dispatched to %v", round, class.Name().Name(), inv)
			}
		}
	}

	if c, _ := ic.entry(0); c != classes[0] {
		t.Errorf("slot 0 was replaced by %v", c)
	}
	if c, _ := ic.entry(1); c != classes[1] {
		t.Errorf("slot 1 was replaced by %v", c)
	}
}

func TestInlineCacheInheritedAndMissing(t *testing.T) {
	ic := newInlineCache(4)
	super := testClass("Super", "foo")
	sub := testClass("Sub")
	sub.SetSuperclass(super)

	inv, _ := ic.lookup(0, sub, Intern("foo"))
	if inv != super.LookupLocal(Intern("foo")) {
		t.Errorf("inherited lookup = %v, want Super>>foo", inv)
	}

	inv, _ = ic.lookup(2, sub, Intern("bar"))
	if inv != nil {
		t.Errorf("missing selector = %v, want nil", inv)
	}
	if inv, hit := ic.lookup(2, sub, Intern("bar")); !hit || inv != nil {
		t.Errorf("cached miss = (%v, %v), want a hit on nil", inv, hit)
	}
}
