package vm

// Inline Caching for Method Dispatch
//
// Each method carries one (class, invokable) slot per bytecode offset. A
// send at offset bci owns slot bci, and may also use slot bci+1: that offset
// holds the send's selector operand, so no other instruction can claim it.
// This gives every send site two entries, enough for the common monomorphic
// and bimorphic cases. Slots only ever go from empty to populated; a site
// that sees a third class falls back to a full lookup on every miss.

// inlineCache holds the per-offset slots of one method.
type inlineCache struct {
	classes    []*Class
	invokables []Invokable

	// Statistics for profiling
	hits   uint64
	misses uint64
}

func newInlineCache(size int) inlineCache {
	return inlineCache{
		classes:    make([]*Class, size),
		invokables: make([]Invokable, size),
	}
}

// lookup resolves selector for receiverClass at the send site bci. The
// second result reports whether one of the site's slots answered.
func (ic *inlineCache) lookup(bci int, receiverClass *Class, selector *Symbol) (Invokable, bool) {
	cached := ic.classes[bci]
	if cached == receiverClass {
		ic.hits++
		return ic.invokables[bci], true
	}
	if cached == nil {
		inv := receiverClass.Lookup(selector)
		ic.fill(bci, receiverClass, inv)
		ic.misses++
		return inv, false
	}

	second := bci + 1
	cached = ic.classes[second]
	if cached == receiverClass {
		ic.hits++
		return ic.invokables[second], true
	}
	inv := receiverClass.Lookup(selector)
	if cached == nil {
		ic.fill(second, receiverClass, inv)
	}
	ic.misses++
	return inv, false
}

func (ic *inlineCache) fill(slot int, class *Class, inv Invokable) {
	ic.classes[slot] = class
	ic.invokables[slot] = inv
}

// entry returns the contents of one slot.
func (ic *inlineCache) entry(slot int) (*Class, Invokable) {
	return ic.classes[slot], ic.invokables[slot]
}
