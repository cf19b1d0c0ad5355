package vm

// SetFrameObserver installs fn to be called with every frame as it is
// popped.
func (i *Interpreter) SetFrameObserver(fn func(*Frame)) { i.observer = fn }

// CacheEntry returns one inline cache slot of m.
func (m *Method) CacheEntry(slot int) (*Class, Invokable) { return m.cache.entry(slot) }
