package vm

import (
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Symbol: Interned selector and name text
// ---------------------------------------------------------------------------

// Symbol is an interned string. Two symbols with the same text are the same
// pointer, so symbols compare with ==.
type Symbol struct {
	name    string
	numArgs int
}

// Name returns the symbol text.
func (s *Symbol) Name() string { return s.name }

// NumSignatureArguments returns the number of arguments a message with this
// selector carries, counting the receiver.
func (s *Symbol) NumSignatureArguments() int { return s.numArgs }

func (s *Symbol) String() string { return "#" + s.name }

func signatureArguments(name string) int {
	if name != "" && isOperatorChar(name[0]) {
		return 2
	}
	return strings.Count(name, ":") + 1
}

func isOperatorChar(c byte) bool {
	switch c {
	case '~', '&', '|', '*', '/', '\\', '+', '-', '=', '>', '<', ',', '@', '%':
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// SymbolTable: Process-wide interning
// ---------------------------------------------------------------------------

// SymbolTable interns symbol strings. It is safe for concurrent use, so
// several universes can share one table.
type SymbolTable struct {
	mu     sync.RWMutex
	byName map[string]*Symbol
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol, 256)}
}

// Intern returns the symbol for name, creating it if needed.
func (st *SymbolTable) Intern(name string) *Symbol {
	// Fast path: read-only lookup
	st.mu.RLock()
	if sym, ok := st.byName[name]; ok {
		st.mu.RUnlock()
		return sym
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if sym, ok := st.byName[name]; ok {
		return sym
	}
	sym := &Symbol{name: name, numArgs: signatureArguments(name)}
	st.byName[name] = sym
	return sym
}

// Lookup returns the symbol for name if it has been interned.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sym, ok := st.byName[name]
	return sym, ok
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byName)
}

var (
	symbolsOnce sync.Once
	symbols     *SymbolTable
)

// Symbols returns the process-wide symbol table.
func Symbols() *SymbolTable {
	symbolsOnce.Do(func() { symbols = NewSymbolTable() })
	return symbols
}

// Intern interns name in the process-wide symbol table.
func Intern(name string) *Symbol {
	return Symbols().Intern(name)
}
