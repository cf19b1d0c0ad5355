package vm

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Universe: The object system
// ---------------------------------------------------------------------------

// Universe owns one object system: its classes, globals and interpreter.
// Symbols are shared process-wide; nothing else is shared between
// universes.
type Universe struct {
	ID string

	log      commonlog.Logger
	interp   *Interpreter
	compiler ClassCompiler

	classPath []ClassPathEntry
	useCore   bool
	dump      bool

	globals    map[*Symbol]Value
	primitives map[string]func(c *Class)

	out    io.Writer
	errOut io.Writer

	avoidExit bool
	exitCode  int

	start        time.Time
	initialized  bool
	shellCounter int

	// Well-known objects
	Nil          *Object
	True         *Object
	False        *Object
	SystemObject *Object

	// Well-known classes
	ObjectClass    *Class
	ClassClass     *Class
	MetaclassClass *Class
	NilClass       *Class
	ArrayClass     *Class
	MethodClass    *Class
	StringClass    *Class
	SymbolClass    *Class
	IntegerClass   *Class
	PrimitiveClass *Class
	DoubleClass    *Class
	BlockClass     *Class
	TrueClass      *Class
	FalseClass     *Class
	SystemClass    *Class

	// Selectors the interpreter sends on its own
	symBootstrap         *Symbol
	symInitialize        *Symbol
	symDoesNotUnderstand *Symbol
	symUnknownGlobal     *Symbol
	symEscapedBlock      *Symbol
	symPrintString       *Symbol
}

// NewUniverse creates a universe with an empty classpath (plus the embedded
// core library) and no compiler. Install a compiler with UseCompiler before
// initializing it.
func NewUniverse() *Universe {
	u := &Universe{
		ID:        uuid.NewString(),
		log:       commonlog.GetLogger("som.vm"),
		useCore:   true,
		globals:   make(map[*Symbol]Value),
		out:       os.Stdout,
		errOut:    os.Stderr,
		start:     time.Now(),
		Nil:       &Object{},
		classPath: nil,

		symBootstrap:         Intern("bootstrap"),
		symInitialize:        Intern("initialize:"),
		symDoesNotUnderstand: Intern("doesNotUnderstand:arguments:"),
		symUnknownGlobal:     Intern("unknownGlobal:"),
		symEscapedBlock:      Intern("escapedBlock:"),
		symPrintString:       Intern("printString"),
	}
	u.interp = newInterpreter(u)
	u.registerPrimitives()
	return u
}

// UseCompiler installs the class compiler backend.
func (u *Universe) UseCompiler(c ClassCompiler) { u.compiler = c }

// SetClassPath replaces the user classpath with the given directories.
func (u *Universe) SetClassPath(dirs ...string) {
	u.classPath = u.classPath[:0]
	for _, d := range dirs {
		u.classPath = append(u.classPath, DirEntry(d))
	}
}

// PrependClassPath puts entry in front of the user classpath.
func (u *Universe) PrependClassPath(entry ClassPathEntry) {
	u.classPath = append([]ClassPathEntry{entry}, u.classPath...)
}

// UseCoreLibrary controls whether the embedded core library is searched
// after the user classpath. It is on by default.
func (u *Universe) UseCoreLibrary(on bool) { u.useCore = on }

// ClassPath returns the effective classpath in search order.
func (u *Universe) ClassPath() []ClassPathEntry {
	entries := append([]ClassPathEntry(nil), u.classPath...)
	if u.useCore {
		entries = append(entries, CoreEntry())
	}
	return entries
}

// SetDumpBytecodes enables disassembly of every class as it is loaded.
func (u *Universe) SetDumpBytecodes(on bool) { u.dump = on }

// SetOutput redirects the program's standard and error output.
func (u *Universe) SetOutput(out, errOut io.Writer) {
	u.out = out
	u.errOut = errOut
}

// Output returns the writer the program prints to.
func (u *Universe) Output() io.Writer { return u.out }

// ErrorOutput returns the writer the program prints errors to.
func (u *Universe) ErrorOutput() io.Writer { return u.errOut }

// SetAvoidExit makes System>>exit: record the code and continue instead of
// stopping the interpreter.
func (u *Universe) SetAvoidExit(on bool) { u.avoidExit = on }

// LastExitCode returns the code of the last exit request.
func (u *Universe) LastExitCode() int { return u.exitCode }

// ExitError stops the interpreter when the running program asks to exit.
// The embedder decides what to do with the code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// Exit handles an exit request from the running program. Unless exits are
// avoided, it answers an *ExitError that unwinds the interpreter.
func (u *Universe) Exit(code int) error {
	u.exitCode = code
	if u.avoidExit {
		return nil
	}
	return &ExitError{Code: code}
}

// Interpreter returns the universe's interpreter.
func (u *Universe) Interpreter() *Interpreter { return u.interp }

// Stats returns a snapshot of the interpreter counters.
func (u *Universe) Stats() Stats { return u.interp.stats }

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// Global returns the global bound to name.
func (u *Universe) Global(name *Symbol) (Value, bool) {
	v, ok := u.globals[name]
	return v, ok
}

// SetGlobal binds name to v.
func (u *Universe) SetGlobal(name *Symbol, v Value) {
	u.globals[name] = v
}

// ---------------------------------------------------------------------------
// Classes of values
// ---------------------------------------------------------------------------

// ClassOf returns the class of any value.
func (u *Universe) ClassOf(v Value) *Class {
	switch v := v.(type) {
	case *Object:
		return v.class
	case Integer, *BigInteger:
		return u.IntegerClass
	case Double:
		return u.DoubleClass
	case String:
		return u.StringClass
	case *Symbol:
		return u.SymbolClass
	case *Array:
		return u.ArrayClass
	case *Block:
		return v.class
	case *Class:
		return v.class
	case *Method:
		return u.MethodClass
	case *Primitive:
		return u.PrimitiveClass
	}
	panic(fmt.Sprintf("vm: no class for %T", v))
}

// Bool converts a Go bool to true or false.
func (u *Universe) Bool(b bool) Value {
	if b {
		return u.True
	}
	return u.False
}

// NewInstance allocates an instance of class.
func (u *Universe) NewInstance(class *Class) *Object {
	return NewObject(class, u.Nil)
}

// NewStringArray converts Go strings to an Array of Strings.
func (u *Universe) NewStringArray(strs []string) *Array {
	a := NewArray(len(strs), u.Nil)
	for i, s := range strs {
		a.AtPut(i, String(s))
	}
	return a
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

// newSystemClass creates a skeleton class whose metaclass is an instance
// of Metaclass.
func (u *Universe) newSystemClass() *Class {
	c := NewClass(NewClass(u.MetaclassClass))
	return c
}

// newMetaclassClass creates Metaclass, whose metaclass's class is
// Metaclass itself.
func newMetaclassClass() *Class {
	c := NewClass(nil)
	meta := NewClass(c)
	c.class = meta
	return c
}

func (u *Universe) initializeSystemClass(c, super *Class, name string) {
	if super != nil {
		c.superclass = super
		c.class.superclass = super.class
	} else {
		c.class.superclass = u.ClassClass
	}
	c.name = Intern(name)
	c.class.name = Intern(name + " class")
	u.SetGlobal(c.name, c)
}

// InitializeObjectSystem bootstraps the object system if needed: it builds the
// skeleton classes, fills them from source, loads Block, True, False and
// System, and binds the well-known globals. It answers the system object.
func (u *Universe) InitializeObjectSystem() (*Object, error) {
	if u.initialized {
		return u.SystemObject, nil
	}

	u.MetaclassClass = newMetaclassClass()
	u.ObjectClass = u.newSystemClass()
	u.NilClass = u.newSystemClass()
	u.ClassClass = u.newSystemClass()
	u.ArrayClass = u.newSystemClass()
	u.SymbolClass = u.newSystemClass()
	u.MethodClass = u.newSystemClass()
	u.IntegerClass = u.newSystemClass()
	u.PrimitiveClass = u.newSystemClass()
	u.StringClass = u.newSystemClass()
	u.DoubleClass = u.newSystemClass()

	u.Nil.class = u.NilClass

	u.initializeSystemClass(u.ObjectClass, nil, "Object")
	u.initializeSystemClass(u.ClassClass, u.ObjectClass, "Class")
	u.initializeSystemClass(u.MetaclassClass, u.ClassClass, "Metaclass")
	u.initializeSystemClass(u.NilClass, u.ObjectClass, "Nil")
	u.initializeSystemClass(u.ArrayClass, u.ObjectClass, "Array")
	u.initializeSystemClass(u.MethodClass, u.ArrayClass, "Method")
	u.initializeSystemClass(u.StringClass, u.ObjectClass, "String")
	u.initializeSystemClass(u.SymbolClass, u.StringClass, "Symbol")
	u.initializeSystemClass(u.IntegerClass, u.ObjectClass, "Integer")
	u.initializeSystemClass(u.PrimitiveClass, u.ObjectClass, "Primitive")
	u.initializeSystemClass(u.DoubleClass, u.ObjectClass, "Double")

	for _, c := range []*Class{
		u.ObjectClass, u.ClassClass, u.MetaclassClass, u.NilClass,
		u.ArrayClass, u.MethodClass, u.SymbolClass, u.IntegerClass,
		u.PrimitiveClass, u.StringClass, u.DoubleClass,
	} {
		if err := u.loadSystemClass(c); err != nil {
			return nil, err
		}
	}

	var err error
	if u.BlockClass, err = u.mustLoadClass("Block"); err != nil {
		return nil, err
	}
	if u.TrueClass, err = u.mustLoadClass("True"); err != nil {
		return nil, err
	}
	u.True = u.NewInstance(u.TrueClass)
	if u.FalseClass, err = u.mustLoadClass("False"); err != nil {
		return nil, err
	}
	u.False = u.NewInstance(u.FalseClass)
	if u.SystemClass, err = u.mustLoadClass("System"); err != nil {
		return nil, err
	}
	u.SystemObject = u.NewInstance(u.SystemClass)

	u.SetGlobal(Intern("nil"), u.Nil)
	u.SetGlobal(Intern("true"), u.True)
	u.SetGlobal(Intern("false"), u.False)
	u.SetGlobal(Intern("system"), u.SystemObject)
	u.SetGlobal(Intern("System"), u.SystemClass)
	u.SetGlobal(Intern("Block"), u.BlockClass)

	u.initialized = true
	u.log.Debug("object system initialized", "universe", u.ID, "globals", len(u.globals))
	return u.SystemObject, nil
}

func (u *Universe) loadSystemClass(c *Class) error {
	result, err := u.loadClass(c.name, c)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: system class %s", ErrClassNotFound, c.name.name)
	}
	if result.HasPrimitives() {
		u.installPrimitives(result)
	}
	return nil
}

func (u *Universe) mustLoadClass(name string) (*Class, error) {
	c, err := u.LoadClass(Intern(name))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Class loading
// ---------------------------------------------------------------------------

// LoadClass returns the class bound to the global name, loading it from the
// classpath if it is not bound yet. A class that is on no classpath root
// answers (nil, nil).
func (u *Universe) LoadClass(name *Symbol) (*Class, error) {
	if g, ok := u.globals[name]; ok {
		c, isClass := g.(*Class)
		if !isClass {
			return nil, fmt.Errorf("global %s is not a class", name.name)
		}
		return c, nil
	}
	c, err := u.loadClass(name, nil)
	if err != nil || c == nil {
		return nil, err
	}
	if c.HasPrimitives() {
		u.installPrimitives(c)
	}
	u.SetGlobal(name, c)
	return c, nil
}

func (u *Universe) loadClass(name *Symbol, skeleton *Class) (*Class, error) {
	if u.compiler == nil {
		return nil, ErrNoCompiler
	}
	for _, entry := range u.ClassPath() {
		c, err := u.compiler.CompileClass(u, entry, name.name, skeleton)
		if err != nil {
			return nil, fmt.Errorf("loading class %s: %w", name.name, err)
		}
		if c == nil {
			continue
		}
		u.finishClass(c)
		u.log.Info("loaded class", "universe", u.ID, "class", name.name, "root", entry.Name)
		return c, nil
	}
	return nil, nil
}

// finishClass allocates class-side field storage and dumps the class when
// bytecode dumping is on.
func (u *Universe) finishClass(c *Class) {
	c.allocateFields(u.Nil)
	u.interp.stats.ClassesLoaded++
	if u.dump {
		DumpClass(u.errOut, c.class)
		DumpClass(u.errOut, c)
	}
}

// blockClassFor returns the class for blocks taking numArgs arguments,
// counting the block itself, loading it and installing its evaluation
// primitive on first use.
func (u *Universe) blockClassFor(numArgs int) (*Class, error) {
	name := Intern(fmt.Sprintf("Block%d", numArgs))
	if g, ok := u.globals[name]; ok {
		return g.(*Class), nil
	}
	c, err := u.loadClass(name, nil)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name.name)
	}
	c.AddMethod(blockEvaluationPrimitive(numArgs))
	u.SetGlobal(name, c)
	return c, nil
}

// ---------------------------------------------------------------------------
// Running programs
// ---------------------------------------------------------------------------

// Initialize bootstraps the object system and sends initialize: to the
// system object with args as an Array of Strings.
func (u *Universe) Initialize(args []string) (Value, error) {
	system, err := u.InitializeObjectSystem()
	if err != nil {
		return nil, err
	}
	inv := u.SystemClass.Lookup(u.symInitialize)
	if inv == nil {
		return nil, fmt.Errorf("System does not implement %s", u.symInitialize)
	}
	return u.interp.invokeFromGo(system, inv, []Value{u.NewStringArray(args)})
}

// Interpret bootstraps the object system, loads className and sends the
// class-side selector to it.
func (u *Universe) Interpret(className, selector string) (Value, error) {
	if _, err := u.InitializeObjectSystem(); err != nil {
		return nil, err
	}
	class, err := u.mustLoadClass(className)
	if err != nil {
		return nil, err
	}
	inv := class.class.Lookup(Intern(selector))
	if inv == nil {
		return nil, fmt.Errorf("lookup of %s>>#%s failed", className, selector)
	}
	return u.interp.invokeFromGo(class, inv, nil)
}

// Send sends selector to receiver from Go and answers the result. An
// unknown selector is routed through doesNotUnderstand:arguments:.
func (u *Universe) Send(receiver Value, selector string, args ...Value) (Value, error) {
	sel := Intern(selector)
	if inv := u.ClassOf(receiver).Lookup(sel); inv != nil {
		return u.interp.invokeFromGo(receiver, inv, args)
	}
	dnu := u.ClassOf(receiver).Lookup(u.symDoesNotUnderstand)
	if dnu == nil {
		return nil, fmt.Errorf("%w: %s does not understand %s", ErrNoFallback, Describe(receiver), sel)
	}
	return u.interp.invokeFromGo(receiver, dnu, []Value{sel, NewArrayOf(append([]Value(nil), args...)...)})
}

// PrintString answers the text of receiver printString.
func (u *Universe) PrintString(v Value) (string, error) {
	result, err := u.Send(v, u.symPrintString.name)
	if err != nil {
		return "", err
	}
	switch s := result.(type) {
	case String:
		return string(s), nil
	case *Symbol:
		return s.name, nil
	}
	return Describe(result), nil
}

// Eval compiles statement as the body of a fresh shell class and runs it.
// The variable it holds the result of the previous evaluation.
func (u *Universe) Eval(statement string, it Value) (Value, error) {
	if _, err := u.InitializeObjectSystem(); err != nil {
		return nil, err
	}
	if u.compiler == nil {
		return nil, ErrNoCompiler
	}
	if it == nil {
		it = u.Nil
	}
	statement = strings.TrimRight(strings.TrimSpace(statement), ".")
	u.shellCounter++
	source := fmt.Sprintf("Shell%d = ( run: it = ( | tmp | tmp := ( %s ). ^tmp ) )", u.shellCounter, statement)
	class, err := u.compiler.CompileClassString(u, source, nil)
	if err != nil {
		return nil, err
	}
	u.finishClass(class)
	return u.Send(u.NewInstance(class), "run:", it)
}
