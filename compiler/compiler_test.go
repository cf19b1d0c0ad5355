package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/chazu/som/vm"
)

func memEntry(files map[string]string) vm.ClassPathEntry {
	fsys := fstest.MapFS{}
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return vm.ClassPathEntry{Name: "mem", FS: fsys}
}

func TestCompileClassFromRoot(t *testing.T) {
	root := memEntry(map[string]string{
		"Counter.som": `Counter = nil ( | count | increment = ( count := count + 1 ) )`,
	})
	u := NewUniverse()

	class, err := CompileClass(u, root, "Counter", nil)
	if err != nil {
		t.Fatalf("CompileClass: %v", err)
	}
	if class.Name() != vm.Intern("Counter") {
		t.Errorf("name = %v", class.Name())
	}
	if class.LookupLocal(vm.Intern("increment")) == nil {
		t.Error("increment not compiled")
	}
}

func TestCompileClassMissingFile(t *testing.T) {
	class, err := CompileClass(NewUniverse(), memEntry(nil), "Nowhere", nil)
	if err != nil || class != nil {
		t.Errorf("CompileClass = (%v, %v), want (nil, nil)", class, err)
	}
}

func TestCompileClassNameMismatch(t *testing.T) {
	root := memEntry(map[string]string{"Foo.som": `Bar = nil ( )`})
	_, err := CompileClass(NewUniverse(), root, "Foo", nil)
	if !errors.Is(err, ErrClassNameMismatch) {
		t.Errorf("err = %v, want ErrClassNameMismatch", err)
	}
}

func TestCompileClassErrorNamesFile(t *testing.T) {
	root := memEntry(map[string]string{"Broken.som": "Broken = nil (\n  x = ( ^ )\n)"})
	_, err := CompileClass(NewUniverse(), root, "Broken", nil)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want a *ParseError", err)
	}
	if perr.File != "mem/Broken.som" || perr.Line != 2 {
		t.Errorf("location = %s:%d, want mem/Broken.som:2", perr.File, perr.Line)
	}
}

func TestLoadSubclassThroughClassPath(t *testing.T) {
	root := memEntry(map[string]string{
		"Base.som": `Base = nil ( | x | ---- | instances | )`,
		"Sub.som":  `Sub = Base ( | y | getY = ( ^y ) setX: v = ( x := v ) )`,
	})
	u := NewUniverse()
	u.UseCoreLibrary(false)
	u.PrependClassPath(root)

	sub, err := u.LoadClass(vm.Intern("Sub"))
	if err != nil {
		t.Fatalf("LoadClass: %v", err)
	}
	if sub.NumInstanceFields() != 2 {
		t.Fatalf("Sub fields = %d, want 2", sub.NumInstanceFields())
	}
	if sub.Class().NumInstanceFields() != 1 {
		t.Errorf("Sub class-side fields = %d, want 1", sub.Class().NumInstanceFields())
	}
	base, ok := u.Global(vm.Intern("Base"))
	if !ok || sub.Superclass() != base {
		t.Errorf("superclass = %v, want the loaded Base", sub.Superclass())
	}
	checkBytecode(t, lookupMethod(t, sub, "getY"), listing(t, "PUSH_FIELD 1", "RETURN_LOCAL"))
	checkBytecode(t, lookupMethod(t, sub, "setX:"), listing(t,
		"PUSH_ARGUMENT 1 0", "DUP", "POP_FIELD 0", "POP", "PUSH_ARGUMENT 0 0", "RETURN_LOCAL"))
}

func TestMissingSuperclass(t *testing.T) {
	u := NewUniverse()
	u.UseCoreLibrary(false)

	_, err := CompileClassString(u, `Orphan = Zork ( )`, nil)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want a *ParseError", err)
	}
	if perr.Msg != "Was not able to load super class: Zork" {
		t.Errorf("Msg = %q", perr.Msg)
	}
}

func TestBrokenSuperclassIsCause(t *testing.T) {
	root := memEntry(map[string]string{"Bad.som": `Bad = nil ( x = ( ^) )`})
	u := NewUniverse()
	u.UseCoreLibrary(false)
	u.PrependClassPath(root)

	_, err := CompileClassString(u, `Child = Bad ( )`, nil)
	var outer *ParseError
	if !errors.As(err, &outer) {
		t.Fatalf("err = %v, want a *ParseError", err)
	}
	if outer.Cause == nil {
		t.Fatal("Cause not set")
	}
	var inner *ParseError
	if !errors.As(outer.Cause, &inner) || inner.File != "mem/Bad.som" {
		t.Errorf("Cause = %v, want the ParseError from mem/Bad.som", outer.Cause)
	}
}

func TestCompileClassFromDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `Hello = nil ( greet = ( ^'hello' ) )`
	if err := os.WriteFile(filepath.Join(dir, "Hello.som"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	u := NewUniverse()
	u.UseCoreLibrary(false)
	u.SetClassPath(dir)

	class, err := u.LoadClass(vm.Intern("Hello"))
	if err != nil || class == nil {
		t.Fatalf("LoadClass = (%v, %v)", class, err)
	}
	m := lookupMethod(t, class, "greet")
	if m.Literal(0) != vm.String("hello") {
		t.Errorf("literal = %s", vm.Describe(m.Literal(0)))
	}
}

func TestSystemClassSkeleton(t *testing.T) {
	skeletonMeta := vm.NewClass(nil)
	skeleton := vm.NewClass(skeletonMeta)
	skeleton.SetName(vm.Intern("Thing"))

	class, err := CompileClassString(NewUniverse(), `Thing = nil ( | a | size = ( ^0 ) ---- new = primitive )`, skeleton)
	if err != nil {
		t.Fatal(err)
	}
	if class != skeleton {
		t.Fatal("skeleton was not filled in place")
	}
	if skeleton.NumInstanceFields() != 1 || skeleton.LookupLocal(vm.Intern("size")) == nil {
		t.Error("instance side not installed")
	}
	if skeletonMeta.LookupLocal(vm.Intern("new")) == nil {
		t.Error("class side not installed")
	}
}
