package vm

import (
	"errors"
	"io/fs"
	"os"

	"github.com/chazu/som/corelib"
)

// ErrNoCompiler is returned when a class must be loaded but no compiler
// backend has been installed with UseCompiler.
var ErrNoCompiler = errors.New("no class compiler installed")

// ErrClassNotFound is returned when a class is not on any classpath root.
var ErrClassNotFound = errors.New("class not found")

// ---------------------------------------------------------------------------
// Class loading backend
// ---------------------------------------------------------------------------

// ClassCompiler compiles class source into a universe. It is injected with
// UseCompiler so that the vm package does not depend on the compiler.
type ClassCompiler interface {
	// CompileClass compiles <name>.som from root. When skeleton is non-nil
	// the class is assembled into it in place. A root without the file
	// answers (nil, nil) so that the next root can be tried.
	CompileClass(u *Universe, root ClassPathEntry, name string, skeleton *Class) (*Class, error)

	// CompileClassString compiles source that does not live on the
	// classpath, such as shell statements.
	CompileClassString(u *Universe, source string, skeleton *Class) (*Class, error)
}

// ClassPathEntry is one classpath root.
type ClassPathEntry struct {
	Name string // shown in diagnostics
	FS   fs.FS
}

// DirEntry returns a classpath entry for a directory on disk.
func DirEntry(dir string) ClassPathEntry {
	return ClassPathEntry{Name: dir, FS: os.DirFS(dir)}
}

// CoreEntry returns the classpath entry for the embedded core library.
func CoreEntry() ClassPathEntry {
	return ClassPathEntry{Name: "corelib", FS: corelib.FS}
}
