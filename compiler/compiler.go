// Package compiler turns class source into classes of a vm.Universe. It is
// a one-pass compiler: the parser emits bytecode directly into method and
// class generation contexts, which are then assembled into vm objects.
package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/tliron/commonlog"

	"github.com/chazu/som/vm"
)

// FileExtension is the extension of class source files.
const FileExtension = ".som"

// stringFileName names source compiled from a string in diagnostics.
const stringFileName = "$string$"

// ---------------------------------------------------------------------------
// Compiler: The vm.ClassCompiler backend
// ---------------------------------------------------------------------------

// Compiler loads classes from classpath roots. It holds no per-universe
// state, so one Compiler can serve any number of universes.
type Compiler struct{}

// New creates a compiler.
func New() *Compiler {
	return &Compiler{}
}

// log is resolved on use so that a backend configured after package
// initialization takes effect.
func (c *Compiler) log() commonlog.Logger {
	return commonlog.GetLogger("som.compiler")
}

// NewUniverse creates a universe that compiles its classes with the
// shared Compiler.
func NewUniverse() *vm.Universe {
	u := vm.NewUniverse()
	u.UseCompiler(defaultCompiler)
	return u
}

var _ vm.ClassCompiler = (*Compiler)(nil)

var defaultCompiler = New()

// CompileClass compiles <name>.som from root into u with a shared Compiler.
func CompileClass(u *vm.Universe, root vm.ClassPathEntry, name string, skeleton *vm.Class) (*vm.Class, error) {
	return defaultCompiler.CompileClass(u, root, name, skeleton)
}

// CompileClassString compiles source into u with a shared Compiler.
func CompileClassString(u *vm.Universe, source string, skeleton *vm.Class) (*vm.Class, error) {
	return defaultCompiler.CompileClassString(u, source, skeleton)
}

// CompileClass compiles <name>.som from root. A root that does not hold the
// file answers (nil, nil).
func (c *Compiler) CompileClass(u *vm.Universe, root vm.ClassPathEntry, name string, skeleton *vm.Class) (*vm.Class, error) {
	fileName := name + FileExtension
	source, err := fs.ReadFile(root.FS, fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileName, err)
	}

	cg, err := c.parse(u, string(source), path.Join(root.Name, fileName))
	if err != nil {
		return nil, err
	}
	if cg.name.Name() != name {
		return nil, fmt.Errorf("%w: file %s defines %s", ErrClassNameMismatch, fileName, cg.name.Name())
	}
	return c.assemble(u, cg, skeleton), nil
}

// CompileClassString compiles a class definition held in a string.
func (c *Compiler) CompileClassString(u *vm.Universe, source string, skeleton *vm.Class) (*vm.Class, error) {
	cg, err := c.parse(u, source, stringFileName)
	if err != nil {
		return nil, err
	}
	return c.assemble(u, cg, skeleton), nil
}

func (c *Compiler) parse(u *vm.Universe, source, file string) (*ClassGen, error) {
	cg, err := NewParser(u, source, file).Classdef()
	if err != nil {
		c.log().Debugf("compile failed: %s", err)
		return nil, err
	}
	return cg, nil
}

func (c *Compiler) assemble(u *vm.Universe, cg *ClassGen, skeleton *vm.Class) *vm.Class {
	var class *vm.Class
	if skeleton != nil {
		class = cg.assembleSystemClass(skeleton)
	} else {
		class = cg.assemble(u)
	}
	c.log().Debug("compiled class",
		"class", cg.name.Name(),
		"instanceMethods", len(cg.instanceMethods),
		"classMethods", len(cg.classMethods))
	return class
}
