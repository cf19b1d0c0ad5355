package compiler

import (
	"slices"

	"github.com/chazu/som/vm"
)

// ---------------------------------------------------------------------------
// ClassGen: Code generation context for one class definition
// ---------------------------------------------------------------------------

// ClassGen collects a class definition while it is parsed. Instance and
// class-side members are kept apart; classSide selects which side fields
// and methods currently go to.
type ClassGen struct {
	name       *vm.Symbol
	superName  *vm.Symbol
	superclass *vm.Class // nil for a root class
	classSide  bool

	instanceFields  []*vm.Symbol
	classFields     []*vm.Symbol
	instanceMethods []vm.Invokable
	classMethods    []vm.Invokable
}

func newClassGen() *ClassGen {
	return &ClassGen{}
}

// Name returns the name of the class being defined.
func (c *ClassGen) Name() *vm.Symbol { return c.name }

// inheritFrom seeds both field lists with the superclass's, so inherited
// fields keep their indices in the subclass.
func (c *ClassGen) inheritFrom(super *vm.Class) {
	c.superclass = super
	c.instanceFields = append(slices.Clone(super.InstanceFields()), c.instanceFields...)
	if meta := super.Class(); meta != nil {
		c.classFields = append(slices.Clone(meta.InstanceFields()), c.classFields...)
	}
}

func (c *ClassGen) startClassSide() { c.classSide = true }

func (c *ClassGen) addField(name *vm.Symbol) {
	if c.classSide {
		c.classFields = append(c.classFields, name)
	} else {
		c.instanceFields = append(c.instanceFields, name)
	}
}

func (c *ClassGen) fields() []*vm.Symbol {
	if c.classSide {
		return c.classFields
	}
	return c.instanceFields
}

func (c *ClassGen) hasField(name *vm.Symbol) bool {
	return slices.Contains(c.fields(), name)
}

func (c *ClassGen) fieldIndex(name *vm.Symbol) int {
	return slices.Index(c.fields(), name)
}

func (c *ClassGen) addMethod(inv vm.Invokable) {
	if c.classSide {
		c.classMethods = append(c.classMethods, inv)
	} else {
		c.instanceMethods = append(c.instanceMethods, inv)
	}
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

// assemble builds the class and its metaclass in u. The metaclass's
// superclass is the superclass's metaclass, or Class for a root class.
func (c *ClassGen) assemble(u *vm.Universe) *vm.Class {
	meta := vm.NewClass(u.MetaclassClass)
	meta.SetName(vm.Intern(c.name.Name() + " class"))
	if c.superclass != nil {
		meta.SetSuperclass(c.superclass.Class())
	} else {
		meta.SetSuperclass(u.ClassClass)
	}
	meta.SetInstanceFields(c.classFields)
	meta.SetMethods(c.classMethods)

	class := vm.NewClass(meta)
	class.SetName(c.name)
	class.SetSuperclass(c.superclass)
	class.SetInstanceFields(c.instanceFields)
	class.SetMethods(c.instanceMethods)
	return class
}

// assembleSystemClass fills a bootstrap skeleton in place. The skeleton
// keeps the superclass it was wired with.
func (c *ClassGen) assembleSystemClass(skeleton *vm.Class) *vm.Class {
	skeleton.SetInstanceFields(c.instanceFields)
	skeleton.SetMethods(c.instanceMethods)
	meta := skeleton.Class()
	meta.SetInstanceFields(c.classFields)
	meta.SetMethods(c.classMethods)
	return skeleton
}
