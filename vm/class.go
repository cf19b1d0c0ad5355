package vm

// ---------------------------------------------------------------------------
// Class: Registry entry for a class and its metaclass
// ---------------------------------------------------------------------------

// Class describes a class. A class is itself a value: its class is its
// metaclass, which holds the class-side methods and field names, while the
// class-side field values live in the class object.
type Class struct {
	name       *Symbol
	superclass *Class
	class      *Class

	instanceFields []*Symbol
	methods        map[*Symbol]Invokable
	invokables     []Invokable

	fields []Value
}

func (*Class) somValue() {}

// NewClass creates an empty class whose class is metaclass.
func NewClass(metaclass *Class) *Class {
	return &Class{
		class:   metaclass,
		methods: make(map[*Symbol]Invokable),
	}
}

// Name returns the class name.
func (c *Class) Name() *Symbol { return c.name }

// SetName sets the class name.
func (c *Class) SetName(name *Symbol) { c.name = name }

// Superclass returns the superclass, or nil for a root class.
func (c *Class) Superclass() *Class { return c.superclass }

// SetSuperclass sets the superclass.
func (c *Class) SetSuperclass(super *Class) { c.superclass = super }

// Class returns the metaclass.
func (c *Class) Class() *Class { return c.class }

// SetClass sets the metaclass.
func (c *Class) SetClass(meta *Class) { c.class = meta }

// InstanceFields returns the field names of instances, inherited fields
// first.
func (c *Class) InstanceFields() []*Symbol { return c.instanceFields }

// SetInstanceFields replaces the field names of instances.
func (c *Class) SetInstanceFields(names []*Symbol) { c.instanceFields = names }

// NumInstanceFields returns the number of fields of an instance.
func (c *Class) NumInstanceFields() int { return len(c.instanceFields) }

// ---------------------------------------------------------------------------
// Method table
// ---------------------------------------------------------------------------

// Methods returns the class's own invokables in declaration order.
func (c *Class) Methods() []Invokable { return c.invokables }

// SetMethods replaces the method table and takes ownership of each
// invokable.
func (c *Class) SetMethods(list []Invokable) {
	c.invokables = c.invokables[:0]
	c.methods = make(map[*Symbol]Invokable, len(list))
	for _, inv := range list {
		c.AddMethod(inv)
	}
}

// AddMethod installs inv, replacing any method with the same selector.
func (c *Class) AddMethod(inv Invokable) {
	inv.SetHolder(c)
	sig := inv.Signature()
	if _, ok := c.methods[sig]; ok {
		for i, existing := range c.invokables {
			if existing.Signature() == sig {
				c.invokables[i] = inv
			}
		}
	} else {
		c.invokables = append(c.invokables, inv)
	}
	c.methods[sig] = inv
}

// LookupLocal returns the invokable defined directly in c.
func (c *Class) LookupLocal(selector *Symbol) Invokable {
	return c.methods[selector]
}

// Lookup finds the invokable for selector, walking the superclass chain.
// It returns nil when no class in the chain defines it.
func (c *Class) Lookup(selector *Symbol) Invokable {
	for current := c; current != nil; current = current.superclass {
		if inv, ok := current.methods[selector]; ok {
			return inv
		}
	}
	return nil
}

// HasPrimitives reports whether either side of the class declares a
// primitive.
func (c *Class) HasPrimitives() bool {
	for _, inv := range c.invokables {
		if _, ok := inv.(*Primitive); ok {
			return true
		}
	}
	if c.class != nil {
		for _, inv := range c.class.invokables {
			if _, ok := inv.(*Primitive); ok {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Class-side field storage
// ---------------------------------------------------------------------------

// allocateFields sizes the class-side field storage from the metaclass's
// field list, keeping values already present.
func (c *Class) allocateFields(nilValue Value) {
	n := 0
	if c.class != nil {
		n = c.class.NumInstanceFields()
	}
	for len(c.fields) < n {
		c.fields = append(c.fields, nilValue)
	}
}

// Field returns the class-side field at index.
func (c *Class) Field(index int) Value { return c.fields[index] }

// SetField sets the class-side field at index.
func (c *Class) SetField(index int, v Value) { c.fields[index] = v }
