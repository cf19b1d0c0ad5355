package vm

import (
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// Disassemble renders a method as a listing: a header line, then one line
// per instruction with literals, selectors and field names resolved in a
// trailing comment. Block literals are listed after the instruction that
// pushes them, indented by one tab. ParseListing reads the result back.
func Disassemble(m *Method) string {
	var sb strings.Builder
	writeMethod(&sb, m, "")
	return strings.TrimRight(sb.String(), "\n")
}

func writeMethod(sb *strings.Builder, m *Method, indent string) {
	fmt.Fprintf(sb, "%s%s  ; args=%d locals=%d stack=%d literals=%d\n",
		indent, m, m.numArgs, m.numLocals, m.maxStack, len(m.literals))
	for _, in := range Decode(m.bytecode) {
		line := FormatInstruction(in)
		if comment := instructionComment(m, in); comment != "" {
			line = fmt.Sprintf("%-28s ; %s", line, comment)
		}
		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteByte('\n')
		if in.Op == OpPushBlock {
			if block, ok := m.literalAt(int(in.Operands[0])).(*Method); ok {
				writeMethod(sb, block, indent+"\t")
			}
		}
	}
}

func instructionComment(m *Method, in Instruction) string {
	switch in.Op {
	case OpPushConstant, OpPushGlobal, OpSend, OpSuperSend:
		if lit := m.literalAt(int(in.Operands[0])); lit != nil {
			return Describe(lit)
		}
	case OpPushField, OpPopField:
		if name := fieldName(m.holder, int(in.Operands[0])); name != "" {
			return name
		}
	case OpPushBlock:
		return "block"
	}
	return ""
}

// literalAt is Literal without the range check, for diagnostics.
func (m *Method) literalAt(index int) Value {
	if index < 0 || index >= len(m.literals) {
		return nil
	}
	return m.literals[index]
}

func fieldName(holder *Class, index int) string {
	if holder == nil || index >= len(holder.instanceFields) {
		return ""
	}
	return holder.instanceFields[index].name
}

// DumpClass writes the listing of every method of c to w. Primitives are
// listed by name only.
func DumpClass(w io.Writer, c *Class) {
	name := "<anonymous>"
	if c.name != nil {
		name = c.name.name
	}
	fmt.Fprintf(w, "; class %s", name)
	if c.superclass != nil && c.superclass.name != nil {
		fmt.Fprintf(w, " (%s)", c.superclass.name.name)
	}
	fmt.Fprintln(w)
	for _, inv := range c.invokables {
		switch inv := inv.(type) {
		case *Method:
			fmt.Fprintln(w, Disassemble(inv))
		case *Primitive:
			fmt.Fprintf(w, "%s  ; primitive\n", inv)
		}
	}
	fmt.Fprintln(w)
}
