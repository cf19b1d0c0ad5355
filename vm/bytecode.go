package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Control
const (
	OpHalt Opcode = 0 // stop the interpreter, answer top of stack
	OpDup  Opcode = 1 // duplicate top of stack
)

// Pushes
const (
	OpPushLocal    Opcode = 2 // push local (index, context level)
	OpPushArgument Opcode = 3 // push argument (index, context level)
	OpPushField    Opcode = 4 // push field of self (field index)
	OpPushBlock    Opcode = 5 // push new block (literal index of block method)
	OpPushConstant Opcode = 6 // push literal (literal index)
	OpPushGlobal   Opcode = 7 // push global (literal index of name)
)

// Pops and stores
const (
	OpPop         Opcode = 8  // discard top of stack
	OpPopLocal    Opcode = 9  // store into local (index, context level)
	OpPopArgument Opcode = 10 // store into argument (index, context level)
	OpPopField    Opcode = 11 // store into field of self (field index)
)

// Sends and returns
const (
	OpSend           Opcode = 12 // send (literal index of selector)
	OpSuperSend      Opcode = 13 // send to holder's superclass (literal index of selector)
	OpReturnLocal    Opcode = 14 // return from this frame
	OpReturnNonLocal Opcode = 15 // return from the lexically enclosing method
)

// NumOpcodes is the size of the closed opcode set.
const NumOpcodes = 16

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	Length      int    // encoded length in bytes, opcode included
	StackEffect int    // net effect on stack; sends are computed from the selector
}

// opcodeTable is indexed by opcode value.
var opcodeTable = [NumOpcodes]OpcodeInfo{
	OpHalt:           {"HALT", 1, 0},
	OpDup:            {"DUP", 1, 1},
	OpPushLocal:      {"PUSH_LOCAL", 3, 1},
	OpPushArgument:   {"PUSH_ARGUMENT", 3, 1},
	OpPushField:      {"PUSH_FIELD", 2, 1},
	OpPushBlock:      {"PUSH_BLOCK", 2, 1},
	OpPushConstant:   {"PUSH_CONSTANT", 2, 1},
	OpPushGlobal:     {"PUSH_GLOBAL", 2, 1},
	OpPop:            {"POP", 1, -1},
	OpPopLocal:       {"POP_LOCAL", 3, -1},
	OpPopArgument:    {"POP_ARGUMENT", 3, -1},
	OpPopField:       {"POP_FIELD", 2, -1},
	OpSend:           {"SEND", 2, 0},
	OpSuperSend:      {"SUPER_SEND", 2, 0},
	OpReturnLocal:    {"RETURN_LOCAL", 1, 0},
	OpReturnNonLocal: {"RETURN_NON_LOCAL", 1, 0},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, NumOpcodes)
	for i, info := range opcodeTable {
		m[info.Name] = Opcode(i)
	}
	return m
}()

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool {
	return int(op) < NumOpcodes
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if op.Valid() {
		return opcodeTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// Length returns the encoded length of an opcode. It panics on an opcode
// outside the instruction set.
func (op Opcode) Length() int {
	if !op.Valid() {
		panic(fmt.Sprintf("vm: illegal bytecode %d", byte(op)))
	}
	return opcodeTable[op].Length
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 32),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an instruction with its operands. The operand count must
// match the opcode's encoded length.
func (b *BytecodeBuilder) Emit(op Opcode, operands ...byte) {
	if len(operands) != op.Length()-1 {
		panic(fmt.Sprintf("vm: %s takes %d operands, got %d", op, op.Length()-1, len(operands)))
	}
	b.bytes = append(b.bytes, byte(op))
	b.bytes = append(b.bytes, operands...)
}

// RemoveLast drops the last byte emitted.
func (b *BytecodeBuilder) RemoveLast() {
	if len(b.bytes) > 0 {
		b.bytes = b.bytes[:len(b.bytes)-1]
	}
}

// ---------------------------------------------------------------------------
// BytecodeReader: Sequential decoding
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   int
	Op       Opcode
	Operands []byte
}

// BytecodeReader reads bytecode for disassembly and analysis.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// Next decodes the instruction at the current position.
func (r *BytecodeReader) Next() Instruction {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	op := Opcode(r.bytes[r.pos])
	n := op.Length()
	if r.pos+n > len(r.bytes) {
		panic("bytecode underflow")
	}
	in := Instruction{Offset: r.pos, Op: op, Operands: r.bytes[r.pos+1 : r.pos+n]}
	r.pos += n
	return in
}

// Decode splits bytecode into instructions.
func Decode(bc []byte) []Instruction {
	var out []Instruction
	r := NewBytecodeReader(bc)
	for r.HasMore() {
		out = append(out, r.Next())
	}
	return out
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// FormatInstruction renders one instruction as a listing line without the
// trailing comment.
func FormatInstruction(in Instruction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d  %-16s", in.Offset, in.Op.Name())
	for _, b := range in.Operands {
		fmt.Fprintf(&sb, " %d", b)
	}
	return strings.TrimRight(sb.String(), " ")
}

// DisassembleBytes renders raw bytecode without literal information.
func DisassembleBytes(bc []byte) string {
	lines := make([]string, 0, len(bc))
	for _, in := range Decode(bc) {
		lines = append(lines, FormatInstruction(in))
	}
	return strings.Join(lines, "\n")
}

// ParseListing reads a listing produced by DisassembleBytes or Disassemble
// back into bytecode. Header lines, blank lines and comments after ';' are
// ignored, as are nested block listings (lines indented with a tab).
func ParseListing(listing string) ([]byte, error) {
	b := NewBytecodeBuilder()
	for n, line := range strings.Split(listing, "\n") {
		if strings.HasPrefix(line, "\t") {
			continue
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		op, ok := opcodeByName[fields[1]]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown opcode %q", n+1, fields[1])
		}
		var operands []byte
		for _, f := range fields[2:] {
			v, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad operand %q: %w", n+1, f, err)
			}
			operands = append(operands, byte(v))
		}
		if len(operands) != op.Length()-1 {
			return nil, fmt.Errorf("line %d: %s wants %d operands, got %d", n+1, op, op.Length()-1, len(operands))
		}
		b.Emit(op, operands...)
	}
	return b.Bytes(), nil
}
