// Package bytecode defines the instruction set emitted by internal/emitter
// and interpreted by internal/vm, plus the Chunk buffer each function owns.
package bytecode

import "encoding/binary"

// Op is one instruction opcode, per spec.md §4.6.
type Op byte

const (
	OpInt Op = iota
	OpFloat
	OpTrue
	OpFalse
	OpNil
	OpStringLiteral
	OpArrayLiteral
	OpMapLiteral
	OpEmptyArray
	OpEmptyMap
	OpConstructor

	OpGet
	OpSet

	OpGlobalGet

	OpUpvalueGet
	OpUpvalueSet

	OpIndexGet
	OpIndexSet

	OpStructGet
	OpStructSet

	OpAddI
	OpAddF
	OpSubI
	OpSubF
	OpMulI
	OpMulF
	OpDivI
	OpDivF
	OpModI
	OpModF
	OpIDivI
	OpIDivF

	OpNot
	OpNegateI
	OpNegateF

	OpLessI
	OpLessF
	OpGreaterI
	OpGreaterF
	OpEqualI
	OpEqualF

	OpOr
	OpAnd

	OpJmp
	OpJmpZ
	OpPop
	OpPopV

	OpCall
	OpReturn

	OpClosure

	OpIntCast
	OpFloatCast
)

var names = [...]string{
	OpInt: "INT", OpFloat: "FLOAT", OpTrue: "TRUE", OpFalse: "FALSE", OpNil: "NIL",
	OpStringLiteral: "STRING_LITERAL", OpArrayLiteral: "ARRAY_LITERAL", OpMapLiteral: "MAP_LITERAL",
	OpEmptyArray: "EMPTY_ARRAY", OpEmptyMap: "EMPTY_MAP", OpConstructor: "CONSTRUCTOR",
	OpGet: "GET", OpSet: "SET", OpGlobalGet: "GLOBAL_GET",
	OpUpvalueGet: "UPVALUE_GET", OpUpvalueSet: "UPVALUE_SET",
	OpIndexGet: "INDEX_GET", OpIndexSet: "INDEX_SET",
	OpStructGet: "STRUCT_GET", OpStructSet: "STRUCT_SET",
	OpAddI: "ADD_I", OpAddF: "ADD_F", OpSubI: "SUB_I", OpSubF: "SUB_F",
	OpMulI: "MUL_I", OpMulF: "MUL_F", OpDivI: "DIV_I", OpDivF: "DIV_F",
	OpModI: "MOD_I", OpModF: "MOD_F", OpIDivI: "IDIV_I", OpIDivF: "IDIV_F",
	OpNot: "NOT", OpNegateI: "NEGATE_I", OpNegateF: "NEGATE_F",
	OpLessI: "LESS_I", OpLessF: "LESS_F", OpGreaterI: "GREATER_I", OpGreaterF: "GREATER_F",
	OpEqualI: "EQUAL_I", OpEqualF: "EQUAL_F",
	OpOr: "OR", OpAnd: "AND",
	OpJmp: "JMP", OpJmpZ: "JMP_Z", OpPop: "POP", OpPopV: "POP_V",
	OpCall: "CALL", OpReturn: "RETURN",
	OpClosure: "CLOSURE",
	OpIntCast: "INT_CAST", OpFloatCast: "FLOAT_CAST",
}

func (o Op) String() string {
	if int(o) < len(names) && names[o] != "" {
		return names[o]
	}
	return "UNKNOWN"
}

// Chunk is a contiguous bytecode buffer owned by one function, plus the
// constant pools its instructions index into.
type Chunk struct {
	Code    []byte
	Ints    []int64
	Floats  []float64
	Strings []string
	Lines   []int // Lines[i] is the source line of Code[i], for diagnostics
}

// Emit appends a single opcode byte and records its source line.
func (c *Chunk) Emit(op Op, line int) int {
	c.Code = append(c.Code, byte(op))
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// EmitByte appends a raw u8 operand.
func (c *Chunk) EmitByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// EmitU16 appends a little-endian u16 operand.
func (c *Chunk) EmitU16(v uint16, line int) {
	c.Code = append(c.Code, byte(v), byte(v>>8))
	c.Lines = append(c.Lines, line, line)
}

// EmitI16 appends a little-endian signed 16-bit branch operand.
func (c *Chunk) EmitI16(v int16, line int) { c.EmitU16(uint16(v), line) }

// PatchI16 overwrites the i16 operand starting at offset with v, used to
// back-patch a forward jump once its target is known.
func (c *Chunk) PatchI16(offset int, v int16) {
	binary.LittleEndian.PutUint16(c.Code[offset:], uint16(v))
}

// AddInt interns v into the chunk's int pool and returns its index.
func (c *Chunk) AddInt(v int64) uint16 {
	c.Ints = append(c.Ints, v)
	return uint16(len(c.Ints) - 1)
}

// AddFloat interns v into the chunk's float pool and returns its index.
func (c *Chunk) AddFloat(v float64) uint16 {
	c.Floats = append(c.Floats, v)
	return uint16(len(c.Floats) - 1)
}

// AddString interns v into the chunk's string pool and returns its index.
func (c *Chunk) AddString(v string) uint16 {
	c.Strings = append(c.Strings, v)
	return uint16(len(c.Strings) - 1)
}

// ReadU16 decodes a little-endian u16 operand at offset.
func ReadU16(code []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(code[offset:])
}

// ReadI16 decodes a signed 16-bit branch operand at offset.
func ReadI16(code []byte, offset int) int16 {
	return int16(ReadU16(code, offset))
}

// Len returns the current size of the code buffer, i.e. the offset the
// next emitted byte would land at.
func (c *Chunk) Len() int { return len(c.Code) }
