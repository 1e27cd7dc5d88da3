package emitter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/bytecode"
	"github.com/fmaggi/matiria/internal/emitter"
	"github.com/fmaggi/matiria/internal/parser"
	"github.com/fmaggi/matiria/internal/types"
	"github.com/fmaggi/matiria/internal/validator"
	"github.com/fmaggi/matiria/internal/vmheap"
)

func compile(t *testing.T, src string) *vmheap.Package {
	t.Helper()
	reg := types.NewRegistry()
	p := parser.New([]byte(src), reg)
	root := p.Parse()
	require.False(t, p.HadError(), "parse errors: %v", p.Errors())

	v := validator.New(reg)
	v.Validate(root)
	require.False(t, v.HadError(), "validate errors: %v", v.Errors())

	return emitter.New(reg).Emit(root, v.GlobalScope())
}

func TestEmitArithmeticPicksIntOpcodes(t *testing.T) {
	pkg := compile(t, `
fn main() -> Int {
	return 1 + 2;
}
`)
	out := bytecode.Disassemble("main", pkg.Main.Chunk)
	require.Contains(t, out, "ADD_I")
}

func TestEmitArithmeticPicksFloatOpcodesWhenOperandIsFloat(t *testing.T) {
	pkg := compile(t, `
fn main() -> Float {
	return 1.0 + 2;
}
`)
	out := bytecode.Disassemble("main", pkg.Main.Chunk)
	require.Contains(t, out, "ADD_F")
}

func TestEmitLessEqualIsGreaterThenNot(t *testing.T) {
	pkg := compile(t, `
fn main() -> Bool {
	return 1 <= 2;
}
`)
	out := bytecode.Disassemble("main", pkg.Main.Chunk)
	require.Contains(t, out, "GREATER_I")
	require.Contains(t, out, "NOT")
}

func TestEmitZeroArgConstructorHasFullTotalZeroProvided(t *testing.T) {
	pkg := compile(t, `
struct Point {
	Int x;
	Int y;
}

fn main() {
	Point p;
}
`)
	code := pkg.Main.Chunk.Code
	idx := indexOf(t, code, byte(bytecode.OpConstructor))
	total := bytecode.ReadU16(code, idx+3)
	provided := bytecode.ReadU16(code, idx+5)
	require.Equal(t, uint16(2), total)
	require.Equal(t, uint16(0), provided)
}

func TestEmitFullArgConstructorHasMatchingTotalAndProvided(t *testing.T) {
	pkg := compile(t, `
struct Point {
	Int x;
	Int y;
}

fn main() {
	p := Point(1, 2);
}
`)
	code := pkg.Main.Chunk.Code
	idx := indexOf(t, code, byte(bytecode.OpConstructor))
	total := bytecode.ReadU16(code, idx+3)
	provided := bytecode.ReadU16(code, idx+5)
	require.Equal(t, uint16(2), total)
	require.Equal(t, uint16(2), provided)
}

func TestEmitOverloadGroupProducesArrayGlobal(t *testing.T) {
	pkg := compile(t, `
fn add(Int a, Int b) -> Int {
	return a + b;
}

fn add(Int a, Int b, Int c) -> Int {
	return a + b + c;
}

fn main() {
	x := add(1, 2);
}
`)
	// The overloaded "add" occupies one global slot as an array of two
	// FunctionObjs; "main" occupies the other as a bare FunctionObj.
	var sawArray, sawFn bool
	for _, g := range pkg.Globals {
		if g.O == nil {
			continue
		}
		switch g.O.Tag() {
		case vmheap.TagArray:
			sawArray = true
		case vmheap.TagFunction:
			sawFn = true
		}
	}
	require.True(t, sawArray, "expected an overload array global")
	require.True(t, sawFn, "expected main's bare function global")
}

func TestEmitNestedBlockPopsItsLocals(t *testing.T) {
	pkg := compile(t, `
fn main() {
	x := 1;
	{
		y := 2;
	}
}
`)
	out := bytecode.Disassemble("main", pkg.Main.Chunk)
	require.Contains(t, out, "POP_V")
}

// indexOf walks code instruction-by-instruction (mirroring each opcode's
// operand width) and returns the offset of the first instance of op,
// failing the test if it never appears. A raw byte scan would risk
// matching an operand byte instead of an opcode.
func indexOf(t *testing.T, code []byte, op byte) int {
	t.Helper()
	i := 0
	for i < len(code) {
		if code[i] == op {
			return i
		}
		i = skipInstr(bytecode.Op(code[i]), code, i)
	}
	t.Fatalf("opcode %d not found in chunk", op)
	return -1
}

// skipInstr returns the offset just past the instruction at i, given its
// opcode, matching internal/bytecode.disassembleInstr's operand widths.
func skipInstr(op bytecode.Op, code []byte, i int) int {
	next := i + 1
	switch op {
	case bytecode.OpGet, bytecode.OpSet, bytecode.OpGlobalGet, bytecode.OpUpvalueGet, bytecode.OpUpvalueSet,
		bytecode.OpStructGet, bytecode.OpStructSet, bytecode.OpPopV,
		bytecode.OpStringLiteral, bytecode.OpArrayLiteral, bytecode.OpMapLiteral,
		bytecode.OpInt, bytecode.OpFloat, bytecode.OpJmp, bytecode.OpJmpZ, bytecode.OpAnd, bytecode.OpOr:
		return next + 2
	case bytecode.OpCall:
		return next + 1
	case bytecode.OpConstructor:
		return next + 6
	case bytecode.OpClosure:
		n := bytecode.ReadU16(code, next+2)
		return next + 4 + int(n)*3
	default:
		return next
	}
}
