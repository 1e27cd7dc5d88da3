package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/bytecode"
)

func TestEmitAndReadU16(t *testing.T) {
	c := &bytecode.Chunk{}
	c.Emit(bytecode.OpGet, 1)
	c.EmitU16(1234, 1)
	got := bytecode.ReadU16(c.Code, 1)
	assert.Equal(t, uint16(1234), got)
}

func TestPatchI16BackpatchesForwardJump(t *testing.T) {
	c := &bytecode.Chunk{}
	c.Emit(bytecode.OpJmpZ, 1)
	patchAt := c.Len()
	c.EmitI16(0, 1) // placeholder
	c.Emit(bytecode.OpPop, 2)
	target := c.Len()
	offset := int16(target - (patchAt + 2))
	c.PatchI16(patchAt, offset)
	got := bytecode.ReadI16(c.Code, patchAt)
	assert.Equal(t, offset, got)
}

func TestConstantPoolsIndexIndependently(t *testing.T) {
	c := &bytecode.Chunk{}
	i1 := c.AddInt(10)
	i2 := c.AddInt(20)
	f1 := c.AddFloat(1.5)
	s1 := c.AddString("hi")
	assert.Equal(t, uint16(0), i1)
	assert.Equal(t, uint16(1), i2)
	assert.Equal(t, uint16(0), f1)
	assert.Equal(t, uint16(0), s1)
	assert.Equal(t, int64(20), c.Ints[i2])
}

func TestDisassembleRendersKnownOpcodes(t *testing.T) {
	c := &bytecode.Chunk{}
	idx := c.AddInt(42)
	c.Emit(bytecode.OpInt, 1)
	c.EmitU16(idx, 1)
	c.Emit(bytecode.OpReturn, 1)
	out := bytecode.Disassemble("test", c)
	require.Contains(t, out, "INT")
	require.Contains(t, out, "42")
	require.Contains(t, out, "RETURN")
}
