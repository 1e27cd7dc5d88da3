package vmheap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/vmheap"
)

func TestValueTruthy(t *testing.T) {
	assert.False(t, vmheap.IntVal(0).Truthy())
	assert.True(t, vmheap.IntVal(1).Truthy())
	assert.False(t, vmheap.FloatVal(0).Truthy())
	assert.True(t, vmheap.FloatVal(0.5).Truthy())
	assert.False(t, vmheap.Nil.Truthy())
	assert.True(t, vmheap.ObjVal(vmheap.NewString("hi")).Truthy())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", vmheap.IntVal(42).String())
	assert.Equal(t, "'hi'", vmheap.ObjVal(vmheap.NewString("hi")).String())
}

func TestArrayGrowthAndString(t *testing.T) {
	arr := vmheap.NewArray(nil)
	for i := int64(0); i < 5; i++ {
		arr.Elems = append(arr.Elems, vmheap.IntVal(i))
	}
	require.Len(t, arr.Elems, 5)
	assert.Equal(t, "[0, 1, 2, 3, 4]", arr.String())
}

func TestMapSetGetDelete(t *testing.T) {
	m := vmheap.NewMap()
	m.Set(vmheap.IntVal(1), vmheap.ObjVal(vmheap.NewString("one")))
	m.Set(vmheap.IntVal(2), vmheap.ObjVal(vmheap.NewString("two")))

	v, ok := m.Get(vmheap.IntVal(1))
	require.True(t, ok)
	assert.Equal(t, "'one'", v.String())

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Delete(vmheap.IntVal(1)))
	assert.Equal(t, 1, m.Len())

	_, ok = m.Get(vmheap.IntVal(1))
	assert.False(t, ok)

	// Re-inserting after a tombstone must still be found.
	m.Set(vmheap.IntVal(1), vmheap.ObjVal(vmheap.NewString("uno")))
	v, ok = m.Get(vmheap.IntVal(1))
	require.True(t, ok)
	assert.Equal(t, "'uno'", v.String())
}

func TestMapGrowsPastLoadFactor(t *testing.T) {
	m := vmheap.NewMap()
	for i := int64(0); i < 64; i++ {
		m.Set(vmheap.IntVal(i), vmheap.IntVal(i*10))
	}
	assert.Equal(t, 64, m.Len())
	for i := int64(0); i < 64; i++ {
		v, ok := m.Get(vmheap.IntVal(i))
		require.True(t, ok)
		assert.Equal(t, i*10, v.I)
	}
}

func TestStructString(t *testing.T) {
	s := vmheap.NewStruct("Point", []vmheap.Value{vmheap.IntVal(1), vmheap.IntVal(2)})
	assert.Equal(t, "{1, 2}", s.String())
}

func TestFunctionAndNativeFnString(t *testing.T) {
	fn := vmheap.NewFunction("add", 2, nil)
	assert.Equal(t, "<fn add>", fn.String())

	nfn := vmheap.NewNativeFn("print", func(args []vmheap.Value) (vmheap.Value, error) {
		return vmheap.Nil, nil
	})
	assert.Equal(t, "<native fn>", nfn.String())
}

func TestClosureString(t *testing.T) {
	fn := vmheap.NewFunction("adder", 1, nil)
	c := vmheap.NewClosure(fn, []vmheap.Value{vmheap.IntVal(5)})
	assert.Equal(t, "<fn adder>", c.String())
	assert.Equal(t, int64(5), c.Upvalues[0].I)
}

func TestTagsAreDistinct(t *testing.T) {
	objs := []vmheap.Object{
		vmheap.NewString("s"),
		vmheap.NewArray(nil),
		vmheap.NewMap(),
		vmheap.NewStruct("S", nil),
		vmheap.NewFunction("f", 0, nil),
		vmheap.NewNativeFn("n", nil),
		vmheap.NewClosure(vmheap.NewFunction("f", 0, nil), nil),
	}
	seen := map[vmheap.Tag]bool{}
	for _, o := range objs {
		assert.False(t, seen[o.Tag()], "duplicate tag %v", o.Tag())
		seen[o.Tag()] = true
	}
}
