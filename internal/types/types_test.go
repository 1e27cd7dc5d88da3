package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/types"
)

func TestPrimitivesHaveFixedHandles(t *testing.T) {
	r := types.NewRegistry()
	assert.Equal(t, types.KindInt, r.Kind(types.Int))
	assert.Equal(t, types.KindFloat, r.Kind(types.Float))
	assert.Equal(t, types.KindBool, r.Kind(types.Bool))
	assert.Equal(t, types.KindString, r.Kind(types.String))
}

func TestInterningReturnsSameHandle(t *testing.T) {
	r := types.NewRegistry()
	a1 := r.RegisterArray(types.Int)
	a2 := r.RegisterArray(types.Int)
	assert.Equal(t, a1, a2)

	a3 := r.RegisterArray(types.Float)
	assert.NotEqual(t, a1, a3)
}

func TestInterningDoesNotGrowOnRepeat(t *testing.T) {
	r := types.NewRegistry()
	h1 := r.RegisterMap(types.String, types.Int)
	h2 := r.RegisterMap(types.String, types.Int)
	assert.Equal(t, h1, h2)
}

func TestFnStructuralEquality(t *testing.T) {
	r := types.NewRegistry()
	f1 := r.RegisterFn(types.Int, []types.Handle{types.Int, types.Float})
	f2 := r.RegisterFn(types.Int, []types.Handle{types.Int, types.Float})
	assert.Equal(t, f1, f2)

	f3 := r.RegisterFn(types.Int, []types.Handle{types.Float, types.Int})
	assert.NotEqual(t, f1, f3)
}

func TestStructByNameIdentity(t *testing.T) {
	r := types.NewRegistry()
	s1 := r.RegisterStruct("Point", []types.Member{{Name: "x", Type: types.Int}, {Name: "y", Type: types.Int}})
	s2 := r.RegisterStruct("Point", nil) // re-registration returns the same handle
	assert.Equal(t, s1, s2)

	idx, ok := r.MemberIndex(s1, "y")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestUserResolvesToStructOrUnion(t *testing.T) {
	r := types.NewRegistry()
	user := r.RegisterUser("Shape")
	_, ok := r.Resolve(user)
	assert.False(t, ok)

	s := r.RegisterStruct("Shape", []types.Member{{Name: "area", Type: types.Float}})
	resolved, ok := r.Resolve(user)
	require.True(t, ok)
	assert.Equal(t, s, resolved)
}

func TestMatchRules(t *testing.T) {
	r := types.NewRegistry()
	assert.True(t, r.Match(types.Int, types.Int))
	assert.True(t, r.Match(types.Any, types.Int))
	assert.True(t, r.Match(types.Int, types.Any))
	assert.False(t, r.Match(types.Invalid, types.Int))
	assert.False(t, r.Match(types.Int, types.Float))

	user := r.RegisterUser("Widget")
	s := r.RegisterStruct("Widget", nil)
	assert.True(t, r.Match(user, s))
	assert.True(t, r.Match(s, user))
}

func TestResizeKeepsPrimitivesAndLookups(t *testing.T) {
	r := types.NewRegistry()
	// Registering 64 distinct nested array types forces the bucket table
	// to grow several times past its initial size.
	handles := make([]types.Handle, 0, 64)
	elem := types.Int
	for i := 0; i < 64; i++ {
		elem = r.RegisterArray(elem)
		handles = append(handles, elem)
	}
	// Re-registering the same chain after the resizes must find every
	// earlier handle again rather than interning duplicates.
	elem = types.Int
	for i := 0; i < 64; i++ {
		elem = r.RegisterArray(elem)
		assert.Equal(t, handles[i], elem)
	}
	assert.Equal(t, types.KindInt, r.Kind(types.Int))
}
