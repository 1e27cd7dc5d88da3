package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/types"
)

func TestTableInsertFind(t *testing.T) {
	tab := symtab.NewTable()
	tab.Insert("x", &symtab.Symbol{Name: "x", Type: types.Int})
	sym, ok := tab.Find("x")
	require.True(t, ok)
	assert.Equal(t, types.Int, sym.Type)

	_, ok = tab.Find("y")
	assert.False(t, ok)
}

func TestTableDeleteThenProbePastTombstone(t *testing.T) {
	tab := symtab.NewTable()
	// Force two names that are likely to collide by inserting many entries
	// and deleting one, then confirm lookups for entries inserted after it
	// still succeed (tombstone doesn't break the probe chain).
	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		tab.Insert(n, &symtab.Symbol{Name: n})
	}
	tab.Delete("a")
	_, ok := tab.Find("a")
	assert.False(t, ok)
	for _, n := range names[1:] {
		_, ok := tab.Find(n)
		assert.True(t, ok, "lookup for %s should survive a prior tombstone", n)
	}
}

func TestTableResizeAtLoadFactor(t *testing.T) {
	tab := symtab.NewTable()
	for i := 0; i < 100; i++ {
		name := string(rune('a')) + string(rune(i))
		tab.Insert(name, &symtab.Symbol{Name: name, Index: i})
	}
	for i := 0; i < 100; i++ {
		name := string(rune('a')) + string(rune(i))
		sym, ok := tab.Find(name)
		require.True(t, ok)
		assert.Equal(t, i, sym.Index)
	}
}

func TestScopeAddAssignsIncreasingIndices(t *testing.T) {
	sc := symtab.NewGlobalScope()
	s1, ok := sc.Add("a", &symtab.Symbol{Name: "a", Type: types.Int})
	require.True(t, ok)
	s2, ok := sc.Add("b", &symtab.Symbol{Name: "b", Type: types.Int})
	require.True(t, ok)
	assert.Equal(t, 0, s1.Index)
	assert.Equal(t, 1, s2.Index)
}

func TestScopeAddCollisionReturnsExisting(t *testing.T) {
	sc := symtab.NewGlobalScope()
	first, _ := sc.Add("x", &symtab.Symbol{Name: "x", Type: types.Int})
	existing, ok := sc.Add("x", &symtab.Symbol{Name: "x", Type: types.Float})
	assert.False(t, ok)
	assert.Same(t, first, existing)
}

func TestBlockScopeInheritsCounterFunctionScopeResets(t *testing.T) {
	fn := symtab.NewFunctionScope(nil)
	fn.Add("a", &symtab.Symbol{Name: "a"})
	fn.Add("b", &symtab.Symbol{Name: "b"})
	assert.Equal(t, 2, fn.Counter())

	block := symtab.NewBlockScope(fn)
	assert.Equal(t, 2, block.Counter())
	sym, _ := block.Add("c", &symtab.Symbol{Name: "c"})
	assert.Equal(t, 2, sym.Index)

	inner := symtab.NewFunctionScope(fn)
	assert.Equal(t, 0, inner.Counter())
}

func TestNestedShadowing(t *testing.T) {
	outer := symtab.NewGlobalScope()
	outer.Add("x", &symtab.Symbol{Name: "x", Type: types.Int})

	inner := symtab.NewBlockScope(outer)
	inner.Add("x", &symtab.Symbol{Name: "x", Type: types.Float})

	sym, ok := inner.Find("x")
	require.True(t, ok)
	assert.Equal(t, types.Float, sym.Type)

	sym, ok = outer.Find("x")
	require.True(t, ok)
	assert.Equal(t, types.Int, sym.Type)
}

func TestFindWalksParents(t *testing.T) {
	outer := symtab.NewGlobalScope()
	outer.Add("g", &symtab.Symbol{Name: "g"})
	inner := symtab.NewBlockScope(outer)
	_, ok := inner.Find("g")
	assert.True(t, ok)
	_, ok = inner.FindLocal("g")
	assert.False(t, ok)
}
