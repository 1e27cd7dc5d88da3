// Package symtab implements SymbolTable, an open-addressed hash map from
// identifier name to symbol metadata, and Scope, the linked chain of
// symbol tables that forms lexical scope.
package symtab

import (
	"hash/fnv"

	"github.com/fmaggi/matiria/internal/types"
)

// UpvalueKind classifies how (if at all) a symbol was captured by a
// closure.
type UpvalueKind int

const (
	UpvalueNone UpvalueKind = iota
	UpvalueLocal
	UpvalueNonLocal
)

// Symbol is (token text, type-handle, index, flags). Index means: the
// slot in the Package's globals array (global scope), the frame-relative
// slot offset (function scope), or the position in a closure's upvalue
// array (closure scope).
type Symbol struct {
	Name       string
	Type       types.Handle
	Index      int
	IsGlobal   bool
	Assignable bool
	Upvalue    UpvalueKind
}

type slot struct {
	used      bool
	tombstone bool
	key       string
	sym       *Symbol
}

// Table is an open-addressed, FNV-1a-keyed map from name to *Symbol, with
// tombstones for deletion and a 0.75 load-factor resize trigger.
type Table struct {
	slots []slot
	count int // used, non-tombstone entries
}

const tableLoadFactor = 0.75

// NewTable returns an empty symbol table.
func NewTable() *Table {
	return &Table{slots: make([]slot, 8)}
}

func hashKey(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// find locates the slot for name: if present, its index and true; else the
// first free (empty or tombstone) slot suitable for insertion and false.
func (t *Table) find(name string) (int, bool) {
	mask := uint64(len(t.slots) - 1)
	idx := hashKey(name) & mask
	firstFree := -1
	for {
		s := &t.slots[idx]
		if !s.used {
			if firstFree == -1 {
				firstFree = int(idx)
			}
			return firstFree, false
		}
		if s.tombstone {
			if firstFree == -1 {
				firstFree = int(idx)
			}
		} else if s.key == name {
			return int(idx), true
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow() {
	old := t.slots
	t.slots = make([]slot, len(old)*2)
	t.count = 0
	for _, s := range old {
		if s.used && !s.tombstone {
			t.insertNoGrow(s.key, s.sym)
		}
	}
}

func (t *Table) insertNoGrow(name string, sym *Symbol) {
	idx, _ := t.find(name)
	t.slots[idx] = slot{used: true, key: name, sym: sym}
	t.count++
}

// Insert stores sym under name, overwriting any previous entry with the
// same name. Returns true if this inserted a brand-new name.
func (t *Table) Insert(name string, sym *Symbol) bool {
	if float64(t.count+1) > tableLoadFactor*float64(len(t.slots)) {
		t.grow()
	}
	idx, found := t.find(name)
	if found {
		t.slots[idx].sym = sym
		return false
	}
	t.slots[idx] = slot{used: true, key: name, sym: sym}
	t.count++
	return true
}

// Find looks up name, returning (nil, false) if absent.
func (t *Table) Find(name string) (*Symbol, bool) {
	idx, found := t.find(name)
	if !found {
		return nil, false
	}
	return t.slots[idx].sym, true
}

// Delete removes name, leaving a tombstone behind so later probes still
// find entries past it.
func (t *Table) Delete(name string) bool {
	idx, found := t.find(name)
	if !found {
		return false
	}
	t.slots[idx].tombstone = true
	t.slots[idx].sym = nil
	t.count--
	return true
}

// Scope is a linked chain of symbol tables forming lexical scope. A
// function-local scope resets its slot counter to 0 at function entry;
// nested block scopes inherit the parent's counter so that local slot
// indices stay unique within the enclosing function.
type Scope struct {
	table   *Table
	parent  *Scope
	counter int
}

// NewGlobalScope returns a root scope with no parent, counter starting at 0.
func NewGlobalScope() *Scope {
	return &Scope{table: NewTable()}
}

// NewBlockScope returns a child scope that inherits parent's counter, so
// that locals declared in nested blocks keep allocating fresh slots.
func NewBlockScope(parent *Scope) *Scope {
	return &Scope{table: NewTable(), parent: parent, counter: parent.counter}
}

// NewFunctionScope returns a child scope for a new function body; its
// counter resets to 0 regardless of the parent's counter, since a
// function's locals are addressed from a fresh frame base.
func NewFunctionScope(parent *Scope) *Scope {
	return &Scope{table: NewTable(), parent: parent, counter: 0}
}

// Parent returns the enclosing scope, or nil at the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Add assigns the next counter value to sym (mutating sym.Index) and
// inserts it, unless name already exists in this scope, in which case the
// pre-existing symbol is returned (ok=false) so the caller can report a
// redefinition error; sym is left untouched in that case.
func (s *Scope) Add(name string, sym *Symbol) (existing *Symbol, ok bool) {
	if prior, found := s.table.Find(name); found {
		return prior, false
	}
	sym.Index = s.counter
	s.counter++
	s.table.Insert(name, sym)
	return sym, true
}

// Find walks this scope and its parents until name is found, or returns
// (nil, false) if it's not visible anywhere in the chain.
func (s *Scope) Find(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.table.Find(name); ok {
			return sym, true
		}
	}
	return nil, false
}

// FindLocal looks up name only in this scope, not any parent.
func (s *Scope) FindLocal(name string) (*Symbol, bool) {
	return s.table.Find(name)
}

// Counter returns the next slot index this scope would assign.
func (s *Scope) Counter() int { return s.counter }
