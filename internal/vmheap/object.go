package vmheap

import (
	"strings"

	"github.com/fmaggi/matiria/internal/bytecode"
)

// StringObj is an immutable byte buffer, grounded on Matiria/runtime/object.c's
// ObjString.
type StringObj struct {
	header
	Value string
}

func NewString(s string) *StringObj { return &StringObj{Value: s} }

func (*StringObj) Tag() Tag         { return TagString }
func (s *StringObj) String() string { return "'" + s.Value + "'" }

// ArrayObj is a growable sequence of Values.
type ArrayObj struct {
	header
	Elems []Value
}

func NewArray(elems []Value) *ArrayObj { return &ArrayObj{Elems: elems} }

func (*ArrayObj) Tag() Tag { return TagArray }
func (a *ArrayObj) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range a.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(']')
	return b.String()
}

// mapEntry is one slot of Map's open-addressed table.
type mapEntry struct {
	used      bool
	tombstone bool
	key       Value
	val       Value
}

// MapObj is an open-addressed hash map of Value to Value, with tombstones
// and a 0.75 load-factor resize trigger, keyed by hashValue/equalValue
// (murmur3-mixed per spec.md's Type registry hashing convention applied to
// runtime values instead of types).
type MapObj struct {
	header
	slots []mapEntry
	count int
}

func NewMap() *MapObj {
	return &MapObj{slots: make([]mapEntry, 8)}
}

func (*MapObj) Tag() Tag { return TagMap }

func (m *MapObj) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, s := range m.slots {
		if !s.used || s.tombstone {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(s.key.String())
		b.WriteString(": ")
		b.WriteString(s.val.String())
	}
	b.WriteByte('}')
	return b.String()
}

const mapLoadFactor = 0.75

func (m *MapObj) find(key Value) (int, bool) {
	mask := uint64(len(m.slots) - 1)
	idx := hashValue(key) & mask
	firstFree := -1
	for {
		s := &m.slots[idx]
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
		} else if equalValue(s.key, key) {
			return int(idx), true
		}
		idx = (idx + 1) & mask
	}
}

func (m *MapObj) grow() {
	old := m.slots
	m.slots = make([]mapEntry, len(old)*2)
	m.count = 0
	for _, s := range old {
		if s.used && !s.tombstone {
			m.insertNoGrow(s.key, s.val)
		}
	}
}

func (m *MapObj) insertNoGrow(key, val Value) {
	idx, _ := m.find(key)
	m.slots[idx] = mapEntry{used: true, key: key, val: val}
	m.count++
}

// Set inserts or overwrites key -> val.
func (m *MapObj) Set(key, val Value) {
	if float64(m.count+1) > mapLoadFactor*float64(len(m.slots)) {
		m.grow()
	}
	idx, found := m.find(key)
	if found {
		m.slots[idx].val = val
		return
	}
	m.slots[idx] = mapEntry{used: true, key: key, val: val}
	m.count++
}

// Get looks up key, returning (zero, false) if absent.
func (m *MapObj) Get(key Value) (Value, bool) {
	idx, found := m.find(key)
	if !found {
		return Value{}, false
	}
	return m.slots[idx].val, true
}

// Delete removes key, leaving a tombstone.
func (m *MapObj) Delete(key Value) bool {
	idx, found := m.find(key)
	if !found {
		return false
	}
	m.slots[idx].tombstone = true
	m.count--
	return true
}

// Len returns the number of live entries.
func (m *MapObj) Len() int { return m.count }

// StructObj is a fixed-size, named members array.
type StructObj struct {
	header
	TypeName string
	Members  []Value
}

func NewStruct(typeName string, members []Value) *StructObj {
	return &StructObj{TypeName: typeName, Members: members}
}

func (*StructObj) Tag() Tag { return TagStruct }
func (s *StructObj) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, m := range s.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	b.WriteByte('}')
	return b.String()
}

// FunctionObj is a compiled function: its name, parameter count, the
// bytecode chunk the emitter produced for its body, and the template
// objects for any closures declared directly inside it — CLOSURE's first
// operand indexes into Inner to find which template to wrap.
type FunctionObj struct {
	header
	Name  string
	Arity int
	Chunk *bytecode.Chunk
	Inner []*FunctionObj
}

func NewFunction(name string, arity int, chunk *bytecode.Chunk) *FunctionObj {
	return &FunctionObj{Name: name, Arity: arity, Chunk: chunk}
}

func (*FunctionObj) Tag() Tag         { return TagFunction }
func (f *FunctionObj) String() string { return "<fn " + f.Name + ">" }

// NativeFn is the host-side shape every registered native function
// implements: given the call's arguments, return a result or an error.
type NativeFn func(args []Value) (Value, error)

// NativeFnObj wraps a host-provided function so it can be called like any
// other VM value.
type NativeFnObj struct {
	header
	Name string
	Fn   NativeFn
}

func NewNativeFn(name string, fn NativeFn) *NativeFnObj {
	return &NativeFnObj{Name: name, Fn: fn}
}

func (*NativeFnObj) Tag() Tag         { return TagNativeFn }
func (*NativeFnObj) String() string   { return "<native fn>" }

// ClosureObj bundles a function with the array of values it captured at
// creation time (spec.md §3: "array of captured values + count" — captured
// by value, not by live reference).
type ClosureObj struct {
	header
	Fn       *FunctionObj
	Upvalues []Value
}

func NewClosure(fn *FunctionObj, upvalues []Value) *ClosureObj {
	return &ClosureObj{Fn: fn, Upvalues: upvalues}
}

func (*ClosureObj) Tag() Tag         { return TagClosure }
func (c *ClosureObj) String() string { return "<fn " + c.Fn.Name + ">" }
