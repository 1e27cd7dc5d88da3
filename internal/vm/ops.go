package vm

import "github.com/fmaggi/matiria/internal/vmheap"

func (m *VM) binaryInt(op func(l, r int64) int64) {
	r := m.pop()
	l := m.pop()
	m.push(vmheap.IntVal(op(l.I, r.I)))
}

func (m *VM) binaryFloat(op func(l, r float64) float64) {
	r := m.pop()
	l := m.pop()
	m.push(vmheap.FloatVal(op(l.F, r.F)))
}

func (m *VM) compareInt(op func(l, r int64) bool) {
	r := m.pop()
	l := m.pop()
	m.push(vmheap.BoolVal(op(l.I, r.I)))
}

func (m *VM) compareFloat(op func(l, r float64) bool) {
	r := m.pop()
	l := m.pop()
	m.push(vmheap.BoolVal(op(l.F, r.F)))
}

func asStruct(v vmheap.Value) *vmheap.StructObj {
	s, ok := v.O.(*vmheap.StructObj)
	if !ok {
		fail("expected a struct value")
	}
	return s
}

// execClosure builds a ClosureObj from the template addressed by the
// CLOSURE instruction's first operand — an index into the enclosing
// function's own Inner list — reading each captured value out of either
// the current frame's locals or its own closed-upvalue array, selected per
// (index, nonlocal) exactly as emitted by internal/emitter.emitClosure.
func (m *VM) execClosure(enclosing *vmheap.FunctionObj, fr *frame, readU16 func() uint16, readByte func() byte) {
	templateIdx := int(readU16())
	count := int(readU16())
	template := enclosing.Inner[templateIdx]

	upvalues := make([]vmheap.Value, count)
	for i := 0; i < count; i++ {
		index := int(readU16())
		nonlocal := readByte() != 0
		if nonlocal {
			upvalues[i] = fr.closed[index]
		} else {
			upvalues[i] = m.stack[fr.base+index]
		}
	}
	m.push(vmheap.ObjVal(m.link(vmheap.NewClosure(template, upvalues))))
}

// execIndexGet implements INDEX_GET per engine.c: pop the key, then the
// container; Array bounds-checks, Map misses return Nil (§7: "map miss
// treated as nil"), String indexing is an open question locked as a
// RuntimeError (§9).
func (m *VM) execIndexGet() {
	key := m.pop()
	obj := m.pop()
	switch o := obj.O.(type) {
	case *vmheap.ArrayObj:
		i := int(key.I)
		if i < 0 || i >= len(o.Elems) {
			fail("array index %d out of bounds (size %d)", i, len(o.Elems))
		}
		m.push(o.Elems[i])
	case *vmheap.MapObj:
		v, found := o.Get(key)
		if !found {
			m.push(vmheap.Nil)
			return
		}
		m.push(v)
	case *vmheap.StringObj:
		fail("string indexing is not supported")
	default:
		fail("value is not subscriptable")
	}
}

// execIndexSet implements INDEX_SET: the emitter pushes value, then
// object, then key (INDEX_SET pops key, object, value in that order, per
// internal/emitter.emitAssignment).
func (m *VM) execIndexSet() {
	key := m.pop()
	obj := m.pop()
	val := m.pop()
	switch o := obj.O.(type) {
	case *vmheap.ArrayObj:
		i := int(key.I)
		if i < 0 || i >= len(o.Elems) {
			fail("array index %d out of bounds (size %d)", i, len(o.Elems))
		}
		o.Elems[i] = val
	case *vmheap.MapObj:
		o.Set(key, val)
	case *vmheap.StringObj:
		fail("<String> does not support item assignment")
	default:
		fail("value is not subscriptable")
	}
}

// execCall implements CALL: the callable sits on top of argc already-pushed
// arguments; Function/Closure recurse into call(), NativeFn invokes the
// host function directly against the argument slice.
func (m *VM) execCall(argc int) {
	callee := m.pop()
	switch fn := callee.O.(type) {
	case *vmheap.FunctionObj:
		m.call(fn, argc, nil)
	case *vmheap.ClosureObj:
		m.call(fn.Fn, argc, fn.Upvalues)
	case *vmheap.NativeFnObj:
		args := make([]vmheap.Value, argc)
		copy(args, m.stack[m.top-argc:m.top])
		m.top -= argc
		res, err := fn.Fn(args)
		if err != nil {
			fail("%s: %s", fn.Name, err.Error())
		}
		m.push(res)
	default:
		fail("value is not callable")
	}
}
