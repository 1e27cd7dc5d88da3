// Package vm executes a vmheap.Package compiled by internal/emitter, per
// spec.md §4.7: a fixed-size value stack, one call frame per active
// invocation, and an intrusive heap-object list the VM sweeps on teardown.
package vm

import (
	"fmt"
	"math"
	"runtime/debug"

	"github.com/grailbio/base/log"

	"github.com/fmaggi/matiria/internal/bytecode"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/vmheap"
)

// maxStack is the VM's fixed value-stack depth (spec.md §4.7).
const maxStack = 1024

// VM is a single-threaded, cooperative-only bytecode interpreter (§5): it
// runs one program to completion and is not reused across runs.
type VM struct {
	stack   [maxStack]vmheap.Value
	top     int
	globals []vmheap.Value
	objects vmheap.Object
}

// New returns a VM with no program loaded yet; call Execute to run one.
func New() *VM { return &VM{} }

// Execute runs pkg's Main function to completion. Any runtime failure —
// array/map/struct misuse, a non-invokable call target, stack overflow, or
// an unexpected panic reaching this boundary — surfaces as a single
// merr.RuntimeErr, mirroring grailbio-gql/gql/panic.go's Recover: the VM
// never lets a panic escape to its caller.
func (m *VM) Execute(pkg *vmheap.Package) (err error) {
	if pkg.Main == nil {
		return merr.New(merr.RuntimeErr, 0, 0, "package declares no main function")
	}

	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(runtimeError); ok {
				err = merr.New(merr.RuntimeErr, 0, 0, "%s", d.msg)
				return
			}
			err = merr.New(merr.RuntimeErr, 0, 0, "panic: %v\n%s", r, debug.Stack())
		}
	}()

	m.globals = pkg.Globals
	m.top = 0
	m.objects = nil

	m.call(pkg.Main, 0, nil)

	m.sweep()
	return nil
}

// sweep walks the intrusive object list, releasing the VM's only reference
// to each heap object; Go's own collector reclaims them once unreachable.
func (m *VM) sweep() {
	count := 0
	for o := m.objects; o != nil; o = vmheap.Next(o) {
		count++
	}
	m.objects = nil
	log.Debug.Printf("matiria: vm teardown, %d heap objects released", count)
}

// runtimeError is the payload panic carries from a failing opcode handler
// up to Execute's recover boundary; fail turns it into a normal-looking Go
// panic without constructing a merr.Diagnostic mid-instruction.
type runtimeError struct{ msg string }

func fail(format string, args ...interface{}) {
	panic(runtimeError{msg: fmt.Sprintf(format, args...)})
}

// link threads a freshly allocated heap object onto the VM's sweep list and
// returns it, for chaining into a push.
func (m *VM) link(o vmheap.Object) vmheap.Object {
	m.objects = vmheap.Link(m.objects, o)
	return o
}

func (m *VM) push(v vmheap.Value) {
	if m.top >= maxStack {
		fail("stack overflow")
	}
	m.stack[m.top] = v
	m.top++
}

func (m *VM) pop() vmheap.Value {
	m.top--
	return m.stack[m.top]
}

func (m *VM) peek(distance int) vmheap.Value {
	return m.stack[m.top-distance-1]
}

// frame is one active invocation: base indexes m.stack where this call's
// parameters/locals begin, closed is the closure's captured upvalue array
// (nil for a plain, non-closure function).
type frame struct {
	base   int
	closed []vmheap.Value
}

// call runs fn's chunk recursively to completion, per engine.c's call():
// argc values are already on the stack below the about-to-be-pushed return
// value, so the new frame's base is simply top-argc. fn is carried (not
// just its Chunk) so a CLOSURE instruction inside the body can address
// fn.Inner, the template list internal/emitter collected for it.
func (m *VM) call(fn *vmheap.FunctionObj, argc int, closed []vmheap.Value) {
	fr := frame{base: m.top - argc, closed: closed}
	chunk := fn.Chunk
	code := chunk.Code
	ip := 0

	readU16 := func() uint16 {
		v := bytecode.ReadU16(code, ip)
		ip += 2
		return v
	}
	readI16 := func() int16 {
		v := bytecode.ReadI16(code, ip)
		ip += 2
		return v
	}
	readByte := func() byte {
		b := code[ip]
		ip++
		return b
	}

	for ip < len(code) {
		op := bytecode.Op(code[ip])
		ip++

		switch op {
		case bytecode.OpInt:
			m.push(vmheap.IntVal(chunk.Ints[readU16()]))
		case bytecode.OpFloat:
			m.push(vmheap.FloatVal(chunk.Floats[readU16()]))
		case bytecode.OpTrue:
			m.push(vmheap.BoolVal(true))
		case bytecode.OpFalse:
			m.push(vmheap.BoolVal(false))
		case bytecode.OpNil:
			m.push(vmheap.Nil)
		case bytecode.OpStringLiteral:
			s := chunk.Strings[readU16()]
			m.push(vmheap.ObjVal(m.link(vmheap.NewString(s))))

		case bytecode.OpArrayLiteral:
			n := int(readU16())
			elems := make([]vmheap.Value, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = m.pop()
			}
			m.push(vmheap.ObjVal(m.link(vmheap.NewArray(elems))))
		case bytecode.OpEmptyArray:
			m.push(vmheap.ObjVal(m.link(vmheap.NewArray(nil))))

		case bytecode.OpMapLiteral:
			n := int(readU16())
			keys := make([]vmheap.Value, n)
			vals := make([]vmheap.Value, n)
			for i := n - 1; i >= 0; i-- {
				vals[i] = m.pop()
				keys[i] = m.pop()
			}
			mp := vmheap.NewMap()
			for i := range keys {
				mp.Set(keys[i], vals[i])
			}
			m.push(vmheap.ObjVal(m.link(mp)))
		case bytecode.OpEmptyMap:
			m.push(vmheap.ObjVal(m.link(vmheap.NewMap())))

		case bytecode.OpConstructor:
			name := chunk.Strings[readU16()]
			total := int(readU16())
			provided := int(readU16())
			members := make([]vmheap.Value, total)
			for i := provided - 1; i >= 0; i-- {
				members[i] = m.pop()
			}
			m.push(vmheap.ObjVal(m.link(vmheap.NewStruct(name, members))))

		case bytecode.OpClosure:
			m.execClosure(fn, &fr, readU16, readByte)

		case bytecode.OpGet:
			m.push(m.stack[fr.base+int(readU16())])
		case bytecode.OpSet:
			m.stack[fr.base+int(readU16())] = m.pop()

		case bytecode.OpGlobalGet:
			m.push(m.globals[readU16()])

		case bytecode.OpUpvalueGet:
			m.push(fr.closed[readU16()])
		case bytecode.OpUpvalueSet:
			fr.closed[readU16()] = m.pop()

		case bytecode.OpIndexGet:
			m.execIndexGet()
		case bytecode.OpIndexSet:
			m.execIndexSet()

		case bytecode.OpStructGet:
			idx := int(readU16())
			s := asStruct(m.pop())
			m.push(s.Members[idx])
		case bytecode.OpStructSet:
			idx := int(readU16())
			s := asStruct(m.pop())
			s.Members[idx] = m.pop()

		case bytecode.OpAddI:
			m.binaryInt(func(l, r int64) int64 { return l + r })
		case bytecode.OpAddF:
			m.binaryFloat(func(l, r float64) float64 { return l + r })
		case bytecode.OpSubI:
			m.binaryInt(func(l, r int64) int64 { return l - r })
		case bytecode.OpSubF:
			m.binaryFloat(func(l, r float64) float64 { return l - r })
		case bytecode.OpMulI:
			m.binaryInt(func(l, r int64) int64 { return l * r })
		case bytecode.OpMulF:
			m.binaryFloat(func(l, r float64) float64 { return l * r })
		case bytecode.OpDivI:
			m.binaryInt(func(l, r int64) int64 {
				if r == 0 {
					fail("integer division by zero")
				}
				return l / r
			})
		case bytecode.OpDivF:
			m.binaryFloat(func(l, r float64) float64 { return l / r })
		case bytecode.OpModI:
			m.binaryInt(func(l, r int64) int64 {
				if r == 0 {
					fail("integer division by zero")
				}
				return l % r
			})
		case bytecode.OpModF:
			m.binaryFloat(func(l, r float64) float64 { return math.Mod(l, r) })
		case bytecode.OpIDivI:
			m.binaryInt(func(l, r int64) int64 {
				if r == 0 {
					fail("integer division by zero")
				}
				return l / r
			})
		case bytecode.OpIDivF:
			m.binaryFloat(func(l, r float64) float64 { return math.Floor(l / r) })

		case bytecode.OpNot:
			top := m.peek(0)
			m.stack[m.top-1] = vmheap.BoolVal(!top.Truthy())
		case bytecode.OpNegateI:
			m.stack[m.top-1] = vmheap.IntVal(-m.stack[m.top-1].I)
		case bytecode.OpNegateF:
			m.stack[m.top-1] = vmheap.FloatVal(-m.stack[m.top-1].F)

		case bytecode.OpLessI:
			m.compareInt(func(l, r int64) bool { return l < r })
		case bytecode.OpLessF:
			m.compareFloat(func(l, r float64) bool { return l < r })
		case bytecode.OpGreaterI:
			m.compareInt(func(l, r int64) bool { return l > r })
		case bytecode.OpGreaterF:
			m.compareFloat(func(l, r float64) bool { return l > r })
		case bytecode.OpEqualI:
			m.compareInt(func(l, r int64) bool { return l == r })
		case bytecode.OpEqualF:
			m.compareFloat(func(l, r float64) bool { return l == r })

		case bytecode.OpOr:
			where := readI16()
			if m.peek(0).Truthy() {
				ip += int(where)
			} else {
				m.pop()
			}
		case bytecode.OpAnd:
			where := readI16()
			if !m.peek(0).Truthy() {
				ip += int(where)
			} else {
				m.pop()
			}

		case bytecode.OpJmp:
			ip += int(readI16())
		case bytecode.OpJmpZ:
			where := readI16()
			if !m.pop().Truthy() {
				ip += int(where)
			}

		case bytecode.OpPop:
			m.pop()
		case bytecode.OpPopV:
			n := int(readU16())
			m.top -= n

		case bytecode.OpCall:
			argc := int(readByte())
			m.execCall(argc)

		case bytecode.OpReturn:
			res := m.pop()
			m.top = fr.base
			m.push(res)
			return

		case bytecode.OpIntCast:
			v := m.pop()
			if v.Kind == vmheap.KindFloat {
				v = vmheap.IntVal(int64(v.F))
			}
			m.push(v)
		case bytecode.OpFloatCast:
			v := m.pop()
			m.push(vmheap.FloatVal(float64(v.I)))

		default:
			fail("unknown opcode %s", op)
		}
	}
}
