// Package vmheap implements the VM's runtime value representation and its
// heap object model: String, Array, Map, Struct, Function, NativeFn, and
// Closure, each a distinct concrete type behind the Object sum-type
// interface, intrusively linked for the VM's teardown sweep.
package vmheap

import "fmt"

// Kind tags a Value's active field.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindObj
)

// Value is the VM's tagged runtime value: an Int, a Float, or a pointer to
// a heap Object. Booleans are represented as KindInt 0/1; nil is KindInt 0,
// per spec.md's MTR_NIL convention.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	O    Object
}

// IntVal returns a Value holding the int64 i.
func IntVal(i int64) Value { return Value{Kind: KindInt, I: i} }

// FloatVal returns a Value holding the float64 f.
func FloatVal(f float64) Value { return Value{Kind: KindFloat, F: f} }

// BoolVal returns a Value holding b, encoded as KindInt 0/1.
func BoolVal(b bool) Value {
	if b {
		return Value{Kind: KindInt, I: 1}
	}
	return Value{Kind: KindInt, I: 0}
}

// ObjVal returns a Value pointing at the heap object o.
func ObjVal(o Object) Value { return Value{Kind: KindObj, O: o} }

// Nil is the zero Int value, by convention.
var Nil = Value{Kind: KindInt, I: 0}

// Truthy reports whether v is the condition-true value: any nonzero Int,
// any nonzero Float, or any non-nil Obj.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	default:
		return v.O != nil
	}
}

// String renders v per the print formatting rules grounded on
// Matiria/stl/mtr_io.c's print_value: Int bare decimal, Float via %f,
// String single-quoted, Array/Map/Struct/Function/NativeFn delegate to
// their Object's own rendering.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%f", v.F)
	default:
		if v.O == nil {
			return "nil"
		}
		return v.O.String()
	}
}

// Tag identifies which concrete Object variant a heap object is.
type Tag int

const (
	TagString Tag = iota
	TagArray
	TagMap
	TagStruct
	TagFunction
	TagNativeFn
	TagClosure
)

// Object is implemented by every heap-allocated variant. It is a sum type
// in the sense spec.md's Design Notes call for: each variant is its own
// concrete Go type, not a shared header with an unsafe cast.
type Object interface {
	Tag() Tag
	String() string
	next() Object
	setNext(Object)
}

// header is embedded by every Object; it carries the VM's intrusive
// singly-linked object list pointer.
type header struct {
	nextObj Object
}

func (h *header) next() Object     { return h.nextObj }
func (h *header) setNext(o Object) { h.nextObj = o }

// Link threads o onto the intrusive list headed by head and returns the new
// head, for the VM to sweep on teardown.
func Link(head, o Object) Object {
	o.setNext(head)
	return o
}

// Next returns the object following o on its intrusive list.
func Next(o Object) Object { return o.next() }
