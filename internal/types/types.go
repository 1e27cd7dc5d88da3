// Package types implements the hash-consed TypeRegistry: every type ever
// referenced while compiling a program is interned here, and two
// structurally-equal types always share one Handle.
package types

import (
	"fmt"
	"hash/fnv"

	"github.com/spaolacci/murmur3"
)

// Kind distinguishes the tagged variants a Type can be.
type Kind int

const (
	KindInvalid Kind = iota
	KindAny
	KindVoid
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMap
	KindFn
	KindStruct
	KindUnion
	KindUser
)

// Handle is an opaque, stable reference to an interned type. Handles for
// primitive types never change across registries; handles for compound
// types are only comparable within the Registry that produced them.
type Handle int32

// Primitive handles are reserved and never relocate on resize.
const (
	Invalid Handle = iota
	Any
	Void
	Bool
	Int
	Float
	String
	numPrimitives
)

// Member describes one named, typed slot of a Struct, in declaration
// order.
type Member struct {
	Name string
	Type Handle
}

type desc struct {
	kind Kind

	// Array
	elem Handle
	// Map
	key, val Handle
	// Fn
	ret  Handle
	args []Handle
	// Struct / Union / User
	name     string
	members  []Member // Struct only
	variants []Handle // Union only

	h uint64
}

// Registry is an open-addressed, hash-consed store of types. It is owned
// by a single compilation run; it is not a process-wide singleton (see
// DESIGN.md).
type Registry struct {
	descs   []desc
	buckets []int32 // 0 means empty; stored index is (descIndex+1)
	byName  map[string]Handle
}

const loadFactor = 0.75

// NewRegistry returns a Registry pre-loaded with the seven primitive
// types at their fixed handles.
func NewRegistry() *Registry {
	r := &Registry{
		descs:   make([]desc, numPrimitives, 64),
		buckets: make([]int32, 16),
		byName:  make(map[string]Handle),
	}
	r.descs[Invalid] = desc{kind: KindInvalid}
	r.descs[Any] = desc{kind: KindAny}
	r.descs[Void] = desc{kind: KindVoid}
	r.descs[Bool] = desc{kind: KindBool}
	r.descs[Int] = desc{kind: KindInt}
	r.descs[Float] = desc{kind: KindFloat}
	r.descs[String] = desc{kind: KindString}
	return r
}

func (r *Registry) Kind(h Handle) Kind   { return r.descs[h].kind }
func (r *Registry) Name(h Handle) string { return r.descs[h].name }
func (r *Registry) Elem(h Handle) Handle { return r.descs[h].elem }
func (r *Registry) KeyVal(h Handle) (key, val Handle) {
	d := r.descs[h]
	return d.key, d.val
}
func (r *Registry) FnInfo(h Handle) (ret Handle, args []Handle) {
	d := r.descs[h]
	return d.ret, d.args
}
func (r *Registry) StructMembers(h Handle) []Member { return r.descs[h].members }
func (r *Registry) UnionVariants(h Handle) []Handle  { return r.descs[h].variants }

// MemberIndex returns the index of name within the struct type h's member
// list, and whether it was found.
func (r *Registry) MemberIndex(h Handle, name string) (int, bool) {
	for i, m := range r.descs[h].members {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}

// LookupByName returns the handle previously registered under name (via
// RegisterStruct, RegisterUnion, or RegisterUser), and whether it exists.
func (r *Registry) LookupByName(name string) (Handle, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// GetVoid returns the Void primitive's handle.
func (r *Registry) GetVoid() Handle { return Void }

func fnvName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

func mixArray(elem uint64) uint64 {
	return murmur3.Sum64WithSeed(u64bytes(elem), uint32(KindArray))
}

func mixMap(key, val uint64) uint64 {
	buf := append(u64bytes(key), u64bytes(val)...)
	return murmur3.Sum64WithSeed(buf, uint32(KindMap))
}

func mixFn(ret uint64, argHashes []uint64) uint64 {
	buf := u64bytes(ret)
	for _, a := range argHashes {
		buf = append(buf, u64bytes(a)...)
	}
	return murmur3.Sum64WithSeed(buf, uint32(KindFn))
}

func u64bytes(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

func (r *Registry) hashOf(h Handle) uint64 { return r.descs[h].h }

func (r *Registry) equalDesc(h Handle, d desc) bool {
	a := r.descs[h]
	if a.kind != d.kind {
		return false
	}
	switch d.kind {
	case KindArray:
		return a.elem == d.elem
	case KindMap:
		return a.key == d.key && a.val == d.val
	case KindFn:
		if a.ret != d.ret || len(a.args) != len(d.args) {
			return false
		}
		for i := range a.args {
			if a.args[i] != d.args[i] {
				return false
			}
		}
		return true
	case KindStruct, KindUnion, KindUser:
		return a.name == d.name
	default:
		return true
	}
}

// intern inserts d if not already present (by hash + structural equality)
// and returns the canonical handle.
func (r *Registry) intern(d desc) Handle {
	if cap := len(r.buckets); float64(len(r.descs)-int(numPrimitives)+1) > loadFactor*float64(cap) {
		r.grow()
	}
	mask := uint64(len(r.buckets) - 1)
	idx := d.h & mask
	for {
		slot := r.buckets[idx]
		if slot == 0 {
			r.descs = append(r.descs, d)
			newHandle := Handle(len(r.descs) - 1)
			r.buckets[idx] = int32(newHandle) + 1
			if d.name != "" {
				r.byName[d.name] = newHandle
			}
			return newHandle
		}
		existing := Handle(slot - 1)
		if r.hashOf(existing) == d.h && r.equalDesc(existing, d) {
			return existing
		}
		idx = (idx + 1) & mask
	}
}

func (r *Registry) grow() {
	newCap := len(r.buckets) * 2
	newBuckets := make([]int32, newCap)
	mask := uint64(newCap - 1)
	for i := int(numPrimitives); i < len(r.descs); i++ {
		h := r.descs[i].h & mask
		for newBuckets[h] != 0 {
			h = (h + 1) & mask
		}
		newBuckets[h] = int32(i) + 1
	}
	r.buckets = newBuckets
}

// RegisterArray interns Array(elem) and returns its handle.
func (r *Registry) RegisterArray(elem Handle) Handle {
	d := desc{kind: KindArray, elem: elem, h: mixArray(r.hashOf(elem))}
	return r.intern(d)
}

// RegisterMap interns Map(key, val) and returns its handle.
func (r *Registry) RegisterMap(key, val Handle) Handle {
	d := desc{kind: KindMap, key: key, val: val, h: mixMap(r.hashOf(key), r.hashOf(val))}
	return r.intern(d)
}

// RegisterFn interns Fn(ret, args) and returns its handle.
func (r *Registry) RegisterFn(ret Handle, args []Handle) Handle {
	argHashes := make([]uint64, len(args))
	for i, a := range args {
		argHashes[i] = r.hashOf(a)
	}
	argsCopy := append([]Handle(nil), args...)
	d := desc{kind: KindFn, ret: ret, args: argsCopy, h: mixFn(r.hashOf(ret), argHashes)}
	return r.intern(d)
}

// RegisterStruct interns Struct(name, members) and returns its handle. If
// name was only ever seen as a User forward reference so far, that
// placeholder is resolved in place (same handle, since both hash by name).
// If name is already a real Struct/Union, the earlier handle is returned
// unchanged — re-declaration is a ScopeError the caller must detect before
// calling this.
func (r *Registry) RegisterStruct(name string, members []Member) Handle {
	membersCopy := append([]Member(nil), members...)
	if h, ok := r.byName[name]; ok {
		if r.descs[h].kind == KindUser {
			r.descs[h].kind = KindStruct
			r.descs[h].members = membersCopy
		}
		return h
	}
	d := desc{kind: KindStruct, name: name, members: membersCopy, h: fnvName(name)}
	return r.intern(d)
}

// RegisterUnion interns Union(name, variants) and returns its handle, with
// the same User-placeholder resolution RegisterStruct performs.
func (r *Registry) RegisterUnion(name string, variants []Handle) Handle {
	variantsCopy := append([]Handle(nil), variants...)
	if h, ok := r.byName[name]; ok {
		if r.descs[h].kind == KindUser {
			r.descs[h].kind = KindUnion
			r.descs[h].variants = variantsCopy
		}
		return h
	}
	d := desc{kind: KindUnion, name: name, variants: variantsCopy, h: fnvName(name)}
	return r.intern(d)
}

// RegisterUser interns a forward reference User(name): a placeholder for
// a Struct or Union not yet declared. Resolve looks up the eventual
// Struct/Union by name.
func (r *Registry) RegisterUser(name string) Handle {
	d := desc{kind: KindUser, name: name, h: fnvName(name)}
	return r.intern(d)
}

// Resolve turns a User(name) handle into the Struct/Union handle
// registered under the same name, if any has been declared yet.
func (r *Registry) Resolve(h Handle) (Handle, bool) {
	d := r.descs[h]
	if d.kind != KindUser {
		return h, true
	}
	resolved, ok := r.byName[d.name]
	if !ok || resolved == h {
		return h, false
	}
	return resolved, true
}

// existsHash reports whether a type structurally equal to d, hashing to h,
// is already interned, without inserting it.
func (r *Registry) existsHash(h uint64, d desc) (Handle, bool) {
	if len(r.buckets) == 0 {
		return Invalid, false
	}
	mask := uint64(len(r.buckets) - 1)
	idx := h & mask
	for {
		slot := r.buckets[idx]
		if slot == 0 {
			return Invalid, false
		}
		existing := Handle(slot - 1)
		if r.hashOf(existing) == h && r.equalDesc(existing, d) {
			return existing, true
		}
		idx = (idx + 1) & mask
	}
}

// ExistsStruct reports whether name has already been registered as a
// Struct, Union, or User forward reference.
func (r *Registry) ExistsStruct(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Match implements the §3 matching rules: handle equality, plus Any
// matching anything non-Invalid, plus User matching a Struct/Union of the
// same name.
func (r *Registry) Match(a, b Handle) bool {
	if a == b {
		return true
	}
	if a == Invalid || b == Invalid {
		return false
	}
	if a == Any || b == Any {
		return true
	}
	ak, bk := r.Kind(a), r.Kind(b)
	if ak == KindUser && (bk == KindStruct || bk == KindUnion) {
		return r.Name(a) == r.Name(b)
	}
	if bk == KindUser && (ak == KindStruct || ak == KindUnion) {
		return r.Name(a) == r.Name(b)
	}
	return false
}

// String renders a handle as source-ish syntax, for diagnostics.
func (r *Registry) String(h Handle) string {
	d := r.descs[h]
	switch d.kind {
	case KindInvalid:
		return "<invalid>"
	case KindAny:
		return "Any"
	case KindVoid:
		return "Void"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindArray:
		return fmt.Sprintf("[%s]", r.String(d.elem))
	case KindMap:
		return fmt.Sprintf("{%s:%s}", r.String(d.key), r.String(d.val))
	case KindFn:
		args := ""
		for i, a := range d.args {
			if i > 0 {
				args += ", "
			}
			args += r.String(a)
		}
		return fmt.Sprintf("fn(%s) -> %s", args, r.String(d.ret))
	case KindStruct, KindUnion, KindUser:
		return d.name
	default:
		return "?"
	}
}

// Rank returns the numeric promotion rank used by assignment coercion:
// Bool < Int < Float. Non-numeric types rank -1.
func Rank(k Kind) int {
	switch k {
	case KindBool:
		return 0
	case KindInt:
		return 1
	case KindFloat:
		return 2
	default:
		return -1
	}
}
