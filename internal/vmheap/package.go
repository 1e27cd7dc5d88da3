package vmheap

// Package is a fully compiled program, per spec.md §3: one slot per
// declared global (function, native function, or overload-set array,
// indexed by its symbol's Index), plus a pointer to the designated entry
// point. A global's slot is nil until the emitter (for functions) or a
// host binding (for natives, via Bind) fills it in.
type Package struct {
	Globals []Value
	Main    *FunctionObj
}

// Bind installs fn under the global slot index, wrapped as a NativeFnObj
// named name. Used by stdlib registration to populate the slots the
// emitter left empty for NativeFnDecls.
func (p *Package) Bind(index int, name string, fn NativeFn) {
	p.Globals[index] = ObjVal(NewNativeFn(name, fn))
}
