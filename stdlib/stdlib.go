// Package stdlib registers the host-provided native functions a compiled
// Package's `native fn` declarations need bound before internal/vm.Execute
// can run it (spec.md §6.3). It sits outside internal/ because it is a
// collaborator, not core language machinery: the validator and emitter
// know only that a NativeFnDecl's global slot exists and must be filled.
package stdlib

import (
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/vmheap"
)

// Register binds every native function this toolchain ships against its
// resolved global slot in globals, writing each binding into pkg. A name
// declared `native fn` in source but not registered here is left nil and
// calling it panics at runtime with "value is not callable" — that is a
// program-author error (an unimplemented native), not a toolchain bug.
func Register(pkg *vmheap.Package, globals *symtab.Scope) {
	bind(pkg, globals, "print", mtrPrint)
}

func bind(pkg *vmheap.Package, globals *symtab.Scope, name string, fn vmheap.NativeFn) {
	sym, found := globals.Find(name)
	if !found {
		return
	}
	pkg.Bind(sym.Index, name, fn)
}
