// Package emitter lowers a validated AST into per-function bytecode.Chunks
// and assembles them into a vmheap.Package, per spec.md §4.6. It assumes
// its input already passed internal/validator: names are resolved, types
// are checked, overload calls and struct constructors are already
// rewritten in place, so emission never itself reports an error (per
// spec.md §7, EmitError is reserved for a state this package never
// reaches given correctly validated input).
package emitter

import (
	"github.com/grailbio/base/log"

	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/bytecode"
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/types"
	"github.com/fmaggi/matiria/internal/vmheap"
)

// Emitter lowers one validated program into a vmheap.Package.
type Emitter struct {
	types *types.Registry
}

// New returns an Emitter targeting reg, the TypeRegistry root was
// validated against.
func New(reg *types.Registry) *Emitter {
	return &Emitter{types: reg}
}

// fnGroup collects every FnDecl sharing one global Symbol: registerFn
// (internal/validator) gives every signature of an overloaded name the
// same Symbol pointer, so grouping by that identity recovers the overload
// sets without the emitter needing its own copy of that bookkeeping.
type fnGroup struct {
	sym   *symtab.Symbol
	decls []*ast.FnDecl
}

// Emit lowers root into a Package sized from globals' final slot count.
// Struct and union declarations consume a global slot (registered by
// internal/validator so their names resolve) but hold no runtime value;
// NativeFnDecl slots are left nil here for stdlib.Register to fill in later
// through Package.Bind.
func (e *Emitter) Emit(root *ast.Block, globals *symtab.Scope) *vmheap.Package {
	slots := make([]vmheap.Value, globals.Counter())

	var order []*fnGroup
	bySym := make(map[*symtab.Symbol]*fnGroup)
	for _, stmt := range root.Statements {
		fn, ok := stmt.(*ast.FnDecl)
		if !ok {
			continue
		}
		g, seen := bySym[fn.Symbol]
		if !seen {
			g = &fnGroup{sym: fn.Symbol}
			bySym[fn.Symbol] = g
			order = append(order, g)
		}
		g.decls = append(g.decls, fn)
	}

	var main *vmheap.FunctionObj
	for _, g := range order {
		objs := make([]*vmheap.FunctionObj, len(g.decls))
		for i, d := range g.decls {
			objs[i] = e.emitFn(d)
			if d.Name == "main" {
				main = objs[i]
			}
		}
		if len(objs) == 1 {
			slots[g.sym.Index] = vmheap.ObjVal(objs[0])
		} else {
			arr := make([]vmheap.Value, len(objs))
			for i, o := range objs {
				arr[i] = vmheap.ObjVal(o)
			}
			slots[g.sym.Index] = vmheap.ObjVal(vmheap.NewArray(arr))
		}
	}

	return &vmheap.Package{Globals: slots, Main: main}
}

// fnEmitter lowers one function body into its own Chunk, collecting any
// closures declared directly within it into inner (CLOSURE's template
// index operand addresses this slice).
type fnEmitter struct {
	e     *Emitter
	chunk *bytecode.Chunk
	inner []*vmheap.FunctionObj
}

func (e *Emitter) emitFn(fn *ast.FnDecl) *vmheap.FunctionObj {
	fe := &fnEmitter{e: e, chunk: &bytecode.Chunk{}}
	line := fn.Pos().Line
	for _, stmt := range fn.Body.Statements {
		fe.emitStmt(stmt)
	}
	// A function can fall off the end of its body without an explicit
	// return (Void functions, or a validator-accepted implicit fallthrough);
	// RETURN resets the frame regardless of what locals remain on the
	// stack, so no block-level cleanup is needed at function scope.
	fe.chunk.Emit(bytecode.OpNil, line)
	fe.chunk.Emit(bytecode.OpReturn, line)

	obj := vmheap.NewFunction(fn.Name, len(fn.Params), fe.chunk)
	obj.Inner = fe.inner
	log.Debug.Printf("matiria: emitted %s (%d bytes, %d nested closures)", fn.Name, fe.chunk.Len(), len(fe.inner))
	return obj
}
