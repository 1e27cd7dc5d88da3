package validator

import (
	"github.com/grailbio/base/log"

	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/types"
)

// loadGlobals is the validator's first pass (§4.5 point 13): every
// top-level function, native function, struct, and union is registered
// into the global scope by name before any body is analyzed, so later
// declarations can forward-reference earlier ones and vice versa.
func (v *Validator) loadGlobals(root *ast.Block) {
	for _, stmt := range root.Statements {
		switch d := stmt.(type) {
		case *ast.FnDecl:
			v.registerFn(d)
		case *ast.NativeFnDecl:
			v.registerNativeFn(d)
		case *ast.StructDecl:
			v.registerStruct(d)
		case *ast.UnionDecl:
			v.registerUnion(d)
		default:
			v.err(merr.ParseErr, stmt, "unexpected top-level statement")
		}
	}
}

func (v *Validator) registerFn(d *ast.FnDecl) {
	if ov, ok := v.overloads[d.Name]; ok {
		if ov.nativeDecl != nil {
			v.err(merr.ScopeErr, d, "redefinition of '%s': a native function cannot be overloaded", d.Name)
			return
		}
		ov.decls = append(ov.decls, d)
		d.Symbol = ov.decls[0].Symbol
		log.Debug.Printf("matiria: %s is now overloaded (%d signatures)", d.Name, len(ov.decls))
		return
	}
	fnType := v.types.RegisterFn(d.ReturnType, paramHandles(d.Params))
	sym := &symtab.Symbol{Name: d.Name, Type: fnType, IsGlobal: true}
	if _, ok := v.globals.Add(d.Name, sym); !ok {
		v.err(merr.ScopeErr, d, "redefinition of '%s'", d.Name)
		return
	}
	d.Symbol = sym
	v.overloads[d.Name] = &overload{decls: []*ast.FnDecl{d}}
}

func (v *Validator) registerNativeFn(d *ast.NativeFnDecl) {
	if _, ok := v.overloads[d.Name]; ok {
		v.err(merr.ScopeErr, d, "redefinition of '%s'", d.Name)
		return
	}
	fnType := v.types.RegisterFn(d.ReturnType, paramHandles(d.Params))
	sym := &symtab.Symbol{Name: d.Name, Type: fnType, IsGlobal: true}
	if _, ok := v.globals.Add(d.Name, sym); !ok {
		v.err(merr.ScopeErr, d, "redefinition of '%s'", d.Name)
		return
	}
	d.Symbol = sym
	v.overloads[d.Name] = &overload{nativeDecl: d}
}

func (v *Validator) registerStruct(d *ast.StructDecl) {
	members := make([]types.Member, len(d.Members))
	for i, m := range d.Members {
		members[i] = types.Member{Name: m.Name, Type: m.Type}
	}
	if existing, ok := v.types.LookupByName(d.Name); ok && v.types.Kind(existing) != types.KindUser {
		v.err(merr.ScopeErr, d, "redefinition of type '%s'", d.Name)
		return
	}
	h := v.types.RegisterStruct(d.Name, members)
	d.Handle = h
	sym := &symtab.Symbol{Name: d.Name, Type: h, IsGlobal: true}
	if _, ok := v.globals.Add(d.Name, sym); !ok {
		v.err(merr.ScopeErr, d, "redefinition of '%s'", d.Name)
	}
}

func (v *Validator) registerUnion(d *ast.UnionDecl) {
	if existing, ok := v.types.LookupByName(d.Name); ok && v.types.Kind(existing) != types.KindUser {
		v.err(merr.ScopeErr, d, "redefinition of type '%s'", d.Name)
		return
	}
	h := v.types.RegisterUnion(d.Name, d.Variants)
	d.Handle = h
	sym := &symtab.Symbol{Name: d.Name, Type: h, IsGlobal: true}
	if _, ok := v.globals.Add(d.Name, sym); !ok {
		v.err(merr.ScopeErr, d, "redefinition of '%s'", d.Name)
	}
}

// checkTypeResolved reports a TypeError if h is still an unresolved User
// forward reference once every top-level declaration has been loaded.
func (v *Validator) checkTypeResolved(h types.Handle, node ast.Node) {
	if v.types.Kind(h) == types.KindUser {
		if _, ok := v.types.Resolve(h); !ok {
			v.err(merr.TypeErr, node, "undefined type '%s'", v.types.Name(h))
		}
	}
}

func (v *Validator) checkSignatureResolved(ret types.Handle, params []ast.Param, node ast.Node) {
	v.checkTypeResolved(ret, node)
	for _, p := range params {
		v.checkTypeResolved(p.Type, node)
	}
}

// analyzeTopLevel runs the second pass over one top-level declaration.
func (v *Validator) analyzeTopLevel(stmt ast.Stmt) {
	switch d := stmt.(type) {
	case *ast.FnDecl:
		v.checkSignatureResolved(d.ReturnType, d.Params, d)
		v.analyzeFn(d, nil)
	case *ast.NativeFnDecl:
		v.checkSignatureResolved(d.ReturnType, d.Params, d)
	case *ast.StructDecl:
		for _, m := range d.Members {
			v.checkTypeResolved(m.Type, d)
		}
	case *ast.UnionDecl:
		for _, h := range d.Variants {
			v.checkTypeResolved(h, d)
		}
	}
}

// analyzeFn validates one function body under a fresh function-scoped
// frame. closure is non-nil when fn is a nested closure's inner function,
// letting upvalue resolution see past its boundary into the enclosing
// frame.
func (v *Validator) analyzeFn(fn *ast.FnDecl, closure *ast.ClosureDecl) {
	boundary := symtab.NewFunctionScope(v.scope)
	fr := &frame{
		fn:          fn,
		closure:     closure,
		boundary:    boundary,
		enclosingAt: v.scope,
		upvalueIdx:  make(map[string]int),
	}
	if len(v.frames) == 0 {
		fr.enclosingAt = nil // top-level functions have no enclosing frame
	}
	v.frames = append(v.frames, fr)
	v.scope = boundary

	for _, p := range fn.Params {
		sym := &symtab.Symbol{Name: p.Name, Type: p.Type, Assignable: true}
		if _, ok := v.scope.Add(p.Name, sym); !ok {
			v.err(merr.ScopeErr, fn, "redefinition of parameter '%s'", p.Name)
		}
	}

	v.analyzeBlockIn(fn.Body, boundary)

	if closure != nil {
		closure.Upvalues = make([]ast.Upvalue, len(fr.upvalues))
		for i, u := range fr.upvalues {
			closure.Upvalues[i] = ast.Upvalue{Index: u.index, NonLocal: u.nonLocal, Name: u.name}
		}
	}

	v.frames = v.frames[:len(v.frames)-1]
	v.scope = fr.enclosingAtRestore()
}

// enclosingAtRestore returns the scope analysis should continue in once
// this frame is popped: the scope active at the point the function was
// declared (global scope for a top-level function).
func (fr *frame) enclosingAtRestore() *symtab.Scope {
	if fr.enclosingAt != nil {
		return fr.enclosingAt
	}
	return fr.boundary.Parent()
}
