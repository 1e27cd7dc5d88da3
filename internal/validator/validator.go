// Package validator implements the two-pass semantic analysis described in
// spec.md §4.5: a load_globals pass that pre-registers every top-level
// declaration so forward references resolve, followed by an analyze pass
// that walks the AST top-down, resolving names, checking types, and
// rewriting nodes in place (Cast insertion, overload selection, upvalue
// capture) the way the teacher's gql/semantic.go resolves and type-checks a
// query AST before evaluation.
package validator

import (
	"github.com/grailbio/base/log"

	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/types"
)

// overload is the set of signatures declared under one top-level name.
// Native functions are never overloaded, so nativeDecl and decls are
// mutually exclusive.
type overload struct {
	decls      []*ast.FnDecl
	nativeDecl *ast.NativeFnDecl
}

// upvalueEntry mirrors ast.Upvalue during resolution, plus the captured
// value's type (not part of ast.Upvalue itself, which is a pure addressing
// record the emitter consumes).
type upvalueEntry struct {
	index    int
	nonLocal bool
	name     string
	typ      types.Handle
}

// frame tracks one function body's resolution state: the scope its locals
// live in, and (for nested closures) the upvalues it has captured so far.
type frame struct {
	fn       *ast.FnDecl
	closure  *ast.ClosureDecl // nil for a top-level (non-nested) function
	boundary *symtab.Scope    // the scope created by NewFunctionScope for fn

	// enclosingAt is the scope that was current when this frame's function
	// was declared; nil for top-level functions, which have no enclosing
	// frame to capture from.
	enclosingAt *symtab.Scope

	upvalues   []upvalueEntry
	upvalueIdx map[string]int
}

// Validator implements spec.md §4.5. One Validator analyzes exactly one
// parsed program against one TypeRegistry.
type Validator struct {
	types   *types.Registry
	globals *symtab.Scope
	scope   *symtab.Scope

	overloads map[string]*overload
	frames    []*frame

	errs []error
}

// New returns a Validator over reg, ready to Validate a parsed root block.
func New(reg *types.Registry) *Validator {
	globals := symtab.NewGlobalScope()
	return &Validator{
		types:     reg,
		globals:   globals,
		scope:     globals,
		overloads: make(map[string]*overload),
	}
}

// GlobalScope returns the top-level scope Validate populated, so the
// emitter can size the Package's globals array and look up native
// function slots by name.
func (v *Validator) GlobalScope() *symtab.Scope { return v.globals }

// Errors returns every diagnostic recorded during Validate.
func (v *Validator) Errors() []error { return v.errs }

// HadError reports whether any diagnostic was recorded.
func (v *Validator) HadError() bool { return len(v.errs) > 0 }

// Validate runs the load_globals pass followed by the analyze pass over
// root, the parser's top-level block.
func (v *Validator) Validate(root *ast.Block) {
	v.loadGlobals(root)
	for _, stmt := range root.Statements {
		v.analyzeTopLevel(stmt)
	}
}

func (v *Validator) err(kind merr.Kind, tok ast.Node, format string, args ...interface{}) {
	pos := tok.Pos()
	v.errs = append(v.errs, merr.New(kind, pos.Line, pos.Column, format, args...))
}

func isNumericKind(k types.Kind) bool {
	return k == types.KindBool || k == types.KindInt || k == types.KindFloat
}

func (v *Validator) isNumeric(h types.Handle) bool { return isNumericKind(v.types.Kind(h)) }

func paramHandles(params []ast.Param) []types.Handle {
	out := make([]types.Handle, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

// coerce attempts to make expr assignable to target: same type, Any on
// either side, a union variant match, or a Bool<Int<Float promotion (which
// rewrites expr into a Cast). Returns the (possibly rewritten) expression
// and whether coercion succeeded.
func (v *Validator) coerce(expr ast.Expr, target types.Handle) (ast.Expr, bool) {
	cur := expr.ExprType()
	if v.types.Match(cur, target) {
		return expr, true
	}
	if v.types.Kind(target) == types.KindUnion {
		for _, variant := range v.types.UnionVariants(target) {
			if v.types.Match(cur, variant) {
				return expr, true
			}
		}
		return expr, false
	}
	curRank := types.Rank(v.types.Kind(cur))
	targetRank := types.Rank(v.types.Kind(target))
	if curRank >= 0 && targetRank >= 0 && curRank < targetRank {
		cast := &ast.Cast{ExprBase: ast.NewExprBase(expr.Pos()), Right: expr, Target: target}
		cast.SetExprType(target)
		return cast, true
	}
	return expr, false
}

// ---- name resolution ----

// currentFrame returns the frame being analyzed, or nil outside any
// function body (e.g. while still resolving a top-level type annotation).
func (v *Validator) currentFrame() *frame {
	if len(v.frames) == 0 {
		return nil
	}
	return v.frames[len(v.frames)-1]
}

// findLocalUpTo walks start's parent chain up to and including boundary,
// looking for name only in each scope's own table (never a grandparent
// beyond boundary).
func findLocalUpTo(start, boundary *symtab.Scope, name string) (*symtab.Symbol, bool) {
	for sc := start; sc != nil; sc = sc.Parent() {
		if sym, ok := sc.FindLocal(name); ok {
			return sym, true
		}
		if sc == boundary {
			break
		}
	}
	return nil, false
}

func addUpvalue(fr *frame, e upvalueEntry) int {
	if idx, ok := fr.upvalueIdx[e.name]; ok {
		return idx
	}
	idx := len(fr.upvalues)
	fr.upvalues = append(fr.upvalues, e)
	fr.upvalueIdx[e.name] = idx
	return idx
}

// resolveUpvalue tries to resolve name as an upvalue of v.frames[idx] by
// searching the immediately enclosing frame, v.frames[idx-1]: first its own
// locals (from the scope live when frames[idx] was declared, up to
// frames[idx-1]'s own function boundary), then — recursively — its own
// upvalues, so a capture chain threads through every closure in between.
// It does not look at frames[idx]'s own locals, which resolvePrimary
// already checked directly before calling this.
func (v *Validator) resolveUpvalue(idx int, name string) (int, bool) {
	if idx <= 0 {
		return 0, false
	}
	fr := v.frames[idx]
	enclosing := v.frames[idx-1]
	if sym, ok := findLocalUpTo(fr.enclosingAt, enclosing.boundary, name); ok {
		return addUpvalue(fr, upvalueEntry{index: sym.Index, nonLocal: false, name: name, typ: sym.Type}), true
	}
	if upIdx, ok := v.resolveUpvalue(idx-1, name); ok {
		capturedType := enclosing.upvalues[upIdx].typ
		return addUpvalue(fr, upvalueEntry{index: upIdx, nonLocal: true, name: name, typ: capturedType}), true
	}
	return 0, false
}

// resolvePrimary resolves p.Name to a symbol, in priority order: a local of
// the current function, an upvalue capture chain through enclosing
// closures, or a global. Reports UndeclaredName on total miss.
func (v *Validator) resolvePrimary(p *ast.Primary) {
	fr := v.currentFrame()
	if fr != nil {
		if sym, ok := findLocalUpTo(v.scope, fr.boundary, p.Name); ok {
			p.Symbol = sym
			p.SetExprType(sym.Type)
			return
		}
		if idx, ok := v.resolveUpvalue(len(v.frames)-1, p.Name); ok {
			entry := fr.upvalues[idx]
			kind := symtab.UpvalueLocal
			if entry.nonLocal {
				kind = symtab.UpvalueNonLocal
			}
			log.Debug.Printf("matiria: capture upvalue %q at %d:%d (index=%d nonlocal=%v)",
				p.Name, p.Pos().Line, p.Pos().Column, idx, entry.nonLocal)
			sym := &symtab.Symbol{Name: p.Name, Type: entry.typ, Index: idx, Upvalue: kind}
			p.Symbol = sym
			p.SetExprType(sym.Type)
			return
		}
	}
	if sym, ok := v.globals.FindLocal(p.Name); ok {
		p.Symbol = sym
		p.SetExprType(sym.Type)
		return
	}
	v.err(merr.ScopeErr, p, "undeclared name '%s'", p.Name)
	p.SetExprType(types.Invalid)
}
