package validator

import (
	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/token"
	"github.com/fmaggi/matiria/internal/types"
)

// analyzeStmt dispatches one statement of a function body or nested block.
func (v *Validator) analyzeStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Block:
		v.analyzeBlock(s)
	case *ast.If:
		v.validateIf(s)
	case *ast.While:
		v.validateWhile(s)
	case *ast.VarDecl:
		v.validateVarDecl(s)
	case *ast.Assignment:
		v.validateAssignment(s)
	case *ast.Return:
		v.validateReturn(s)
	case *ast.ClosureDecl:
		v.validateClosureDecl(s)
	case *ast.ExpressionStmt:
		s.Call = v.analyzeExpr(s.Call).(*ast.Call)
	default:
		v.err(merr.ParseErr, stmt, "statement not valid in this position")
	}
}

// analyzeBlockIn analyzes b's statements under scope, restoring the
// validator's current scope on return.
func (v *Validator) analyzeBlockIn(b *ast.Block, scope *symtab.Scope) {
	prev := v.scope
	v.scope = scope
	for _, stmt := range b.Statements {
		v.analyzeStmt(stmt)
	}
	v.scope = prev
}

// analyzeBlock analyzes b under a fresh child scope of the current one, the
// ordinary case for an if/while body or a bare nested block.
func (v *Validator) analyzeBlock(b *ast.Block) {
	v.analyzeBlockIn(b, symtab.NewBlockScope(v.scope))
}

// validateIf and validateWhile check their condition against the
// language's numeric truthiness rule (§4.5 point 11): Bool, Int, and Float
// are all valid conditions, matching vmheap.Value's own Truthy rule.
func (v *Validator) validateIf(s *ast.If) {
	s.Condition = v.analyzeExpr(s.Condition)
	if !v.isNumeric(s.Condition.ExprType()) {
		v.err(merr.TypeErr, s, "if condition must be Bool, Int, or Float")
	}
	v.analyzeStmt(s.Then)
	if s.Else != nil {
		v.analyzeStmt(s.Else)
	}
}

func (v *Validator) validateWhile(s *ast.While) {
	s.Condition = v.analyzeExpr(s.Condition)
	if !v.isNumeric(s.Condition.ExprType()) {
		v.err(merr.TypeErr, s, "while condition must be Bool, Int, or Float")
	}
	v.analyzeStmt(s.Body)
}

// validateVarDecl implements §4.5 point 6: an explicit declared type with
// no initializer synthesizes a zero-arg struct constructor call; otherwise
// the initializer's type either fills in an omitted declared type or is
// checked/coerced against an explicit one.
func (v *Validator) validateVarDecl(d *ast.VarDecl) {
	if d.Init == nil {
		if v.types.Kind(d.Declared) != types.KindStruct {
			v.err(merr.TypeErr, d, "declaration of '%s' requires an initializer", d.Name)
		} else {
			ctor := &ast.Call{
				ExprBase: ast.NewExprBase(d.Token),
				Callable: &ast.Primary{ExprBase: ast.NewExprBase(d.Token), Name: v.types.Name(d.Declared)},
			}
			d.Init = v.analyzeExpr(ctor)
		}
	} else {
		d.Init = v.analyzeExpr(d.Init)
		if d.Declared == types.Invalid {
			d.Declared = d.Init.ExprType()
		} else if ce, ok := v.coerce(d.Init, d.Declared); ok {
			d.Init = ce
		} else {
			v.err(merr.TypeErr, d, "cannot assign %s to declared type %s", v.types.String(d.Init.ExprType()), v.types.String(d.Declared))
		}
	}

	sym := &symtab.Symbol{Name: d.Name, Type: d.Declared, Assignable: true, IsGlobal: v.scope == v.globals}
	if _, ok := v.scope.Add(d.Name, sym); !ok {
		v.err(merr.ScopeErr, d, "redefinition of '%s'", d.Name)
		return
	}
	d.Symbol = sym
}

// validateAssignment dispatches on the target expression's shape: a bare
// name follows the locked `name := expr` declare-or-reassign rule; `.field`
// and `[index]` targets are always plain reassignments into an existing
// struct member, array element, or map entry.
func (v *Validator) validateAssignment(a *ast.Assignment) {
	a.Source = v.analyzeExpr(a.Source)

	switch target := a.Target.(type) {
	case *ast.Primary:
		v.validateNameAssignment(a, target)
	case *ast.Access:
		v.validateMemberAssignment(a, target)
	case *ast.Subscript:
		v.validateIndexAssignment(a, target)
	default:
		v.err(merr.ParseErr, a, "invalid assignment target")
	}
}

// validateMemberAssignment implements `object.field := expr`, mirroring
// validateAccess's struct resolution but binding the source into the
// resolved member's type instead of producing a read.
func (v *Validator) validateMemberAssignment(a *ast.Assignment, acc *ast.Access) {
	acc.Object = v.analyzeExpr(acc.Object)
	objT := acc.Object.ExprType()
	resolved := objT
	if v.types.Kind(resolved) == types.KindUser {
		if r, ok := v.types.Resolve(resolved); ok {
			resolved = r
		}
	}
	if v.types.Kind(resolved) != types.KindStruct {
		v.err(merr.TypeErr, a, "'.%s' requires a struct value", acc.Element)
		return
	}
	idx, ok := v.types.MemberIndex(resolved, acc.Element)
	if !ok {
		v.err(merr.TypeErr, a, "struct '%s' has no member '%s'", v.types.Name(resolved), acc.Element)
		return
	}
	acc.MemberIndex = idx
	memberType := v.types.StructMembers(resolved)[idx].Type
	acc.SetExprType(memberType)
	if ce, ok := v.coerce(a.Source, memberType); ok {
		a.Source = ce
	} else {
		v.err(merr.TypeErr, a, "cannot assign %s to member '%s' of type %s", v.types.String(a.Source.ExprType()), acc.Element, v.types.String(memberType))
	}
	a.IsDecl = false
}

// validateIndexAssignment implements `object[index] := expr`: an Array or
// Map target, mirroring validateSubscript's element typing; a String
// target is rejected outright, matching the runtime's "<String> does not
// support item assignment" behavior.
func (v *Validator) validateIndexAssignment(a *ast.Assignment, s *ast.Subscript) {
	s.Object = v.analyzeExpr(s.Object)
	s.Index = v.analyzeExpr(s.Index)
	objT := s.Object.ExprType()
	switch v.types.Kind(objT) {
	case types.KindArray:
		if v.types.Kind(s.Index.ExprType()) != types.KindInt {
			v.err(merr.TypeErr, a, "array index must be Int")
		}
		elem := v.types.Elem(objT)
		s.SetExprType(elem)
		if ce, ok := v.coerce(a.Source, elem); ok {
			a.Source = ce
		} else {
			v.err(merr.TypeErr, a, "cannot assign %s to array element of type %s", v.types.String(a.Source.ExprType()), v.types.String(elem))
		}
	case types.KindMap:
		key, val := v.types.KeyVal(objT)
		if ce, ok := v.coerce(s.Index, key); ok {
			s.Index = ce
		} else {
			v.err(merr.TypeErr, a, "map key type %s does not match %s", v.types.String(s.Index.ExprType()), v.types.String(key))
		}
		s.SetExprType(val)
		if ce, ok := v.coerce(a.Source, val); ok {
			a.Source = ce
		} else {
			v.err(merr.TypeErr, a, "cannot assign %s to map value of type %s", v.types.String(a.Source.ExprType()), v.types.String(val))
		}
	case types.KindString:
		v.err(merr.TypeErr, a, "<String> does not support item assignment")
	default:
		v.err(merr.TypeErr, a, "cannot index a value of type %s", v.types.String(objT))
	}
	a.IsDecl = false
}

// validateNameAssignment implements the locked `name := expr` rule: a
// redefinition in the current scope is a ScopeError, a name visible
// within the current function (up to its boundary) is a plain
// reassignment, a name visible only through an enclosing closure's
// capture chain reassigns that closure's own private copy (captures are
// by value, per §9), and a total miss auto-declares a fresh local typed
// from the source expression.
func (v *Validator) validateNameAssignment(a *ast.Assignment, prim *ast.Primary) {
	if _, found := v.scope.FindLocal(prim.Name); found {
		v.err(merr.ScopeErr, a, "redefinition of '%s'", prim.Name)
		return
	}

	fr := v.currentFrame()
	boundary := v.globals
	if fr != nil {
		boundary = fr.boundary
	}
	if sym, found := findLocalUpTo(v.scope, boundary, prim.Name); found {
		v.bindReassign(a, prim, sym)
		return
	}

	if fr != nil {
		if idx, found := v.resolveUpvalue(len(v.frames)-1, prim.Name); found {
			entry := fr.upvalues[idx]
			kind := symtab.UpvalueLocal
			if entry.nonLocal {
				kind = symtab.UpvalueNonLocal
			}
			sym := &symtab.Symbol{Name: prim.Name, Type: entry.typ, Index: idx, Upvalue: kind, Assignable: true}
			v.bindReassign(a, prim, sym)
			return
		}
	}

	sym := &symtab.Symbol{Name: prim.Name, Type: a.Source.ExprType(), Assignable: true, IsGlobal: v.scope == v.globals}
	v.scope.Add(prim.Name, sym)
	prim.Symbol = sym
	prim.SetExprType(sym.Type)
	a.IsDecl = true
}

func (v *Validator) bindReassign(a *ast.Assignment, prim *ast.Primary, sym *symtab.Symbol) {
	if ce, ok := v.coerce(a.Source, sym.Type); ok {
		a.Source = ce
	} else {
		v.err(merr.TypeErr, a, "cannot assign %s to '%s' of type %s", v.types.String(a.Source.ExprType()), prim.Name, v.types.String(sym.Type))
	}
	prim.Symbol = sym
	prim.SetExprType(sym.Type)
	a.IsDecl = false
}

// validateReturn checks a return statement against its enclosing
// function's declared return type (§4.5 point 9): Void permits only a bare
// `return;`, anything else requires a value assignable to it.
func (v *Validator) validateReturn(r *ast.Return) {
	fr := v.currentFrame()
	retType := types.Void
	if fr != nil {
		retType = fr.fn.ReturnType
		r.Function = fr.fn
	}

	if r.Value == nil {
		if retType != types.Void {
			v.err(merr.TypeErr, r, "missing return value")
		}
		return
	}

	r.Value = v.analyzeExpr(r.Value)
	if retType == types.Void {
		v.err(merr.TypeErr, r, "function returns Void, cannot return a value")
		return
	}
	ce, ok := v.coerce(r.Value, retType)
	if !ok {
		v.err(merr.TypeErr, r, "cannot return %s, expected %s", v.types.String(r.Value.ExprType()), v.types.String(retType))
		return
	}
	r.Value = ce
}

// validateClosureDecl declares the inner function's name as a local of
// function type in the current scope, then analyzes its body under a new
// frame whose enclosingAt is the scope live right now — the scope upvalue
// resolution walks when this closure's body references an outer name.
func (v *Validator) validateClosureDecl(c *ast.ClosureDecl) {
	fn := c.Inner
	fnType := v.types.RegisterFn(fn.ReturnType, paramHandles(fn.Params))
	sym := &symtab.Symbol{Name: fn.Name, Type: fnType, Assignable: true, IsGlobal: v.scope == v.globals}
	if _, ok := v.scope.Add(fn.Name, sym); !ok {
		v.err(merr.ScopeErr, c, "redefinition of '%s'", fn.Name)
		return
	}
	fn.Symbol = sym
	v.analyzeFn(fn, c)
}

// ---- binary / unary operator typing (§4.5 point 4) ----

func (v *Validator) validateBinary(b *ast.Binary) ast.Expr {
	b.Left = v.analyzeExpr(b.Left)
	b.Right = v.analyzeExpr(b.Right)
	switch b.Operator.Kind {
	case token.Plus, token.Minus, token.Star, token.Slash, token.Percent, token.DSlash:
		v.validateArithmetic(b)
	case token.Less, token.Greater, token.LessEq, token.GreaterEq:
		v.validateComparison(b)
	case token.Equal, token.NotEqual:
		v.validateEquality(b)
	case token.And, token.Or:
		v.validateLogical(b)
	default:
		v.err(merr.TypeErr, b, "unsupported operator '%s'", b.Operator.Kind.String())
		b.SetExprType(types.Invalid)
	}
	return b
}

func (v *Validator) numericCommon(a, b types.Handle) (types.Handle, bool) {
	ak, bk := v.types.Kind(a), v.types.Kind(b)
	if ak != types.KindInt && ak != types.KindFloat {
		return types.Invalid, false
	}
	if bk != types.KindInt && bk != types.KindFloat {
		return types.Invalid, false
	}
	if ak == types.KindFloat || bk == types.KindFloat {
		return types.Float, true
	}
	return types.Int, true
}

func (v *Validator) validateArithmetic(b *ast.Binary) {
	common, ok := v.numericCommon(b.Left.ExprType(), b.Right.ExprType())
	if !ok {
		v.err(merr.TypeErr, b, "operator '%s' requires numeric operands", b.Operator.Kind.String())
		b.SetExprType(types.Invalid)
		return
	}
	if l, ok := v.coerce(b.Left, common); ok {
		b.Left = l
	}
	if r, ok := v.coerce(b.Right, common); ok {
		b.Right = r
	}
	b.SetExprType(common)
}

func (v *Validator) validateComparison(b *ast.Binary) {
	common, ok := v.numericCommon(b.Left.ExprType(), b.Right.ExprType())
	if !ok {
		v.err(merr.TypeErr, b, "operator '%s' requires numeric operands", b.Operator.Kind.String())
		b.SetExprType(types.Invalid)
		return
	}
	if l, ok := v.coerce(b.Left, common); ok {
		b.Left = l
	}
	if r, ok := v.coerce(b.Right, common); ok {
		b.Right = r
	}
	b.SetExprType(types.Bool)
}

// validateEquality only accepts numeric operands: the emitter has no
// EQUAL opcode besides EQUAL_I/EQUAL_F, so String/struct/union equality
// is not part of this language's operator set (consistent with §4.6's
// opcode table being exhaustive by semantic category).
func (v *Validator) validateEquality(b *ast.Binary) {
	common, ok := v.numericCommon(b.Left.ExprType(), b.Right.ExprType())
	if !ok {
		v.err(merr.TypeErr, b, "operator '%s' requires numeric operands", b.Operator.Kind.String())
		b.SetExprType(types.Bool)
		return
	}
	if l, ok := v.coerce(b.Left, common); ok {
		b.Left = l
	}
	if r, ok := v.coerce(b.Right, common); ok {
		b.Right = r
	}
	b.SetExprType(types.Bool)
}

func (v *Validator) validateLogical(b *ast.Binary) {
	if !v.isNumeric(b.Left.ExprType()) || !v.isNumeric(b.Right.ExprType()) {
		v.err(merr.TypeErr, b, "operator '%s' requires Bool, Int, or Float operands", b.Operator.Kind.String())
	}
	b.SetExprType(types.Bool)
}

func (v *Validator) validateUnary(u *ast.Unary) ast.Expr {
	u.Right = v.analyzeExpr(u.Right)
	k := v.types.Kind(u.Right.ExprType())
	switch u.Operator.Kind {
	case token.Bang:
		if !v.isNumeric(u.Right.ExprType()) {
			v.err(merr.TypeErr, u, "'!' requires a Bool, Int, or Float operand")
		}
		u.SetExprType(types.Bool)
	case token.Minus:
		if k != types.KindInt && k != types.KindFloat {
			v.err(merr.TypeErr, u, "unary '-' requires a numeric operand")
			u.SetExprType(types.Invalid)
		} else {
			u.SetExprType(u.Right.ExprType())
		}
	default:
		v.err(merr.TypeErr, u, "unsupported unary operator '%s'", u.Operator.Kind.String())
		u.SetExprType(types.Invalid)
	}
	return u
}
