package validator

import (
	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/types"
)

// analyzeExpr resolves names and types within e, returning the node that
// should replace it in its parent (itself, unless the validator rewrote it
// into a Cast or an overload Access).
func (v *Validator) analyzeExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.Literal:
		v.analyzeLiteral(n)
		return n
	case *ast.Primary:
		v.resolvePrimary(n)
		return n
	case *ast.Grouping:
		n.Inner = v.analyzeExpr(n.Inner)
		n.SetExprType(n.Inner.ExprType())
		return n
	case *ast.Binary:
		return v.validateBinary(n)
	case *ast.Unary:
		return v.validateUnary(n)
	case *ast.ArrayLiteral:
		return v.validateArrayLiteral(n)
	case *ast.MapLiteral:
		return v.validateMapLiteral(n)
	case *ast.Call:
		return v.validateCall(n)
	case *ast.Subscript:
		return v.validateSubscript(n)
	case *ast.Access:
		return v.validateAccess(n)
	case *ast.Cast:
		// Only ever synthesized by the validator itself; nothing to do if it
		// somehow flows back through here.
		return n
	default:
		v.err(merr.TypeErr, e, "unsupported expression")
		e.SetExprType(types.Invalid)
		return e
	}
}

func (v *Validator) analyzeLiteral(l *ast.Literal) {
	switch l.Kind {
	case ast.LitInt:
		l.SetExprType(types.Int)
	case ast.LitFloat:
		l.SetExprType(types.Float)
	case ast.LitString:
		l.SetExprType(types.String)
	case ast.LitBool:
		l.SetExprType(types.Bool)
	}
}

// promote returns the common type of a and b for array/map literal
// homogeneity checking (§4.5 point 5): matching types widen to the
// higher-ranked one (e.g. Int and Float both appearing widen to Float);
// anything else is a TypeError, reported against node.
func (v *Validator) promote(a, b types.Handle, node ast.Node) types.Handle {
	if v.types.Match(a, b) {
		if types.Rank(v.types.Kind(a)) > types.Rank(v.types.Kind(b)) {
			return a
		}
		return b
	}
	ar, br := types.Rank(v.types.Kind(a)), types.Rank(v.types.Kind(b))
	if ar >= 0 && br >= 0 {
		if ar > br {
			return a
		}
		return b
	}
	v.err(merr.TypeErr, node, "mixed element types %s and %s", v.types.String(a), v.types.String(b))
	return types.Any
}

func (v *Validator) validateArrayLiteral(a *ast.ArrayLiteral) ast.Expr {
	for i, e := range a.Elements {
		a.Elements[i] = v.analyzeExpr(e)
	}
	if len(a.Elements) == 0 {
		a.SetExprType(v.types.RegisterArray(types.Any))
		return a
	}
	common := a.Elements[0].ExprType()
	for _, e := range a.Elements[1:] {
		common = v.promote(common, e.ExprType(), a)
	}
	for i, e := range a.Elements {
		if ce, ok := v.coerce(e, common); ok {
			a.Elements[i] = ce
		} else {
			v.err(merr.TypeErr, e, "array element type %s incompatible with %s", v.types.String(e.ExprType()), v.types.String(common))
		}
	}
	a.SetExprType(v.types.RegisterArray(common))
	return a
}

func (v *Validator) validateMapLiteral(m *ast.MapLiteral) ast.Expr {
	for i, e := range m.Entries {
		m.Entries[i].Key = v.analyzeExpr(e.Key)
		m.Entries[i].Value = v.analyzeExpr(e.Value)
	}
	if len(m.Entries) == 0 {
		m.SetExprType(v.types.RegisterMap(types.Any, types.Any))
		return m
	}
	keyT := m.Entries[0].Key.ExprType()
	valT := m.Entries[0].Value.ExprType()
	for _, e := range m.Entries[1:] {
		keyT = v.promote(keyT, e.Key.ExprType(), m)
		valT = v.promote(valT, e.Value.ExprType(), m)
	}
	for i := range m.Entries {
		if ck, ok := v.coerce(m.Entries[i].Key, keyT); ok {
			m.Entries[i].Key = ck
		}
		if cv, ok := v.coerce(m.Entries[i].Value, valT); ok {
			m.Entries[i].Value = cv
		}
	}
	m.SetExprType(v.types.RegisterMap(keyT, valT))
	return m
}

func (v *Validator) validateSubscript(s *ast.Subscript) ast.Expr {
	s.Object = v.analyzeExpr(s.Object)
	s.Index = v.analyzeExpr(s.Index)
	objT := s.Object.ExprType()
	switch v.types.Kind(objT) {
	case types.KindArray:
		if v.types.Kind(s.Index.ExprType()) != types.KindInt {
			v.err(merr.TypeErr, s, "array index must be Int")
		}
		s.SetExprType(v.types.Elem(objT))
	case types.KindMap:
		key, val := v.types.KeyVal(objT)
		if ce, ok := v.coerce(s.Index, key); ok {
			s.Index = ce
		} else {
			v.err(merr.TypeErr, s, "map key type %s does not match %s", v.types.String(s.Index.ExprType()), v.types.String(key))
		}
		s.SetExprType(val)
	default:
		v.err(merr.TypeErr, s, "cannot index a value of type %s", v.types.String(objT))
		s.SetExprType(types.Invalid)
	}
	return s
}

// validateAccess resolves `object.element` against a struct type, following
// a single User forward-reference indirection if needed.
func (v *Validator) validateAccess(a *ast.Access) ast.Expr {
	a.Object = v.analyzeExpr(a.Object)
	objT := a.Object.ExprType()
	resolved := objT
	if v.types.Kind(resolved) == types.KindUser {
		if r, ok := v.types.Resolve(resolved); ok {
			resolved = r
		}
	}
	if v.types.Kind(resolved) != types.KindStruct {
		v.err(merr.TypeErr, a, "'.%s' requires a struct value", a.Element)
		a.SetExprType(types.Invalid)
		return a
	}
	idx, ok := v.types.MemberIndex(resolved, a.Element)
	if !ok {
		v.err(merr.TypeErr, a, "struct '%s' has no member '%s'", v.types.Name(resolved), a.Element)
		a.SetExprType(types.Invalid)
		return a
	}
	a.MemberIndex = idx
	a.SetExprType(v.types.StructMembers(resolved)[idx].Type)
	return a
}

// validateCall dispatches §4.5 point 6 (struct constructors), point 8
// (overload resolution), or a plain single-signature call.
func (v *Validator) validateCall(c *ast.Call) ast.Expr {
	args := make([]ast.Expr, len(c.Args))
	for i, a := range c.Args {
		args[i] = v.analyzeExpr(a)
	}
	c.Args = args

	if prim, ok := c.Callable.(*ast.Primary); ok {
		if sym, found := v.globals.FindLocal(prim.Name); found && v.types.Kind(sym.Type) == types.KindStruct {
			return v.validateConstructorCall(c, prim, sym.Type, args)
		}
		if ov, found := v.overloads[prim.Name]; found && ov.nativeDecl == nil && len(ov.decls) > 1 {
			return v.validateOverloadCall(c, prim, ov, args)
		}
	}

	c.Callable = v.analyzeExpr(c.Callable)
	fnType := c.Callable.ExprType()
	if v.types.Kind(fnType) != types.KindFn {
		v.err(merr.TypeErr, c, "cannot call a non-function value")
		c.SetExprType(types.Invalid)
		return c
	}
	ret, params := v.types.FnInfo(fnType)
	v.checkArgs(c, params, args)
	c.SetExprType(ret)
	return c
}

func (v *Validator) checkArgs(c *ast.Call, params []types.Handle, args []ast.Expr) {
	if len(params) != len(args) {
		v.err(merr.TypeErr, c, "expected %d argument(s), got %d", len(params), len(args))
		return
	}
	for i, p := range params {
		ce, ok := v.coerce(args[i], p)
		if !ok {
			v.err(merr.TypeErr, args[i], "argument %d: cannot assign %s to %s", i+1, v.types.String(args[i].ExprType()), v.types.String(p))
			continue
		}
		c.Args[i] = ce
	}
}

// validateConstructorCall handles both `Name()` (default-zero members, per
// the SUPPLEMENTED FEATURES struct-default-zero behavior) and
// `Name(a, b, ...)` (one argument per member, in declaration order).
func (v *Validator) validateConstructorCall(c *ast.Call, prim *ast.Primary, structType types.Handle, args []ast.Expr) ast.Expr {
	members := v.types.StructMembers(structType)
	prim.SetExprType(structType)
	prim.Symbol = nil

	switch len(args) {
	case 0:
		c.Args = nil
	case len(members):
		coerced := make([]ast.Expr, len(args))
		for i, m := range members {
			ce, ok := v.coerce(args[i], m.Type)
			if !ok {
				v.err(merr.TypeErr, args[i], "member %d ('%s'): cannot assign %s to %s", i+1, m.Name, v.types.String(args[i].ExprType()), v.types.String(m.Type))
				ce = args[i]
			}
			coerced[i] = ce
		}
		c.Args = coerced
	default:
		v.err(merr.TypeErr, c, "struct '%s' constructor expects 0 or %d argument(s), got %d", v.types.Name(structType), len(members), len(args))
	}
	c.SetExprType(structType)
	return c
}

// validateOverloadCall picks the first declaration-order signature whose
// arity matches and whose arguments all coerce, per §4.5 point 8 / §9.
func (v *Validator) validateOverloadCall(c *ast.Call, prim *ast.Primary, ov *overload, args []ast.Expr) ast.Expr {
	for idx, decl := range ov.decls {
		params := paramHandles(decl.Params)
		if len(params) != len(args) {
			continue
		}
		coerced := make([]ast.Expr, len(args))
		matched := true
		for i, p := range params {
			ce, ok := v.coerce(args[i], p)
			if !ok {
				matched = false
				break
			}
			coerced[i] = ce
		}
		if !matched {
			continue
		}
		c.Args = coerced
		fnType := v.types.RegisterFn(decl.ReturnType, params)
		access := &ast.Access{ExprBase: ast.NewExprBase(prim.Pos()), Object: prim, IsOverload: true, OverloadIndex: idx}
		access.SetExprType(fnType)
		prim.SetExprType(fnType)
		prim.Symbol = decl.Symbol // the overload set's one shared global slot
		c.Callable = access
		c.SetExprType(decl.ReturnType)
		return c
	}
	v.err(merr.TypeErr, c, "no overload of '%s' matches the given arguments", prim.Name)
	c.SetExprType(types.Invalid)
	return c
}
