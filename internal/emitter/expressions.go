package emitter

import (
	"fmt"

	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/bytecode"
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/token"
	"github.com/fmaggi/matiria/internal/types"
)

// emitExpr lowers e, leaving exactly one value pushed onto the stack.
func (fe *fnEmitter) emitExpr(e ast.Expr) {
	line := e.Pos().Line
	switch n := e.(type) {
	case *ast.Literal:
		fe.emitLiteral(n, line)
	case *ast.Primary:
		fe.emitPrimary(n, line)
	case *ast.Grouping:
		fe.emitExpr(n.Inner)
	case *ast.Binary:
		fe.emitBinary(n, line)
	case *ast.Unary:
		fe.emitUnary(n, line)
	case *ast.ArrayLiteral:
		fe.emitArrayLiteral(n, line)
	case *ast.MapLiteral:
		fe.emitMapLiteral(n, line)
	case *ast.Call:
		fe.emitCall(n, line)
	case *ast.Subscript:
		fe.emitExpr(n.Object)
		fe.emitExpr(n.Index)
		fe.chunk.Emit(bytecode.OpIndexGet, line)
	case *ast.Access:
		fe.emitAccess(n, line)
	case *ast.Cast:
		fe.emitExpr(n.Right)
		fe.emitCast(n, line)
	default:
		panic(fmt.Sprintf("emitter: unhandled expression %T", e))
	}
}

func (fe *fnEmitter) emitLiteral(l *ast.Literal, line int) {
	switch l.Kind {
	case ast.LitInt:
		idx := fe.chunk.AddInt(l.Int)
		fe.chunk.Emit(bytecode.OpInt, line)
		fe.chunk.EmitU16(idx, line)
	case ast.LitFloat:
		idx := fe.chunk.AddFloat(l.Float)
		fe.chunk.Emit(bytecode.OpFloat, line)
		fe.chunk.EmitU16(idx, line)
	case ast.LitString:
		idx := fe.chunk.AddString(l.String)
		fe.chunk.Emit(bytecode.OpStringLiteral, line)
		fe.chunk.EmitU16(idx, line)
	case ast.LitBool:
		if l.Bool {
			fe.chunk.Emit(bytecode.OpTrue, line)
		} else {
			fe.chunk.Emit(bytecode.OpFalse, line)
		}
	}
}

// emitPrimary pushes the value of a resolved name. A Primary whose Symbol
// is nil is a struct-type marker used only as a Call's Callable (handled
// entirely by emitCall's constructor path) and must never reach here.
func (fe *fnEmitter) emitPrimary(p *ast.Primary, line int) {
	sym := p.Symbol
	switch {
	case sym == nil:
		panic("emitter: " + p.Name + " has no resolved symbol")
	case sym.Upvalue != symtab.UpvalueNone:
		fe.chunk.Emit(bytecode.OpUpvalueGet, line)
		fe.chunk.EmitU16(uint16(sym.Index), line)
	case sym.IsGlobal:
		fe.chunk.Emit(bytecode.OpGlobalGet, line)
		fe.chunk.EmitU16(uint16(sym.Index), line)
	default:
		fe.chunk.Emit(bytecode.OpGet, line)
		fe.chunk.EmitU16(uint16(sym.Index), line)
	}
}

func pickOp(useFloat bool, floatOp, intOp bytecode.Op) bytecode.Op {
	if useFloat {
		return floatOp
	}
	return intOp
}

// emitBinary lowers a validated Binary. And/Or are short-circuit jumps
// (§4.6); every other operator has already been typed by the validator to
// a single numeric common type, so the Int-vs-Float opcode choice only
// needs to look at one operand's resolved type.
func (fe *fnEmitter) emitBinary(b *ast.Binary, line int) {
	switch b.Operator.Kind {
	case token.And:
		fe.emitExpr(b.Left)
		j := fe.emitJump(bytecode.OpAnd, line)
		fe.emitExpr(b.Right)
		fe.patchJump(j)
		return
	case token.Or:
		fe.emitExpr(b.Left)
		j := fe.emitJump(bytecode.OpOr, line)
		fe.emitExpr(b.Right)
		fe.patchJump(j)
		return
	}

	fe.emitExpr(b.Left)
	fe.emitExpr(b.Right)
	useFloat := fe.e.types.Kind(b.Left.ExprType()) == types.KindFloat

	var op bytecode.Op
	switch b.Operator.Kind {
	case token.Plus:
		op = pickOp(useFloat, bytecode.OpAddF, bytecode.OpAddI)
	case token.Minus:
		op = pickOp(useFloat, bytecode.OpSubF, bytecode.OpSubI)
	case token.Star:
		op = pickOp(useFloat, bytecode.OpMulF, bytecode.OpMulI)
	case token.Slash:
		op = pickOp(useFloat, bytecode.OpDivF, bytecode.OpDivI)
	case token.Percent:
		op = pickOp(useFloat, bytecode.OpModF, bytecode.OpModI)
	case token.DSlash:
		op = pickOp(useFloat, bytecode.OpIDivF, bytecode.OpIDivI)
	case token.Less:
		op = pickOp(useFloat, bytecode.OpLessF, bytecode.OpLessI)
	case token.Greater:
		op = pickOp(useFloat, bytecode.OpGreaterF, bytecode.OpGreaterI)
	case token.LessEq:
		// a <= b  <=>  !(a > b)
		fe.chunk.Emit(pickOp(useFloat, bytecode.OpGreaterF, bytecode.OpGreaterI), line)
		fe.chunk.Emit(bytecode.OpNot, line)
		return
	case token.GreaterEq:
		// a >= b  <=>  !(a < b)
		fe.chunk.Emit(pickOp(useFloat, bytecode.OpLessF, bytecode.OpLessI), line)
		fe.chunk.Emit(bytecode.OpNot, line)
		return
	case token.Equal:
		op = pickOp(useFloat, bytecode.OpEqualF, bytecode.OpEqualI)
	case token.NotEqual:
		fe.chunk.Emit(pickOp(useFloat, bytecode.OpEqualF, bytecode.OpEqualI), line)
		fe.chunk.Emit(bytecode.OpNot, line)
		return
	default:
		panic("emitter: unhandled binary operator " + b.Operator.Kind.String())
	}
	fe.chunk.Emit(op, line)
}

func (fe *fnEmitter) emitUnary(u *ast.Unary, line int) {
	fe.emitExpr(u.Right)
	switch u.Operator.Kind {
	case token.Bang:
		fe.chunk.Emit(bytecode.OpNot, line)
	case token.Minus:
		if fe.e.types.Kind(u.Right.ExprType()) == types.KindFloat {
			fe.chunk.Emit(bytecode.OpNegateF, line)
		} else {
			fe.chunk.Emit(bytecode.OpNegateI, line)
		}
	default:
		panic("emitter: unhandled unary operator " + u.Operator.Kind.String())
	}
}

func (fe *fnEmitter) emitArrayLiteral(a *ast.ArrayLiteral, line int) {
	if len(a.Elements) == 0 {
		fe.chunk.Emit(bytecode.OpEmptyArray, line)
		return
	}
	for _, el := range a.Elements {
		fe.emitExpr(el)
	}
	fe.chunk.Emit(bytecode.OpArrayLiteral, line)
	fe.chunk.EmitU16(uint16(len(a.Elements)), line)
}

func (fe *fnEmitter) emitMapLiteral(m *ast.MapLiteral, line int) {
	if len(m.Entries) == 0 {
		fe.chunk.Emit(bytecode.OpEmptyMap, line)
		return
	}
	for _, entry := range m.Entries {
		fe.emitExpr(entry.Key)
		fe.emitExpr(entry.Value)
	}
	fe.chunk.Emit(bytecode.OpMapLiteral, line)
	fe.chunk.EmitU16(uint16(len(m.Entries)), line)
}

func (fe *fnEmitter) emitAccess(a *ast.Access, line int) {
	if a.IsOverload {
		fe.emitOverloadAccess(a, line)
		return
	}
	fe.emitExpr(a.Object)
	fe.chunk.Emit(bytecode.OpStructGet, line)
	fe.chunk.EmitU16(uint16(a.MemberIndex), line)
}

// emitOverloadAccess pushes the single FunctionObj out of an overload
// set's global array, per spec.md §9: "the emitter treats Access on an
// overload set as a direct index into an array of function objects
// stored in the package".
func (fe *fnEmitter) emitOverloadAccess(a *ast.Access, line int) {
	fe.emitExpr(a.Object) // pushes the overload array (a global)
	idx := fe.chunk.AddInt(int64(a.OverloadIndex))
	fe.chunk.Emit(bytecode.OpInt, line)
	fe.chunk.EmitU16(idx, line)
	fe.chunk.Emit(bytecode.OpIndexGet, line)
}

func (fe *fnEmitter) emitCast(c *ast.Cast, line int) {
	if fe.e.types.Kind(c.Target) == types.KindFloat {
		fe.chunk.Emit(bytecode.OpFloatCast, line)
	} else {
		fe.chunk.Emit(bytecode.OpIntCast, line)
	}
}

// emitCall dispatches a struct constructor, an already-resolved overload
// Access, or a plain call.
func (fe *fnEmitter) emitCall(c *ast.Call, line int) {
	if prim, ok := c.Callable.(*ast.Primary); ok && prim.Symbol == nil {
		fe.emitConstructor(c, prim, line)
		return
	}
	for _, arg := range c.Args {
		fe.emitExpr(arg)
	}
	fe.emitExpr(c.Callable)
	fe.chunk.Emit(bytecode.OpCall, line)
	fe.chunk.EmitByte(byte(len(c.Args)), line)
}

// emitConstructor lowers `Name()` / `Name(a, b, ...)`: validateConstructorCall
// leaves the struct type on prim's ExprType and clears its Symbol to mark
// it this way. validateConstructorCall only ever leaves c.Args at length 0
// or the struct's full member count, so CONSTRUCTOR's three operands — the
// struct's name (string-pool index), its total member count, and how many
// values are actually on the stack — let the VM zero-fill the remainder
// when called with no arguments (§ struct default-zero members).
func (fe *fnEmitter) emitConstructor(c *ast.Call, prim *ast.Primary, line int) {
	for _, arg := range c.Args {
		fe.emitExpr(arg)
	}
	structType := prim.ExprType()
	nameIdx := fe.chunk.AddString(fe.e.types.Name(structType))
	total := len(fe.e.types.StructMembers(structType))
	fe.chunk.Emit(bytecode.OpConstructor, line)
	fe.chunk.EmitU16(nameIdx, line)
	fe.chunk.EmitU16(uint16(total), line)
	fe.chunk.EmitU16(uint16(len(c.Args)), line)
}
