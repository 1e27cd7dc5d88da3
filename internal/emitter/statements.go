package emitter

import (
	"fmt"

	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/bytecode"
	"github.com/fmaggi/matiria/internal/symtab"
)

// emitStmt lowers one statement, returning the net number of stack slots
// it left behind as local variables (0 for anything that isn't itself a
// fresh declaration at this exact level — a nested Block, If, or While
// always cleans up whatever it introduces before returning).
func (fe *fnEmitter) emitStmt(s ast.Stmt) int {
	line := s.Pos().Line
	switch st := s.(type) {
	case *ast.Block:
		return fe.emitNestedBlock(st)
	case *ast.If:
		return fe.emitIf(st, line)
	case *ast.While:
		return fe.emitWhile(st, line)
	case *ast.VarDecl:
		fe.emitExpr(st.Init)
		return 1
	case *ast.Assignment:
		return fe.emitAssignment(st, line)
	case *ast.Return:
		if st.Value != nil {
			fe.emitExpr(st.Value)
		} else {
			fe.chunk.Emit(bytecode.OpNil, line)
		}
		fe.chunk.Emit(bytecode.OpReturn, line)
		return 0
	case *ast.ClosureDecl:
		fe.emitClosure(st)
		return 1
	case *ast.ExpressionStmt:
		fe.emitExpr(st.Call)
		fe.chunk.Emit(bytecode.OpPop, line)
		return 0
	default:
		panic(fmt.Sprintf("emitter: unhandled statement %T", s))
	}
}

// emitNestedBlock lowers a bare `{ ... }` block (not a function's own
// top-level body): its locals live on the stack only for its own
// duration, so they're popped with POP_V before control returns to
// whatever introduced the block.
func (fe *fnEmitter) emitNestedBlock(b *ast.Block) int {
	total := 0
	for _, stmt := range b.Statements {
		total += fe.emitStmt(stmt)
	}
	if total > 0 {
		line := b.Pos().Line
		fe.chunk.Emit(bytecode.OpPopV, line)
		fe.chunk.EmitU16(uint16(total), line)
	}
	return 0
}

// emitBranchBody lowers an if/while body that isn't itself a Block (the
// grammar allows a single bare statement there, sharing the enclosing
// scope rather than getting its own): any local it introduces is popped
// immediately, since a conditionally-executed declaration can't
// meaningfully outlive the branch that ran it.
func (fe *fnEmitter) emitBranchBody(s ast.Stmt) {
	if _, ok := s.(*ast.Block); ok {
		fe.emitStmt(s)
		return
	}
	delta := fe.emitStmt(s)
	if delta > 0 {
		line := s.Pos().Line
		fe.chunk.Emit(bytecode.OpPopV, line)
		fe.chunk.EmitU16(uint16(delta), line)
	}
}

func (fe *fnEmitter) emitIf(s *ast.If, line int) int {
	fe.emitExpr(s.Condition)
	jz := fe.emitJump(bytecode.OpJmpZ, line)
	fe.emitBranchBody(s.Then)
	if s.Else != nil {
		jmp := fe.emitJump(bytecode.OpJmp, line)
		fe.patchJump(jz)
		fe.emitBranchBody(s.Else)
		fe.patchJump(jmp)
	} else {
		fe.patchJump(jz)
	}
	return 0
}

func (fe *fnEmitter) emitWhile(s *ast.While, line int) int {
	start := fe.chunk.Len()
	fe.emitExpr(s.Condition)
	jz := fe.emitJump(bytecode.OpJmpZ, line)
	fe.emitBranchBody(s.Body)
	back := fe.emitJump(bytecode.OpJmp, line)
	fe.patchJumpTo(back, start)
	fe.patchJump(jz)
	return 0
}

// emitJump emits op with a placeholder i16 operand and returns the
// opcode's byte offset, to be resolved later by patchJump/patchJumpTo.
func (fe *fnEmitter) emitJump(op bytecode.Op, line int) int {
	pos := fe.chunk.Emit(op, line)
	fe.chunk.EmitI16(0, line)
	return pos
}

// patchJumpTo backfills the i16 operand at pos with the offset from the
// instruction pointer just after that operand to target, per §4.6's
// "signed 16-bit offsets relative to the byte following the operand"
// convention.
func (fe *fnEmitter) patchJumpTo(pos, target int) {
	ipAfterOperand := pos + 3
	fe.chunk.PatchI16(pos+1, int16(target-ipAfterOperand))
}

func (fe *fnEmitter) patchJump(pos int) { fe.patchJumpTo(pos, fe.chunk.Len()) }

// emitAssignment lowers `target := source`, dispatching on the target's
// shape. A struct-member store pushes value-then-object (STRUCT_SET pops
// the object first, then the value, per the VM's stack convention); an
// index store pushes value-then-object-then-key (INDEX_SET pops key,
// object, value in that order).
func (fe *fnEmitter) emitAssignment(a *ast.Assignment, line int) int {
	switch target := a.Target.(type) {
	case *ast.Primary:
		fe.emitExpr(a.Source)
		if a.IsDecl {
			return 1
		}
		fe.emitStore(target, line)
		return 0
	case *ast.Access:
		fe.emitExpr(a.Source)
		fe.emitExpr(target.Object)
		fe.chunk.Emit(bytecode.OpStructSet, line)
		fe.chunk.EmitU16(uint16(target.MemberIndex), line)
		return 0
	case *ast.Subscript:
		fe.emitExpr(a.Source)
		fe.emitExpr(target.Object)
		fe.emitExpr(target.Index)
		fe.chunk.Emit(bytecode.OpIndexSet, line)
		return 0
	default:
		panic(fmt.Sprintf("emitter: unsupported assignment target %T", a.Target))
	}
}

// emitStore writes the top-of-stack value into p's resolved slot,
// consuming it. Globals are never assignment targets: the grammar has no
// top-level mutable state, only fn/struct/union declarations.
func (fe *fnEmitter) emitStore(p *ast.Primary, line int) {
	sym := p.Symbol
	switch {
	case sym.Upvalue != symtab.UpvalueNone:
		fe.chunk.Emit(bytecode.OpUpvalueSet, line)
		fe.chunk.EmitU16(uint16(sym.Index), line)
	case sym.IsGlobal:
		panic("emitter: globals are not assignable")
	default:
		fe.chunk.Emit(bytecode.OpSet, line)
		fe.chunk.EmitU16(uint16(sym.Index), line)
	}
}

// emitClosure lowers the inner function into its own Chunk, records it as
// a template in the enclosing function's Inner list, and emits CLOSURE to
// build and push a ClosureObj bundling that template with its captured
// upvalues (per ast.ClosureDecl.Upvalues, filled in by the validator).
func (fe *fnEmitter) emitClosure(c *ast.ClosureDecl) {
	template := fe.e.emitFn(c.Inner)
	idx := len(fe.inner)
	fe.inner = append(fe.inner, template)

	line := c.Pos().Line
	fe.chunk.Emit(bytecode.OpClosure, line)
	fe.chunk.EmitU16(uint16(idx), line)
	fe.chunk.EmitU16(uint16(len(c.Upvalues)), line)
	for _, u := range c.Upvalues {
		fe.chunk.EmitU16(uint16(u.Index), line)
		var nonLocal byte
		if u.NonLocal {
			nonLocal = 1
		}
		fe.chunk.EmitByte(nonLocal, line)
	}
}
