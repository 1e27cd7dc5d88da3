// Package ast defines the abstract syntax tree produced by the parser and
// rewritten in place by the validator. Every node owns its children;
// Type fields are non-owning handles into a types.Registry. Name tokens
// keep pointing into the original source buffer, so the AST must not
// outlive it.
package ast

import (
	"github.com/fmaggi/matiria/internal/symtab"
	"github.com/fmaggi/matiria/internal/token"
	"github.com/fmaggi/matiria/internal/types"
)

// Node is implemented by every expression and statement node; it exposes
// just enough to report diagnostics against the originating token.
type Node interface {
	Pos() token.Token
}

// ---- Expressions ----

// Expr is implemented by every expression node. Type is filled in by the
// validator; it is types.Invalid until then.
type Expr interface {
	Node
	exprNode()
	ExprType() types.Handle
	SetExprType(types.Handle)
}

// ExprBase is the common head every Expr embeds: its leading token (for
// diagnostics) and its resolved type (filled in by the validator).
type ExprBase struct {
	Token token.Token
	Typ   types.Handle
}

// NewExprBase returns an ExprBase positioned at tok, with an unresolved
// (Invalid) type.
func NewExprBase(tok token.Token) ExprBase { return ExprBase{Token: tok} }

func (e *ExprBase) Pos() token.Token          { return e.Token }
func (e *ExprBase) exprNode()                 {}
func (e *ExprBase) ExprType() types.Handle     { return e.Typ }
func (e *ExprBase) SetExprType(h types.Handle) { e.Typ = h }

// Binary is a binary operator expression: `left op right`.
type Binary struct {
	ExprBase
	Left, Right Expr
	Operator    token.Token
}

// Unary is a prefix operator expression: `op right`.
type Unary struct {
	ExprBase
	Operator token.Token
	Right    Expr
}

// Grouping wraps a single parenthesised sub-expression.
type Grouping struct {
	ExprBase
	Inner Expr
}

// LiteralKind distinguishes Literal's payload.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
)

// Literal is a constant int/float/string/bool value.
type Literal struct {
	ExprBase
	Kind   LiteralKind
	Int    int64
	Float  float64
	String string
	Bool   bool
}

// Primary is a bare name reference; Symbol is filled in by the validator.
type Primary struct {
	ExprBase
	Name   string
	Symbol *symtab.Symbol // set by the validator
}

// ArrayLiteral is `[ e, e, ..., e ]`.
type ArrayLiteral struct {
	ExprBase
	Elements []Expr
}

// MapEntry is one `key: value` pair of a MapLiteral.
type MapEntry struct {
	Key, Value Expr
}

// MapLiteral is `type { k: v, k: v, ... }`.
type MapLiteral struct {
	ExprBase
	Entries []MapEntry
}

// Call is `callable(argv...)`.
type Call struct {
	ExprBase
	Callable Expr
	Args     []Expr
}

// Subscript is `object[index]`.
type Subscript struct {
	ExprBase
	Object Expr
	Index  Expr
}

// Access is `object.element`; the validator fills in MemberIndex when
// Object resolves to a struct, or (with IsOverload set) OverloadIndex when
// the callable expression of a Call resolves to one signature of an
// overload set — in which case Object is the original callable expression
// and Element is unused.
type Access struct {
	ExprBase
	Object        Expr
	Element       string
	MemberIndex   int
	IsOverload    bool
	OverloadIndex int
}

// Cast is a validator-synthesized coercion node: `right` promoted to
// Target.
type Cast struct {
	ExprBase
	Right  Expr
	Target types.Handle
}

// ---- Statements ----

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// StmtBase is the common head every Stmt embeds: its leading token.
type StmtBase struct {
	Token token.Token
}

// NewStmtBase returns a StmtBase positioned at tok.
func NewStmtBase(tok token.Token) StmtBase { return StmtBase{Token: tok} }

func (s *StmtBase) Pos() token.Token { return s.Token }
func (s *StmtBase) stmtNode()        {}

// Block is `{ stmt* }`.
type Block struct {
	StmtBase
	Statements []Stmt
}

// If is `if(cond) then (else else_)?`.
type If struct {
	StmtBase
	Condition Expr
	Then      Stmt
	Else      Stmt // nil if absent
}

// While is `while(cond) body`.
type While struct {
	StmtBase
	Condition Expr
	Body      Stmt
}

// VarDecl is a variable declaration with an optional initializer.
type VarDecl struct {
	StmtBase
	Name     string
	Declared types.Handle   // types.Invalid if the type was to be inferred
	Init     Expr           // nil if absent
	Symbol   *symtab.Symbol // set by the validator
}

// Param is one function parameter.
type Param struct {
	Name string
	Type types.Handle
}

// FnDecl is a function declaration with a body.
type FnDecl struct {
	StmtBase
	Name       string
	Params     []Param
	ReturnType types.Handle
	Body       *Block
	Symbol     *symtab.Symbol
}

// NativeFnDecl declares a native (host-provided) function: signature only,
// no body.
type NativeFnDecl struct {
	StmtBase
	Name       string
	Params     []Param
	ReturnType types.Handle
	Symbol     *symtab.Symbol
}

// ClosureDecl introduces an inner function together with its captured
// upvalue list; both are filled in by the validator.
type ClosureDecl struct {
	StmtBase
	Inner    *FnDecl
	Upvalues []Upvalue
}

// Upvalue is a `(index, isNonLocal)` pair recorded by the validator when
// resolving a name that lives in an enclosing frame or enclosing
// closure's own upvalue array.
type Upvalue struct {
	Index      int
	NonLocal   bool
	Name       string
}

// StructDecl declares a struct type: a symbol plus its ordered member
// variables.
type StructDecl struct {
	StmtBase
	Name    string
	Members []Param
	Handle  types.Handle
}

// UnionDecl declares a union type: `type Name := T1 | T2 | ...;`.
type UnionDecl struct {
	StmtBase
	Name     string
	Variants []types.Handle
	Handle   types.Handle
}

// Return is `return expr?;`, tagged with the function it returns from.
type Return struct {
	StmtBase
	Function *FnDecl
	Value    Expr // nil for a bare `return;`
}

// Assignment is `target := source;`. IsDecl records whether the validator
// resolved this as a fresh local declaration (target not found in any
// enclosing scope) as opposed to a plain reassignment to an existing one.
type Assignment struct {
	StmtBase
	Target Expr
	Source Expr
	IsDecl bool
}

// ExpressionStmt wraps a bare call used as a statement.
type ExpressionStmt struct {
	StmtBase
	Call *Call
}
