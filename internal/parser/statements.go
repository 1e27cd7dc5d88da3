package parser

import (
	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/token"
	"github.com/fmaggi/matiria/internal/types"
)

// Parse consumes the whole token stream and returns the program's root
// block. At the top level only function, native-function, struct, and
// union declarations are permitted.
func (p *Parser) Parse() *ast.Block {
	root := &ast.Block{StmtBase: ast.NewStmtBase(p.current)}
	for !p.check(token.EOF) {
		stmt := p.topLevelDecl()
		if stmt != nil {
			root.Statements = append(root.Statements, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}
	return root
}

func (p *Parser) topLevelDecl() ast.Stmt {
	switch p.current.Kind {
	case token.Fn:
		return p.topLevelFn()
	case token.Struct:
		return p.structDecl()
	case token.Type:
		return p.unionDecl()
	default:
		p.errorAtCurrent(merr.ParseErr, "expected a function, struct, or union declaration")
		p.advance()
		return nil
	}
}

// ---- statements ----

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.check(token.CurlyL):
		return p.block()
	case p.check(token.If):
		return p.ifStmt()
	case p.check(token.While):
		return p.whileStmt()
	case p.check(token.Return):
		return p.returnStmt()
	case p.check(token.Fn):
		return p.closureDecl()
	case p.isLetDecl():
		return p.letDecl()
	case isTypeStart(p.current.Kind) || p.isTypedDeclStart():
		return p.typedDecl()
	default:
		return p.assignOrExprStmt()
	}
}

func (p *Parser) block() *ast.Block {
	tok := p.current
	p.consume(token.CurlyL, "expected '{'")
	b := &ast.Block{StmtBase: ast.NewStmtBase(tok)}
	for !p.check(token.CurlyR) && !p.check(token.EOF) {
		stmt := p.statement()
		if stmt != nil {
			b.Statements = append(b.Statements, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}
	p.consume(token.CurlyR, "expected '}' to close block")
	return b
}

func (p *Parser) ifStmt() ast.Stmt {
	tok := p.current
	p.advance() // 'if'
	p.consume(token.ParenL, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(token.ParenR, "expected ')' after condition")
	then := p.statement()
	node := &ast.If{StmtBase: ast.NewStmtBase(tok), Condition: cond, Then: then}
	if p.match(token.Else) {
		node.Else = p.statement()
	}
	return node
}

func (p *Parser) whileStmt() ast.Stmt {
	tok := p.current
	p.advance() // 'while'
	p.consume(token.ParenL, "expected '(' after 'while'")
	cond := p.expression()
	p.consume(token.ParenR, "expected ')' after condition")
	body := p.statement()
	return &ast.While{StmtBase: ast.NewStmtBase(tok), Condition: cond, Body: body}
}

func (p *Parser) returnStmt() ast.Stmt {
	tok := p.current
	p.advance() // 'return'
	node := &ast.Return{StmtBase: ast.NewStmtBase(tok)}
	if !p.check(token.Semicolon) {
		node.Value = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after return statement")
	return node
}

// isLetDecl reports whether the current position starts `let name := expr;`.
// "let" is not a reserved keyword, so it is recognised here as an
// Identifier whose text happens to be "let", followed by another
// identifier (the declared name).
func (p *Parser) isLetDecl() bool {
	return p.check(token.Identifier) && p.current.Text() == "let" &&
		p.sc.PeekNextKind() == token.Identifier
}

func (p *Parser) letDecl() ast.Stmt {
	tok := p.current
	p.advance() // 'let'
	name := p.consume(token.Identifier, "expected a variable name after 'let'")
	p.consume(token.Walrus, "expected ':=' after variable name")
	init := p.expression()
	p.consume(token.Semicolon, "expected ';' after declaration")
	return &ast.VarDecl{
		StmtBase: ast.NewStmtBase(tok),
		Name:     name.Text(),
		Declared: types.Invalid,
		Init:     init,
	}
}

// isTypedDeclStart reports whether the current position starts an
// explicit `Type name ...` declaration headed by a user type name: an
// Identifier immediately followed by another Identifier. A lone
// identifier (e.g. the start of `x := 1;` or a call statement) is not a
// declaration.
func (p *Parser) isTypedDeclStart() bool {
	if !p.check(token.Identifier) {
		return false
	}
	return p.sc.PeekNextKind() == token.Identifier
}

func (p *Parser) typedDecl() ast.Stmt {
	tok := p.current
	declared := p.typeExpr()
	name := p.consume(token.Identifier, "expected a variable name")
	node := &ast.VarDecl{StmtBase: ast.NewStmtBase(tok), Name: name.Text(), Declared: declared}
	if p.match(token.Walrus) {
		node.Init = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after declaration")
	return node
}

// assignOrExprStmt parses either `target := source;` (the bare-name
// declare-or-reassign form resolved later by the validator, per
// DESIGN.md) or a bare call used as a statement.
func (p *Parser) assignOrExprStmt() ast.Stmt {
	tok := p.current
	expr := p.expression()
	if p.match(token.Walrus) {
		source := p.expression()
		p.consume(token.Semicolon, "expected ';' after assignment")
		return &ast.Assignment{StmtBase: ast.NewStmtBase(tok), Target: expr, Source: source}
	}
	p.consume(token.Semicolon, "expected ';' after expression statement")
	call, ok := expr.(*ast.Call)
	if !ok {
		p.errorAt(tok, merr.ParseErr, "expected a call or an assignment, got a bare expression")
		return nil
	}
	return &ast.ExpressionStmt{StmtBase: ast.NewStmtBase(tok), Call: call}
}

// ---- declarations ----

func (p *Parser) params() []ast.Param {
	var out []ast.Param
	p.consume(token.ParenL, "expected '(' to start parameter list")
	if !p.check(token.ParenR) {
		out = append(out, p.param())
		for p.match(token.Comma) {
			if len(out) >= maxArgs {
				p.errorAtCurrent(merr.ParseErr, "cannot declare more than %d parameters", maxArgs)
			}
			out = append(out, p.param())
		}
	}
	p.consume(token.ParenR, "expected ')' after parameters")
	return out
}

func (p *Parser) param() ast.Param {
	typ := p.typeExpr()
	name := p.consume(token.Identifier, "expected a parameter name")
	return ast.Param{Name: name.Text(), Type: typ}
}

// fnSignature parses `fn name(params?) (-> type)?`, common to both a full
// function declaration and a native declaration (§4.2: the two differ
// only in what follows — a body block, or a bare `;`).
func (p *Parser) fnSignature() (tok token.Token, name string, params []ast.Param, ret types.Handle) {
	tok = p.current
	p.advance() // 'fn'
	nameTok := p.consume(token.Identifier, "expected a function name")
	params = p.params()
	ret = types.Void
	if p.match(token.Arrow) {
		ret = p.typeExpr()
	}
	return tok, nameTok.Text(), params, ret
}

// topLevelFn parses a `fn` declaration at global scope: a NativeFnDecl if
// the signature is terminated with `;`, otherwise a full FnDecl with a
// body.
func (p *Parser) topLevelFn() ast.Stmt {
	tok, name, params, ret := p.fnSignature()
	if p.match(token.Semicolon) {
		return &ast.NativeFnDecl{StmtBase: ast.NewStmtBase(tok), Name: name, Params: params, ReturnType: ret}
	}
	return &ast.FnDecl{StmtBase: ast.NewStmtBase(tok), Name: name, Params: params, ReturnType: ret, Body: p.block()}
}

// fnDecl parses a local (non-native) `fn` declaration, used for nested
// closures, which always carry a body.
func (p *Parser) fnDecl() *ast.FnDecl {
	tok, name, params, ret := p.fnSignature()
	body := p.block()
	return &ast.FnDecl{StmtBase: ast.NewStmtBase(tok), Name: name, Params: params, ReturnType: ret, Body: body}
}

func (p *Parser) closureDecl() ast.Stmt {
	tok := p.current
	inner := p.fnDecl()
	return &ast.ClosureDecl{StmtBase: ast.NewStmtBase(tok), Inner: inner}
}

func (p *Parser) structDecl() ast.Stmt {
	tok := p.current
	p.advance() // 'struct'
	name := p.consume(token.Identifier, "expected a struct name")
	p.consume(token.CurlyL, "expected '{' to start struct body")
	var members []ast.Param
	for !p.check(token.CurlyR) && !p.check(token.EOF) {
		members = append(members, p.param())
		p.consume(token.Semicolon, "expected ';' after member declaration")
	}
	p.consume(token.CurlyR, "expected '}' to close struct")
	return &ast.StructDecl{StmtBase: ast.NewStmtBase(tok), Name: name.Text(), Members: members}
}

func (p *Parser) unionDecl() ast.Stmt {
	tok := p.current
	p.advance() // 'type'
	name := p.consume(token.Identifier, "expected a type name")
	p.consume(token.Walrus, "expected ':=' after union name")
	var variants []types.Handle
	variants = append(variants, p.typeExpr())
	for p.match(token.Pipe) {
		variants = append(variants, p.typeExpr())
	}
	p.consume(token.Semicolon, "expected ';' after union declaration")
	return &ast.UnionDecl{StmtBase: ast.NewStmtBase(tok), Name: name.Text(), Variants: variants}
}
