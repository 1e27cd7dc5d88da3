// Package parser implements the Pratt-style expression parser and the
// recursive-descent statement parser that together produce the AST.
package parser

import (
	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/scanner"
	"github.com/fmaggi/matiria/internal/token"
	"github.com/fmaggi/matiria/internal/types"
)

// precedence levels, lowest to highest, per spec.md §4.2.
type precedence int

const (
	precNone precedence = iota
	precLogic
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type (
	prefixFn func(p *Parser) ast.Expr
	infixFn  func(p *Parser, left ast.Expr) ast.Expr
)

type rule struct {
	prefix prefixFn
	infix  infixFn
	prec   precedence
}

// Parser turns a token stream into an AST, recovering from the first
// error in a statement by resynchronizing at the next statement-starting
// token or closing brace (panic mode). Every detectable mistake is
// reported once; `hadError` is sticky for the whole parse.
type Parser struct {
	sc        *scanner.Scanner
	types     *types.Registry
	current   token.Token
	previous  token.Token
	hadError  bool
	panicking bool
	errs      []error
	rules     map[token.Kind]rule
}

// New returns a Parser ready to parse src, interning every type annotation
// it encounters into reg.
func New(src []byte, reg *types.Registry) *Parser {
	p := &Parser{sc: scanner.New(src), types: reg}
	p.rules = p.buildRules()
	p.advance()
	return p
}

// Errors returns every diagnostic accumulated during Parse.
func (p *Parser) Errors() []error { return p.errs }

// HadError reports whether any diagnostic was recorded.
func (p *Parser) HadError() bool { return p.hadError }

func (p *Parser) buildRules() map[token.Kind]rule {
	r := make(map[token.Kind]rule)
	r[token.ParenL] = rule{prefix: (*Parser).grouping, infix: (*Parser).call, prec: precCall}
	r[token.SquareL] = rule{prefix: (*Parser).arrayLiteral, infix: (*Parser).subscript, prec: precCall}
	r[token.Minus] = rule{prefix: (*Parser).unary, infix: (*Parser).binary, prec: precTerm}
	r[token.Bang] = rule{prefix: (*Parser).unary}
	r[token.Plus] = rule{infix: (*Parser).binary, prec: precTerm}
	r[token.Star] = rule{infix: (*Parser).binary, prec: precFactor}
	r[token.Slash] = rule{infix: (*Parser).binary, prec: precFactor}
	r[token.Percent] = rule{infix: (*Parser).binary, prec: precFactor}
	r[token.DSlash] = rule{infix: (*Parser).binary, prec: precFactor}
	r[token.Less] = rule{infix: (*Parser).binary, prec: precComparison}
	r[token.LessEq] = rule{infix: (*Parser).binary, prec: precComparison}
	r[token.Greater] = rule{infix: (*Parser).binary, prec: precComparison}
	r[token.GreaterEq] = rule{infix: (*Parser).binary, prec: precComparison}
	r[token.Equal] = rule{infix: (*Parser).binary, prec: precEquality}
	r[token.NotEqual] = rule{infix: (*Parser).binary, prec: precEquality}
	r[token.And] = rule{infix: (*Parser).binary, prec: precLogic}
	r[token.Or] = rule{infix: (*Parser).binary, prec: precLogic}
	r[token.Dot] = rule{infix: (*Parser).access, prec: precCall}
	r[token.Identifier] = rule{prefix: (*Parser).primary}
	r[token.Type] = rule{prefix: (*Parser).mapLiteral}
	r[token.Int] = rule{prefix: (*Parser).literal}
	r[token.Float] = rule{prefix: (*Parser).literal}
	r[token.String] = rule{prefix: (*Parser).literal}
	r[token.True] = rule{prefix: (*Parser).literal}
	r[token.False] = rule{prefix: (*Parser).literal}
	return r
}

func (p *Parser) getRule(k token.Kind) rule { return p.rules[k] }

// ---- token plumbing ----

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.sc.Next()
		if p.current.Kind != token.Comment {
			break
		}
	}
	if p.current.Kind == token.Invalid {
		p.errorAtCurrent(merr.ParseErr, "unrecognised input")
	}
}

func (p *Parser) check(k token.Kind) bool { return p.current.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(k token.Kind, msg string) token.Token {
	if p.check(k) {
		tok := p.current
		p.advance()
		return tok
	}
	p.errorAtCurrent(merr.ParseErr, "%s (got %s)", msg, p.current.Kind)
	return p.current
}

func (p *Parser) errorAtCurrent(kind merr.Kind, format string, args ...interface{}) {
	p.errorAt(p.current, kind, format, args...)
}

func (p *Parser) errorAt(tok token.Token, kind merr.Kind, format string, args ...interface{}) {
	p.hadError = true
	if p.panicking {
		return
	}
	p.panicking = true
	p.errs = append(p.errs, merr.New(kind, tok.Line, tok.Column, format, args...))
}

// synchronize resynchronizes at the next statement-starting token or
// closing brace, per §4.2's panic-mode recovery.
func (p *Parser) synchronize() {
	p.panicking = false
	for p.current.Kind != token.EOF {
		if p.previous.Kind == token.Semicolon {
			return
		}
		switch p.current.Kind {
		case token.CurlyR, token.If, token.While, token.Return, token.Fn, token.Struct, token.Type, token.For:
			return
		}
		p.advance()
	}
}

const maxArgs = 255

// ---- expressions ----

func (p *Parser) parsePrecedence(min precedence) ast.Expr {
	prefix := p.getRule(p.current.Kind).prefix
	if prefix == nil {
		p.errorAtCurrent(merr.ParseErr, "expected an expression")
		p.advance()
		return nil
	}
	left := prefix(p)
	for {
		r := p.getRule(p.current.Kind)
		if r.infix == nil || r.prec < min {
			break
		}
		left = r.infix(p, left)
	}
	return left
}

func (p *Parser) expression() ast.Expr { return p.parsePrecedence(precLogic) }

func (p *Parser) grouping() ast.Expr {
	tok := p.current
	p.advance() // consume '('
	inner := p.expression()
	p.consume(token.ParenR, "expected ')' after expression")
	return &ast.Grouping{exprBaseOf(tok), inner}
}

func exprBaseOf(tok token.Token) ast.ExprBase { return ast.NewExprBase(tok) }

func (p *Parser) unary() ast.Expr {
	op := p.current
	p.advance()
	right := p.parsePrecedence(precUnary)
	return &ast.Unary{exprBaseOf(op), op, right}
}

func (p *Parser) binary(left ast.Expr) ast.Expr {
	op := p.current
	r := p.getRule(op.Kind)
	p.advance()
	right := p.parsePrecedence(r.prec + 1)
	return &ast.Binary{exprBaseOf(op), left, right, op}
}

func (p *Parser) literal() ast.Expr {
	tok := p.current
	p.advance()
	lit := &ast.Literal{ExprBase: exprBaseOf(tok)}
	switch tok.Kind {
	case token.Int:
		lit.Kind = ast.LitInt
		lit.Int = parseInt(tok.Text())
	case token.Float:
		lit.Kind = ast.LitFloat
		lit.Float = parseFloat(tok.Text())
	case token.String:
		lit.Kind = ast.LitString
		text := tok.Text()
		lit.String = text[1 : len(text)-1]
	case token.True:
		lit.Kind = ast.LitBool
		lit.Bool = true
	case token.False:
		lit.Kind = ast.LitBool
		lit.Bool = false
	}
	return lit
}

func (p *Parser) primary() ast.Expr {
	tok := p.current
	p.advance()
	return &ast.Primary{ExprBase: exprBaseOf(tok), Name: tok.Text()}
}

func (p *Parser) arrayLiteral() ast.Expr {
	tok := p.current
	p.advance() // consume '['
	var elems []ast.Expr
	if !p.check(token.SquareR) {
		elems = append(elems, p.expression())
		for p.match(token.Comma) {
			elems = append(elems, p.expression())
		}
	}
	p.consume(token.SquareR, "expected ']' after array literal")
	return &ast.ArrayLiteral{ExprBase: exprBaseOf(tok), Elements: elems}
}

// mapLiteral parses `type { k: v, ... }`, the only surface form a map
// literal takes in an expression position — the bare `{` is reserved for
// blocks, so the spec's grammar disambiguates with a leading `type` keyword.
func (p *Parser) mapLiteral() ast.Expr {
	tok := p.current
	p.advance() // consume 'type'
	p.consume(token.CurlyL, "expected '{' after 'type'")
	var entries []ast.MapEntry
	if !p.check(token.CurlyR) {
		entries = append(entries, p.mapEntry())
		for p.match(token.Comma) {
			entries = append(entries, p.mapEntry())
		}
	}
	p.consume(token.CurlyR, "expected '}' after map literal")
	return &ast.MapLiteral{ExprBase: exprBaseOf(tok), Entries: entries}
}

func (p *Parser) mapEntry() ast.MapEntry {
	key := p.expression()
	p.consume(token.Colon, "expected ':' in map entry")
	val := p.expression()
	return ast.MapEntry{Key: key, Value: val}
}

func (p *Parser) subscript(left ast.Expr) ast.Expr {
	tok := p.current
	p.advance() // consume '['
	idx := p.expression()
	p.consume(token.SquareR, "expected ']' after subscript")
	return &ast.Subscript{exprBaseOf(tok), left, idx}
}

func (p *Parser) access(left ast.Expr) ast.Expr {
	tok := p.current
	p.advance() // consume '.'
	name := p.consume(token.Identifier, "expected member name after '.'")
	return &ast.Access{ExprBase: exprBaseOf(tok), Object: left, Element: name.Text()}
}

func (p *Parser) call(callee ast.Expr) ast.Expr {
	tok := p.current
	p.advance() // consume '('
	var args []ast.Expr
	if !p.check(token.ParenR) {
		args = append(args, p.expression())
		for p.match(token.Comma) {
			if len(args) >= maxArgs {
				p.errorAtCurrent(merr.ParseErr, "cannot pass more than %d arguments", maxArgs)
			}
			args = append(args, p.expression())
		}
	}
	p.consume(token.ParenR, "expected ')' after arguments")
	return &ast.Call{exprBaseOf(tok), callee, args}
}

// ---- types ----

// typeExpr parses a type annotation: a primitive keyword, an array
// `[T]`, a map `{K:V}`, or a user type name, interning the result into
// p.types.
func (p *Parser) typeExpr() types.Handle {
	switch p.current.Kind {
	case token.KwInt:
		p.advance()
		return types.Int
	case token.KwFloat:
		p.advance()
		return types.Float
	case token.KwBool:
		p.advance()
		return types.Bool
	case token.KwString:
		p.advance()
		return types.String
	case token.KwAny:
		p.advance()
		return types.Any
	case token.SquareL:
		p.advance()
		elem := p.typeExpr()
		p.consume(token.SquareR, "expected ']' after array element type")
		return p.types.RegisterArray(elem)
	case token.CurlyL:
		p.advance()
		key := p.typeExpr()
		p.consume(token.Colon, "expected ':' in map type")
		val := p.typeExpr()
		p.consume(token.CurlyR, "expected '}' after map type")
		return p.types.RegisterMap(key, val)
	case token.Identifier:
		name := p.current.Text()
		p.advance()
		if h, ok := p.types.LookupByName(name); ok {
			return h
		}
		return p.types.RegisterUser(name)
	default:
		p.errorAtCurrent(merr.ParseErr, "expected a type")
		return types.Invalid
	}
}

// isTypeStart reports whether tok can begin a type annotation.
func isTypeStart(k token.Kind) bool {
	switch k {
	case token.KwInt, token.KwFloat, token.KwBool, token.KwString, token.KwAny,
		token.SquareL, token.CurlyL:
		return true
	}
	return false
}

func parseInt(s string) int64 {
	var v int64
	for i := 0; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
	}
	return v
}

func parseFloat(s string) float64 {
	var intPart, fracPart float64
	var fracDigits int
	i := 0
	for ; i < len(s) && s[i] != '.'; i++ {
		intPart = intPart*10 + float64(s[i]-'0')
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s); i++ {
			fracPart = fracPart*10 + float64(s[i]-'0')
			fracDigits++
		}
	}
	for j := 0; j < fracDigits; j++ {
		fracPart /= 10
	}
	return intPart + fracPart
}
