package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/ast"
	"github.com/fmaggi/matiria/internal/parser"
	"github.com/fmaggi/matiria/internal/types"
)

func parse(t *testing.T, src string) *ast.Block {
	t.Helper()
	reg := types.NewRegistry()
	p := parser.New([]byte(src), reg)
	root := p.Parse()
	require.False(t, p.HadError(), "unexpected parse errors: %v", p.Errors())
	return root
}

func TestParseArithmeticPrecedence(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	return 1 + 2 * 3;
}
`)
	require.Len(t, root.Statements, 1)
	fn := root.Statements[0].(*ast.FnDecl)
	require.Len(t, fn.Body.Statements, 1)
	ret := fn.Body.Statements[0].(*ast.Return)
	bin := ret.Value.(*ast.Binary)
	assert.Equal(t, "+", bin.Operator.Text())
	rhs := bin.Right.(*ast.Binary)
	assert.Equal(t, "*", rhs.Operator.Text())
}

func TestParseBareAssignmentAndCall(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	x := 10;
	print(x);
	return 0;
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	require.Len(t, fn.Body.Statements, 3)
	assign := fn.Body.Statements[0].(*ast.Assignment)
	target := assign.Target.(*ast.Primary)
	assert.Equal(t, "x", target.Name)
	expr := fn.Body.Statements[1].(*ast.ExpressionStmt)
	assert.Equal(t, "print", expr.Call.Callable.(*ast.Primary).Name)
}

func TestParseLetDeclaration(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	let total := 0;
	return total;
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	decl := fn.Body.Statements[0].(*ast.VarDecl)
	assert.Equal(t, "total", decl.Name)
	assert.Equal(t, types.Invalid, decl.Declared)
}

func TestParseTypedDeclaration(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	Int count := 5;
	return count;
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	decl := fn.Body.Statements[0].(*ast.VarDecl)
	assert.Equal(t, "count", decl.Name)
	assert.Equal(t, types.Int, decl.Declared)
}

func TestParseArrayAndSubscript(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	xs := [10, 20, 30];
	return xs[1];
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	assign := fn.Body.Statements[0].(*ast.Assignment)
	arr := assign.Source.(*ast.ArrayLiteral)
	assert.Len(t, arr.Elements, 3)
	ret := fn.Body.Statements[1].(*ast.Return)
	sub := ret.Value.(*ast.Subscript)
	assert.Equal(t, "xs", sub.Object.(*ast.Primary).Name)
}

func TestParseMapLiteral(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	m := type {1: 2, 3: 4};
	return 0;
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	assign := fn.Body.Statements[0].(*ast.Assignment)
	m := assign.Source.(*ast.MapLiteral)
	assert.Len(t, m.Entries, 2)
}

func TestParseWhileLoop(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	i := 0;
	while (i < 3) {
		i := i + 1;
	}
	return i;
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	loop := fn.Body.Statements[1].(*ast.While)
	cond := loop.Condition.(*ast.Binary)
	assert.Equal(t, "<", cond.Operator.Text())
	body := loop.Body.(*ast.Block)
	require.Len(t, body.Statements, 1)
}

func TestParseIfElse(t *testing.T) {
	root := parse(t, `
fn main() -> Int {
	if (1 < 2) {
		return 1;
	} else {
		return 2;
	}
}
`)
	fn := root.Statements[0].(*ast.FnDecl)
	ifs := fn.Body.Statements[0].(*ast.If)
	assert.NotNil(t, ifs.Then)
	assert.NotNil(t, ifs.Else)
}

func TestParseNativeFnDecl(t *testing.T) {
	root := parse(t, `
fn print(String s);

fn main() -> Int {
	return 0;
}
`)
	require.Len(t, root.Statements, 2)
	native := root.Statements[0].(*ast.NativeFnDecl)
	assert.Equal(t, "print", native.Name)
	require.Len(t, native.Params, 1)
	assert.Equal(t, types.String, native.Params[0].Type)
}

func TestParseStructDecl(t *testing.T) {
	root := parse(t, `
struct Point {
	Int x;
	Int y;
}

fn main() -> Int {
	return 0;
}
`)
	s := root.Statements[0].(*ast.StructDecl)
	assert.Equal(t, "Point", s.Name)
	require.Len(t, s.Members, 2)
	assert.Equal(t, "x", s.Members[0].Name)
}

func TestParseUnionDecl(t *testing.T) {
	root := parse(t, `
type Number := Int | Float;

fn main() -> Int {
	return 0;
}
`)
	u := root.Statements[0].(*ast.UnionDecl)
	assert.Equal(t, "Number", u.Name)
	require.Len(t, u.Variants, 2)
	assert.Equal(t, types.Int, u.Variants[0])
	assert.Equal(t, types.Float, u.Variants[1])
}

func TestParseFunctionOverloadCallSite(t *testing.T) {
	root := parse(t, `
fn add(Int a, Int b) -> Int {
	return a + b;
}

fn add(Float a, Float b) -> Float {
	return a + b;
}

fn main() -> Int {
	return add(1, 2);
}
`)
	require.Len(t, root.Statements, 3)
	first := root.Statements[0].(*ast.FnDecl)
	assert.Equal(t, "add", first.Name)
	require.Len(t, first.Params, 2)
}

func TestParseArgLimitExceeded(t *testing.T) {
	src := "fn f("
	for i := 0; i < 300; i++ {
		if i > 0 {
			src += ", "
		}
		src += "Int a" + string(rune('A'+i%26))
	}
	src += ") { }\nfn main() -> Int { return 0; }\n"
	reg := types.NewRegistry()
	p := parser.New([]byte(src), reg)
	p.Parse()
	assert.True(t, p.HadError())
}

func TestParsePanicModeRecoversAtNextStatement(t *testing.T) {
	reg := types.NewRegistry()
	p := parser.New([]byte(`
fn main() -> Int {
	x := ;
	return 0;
}
`), reg)
	root := p.Parse()
	assert.True(t, p.HadError())
	fn := root.Statements[0].(*ast.FnDecl)
	last := fn.Body.Statements[len(fn.Body.Statements)-1]
	ret, ok := last.(*ast.Return)
	require.True(t, ok)
	assert.NotNil(t, ret.Value)
}
