package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/emitter"
	"github.com/fmaggi/matiria/internal/parser"
	"github.com/fmaggi/matiria/internal/types"
	"github.com/fmaggi/matiria/internal/validator"
	"github.com/fmaggi/matiria/internal/vm"
	"github.com/fmaggi/matiria/internal/vmheap"
)

// run parses, validates and emits src, binds a native `fn capture(Any v);`
// declared in src against a Go closure that records every value passed to
// it, executes the package, and returns the recorded values alongside any
// error vm.Execute produced. Tests assert on the recorded sequence instead
// of stdout, the way a native-call boundary is meant to be exercised.
func run(t *testing.T, src string) ([]vmheap.Value, error) {
	t.Helper()
	reg := types.NewRegistry()
	p := parser.New([]byte(src), reg)
	root := p.Parse()
	require.False(t, p.HadError(), "parse errors: %v", p.Errors())

	v := validator.New(reg)
	v.Validate(root)
	require.False(t, v.HadError(), "validate errors: %v", v.Errors())

	pkg := emitter.New(reg).Emit(root, v.GlobalScope())

	var captured []vmheap.Value
	if sym, found := v.GlobalScope().Find("capture"); found {
		pkg.Bind(sym.Index, "capture", func(args []vmheap.Value) (vmheap.Value, error) {
			captured = append(captured, args[0])
			return vmheap.Nil, nil
		})
	}

	err := vm.New().Execute(pkg)
	return captured, err
}

func TestArithmeticAndComparison(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn main() {
	capture(1 + 2 * 3);
	capture(10 / 3);
	capture(10 % 3);
	capture(2 < 3);
	capture(3 <= 3);
	capture(1.5 + 1);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 6)
	require.Equal(t, int64(7), got[0].I)
	require.Equal(t, int64(3), got[1].I)
	require.Equal(t, int64(1), got[2].I)
	require.Equal(t, int64(1), got[3].I)
	require.Equal(t, int64(1), got[4].I)
	require.Equal(t, 2.5, got[5].F)
}

func TestShortCircuitAndOr(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn sideEffect() -> Bool {
	capture(1);
	return true;
}

fn main() {
	if (false && sideEffect()) {
	}
	if (true || sideEffect()) {
	}
	capture(2);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].I)
}

func TestWhileLoopAccumulates(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn main() {
	i := 0;
	total := 0;
	while (i < 5) {
		total := total + i;
		i := i + 1;
	}
	capture(total);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(10), got[0].I)
}

func TestFunctionCallAndOverloadDispatch(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn add(Int a, Int b) -> Int {
	return a + b;
}

fn add(Int a, Int b, Int c) -> Int {
	return a + b + c;
}

fn main() {
	capture(add(1, 2));
	capture(add(1, 2, 3));
}
`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(3), got[0].I)
	require.Equal(t, int64(6), got[1].I)
}

func TestClosureCapturesLocalByValue(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn outer() -> Int {
	total := 10;
	fn inner() -> Int {
		return total + 1;
	}
	{
		total := 99;
	}
	return inner();
}

fn main() {
	capture(outer());
}
`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(11), got[0].I)
}

func TestStructZeroArgConstructorZeroFillsMembers(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

struct Point {
	Int x;
	Int y;
}

fn main() {
	Point p;
	capture(p.x);
	capture(p.y);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(0), got[0].I)
	require.Equal(t, int64(0), got[1].I)
}

func TestStructConstructorAndMemberAssignment(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

struct Point {
	Int x;
	Int y;
}

fn main() {
	p := Point(1, 2);
	p.x := 5;
	capture(p.x);
	capture(p.y);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(5), got[0].I)
	require.Equal(t, int64(2), got[1].I)
}

func TestArrayIndexGetAndSet(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn main() {
	xs := [1, 2, 3];
	xs[1] := 99;
	capture(xs[0]);
	capture(xs[1]);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].I)
	require.Equal(t, int64(99), got[1].I)
}

func TestArrayIndexOutOfBoundsIsRuntimeError(t *testing.T) {
	_, err := run(t, `
fn main() {
	xs := [1, 2, 3];
	y := xs[10];
}
`)
	require.Error(t, err)
}

func TestMapMissReturnsNil(t *testing.T) {
	got, err := run(t, `
fn capture(Any v);

fn main() {
	m := type {"a": 1};
	capture(m["a"]);
	capture(m["missing"]);
}
`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].I)
	require.Equal(t, vmheap.Nil, got[1])
}

func TestIntegerDivisionByZeroIsRuntimeError(t *testing.T) {
	_, err := run(t, `
fn main() {
	z := 0;
	y := 1 / z;
}
`)
	require.Error(t, err)
}

func TestPackageWithNoMainIsRuntimeError(t *testing.T) {
	reg := types.NewRegistry()
	p := parser.New([]byte(`struct Empty { Int x; }`), reg)
	root := p.Parse()
	require.False(t, p.HadError())
	v := validator.New(reg)
	v.Validate(root)
	require.False(t, v.HadError(), "%v", v.Errors())
	pkg := emitter.New(reg).Emit(root, v.GlobalScope())
	err := vm.New().Execute(pkg)
	require.Error(t, err)
}
