package eval

import (
	"strings"
	"testing"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/ast"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/exprparser"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/scope"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

func evalSrc(t *testing.T, src string, sc *scope.Scope) value.Value {
	t.Helper()
	expr, err := exprparser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	if sc == nil {
		sc = scope.New()
	}
	v, err := Eval(expr, sc, nil)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v
}

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4", 2.5},
		{"-5 + 2", -3},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			got := evalSrc(t, c.src, nil)
			if got.Kind() != value.KindF64 || got.AsF64() != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestEvalDivideByZero(t *testing.T) {
	expr, err := exprparser.Parse("1 / 0")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, scope.New(), nil)
	if !errs.HasKind(err, errs.DivideByZero) {
		t.Fatalf("got %v, want DivideByZero", err)
	}
}

func TestEvalComparison(t *testing.T) {
	got := evalSrc(t, "3 < 4", nil)
	if !got.AsBool() {
		t.Errorf("expected true")
	}
}

func TestEvalLogicalShortCircuit(t *testing.T) {
	sc := scope.New()
	sc.SetResolver(func(*scope.Scope, string) (scope.Symbol, bool) {
		t.Fatal("resolver should not be invoked due to short-circuit")
		return scope.Symbol{}, false
	})
	got := evalSrc(t, "false and undefined_symbol", sc)
	if got.AsBool() {
		t.Errorf("expected false")
	}
	got = evalSrc(t, "true or undefined_symbol", sc)
	if !got.AsBool() {
		t.Errorf("expected true")
	}
}

func TestEvalStringConcatAndRepeat(t *testing.T) {
	got := evalSrc(t, `"a" + "b"`, nil)
	if got.AsString() != "ab" {
		t.Errorf("got %q", got.AsString())
	}
	got = evalSrc(t, `"ab" * 3`, nil)
	if got.AsString() != "ababab" {
		t.Errorf("got %q", got.AsString())
	}
}

func TestEvalStringMethods(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`"Hello".upper()`, "HELLO"},
		{`"Hello".lower()`, "hello"},
		{`"Hello".reverse()`, "olleH"},
		{`"hello world".title()`, "Hello World"},
		{`"x".space()`, " x "},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			got := evalSrc(t, c.src, nil)
			if got.AsString() != c.want {
				t.Errorf("got %q, want %q", got.AsString(), c.want)
			}
		})
	}
}

func TestEvalStringLen(t *testing.T) {
	got := evalSrc(t, `"hello".len()`, nil)
	if got.AsF64() != 5 {
		t.Errorf("got %v", got.AsF64())
	}
}

func TestEvalUnknownStringMethod(t *testing.T) {
	expr, err := exprparser.Parse(`"x".bogus()`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, scope.New(), nil)
	if !errs.HasKind(err, errs.NoSuchProperty) {
		t.Fatalf("got %v, want NoSuchProperty", err)
	}
}

func TestEvalBuiltins(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"abs(-3)", 3},
		{"ceil(1.2)", 2},
		{"floor(1.8)", 1},
		{"sqrt(9)", 3},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			got := evalSrc(t, c.src, nil)
			if got.AsF64() != c.want {
				t.Errorf("got %v, want %v", got.AsF64(), c.want)
			}
		})
	}
}

func TestEvalHexBuiltin(t *testing.T) {
	got := evalSrc(t, "hex(255)", nil)
	if got.AsString() != "0xff" {
		t.Errorf("got %q", got.AsString())
	}
}

func TestEvalSymbolAssignAndRef(t *testing.T) {
	sc := scope.New()
	evalSrc(t, "x = 5", sc)
	got := evalSrc(t, "x + 1", sc)
	if got.AsF64() != 6 {
		t.Errorf("got %v", got.AsF64())
	}
}

func TestEvalMissingSymbol(t *testing.T) {
	expr, err := exprparser.Parse("undefined")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, scope.New(), nil)
	if !errs.HasKind(err, errs.MissingSymbol) {
		t.Fatalf("got %v, want MissingSymbol", err)
	}
}

func TestEvalStmtListEvaluatesLeftOnce(t *testing.T) {
	sc := scope.New()
	sc.Define("calls", scope.ValueSymbol(value.F64(0)))
	sc.Define("bump", scope.FuncSymbol(
		&ast.SymbolAssign{Name: "calls", Value: &ast.BinOp{Op: ast.Add, Left: &ast.SymbolRef{Name: "calls"}, Right: &ast.Literal{Value: value.F64(1)}}},
		nil,
	))
	got := evalSrc(t, "bump(); calls", sc)
	if got.AsF64() != 1 {
		t.Errorf("got %v, want 1 (left evaluated exactly once)", got.AsF64())
	}
}

func TestEvalIfNode(t *testing.T) {
	expr := &ast.If{
		Cond: &ast.Literal{Value: value.Bool(false)},
		Then: &ast.Literal{Value: value.F64(1)},
	}
	got, err := Eval(expr, scope.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != value.KindNull {
		t.Errorf("got %v, want null", got)
	}
}

func TestEvalWhileNode(t *testing.T) {
	sc := scope.New()
	sc.Define("n", scope.ValueSymbol(value.F64(0)))
	expr := &ast.While{
		Cond: &ast.BinOp{Op: ast.Lt, Left: &ast.SymbolRef{Name: "n"}, Right: &ast.Literal{Value: value.F64(3)}},
		Body: &ast.SymbolAssign{Name: "n", Value: &ast.BinOp{Op: ast.Add, Left: &ast.SymbolRef{Name: "n"}, Right: &ast.Literal{Value: value.F64(1)}}},
	}
	got, err := Eval(expr, sc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.AsF64() != 3 {
		t.Errorf("got %v, want 3", got.AsF64())
	}
}

func TestEvalUserCall(t *testing.T) {
	sc := scope.New()
	sc.Define("add", scope.FuncSymbol(
		&ast.BinOp{Op: ast.Add, Left: &ast.SymbolRef{Name: "a"}, Right: &ast.SymbolRef{Name: "b"}},
		[]string{"a", "b"},
	))
	got := evalSrc(t, "add(2, 3)", sc)
	if got.AsF64() != 5 {
		t.Errorf("got %v", got.AsF64())
	}
}

func TestEvalUserCallArityMismatch(t *testing.T) {
	sc := scope.New()
	sc.Define("add", scope.FuncSymbol(&ast.Literal{Value: value.F64(0)}, []string{"a", "b"}))
	expr, err := exprparser.Parse("add(1)")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, sc, nil)
	if !errs.HasKind(err, errs.SyntaxError) {
		t.Fatalf("got %v, want SyntaxError", err)
	}
}

type fakeObject struct {
	props map[string]value.Value
}

func (f *fakeObject) TypeName() string { return "Fake" }
func (f *fakeObject) GetProperty(name string) (value.Value, bool) {
	v, ok := f.props[name]
	return v, ok
}
func (f *fakeObject) SetProperty(name string, v value.Value) bool {
	if _, ok := f.props[name]; !ok {
		return false
	}
	f.props[name] = v
	return true
}
func (f *fakeObject) InvokeMethod(name string, args []value.Value) (value.Value, bool, error) {
	if name == "double" && len(args) == 1 {
		return value.F64(args[0].AsF64() * 2), true, nil
	}
	return value.Value{}, false, nil
}

func TestEvalGetattrSetattr(t *testing.T) {
	obj := &fakeObject{props: map[string]value.Value{"x": value.F64(1)}}
	sc := scope.New()
	sc.Define("obj", scope.ValueSymbol(value.ObjectVal(obj)))

	got := evalSrc(t, "obj.x", sc)
	if got.AsF64() != 1 {
		t.Errorf("got %v", got.AsF64())
	}

	evalSrc(t, "obj.x = 9", sc)
	got = evalSrc(t, "obj.x", sc)
	if got.AsF64() != 9 {
		t.Errorf("got %v after assign", got.AsF64())
	}
}

func TestEvalGetattrMissingProperty(t *testing.T) {
	obj := &fakeObject{props: map[string]value.Value{}}
	sc := scope.New()
	sc.Define("obj", scope.ValueSymbol(value.ObjectVal(obj)))
	expr, err := exprparser.Parse("obj.missing")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, sc, nil)
	if !errs.HasKind(err, errs.NoSuchProperty) {
		t.Fatalf("got %v, want NoSuchProperty", err)
	}
}

func TestEvalObjectMethodCall(t *testing.T) {
	obj := &fakeObject{props: map[string]value.Value{}}
	sc := scope.New()
	sc.Define("obj", scope.ValueSymbol(value.ObjectVal(obj)))
	got := evalSrc(t, "obj.double(21)", sc)
	if got.AsF64() != 42 {
		t.Errorf("got %v", got.AsF64())
	}
}

func TestEvalEnumNick(t *testing.T) {
	sc := scope.New()
	sc.Define("e", scope.ValueSymbol(value.EnumVal(value.Enum{TypeID: "Color", Int: 1, Nick: "red"})))
	got := evalSrc(t, "e.nick()", sc)
	if got.AsString() != "red" {
		t.Errorf("got %q", got.AsString())
	}
}

func TestEvalStringVsEnumEquality(t *testing.T) {
	sc := scope.New()
	sc.Define("e", scope.ValueSymbol(value.EnumVal(value.Enum{TypeID: "Color", Int: 1, Nick: "red"})))
	got := evalSrc(t, `e == "red"`, sc)
	if !got.AsBool() {
		t.Errorf("expected true")
	}
	got = evalSrc(t, `"blue" != e`, sc)
	if !got.AsBool() {
		t.Errorf("expected true")
	}
}

type fakeNamespaces struct {
	loaded map[string]value.Value
	err    error
}

func (f *fakeNamespaces) Load(namespace, version string) (value.Value, error) {
	if f.err != nil {
		return value.Value{}, f.err
	}
	return f.loaded[namespace], nil
}

func TestEvalRequire(t *testing.T) {
	ns := &fakeNamespaces{loaded: map[string]value.Value{"Ide": value.Typelib("Ide", "Ide")}}
	expr, err := exprparser.Parse(`require "Ide" "1.0"`)
	if err != nil {
		t.Fatal(err)
	}
	sc := scope.New()
	got, err := Eval(expr, sc, &Env{NS: ns})
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != value.KindTypelib {
		t.Errorf("got %v", got)
	}
	if !sc.Has("Ide") {
		t.Errorf("expected Ide bound in scope after require")
	}
}

func TestEvalRequireInvalidVersion(t *testing.T) {
	expr, err := exprparser.Parse(`require "Ide" "not-a-version"`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, scope.New(), &Env{NS: &fakeNamespaces{}})
	if !errs.HasKind(err, errs.ExternalNamespaceFailure) {
		t.Fatalf("got %v, want ExternalNamespaceFailure", err)
	}
}

func TestEvalTypeMismatch(t *testing.T) {
	expr, err := exprparser.Parse(`1 + "x"`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Eval(expr, scope.New(), nil)
	if !errs.HasKind(err, errs.TypeMismatch) {
		t.Fatalf("got %v, want TypeMismatch", err)
	}
}

func TestEvalPrintWritesToEnvSink(t *testing.T) {
	expr, err := exprparser.Parse(`print("hi")`)
	if err != nil {
		t.Fatal(err)
	}
	var sink strings.Builder
	got, err := Eval(expr, scope.New(), &Env{Sink: &sink})
	if err != nil {
		t.Fatal(err)
	}
	if got.AsString() != "hi" {
		t.Errorf("got return value %v, want %q", got, "hi")
	}
	if sink.String() != "\"hi\"\n" {
		t.Errorf("got sink %q, want %q", sink.String(), "\"hi\"\n")
	}
}
