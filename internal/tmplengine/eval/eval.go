// Package eval implements the tree-walking expression evaluator
// described in spec.md §4.5. Grounded on tmpl-expr-eval.c's switch
// over TmplExprKind and its build_hash fast-path dispatch table; the
// C union-of-everything GValue is replaced by value.Value and the
// hash table by a Go map keyed on a small dispatchKey struct.
package eval

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/mod/semver"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/ast"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/scope"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

// Namespaces loads an external namespace/version pair for a Require
// expression (spec.md §4.5's "external namespace load capability").
// The build-foundry side or a test double supplies the concrete
// implementation; the engine only needs the capability shape.
type Namespaces interface {
	Load(namespace, version string) (value.Value, error)
}

// Env bundles the capabilities an evaluation needs beyond the scope
// chain: the namespace loader for Require, and the sink `print`
// writes to (spec.md §6: "print ... also writes repr(value)\n to a
// user-provided sink"). A nil *Env, or a zero-value field within one,
// falls back to "Require always fails" / os.Stdout respectively.
type Env struct {
	NS   Namespaces
	Sink io.Writer
}

func (e *Env) namespaces() Namespaces {
	if e == nil {
		return nil
	}
	return e.NS
}

func (e *Env) sink() io.Writer {
	if e == nil || e.Sink == nil {
		return os.Stdout
	}
	return e.Sink
}

// Eval evaluates expr against scope, using env to resolve Require
// namespaces and to direct print's output (env may be nil).
func Eval(expr ast.Expr, sc *scope.Scope, env *Env) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.Literal:
		return n.Value, nil

	case *ast.SymbolRef:
		return evalSymbolRef(n, sc)

	case *ast.SymbolAssign:
		v, err := Eval(n.Value, sc, env)
		if err != nil {
			return value.Value{}, err
		}
		sc.Assign(n.Name, scope.ValueSymbol(v))
		return v, nil

	case *ast.Invert:
		v, err := Eval(n.Operand, sc, env)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(!v.Truthy()), nil

	case *ast.BinOp:
		return evalBinOp(n, sc, env)

	case *ast.Logical:
		return evalLogical(n, sc, env)

	case *ast.If:
		return evalIf(n, sc, env)

	case *ast.While:
		return evalWhile(n, sc, env)

	case *ast.StmtList:
		// Evaluate Left once; the well-known "double eval" report in
		// the original is not reproduced here (SPEC_FULL.md's Open
		// Question decision).
		if _, err := Eval(n.Left, sc, env); err != nil {
			return value.Value{}, err
		}
		return Eval(n.Right, sc, env)

	case *ast.BuiltinCall:
		return evalBuiltin(n, sc, env)

	case *ast.Getattr:
		v, _, err := evalGetattr(n, sc, env)
		return v, err

	case *ast.Setattr:
		return evalSetattr(n, sc, env)

	case *ast.MethodCall:
		return evalMethodCall(n, sc, env)

	case *ast.UserCall:
		return evalUserCall(n, sc, env)

	case *ast.Require:
		return evalRequire(n, sc, env)

	default:
		return value.Value{}, errs.Newf(errs.InvalidOpCode, "unhandled expression node %T", expr)
	}
}

func evalSymbolRef(n *ast.SymbolRef, sc *scope.Scope) (value.Value, error) {
	sym, ok := sc.Lookup(n.Name, false)
	if !ok {
		return value.Value{}, errs.Newf(errs.MissingSymbol, "undefined symbol %q", n.Name).WithDetail("name", n.Name)
	}
	if sym.IsFunc {
		return value.Value{}, errs.Newf(errs.NotAValue, "symbol %q is a function, not a value", n.Name)
	}
	return sym.Value, nil
}

func evalBinOp(n *ast.BinOp, sc *scope.Scope, env *Env) (value.Value, error) {
	l, err := Eval(n.Left, sc, env)
	if err != nil {
		return value.Value{}, err
	}
	r, err := Eval(n.Right, sc, env)
	if err != nil {
		return value.Value{}, err
	}

	if fundamental[l.Kind()] && fundamental[r.Kind()] {
		if fn, ok := dispatchTable[dispatchKey{n.Op, l.Kind(), r.Kind()}]; ok {
			return fn(l, r)
		}
	}

	if v, ok, err := slowPath(n.Op, l, r); ok {
		return v, err
	}

	return value.Value{}, errs.Newf(errs.TypeMismatch, "no %s dispatch for %s/%s", n.Op, l.Kind(), r.Kind()).
		WithDetail("op", n.Op.String())
}

// slowPath handles the cross-type combinations the fast table omits:
// string vs enum equality/inequality, matched by the enum's nick name
// (spec.md §4.5).
func slowPath(op ast.BinOpKind, l, r value.Value) (value.Value, bool, error) {
	if op != ast.Eq && op != ast.Ne {
		return value.Value{}, false, nil
	}

	var s string
	var e value.Enum
	switch {
	case l.Kind() == value.KindString && r.Kind() == value.KindEnum:
		s, e = l.AsString(), r.AsEnum()
	case l.Kind() == value.KindEnum && r.Kind() == value.KindString:
		s, e = r.AsString(), l.AsEnum()
	default:
		return value.Value{}, false, nil
	}

	eq := s == e.Nick
	if op == ast.Ne {
		eq = !eq
	}
	return value.Bool(eq), true, nil
}

func divByZero() error {
	return errs.New(errs.DivideByZero, "division by zero")
}

func repeatString(s string, countF float64) (value.Value, error) {
	if countF != math.Trunc(countF) || countF < 0 {
		return value.Value{}, errs.Newf(errs.TypeMismatch, "string repeat count must be a non-negative integer, got %v", countF)
	}
	return value.String(strings.Repeat(s, int(countF))), nil
}

func evalLogical(n *ast.Logical, sc *scope.Scope, env *Env) (value.Value, error) {
	l, err := Eval(n.Left, sc, env)
	if err != nil {
		return value.Value{}, err
	}
	switch n.Op {
	case ast.And:
		if !l.Truthy() {
			return value.Bool(false), nil
		}
	case ast.Or:
		if l.Truthy() {
			return value.Bool(true), nil
		}
	}
	r, err := Eval(n.Right, sc, env)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(r.Truthy()), nil
}

func evalIf(n *ast.If, sc *scope.Scope, env *Env) (value.Value, error) {
	cond, err := Eval(n.Cond, sc, env)
	if err != nil {
		return value.Value{}, err
	}
	if cond.Truthy() {
		return Eval(n.Then, sc, env)
	}
	if n.Else == nil {
		// SPEC_FULL.md Open Question decision: a missing secondary
		// subtree yields an empty value rather than an error.
		return value.Null(), nil
	}
	return Eval(n.Else, sc, env)
}

func evalWhile(n *ast.While, sc *scope.Scope, env *Env) (value.Value, error) {
	result := value.Null()
	for {
		cond, err := Eval(n.Cond, sc, env)
		if err != nil {
			return value.Value{}, err
		}
		if !cond.Truthy() {
			return result, nil
		}
		result, err = Eval(n.Body, sc, env)
		if err != nil {
			return value.Value{}, err
		}
	}
}

func evalBuiltin(n *ast.BuiltinCall, sc *scope.Scope, env *Env) (value.Value, error) {
	arg, err := Eval(n.Arg, sc, env)
	if err != nil {
		return value.Value{}, err
	}

	if n.Fn == ast.Print {
		fmt.Fprintln(env.sink(), arg.Repr())
		return arg, nil
	}
	if n.Fn == ast.Repr {
		return value.String(arg.Repr()), nil
	}

	if arg.Kind() != value.KindF64 {
		return value.Value{}, errs.Newf(errs.TypeMismatch, "builtin %s requires a numeric argument, got %s", n.Fn, arg.Kind())
	}
	f := arg.AsF64()

	switch n.Fn {
	case ast.Abs:
		return value.F64(math.Abs(f)), nil
	case ast.Ceil:
		return value.F64(math.Ceil(f)), nil
	case ast.Floor:
		return value.F64(math.Floor(f)), nil
	case ast.Hex:
		return value.String(fmt.Sprintf("0x%x", int64(f))), nil
	case ast.Log:
		return value.F64(math.Log(f)), nil
	case ast.Sqrt:
		return value.F64(math.Sqrt(f)), nil
	default:
		return value.Value{}, errs.Newf(errs.InvalidOpCode, "unknown builtin %s", n.Fn)
	}
}

func evalGetattr(n *ast.Getattr, sc *scope.Scope, env *Env) (value.Value, value.Object, error) {
	objVal, err := Eval(n.Object, sc, env)
	if err != nil {
		return value.Value{}, nil, err
	}
	if objVal.Kind() != value.KindObject {
		return value.Value{}, nil, errs.Newf(errs.NotAnObject, "%q is not an object", n.Name)
	}
	obj := objVal.AsObject()
	if obj == nil {
		return value.Value{}, nil, errs.New(errs.NullPointer, "attribute access on null object")
	}
	v, ok := obj.GetProperty(n.Name)
	if !ok {
		return value.Value{}, nil, noSuchProperty(obj.TypeName(), n.Name, propertyNames(obj))
	}
	return v, obj, nil
}

func evalSetattr(n *ast.Setattr, sc *scope.Scope, env *Env) (value.Value, error) {
	objVal, err := Eval(n.Object, sc, env)
	if err != nil {
		return value.Value{}, err
	}
	if objVal.Kind() != value.KindObject {
		return value.Value{}, errs.Newf(errs.NotAnObject, "%q is not an object", n.Name)
	}
	obj := objVal.AsObject()
	if obj == nil {
		return value.Value{}, errs.New(errs.NullPointer, "attribute assignment on null object")
	}
	v, err := Eval(n.Value, sc, env)
	if err != nil {
		return value.Value{}, err
	}
	if !obj.SetProperty(n.Name, v) {
		return value.Value{}, noSuchProperty(obj.TypeName(), n.Name, propertyNames(obj))
	}
	return v, nil
}

// noSuchProperty attaches a "did you mean" suggestion computed with
// Levenshtein distance against known, when some name in known is
// within distance 3 of name.
func noSuchProperty(typeName, name string, known []string) error {
	e := errs.Newf(errs.NoSuchProperty, "type %s has no property or method %q", typeName, name).
		WithDetail("type", typeName).WithDetail("name", name)
	if suggestion, ok := nearestName(name, known); ok {
		e = e.WithDetail("suggestion", suggestion)
	}
	return e
}

func nearestName(name string, candidates []string) (string, bool) {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein.Distance(name, c, nil)
		if bestDist == -1 || d < bestDist {
			bestDist, best = d, c
		}
	}
	if bestDist == -1 || bestDist > 3 {
		return "", false
	}
	return best, true
}

// propertyNames is best-effort: most value.Object implementations
// don't expose an enumerable property list, so this returns nil (no
// suggestion) unless the handle opts in by implementing
// PropertyNames() []string.
func propertyNames(obj value.Object) []string {
	if n, ok := obj.(interface{ PropertyNames() []string }); ok {
		return n.PropertyNames()
	}
	return nil
}

func evalMethodCall(n *ast.MethodCall, sc *scope.Scope, env *Env) (value.Value, error) {
	recv, err := Eval(n.Object, sc, env)
	if err != nil {
		return value.Value{}, err
	}

	switch recv.Kind() {
	case value.KindString:
		return evalStringMethod(recv.AsString(), n, sc, env)
	case value.KindEnum:
		return evalEnumMethod(recv.AsEnum(), n)
	case value.KindObject:
		return evalObjectMethod(recv.AsObject(), n, sc, env)
	default:
		return value.Value{}, errs.Newf(errs.TypeMismatch, "method %q is not defined on %s", n.Name, recv.Kind())
	}
}

func evalObjectMethod(obj value.Object, n *ast.MethodCall, sc *scope.Scope, env *Env) (value.Value, error) {
	if obj == nil {
		return value.Value{}, errs.New(errs.NullPointer, "method call on null object")
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, sc, env)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	result, ok, err := obj.InvokeMethod(n.Name, args)
	if !ok {
		return value.Value{}, noSuchProperty(obj.TypeName(), n.Name, propertyNames(obj))
	}
	if err != nil {
		return value.Value{}, errs.Wrapf(errs.RuntimeError, err, "method %s.%s failed", obj.TypeName(), n.Name)
	}
	return result, nil
}

var stringMethodNames = []string{"upper", "lower", "casefold", "reverse", "len", "space", "title"}

func evalStringMethod(s string, n *ast.MethodCall, sc *scope.Scope, env *Env) (value.Value, error) {
	if len(n.Args) != 0 {
		return value.Value{}, errs.Newf(errs.SyntaxError, "string method %q takes no arguments", n.Name)
	}
	switch n.Name {
	case "upper":
		return value.String(upperCaser.String(s)), nil
	case "lower":
		return value.String(lowerCaser.String(s)), nil
	case "casefold":
		return value.String(foldCaser.String(s)), nil
	case "reverse":
		return value.String(reverseString(s)), nil
	case "len":
		return value.F64(float64(codePointCount(s))), nil
	case "space":
		return value.String(" " + s + " "), nil
	case "title":
		return value.String(titleCase(s)), nil
	default:
		return value.Value{}, noSuchProperty("String", n.Name, stringMethodNames)
	}
}

func evalEnumMethod(e value.Enum, n *ast.MethodCall) (value.Value, error) {
	if n.Name != "nick" {
		return value.Value{}, noSuchProperty("Enum", n.Name, []string{"nick"})
	}
	if len(n.Args) != 0 {
		return value.Value{}, errs.Newf(errs.SyntaxError, "enum method %q takes no arguments", n.Name)
	}
	return value.String(e.Nick), nil
}

func evalUserCall(n *ast.UserCall, sc *scope.Scope, env *Env) (value.Value, error) {
	sym, ok := sc.Lookup(n.Name, false)
	if !ok {
		return value.Value{}, errs.Newf(errs.MissingSymbol, "undefined function %q", n.Name)
	}
	if !sym.IsFunc {
		return value.Value{}, errs.Newf(errs.NotAFunction, "%q is not a function", n.Name)
	}
	if len(n.Args) != len(sym.Params) {
		return value.Value{}, errs.Newf(errs.SyntaxError, "function %q expects %d argument(s), got %d",
			n.Name, len(sym.Params), len(n.Args))
	}

	child := scope.NewChild(sc)
	for i, param := range sym.Params {
		argVal, err := Eval(n.Args[i], sc, env)
		if err != nil {
			return value.Value{}, err
		}
		child.Define(param, scope.ValueSymbol(argVal))
	}
	return Eval(sym.Body, child, env)
}

func evalRequire(n *ast.Require, sc *scope.Scope, env *Env) (value.Value, error) {
	if !semver.IsValid(normalizeVersion(n.Version)) {
		return value.Value{}, errs.Newf(errs.ExternalNamespaceFailure, "invalid version %q for namespace %q", n.Version, n.Namespace).
			WithDetail("namespace", n.Namespace).WithDetail("version", n.Version)
	}
	ns := env.namespaces()
	if ns == nil {
		return value.Value{}, errs.Newf(errs.ExternalNamespaceFailure, "no namespace loader configured for %q", n.Namespace)
	}
	v, err := ns.Load(n.Namespace, n.Version)
	if err != nil {
		return value.Value{}, errs.Wrapf(errs.ExternalNamespaceFailure, err, "loading namespace %q %q", n.Namespace, n.Version)
	}
	sc.Assign(n.Namespace, scope.ValueSymbol(v))
	return v, nil
}

// normalizeVersion accepts "1.0"-style two-component versions (as
// used by the original's GIRepository require statements) by padding
// them to the "vMAJOR.MINOR.PATCH" form golang.org/x/mod/semver wants.
func normalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return "v" + strings.Join(parts[:3], ".")
}

func codePointCount(s string) int {
	return len([]rune(s))
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// titleCase lowercases the string, then uppercases the first rune of
// each alphanumeric run separated by non-alphanumeric runes (spec.md
// §6's precise "title" definition; golang.org/x/text/cases.Title
// applies broader Unicode word-boundary rules, so this helper keeps
// the exact run-based semantics spec.md names).
func titleCase(s string) string {
	lowered := []rune(lowerCaser.String(s))
	atBoundary := true
	for i, r := range lowered {
		if isAlnumRune(r) {
			if atBoundary {
				lowered[i] = []rune(upperCaser.String(string(r)))[0]
			}
			atBoundary = false
		} else {
			atBoundary = true
		}
	}
	return string(lowered)
}

func isAlnumRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
