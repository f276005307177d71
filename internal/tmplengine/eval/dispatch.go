package eval

import (
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/ast"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

// dispatchKey is the (op, left-kind, right-kind) key of the fast-path
// table described in spec.md §4.5, held as a comparable struct rather
// than packed into a 32-bit integer. Only "fundamental" kinds (bool, f64, u32,
// i32, string) participate; object/enum/boxed/typelib fall through to
// the slow path.
type dispatchKey struct {
	op    ast.BinOpKind
	left  value.Kind
	right value.Kind
}

type dispatchFn func(l, r value.Value) (value.Value, error)

var fundamental = map[value.Kind]bool{
	value.KindBool:   true,
	value.KindF64:    true,
	value.KindU32:    true,
	value.KindI32:    true,
	value.KindString: true,
}

var dispatchTable map[dispatchKey]dispatchFn

// buildDispatchTable populates the fast-path table once, per spec.md
// §4.5 "Dispatch table content". Called from init so lookups never
// race on first use.
func buildDispatchTable() map[dispatchKey]dispatchFn {
	t := make(map[dispatchKey]dispatchFn)

	num := func(op ast.BinOpKind, fn func(a, b float64) float64) {
		t[dispatchKey{op, value.KindF64, value.KindF64}] = func(l, r value.Value) (value.Value, error) {
			return value.F64(fn(l.AsF64(), r.AsF64())), nil
		}
	}
	num(ast.Add, func(a, b float64) float64 { return a + b })
	num(ast.Sub, func(a, b float64) float64 { return a - b })
	num(ast.Mul, func(a, b float64) float64 { return a * b })

	t[dispatchKey{ast.Div, value.KindF64, value.KindF64}] = func(l, r value.Value) (value.Value, error) {
		if r.AsF64() == 0 {
			return value.Value{}, divByZero()
		}
		return value.F64(l.AsF64() / r.AsF64()), nil
	}

	cmpF64 := func(op ast.BinOpKind, fn func(a, b float64) bool) {
		t[dispatchKey{op, value.KindF64, value.KindF64}] = func(l, r value.Value) (value.Value, error) {
			return value.Bool(fn(l.AsF64(), r.AsF64())), nil
		}
	}
	cmpF64(ast.Lt, func(a, b float64) bool { return a < b })
	cmpF64(ast.Le, func(a, b float64) bool { return a <= b })
	cmpF64(ast.Gt, func(a, b float64) bool { return a > b })
	cmpF64(ast.Ge, func(a, b float64) bool { return a >= b })
	cmpF64(ast.Eq, func(a, b float64) bool { return a == b })
	cmpF64(ast.Ne, func(a, b float64) bool { return a != b })

	// u32 <-> f64 comparisons (spec.md §4.5 dispatch table content).
	u32f64 := func(op ast.BinOpKind, fn func(a, b float64) bool) {
		t[dispatchKey{op, value.KindU32, value.KindF64}] = func(l, r value.Value) (value.Value, error) {
			return value.Bool(fn(float64(l.AsU32()), r.AsF64())), nil
		}
		t[dispatchKey{op, value.KindF64, value.KindU32}] = func(l, r value.Value) (value.Value, error) {
			return value.Bool(fn(l.AsF64(), float64(r.AsU32()))), nil
		}
	}
	u32f64(ast.Lt, func(a, b float64) bool { return a < b })
	u32f64(ast.Le, func(a, b float64) bool { return a <= b })
	u32f64(ast.Gt, func(a, b float64) bool { return a > b })
	u32f64(ast.Ge, func(a, b float64) bool { return a >= b })
	u32f64(ast.Eq, func(a, b float64) bool { return a == b })
	u32f64(ast.Ne, func(a, b float64) bool { return a != b })

	t[dispatchKey{ast.Add, value.KindString, value.KindString}] = func(l, r value.Value) (value.Value, error) {
		return value.String(l.AsString() + r.AsString()), nil
	}
	t[dispatchKey{ast.Eq, value.KindString, value.KindString}] = func(l, r value.Value) (value.Value, error) {
		return value.Bool(l.AsString() == r.AsString()), nil
	}
	t[dispatchKey{ast.Ne, value.KindString, value.KindString}] = func(l, r value.Value) (value.Value, error) {
		return value.Bool(l.AsString() != r.AsString()), nil
	}

	// String repeated by an integral f64 count (spec.md §4.5: "string
	// multiplication by integer (repeat)").
	t[dispatchKey{ast.Mul, value.KindString, value.KindF64}] = func(l, r value.Value) (value.Value, error) {
		return repeatString(l.AsString(), r.AsF64())
	}
	t[dispatchKey{ast.Mul, value.KindF64, value.KindString}] = func(l, r value.Value) (value.Value, error) {
		return repeatString(r.AsString(), l.AsF64())
	}

	return t
}

func init() {
	dispatchTable = buildDispatchTable()
}
