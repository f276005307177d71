// Package ast defines the expression AST described in spec.md §3/§4.5:
// a sum type over operator/literal categories, with arities fixed per
// tag. Nodes are immutable after parsing and cheaply shared by
// reference. Grounded on tmpl-expr-types.h / tmpl-expr-node.c, with
// the cyclic-GObject hierarchy replaced per §9 by a flat, enum-tagged
// set of structs dispatched with a Go type switch.
package ast

import "github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"

// Expr is implemented by every expression node. The method exists
// only to seal the interface to this package's node types.
type Expr interface {
	exprNode()
}

// Literal is a bool, f64, or string constant.
type Literal struct {
	Value value.Value
}

// SymbolRef reads a named symbol from the current scope.
type SymbolRef struct {
	Name string
}

// SymbolAssign evaluates Value and installs it under Name in scope.
type SymbolAssign struct {
	Name  string
	Value Expr
}

// Invert negates the boolean coercion of Operand (`!` / `not`).
type Invert struct {
	Operand Expr
}

// BinOpKind is an arithmetic, comparison, or equality operator.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	Div
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// BinOp is a binary arithmetic/compare/equality operator node.
type BinOp struct {
	Op    BinOpKind
	Left  Expr
	Right Expr
}

// LogicalKind distinguishes `and`/`&&` from `or`/`||`; tracked
// separately from BinOp so the evaluator can guarantee short-circuit.
type LogicalKind int

const (
	And LogicalKind = iota
	Or
)

// Logical is a short-circuiting `and`/`or` node.
type Logical struct {
	Op    LogicalKind
	Left  Expr
	Right Expr
}

// If evaluates Cond and yields Then's value if truthy, else Else's
// (Else may be nil; see SPEC_FULL.md's Open Question decision: a nil
// Else yields an empty Value rather than an error).
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

// While repeatedly evaluates Body while Cond is truthy; its value is
// the last Body evaluation (or an empty Value if Body never ran).
type While struct {
	Cond Expr
	Body Expr
}

// StmtList evaluates Left then Right, yielding Right's value (see
// SPEC_FULL.md's Open Question decision on the "double eval" report).
type StmtList struct {
	Left  Expr
	Right Expr
}

// BuiltinFn names one of the fixed builtin functions (spec.md §6).
type BuiltinFn int

const (
	Abs BuiltinFn = iota
	Ceil
	Floor
	Hex
	Log
	Print
	Repr
	Sqrt
)

func (f BuiltinFn) String() string {
	switch f {
	case Abs:
		return "abs"
	case Ceil:
		return "ceil"
	case Floor:
		return "floor"
	case Hex:
		return "hex"
	case Log:
		return "log"
	case Print:
		return "print"
	case Repr:
		return "repr"
	case Sqrt:
		return "sqrt"
	default:
		return "?"
	}
}

// BuiltinCall invokes a fixed builtin function on a single argument.
type BuiltinCall struct {
	Fn  BuiltinFn
	Arg Expr
}

// Getattr reads Object.Name (an object property).
type Getattr struct {
	Object Expr
	Name   string
}

// Setattr assigns Object.Name = Value.
type Setattr struct {
	Object Expr
	Name   string
	Value  Expr
}

// MethodCall invokes Object.Name(Args...) — a string method, enum
// method, or object method depending on Object's runtime kind.
type MethodCall struct {
	Object Expr
	Name   string
	Args   []Expr
}

// UserCall invokes a user-defined function symbol by name.
type UserCall struct {
	Name string
	Args []Expr
}

// Require loads an external namespace/version (`require "NS" "VER"`).
type Require struct {
	Namespace string
	Version   string
}

func (*Literal) exprNode()      {}
func (*SymbolRef) exprNode()    {}
func (*SymbolAssign) exprNode() {}
func (*Invert) exprNode()       {}
func (*BinOp) exprNode()        {}
func (*Logical) exprNode()      {}
func (*If) exprNode()           {}
func (*While) exprNode()        {}
func (*StmtList) exprNode()     {}
func (*BuiltinCall) exprNode()  {}
func (*Getattr) exprNode()      {}
func (*Setattr) exprNode()      {}
func (*MethodCall) exprNode()   {}
func (*UserCall) exprNode()     {}
func (*Require) exprNode()      {}
