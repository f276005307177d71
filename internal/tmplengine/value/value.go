// Package value implements the tagged dynamic value type shared by the
// expression evaluator and the template expander. Grounded on
// tmpl-expr-eval.c's use of GValue (a tagged union keyed by GType) and
// tmpl-expr.c's truthiness/string-form helpers.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindF64
	KindU32
	KindI32
	KindString
	KindObject
	KindEnum
	KindBoxed
	KindTypelib
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindF64:
		return "f64"
	case KindU32:
		return "u32"
	case KindI32:
		return "i32"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindEnum:
		return "enum"
	case KindBoxed:
		return "boxed"
	case KindTypelib:
		return "typelib"
	default:
		return "unknown"
	}
}

// Object is the capability surface a handle must expose so the
// evaluator can perform attribute get/set and method dispatch on it
// (§9: "object-property/object-method capability"). Concrete handles
// (plugin objects, sequences) implement this; the template engine
// never assumes more.
type Object interface {
	// TypeName is used by Repr ("<TypeName at addr>") and by error
	// messages.
	TypeName() string

	// GetProperty looks up a named property. ok is false if no such
	// property exists.
	GetProperty(name string) (v Value, ok bool)

	// SetProperty assigns a named property. ok is false if the
	// property does not exist or is not settable.
	SetProperty(name string, v Value) (ok bool)

	// InvokeMethod calls a named method with already-evaluated
	// arguments. ok is false if no such method exists.
	InvokeMethod(name string, args []Value) (result Value, ok bool, err error)
}

// Sequence is an ordered-sequence handle the iterator adapter (§4.7)
// can walk without knowing the concrete element type.
type Sequence interface {
	Object
	Count() int
	Get(index int) Value
}

// Enum is a handle to a single enum member: a type id and its integer
// value, plus the nick name used by the `nick` method and by
// string-vs-enum equality (§4.5 slow-path dispatch).
type Enum struct {
	TypeID string
	Int    int64
	Nick   string
}

// Value is the tagged union described in spec.md §3.
type Value struct {
	kind Kind

	b   bool
	f   float64
	u32 uint32
	i32 int32
	s   string
	obj Object
	en  Enum
	box any
	tl  string // typelib handle: "<Namespace>" display name
	tlName string
}

// Null returns the empty/null value.
func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func F64(f float64) Value   { return Value{kind: KindF64, f: f} }
func U32(u uint32) Value    { return Value{kind: KindU32, u32: u} }
func I32(i int32) Value     { return Value{kind: KindI32, i32: i} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func ObjectVal(o Object) Value {
	if o == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: o}
}
func EnumVal(e Enum) Value { return Value{kind: KindEnum, en: e} }
func Boxed(v any) Value    { return Value{kind: KindBoxed, box: v} }

// Typelib builds a handle for a `require`d external namespace.
func Typelib(namespace, display string) Value {
	return Value{kind: KindTypelib, tl: display, tlName: namespace}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() bool       { return v.b }
func (v Value) AsF64() float64     { return v.f }
func (v Value) AsU32() uint32      { return v.u32 }
func (v Value) AsI32() int32       { return v.i32 }
func (v Value) AsString() string   { return v.s }
func (v Value) AsObject() Object   { return v.obj }
func (v Value) AsEnum() Enum       { return v.en }
func (v Value) AsBoxed() any       { return v.box }
func (v Value) TypelibNamespace() string { return v.tlName }

// Truthy implements the coercion described in spec.md §3: bool value,
// non-empty string, non-zero number, non-null handle.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindF64:
		return v.f != 0
	case KindU32:
		return v.u32 != 0
	case KindI32:
		return v.i32 != 0
	case KindString:
		return v.s != ""
	case KindObject:
		return v.obj != nil
	case KindEnum:
		return true
	case KindBoxed:
		return v.box != nil
	case KindTypelib:
		return true
	default:
		return false
	}
}

// String produces the value's display form via the registered
// transformer table (here, a direct switch since the set of kinds is
// closed and small).
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindF64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindU32:
		return strconv.FormatUint(uint64(v.u32), 10)
	case KindI32:
		return strconv.FormatInt(int64(v.i32), 10)
	case KindString:
		return v.s
	case KindObject:
		if v.obj == nil {
			return ""
		}
		return fmt.Sprintf("<%s>", v.obj.TypeName())
	case KindEnum:
		return v.en.Nick
	case KindBoxed:
		return fmt.Sprintf("%v", v.box)
	case KindTypelib:
		return v.tl
	default:
		return ""
	}
}

// Repr produces the debug form described in spec.md §3: booleans as
// true/false, strings quoted+escaped, handles as "<TypeName at
// addr>", typelib as `<Namespace "name">`.
func (v Value) Repr() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return v.String()
	case KindString:
		return quoteString(v.s)
	case KindObject:
		if v.obj == nil {
			return "<null>"
		}
		return fmt.Sprintf("<%s at %p>", v.obj.TypeName(), v.obj)
	case KindEnum:
		return fmt.Sprintf("<%s %s>", v.en.TypeID, v.en.Nick)
	case KindTypelib:
		return fmt.Sprintf("<%s %q>", v.tlName, v.tl)
	default:
		return v.String()
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Equal reports structural equality for the fundamental kinds used by
// the evaluator's string/enum equality slow path and by tests; it is
// not a general-purpose deep-equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindF64:
		return a.f == b.f
	case KindU32:
		return a.u32 == b.u32
	case KindI32:
		return a.i32 == b.i32
	case KindString:
		return a.s == b.s
	case KindEnum:
		return a.en.TypeID == b.en.TypeID && a.en.Int == b.en.Int
	default:
		return false
	}
}
