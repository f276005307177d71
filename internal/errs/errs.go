// Package errs provides the structured error vocabulary shared by the
// template-expansion engine and the build-foundry core. The two
// subsystems are otherwise independent; this package is their only
// common ancestor.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is a stable wire name for a class of failure. Kind values are
// the enum the original C implementation expressed as a GQuark/enum
// pair (see DESIGN.md); here they are plain strings so they serialize
// without a registry.
type Kind string

const (
	InvalidState            Kind = "InvalidState"
	TemplateNotFound         Kind = "TemplateNotFound"
	CircularInclude          Kind = "CircularInclude"
	SyntaxError              Kind = "SyntaxError"
	LexerFailure             Kind = "LexerFailure"
	TypeMismatch             Kind = "TypeMismatch"
	InvalidOpCode            Kind = "InvalidOpCode"
	DivideByZero             Kind = "DivideByZero"
	MissingSymbol            Kind = "MissingSymbol"
	SymbolRedefined          Kind = "SymbolRedefined"
	NotAnObject              Kind = "NotAnObject"
	NullPointer              Kind = "NullPointer"
	NoSuchProperty           Kind = "NoSuchProperty"
	ExternalNamespaceFailure Kind = "ExternalNamespaceFailure"
	RuntimeError             Kind = "RuntimeError"
	NotImplemented           Kind = "NotImplemented"
	NotAValue                Kind = "NotAValue"
	NotAFunction             Kind = "NotAFunction"

	// NotSupported is used by the build-foundry side (§4.8
	// list_targets_async: "fails with NotSupported if no provider
	// yielded any target"). Not part of the template-engine kind set.
	NotSupported Kind = "NotSupported"
)

// Error is the structured error type used across both subsystems.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a context key/value to the error and returns it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// MarshalJSON includes the wrapped cause's message, if any.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{alias: (*alias)(e)}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as the cause of a new Error of the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf wraps err as the cause of a new Error with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// HasKind reports whether err is, or wraps, an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is, or wraps, an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
