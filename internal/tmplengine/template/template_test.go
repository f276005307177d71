package template

import (
	"context"
	"strings"
	"testing"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/lexer"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/locator"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/scope"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

func expandSrc(t *testing.T, src string, sc *scope.Scope) string {
	t.Helper()
	lx := lexer.New(locator.New(), "root", strings.NewReader(src))
	tmpl := New()
	if err := tmpl.Parse(context.Background(), lx); err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	var out strings.Builder
	if err := tmpl.Expand(context.Background(), sc, nil, &out); err != nil {
		t.Fatalf("Expand(%q): %v", src, err)
	}
	return out.String()
}

func TestExpandPlainText(t *testing.T) {
	if got := expandSrc(t, "hello", nil); got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestExpandExpression(t *testing.T) {
	if got := expandSrc(t, "sum={{ 1 + 2 }}", nil); got != "sum=3" {
		t.Errorf("got %q", got)
	}
}

func TestExpandIfTrue(t *testing.T) {
	sc := scope.New()
	sc.Define("x", scope.ValueSymbol(value.Bool(true)))
	if got := expandSrc(t, `{{ if x }}yes{{ else }}no{{ end }}`, sc); got != "yes" {
		t.Errorf("got %q", got)
	}
}

func TestExpandIfFalse(t *testing.T) {
	sc := scope.New()
	sc.Define("x", scope.ValueSymbol(value.Bool(false)))
	if got := expandSrc(t, `{{ if x }}yes{{ else }}no{{ end }}`, sc); got != "no" {
		t.Errorf("got %q", got)
	}
}

func TestExpandElseIfChain(t *testing.T) {
	sc := scope.New()
	sc.Define("a", scope.ValueSymbol(value.Bool(false)))
	sc.Define("b", scope.ValueSymbol(value.Bool(true)))
	got := expandSrc(t, `{{ if a }}A{{ else if b }}B{{ else }}C{{ end }}`, sc)
	if got != "B" {
		t.Errorf("got %q", got)
	}
}

// TestExpandForOverString is the spec.md §9 S3 example: iterating a
// string yields its code points.
func TestExpandForOverString(t *testing.T) {
	sc := scope.New()
	sc.Define("word", scope.ValueSymbol(value.String("ab")))
	got := expandSrc(t, `{{ for c in word }}{{ c.upper() }}{{ end }}`, sc)
	if got != "AB" {
		t.Errorf("got %q", got)
	}
}

func TestExpandForFalseHeaderSkipsLoop(t *testing.T) {
	sc := scope.New()
	sc.Define("word", scope.ValueSymbol(value.String("")))
	got := expandSrc(t, `{{ for c in word }}{{ c }}{{ end }}before-and-after`, sc)
	if got != "before-and-after" {
		t.Errorf("got %q", got)
	}
}

func TestExpandUnparsedTemplateFails(t *testing.T) {
	tmpl := New()
	var out strings.Builder
	err := tmpl.Expand(context.Background(), nil, nil, &out)
	if !errs.HasKind(err, errs.InvalidState) {
		t.Fatalf("got %v, want InvalidState", err)
	}
}

func TestParseTwiceFails(t *testing.T) {
	lx := lexer.New(locator.New(), "root", strings.NewReader("x"))
	tmpl := New()
	if err := tmpl.Parse(context.Background(), lx); err != nil {
		t.Fatal(err)
	}
	lx2 := lexer.New(locator.New(), "root", strings.NewReader("y"))
	err := tmpl.Parse(context.Background(), lx2)
	if !errs.HasKind(err, errs.InvalidState) {
		t.Fatalf("got %v, want InvalidState", err)
	}
}

func TestExpandErrorShortCircuitsSiblings(t *testing.T) {
	lx := lexer.New(locator.New(), "root", strings.NewReader(`before{{ undefined }}after`))
	tmpl := New()
	if err := tmpl.Parse(context.Background(), lx); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	err := tmpl.Expand(context.Background(), nil, nil, &out)
	if !errs.HasKind(err, errs.MissingSymbol) {
		t.Fatalf("got %v, want MissingSymbol", err)
	}
	if out.String() != "before" {
		t.Errorf("got %q, want partial output up to the error", out.String())
	}
}
