// Package template implements the Template type described in spec.md
// §4.6: a parse-once template body plus an expand operation that
// walks its node tree against a scope, writing text output. Grounded
// on tmpl-template.c.
package template

import (
	"context"
	"io"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/eval"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/iterator"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/lexer"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/node"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/scope"
)

// Template holds a parsed node tree. Parse succeeds exactly once; a
// second call fails InvalidState (spec.md §4.6 step 1).
type Template struct {
	root   *node.Node
	parsed bool
}

// New returns an unparsed Template.
func New() *Template {
	return &Template{}
}

// Parse consumes lx to build the node tree. Calling Parse twice on the
// same Template fails with InvalidState.
func (t *Template) Parse(ctx context.Context, lx *lexer.Lexer) error {
	if t.parsed {
		return errs.New(errs.InvalidState, "template already parsed")
	}
	root, err := node.Parse(ctx, lx)
	if err != nil {
		return err
	}
	t.root = root
	t.parsed = true
	return nil
}

// Expand walks the parsed tree against sc (or a fresh scope if sc is
// nil), writing expanded text to out. env resolves `require` targets
// and directs `print` output reached during expression evaluation
// (may be nil).
func (t *Template) Expand(ctx context.Context, sc *scope.Scope, env *eval.Env, out io.Writer) error {
	if !t.parsed {
		return errs.New(errs.InvalidState, "template not parsed")
	}
	if sc == nil {
		sc = scope.New()
	}
	child := scope.NewChild(sc)
	return expandChildren(ctx, t.root.Children, child, env, out)
}

func expandChildren(ctx context.Context, children []*node.Node, sc *scope.Scope, env *eval.Env, out io.Writer) error {
	for _, n := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := expandNode(ctx, n, sc, env, out); err != nil {
			return err
		}
	}
	return nil
}

func expandNode(ctx context.Context, n *node.Node, sc *scope.Scope, env *eval.Env, out io.Writer) error {
	switch n.Kind {
	case node.KindText:
		_, err := io.WriteString(out, n.Text)
		return err

	case node.KindExpr:
		v, err := eval.Eval(n.Expr, sc, env)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, v.String())
		return err

	case node.KindBranch:
		return expandBranch(ctx, n, sc, env, out)

	case node.KindCondition:
		return expandCondition(ctx, n, sc, env, out)

	case node.KindIter:
		return expandIter(ctx, n, sc, env, out)

	default:
		return errs.Newf(errs.InvalidOpCode, "unknown node kind %d", n.Kind)
	}
}

func expandCondition(ctx context.Context, cond *node.Node, sc *scope.Scope, env *eval.Env, out io.Writer) error {
	v, err := eval.Eval(cond.Expr, sc, env)
	if err != nil {
		return err
	}
	if !v.Truthy() {
		return nil
	}
	return expandChildren(ctx, cond.Children, sc, env, out)
}

func expandBranch(ctx context.Context, n *node.Node, sc *scope.Scope, env *eval.Env, out io.Writer) error {
	v, err := eval.Eval(n.IfBranch.Expr, sc, env)
	if err != nil {
		return err
	}
	if v.Truthy() {
		return expandChildren(ctx, n.IfBranch.Children, sc, env, out)
	}
	for _, alt := range n.ElseChain {
		v, err := eval.Eval(alt.Expr, sc, env)
		if err != nil {
			return err
		}
		if v.Truthy() {
			return expandChildren(ctx, alt.Children, sc, env, out)
		}
	}
	return nil
}

func expandIter(ctx context.Context, n *node.Node, sc *scope.Scope, env *eval.Env, out io.Writer) error {
	headerVal, err := eval.Eval(n.Expr, sc, env)
	if err != nil {
		return err
	}
	if !headerVal.Truthy() {
		return nil
	}

	child := scope.NewChild(sc)
	it := iterator.New(headerVal)
	defer it.Destroy()

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		child.Define(n.Ident, scope.ValueSymbol(it.Current()))
		if err := expandChildren(ctx, n.Children, child, env, out); err != nil {
			return err
		}
	}
	return nil
}
