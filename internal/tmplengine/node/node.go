// Package node implements the template-body parse tree and its
// recursive-descent parser described in spec.md §4.4. Grounded on
// tmpl-node.c / tmpl-parser.c; the cyclic GObject node hierarchy is
// replaced by a flat, enum-tagged Node sum type (spec.md §9).
package node

import (
	"context"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/ast"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/exprparser"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/lexer"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/token"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

// Kind tags a Node variant.
type Kind int

const (
	KindText Kind = iota
	KindExpr
	KindBranch
	KindCondition
	KindIter
)

// Node is one of Text/Expr/Branch/Condition/Iter (spec.md §4.4). The
// root of a parsed template is a synthetic Condition whose predicate
// is always truthy (literal true) and whose Children hold the
// top-level body; this gives expansion a single recursion entry point
// instead of a separate "root" case.
type Node struct {
	Kind Kind

	Text string   // KindText
	Expr ast.Expr // KindExpr, KindCondition predicate

	IfBranch   *Node   // KindBranch: the mandatory `if` Condition
	ElseChain  []*Node // KindBranch: ordered `else if`/`else` Conditions
	Children   []*Node // KindCondition, KindIter: nested body

	Ident string // KindIter: loop variable name
}

func textNode(text string) *Node   { return &Node{Kind: KindText, Text: text} }
func exprNode(e ast.Expr) *Node    { return &Node{Kind: KindExpr, Expr: e} }
func conditionNode(e ast.Expr) *Node { return &Node{Kind: KindCondition, Expr: e} }

// trueLiteral backs synthetic `else` and root Conditions (spec.md §4.4
// invariant: "every Condition under a Branch has a non-empty ast").
func trueLiteral() ast.Expr {
	return &ast.Literal{Value: value.Bool(true)}
}

// Parse consumes lx until Eof and returns the synthetic root Condition
// node holding the parsed top-level body.
func Parse(ctx context.Context, lx *lexer.Lexer) (*Node, error) {
	root := conditionNode(trueLiteral())
	children, err := parseBody(ctx, lx, true)
	if err != nil {
		return nil, err
	}
	root.Children = children
	return root, nil
}

// parseBody is the shared engine behind the root and Condition/Iter
// acceptors (spec.md §4.4): atRoot controls whether ElseIf/Else/End
// are a syntax error (root) or cause the loop to unget-and-return
// (nested block).
func parseBody(ctx context.Context, lx *lexer.Lexer, atRoot bool) ([]*Node, error) {
	var children []*Node
	for {
		tok, err := lx.Next(ctx)
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case token.Eof:
			if atRoot {
				return children, nil
			}
			return nil, errs.New(errs.SyntaxError, "unexpected end of template inside block")

		case token.Text:
			children = append(children, textNode(tok.Text))

		case token.Expression:
			e, err := exprparser.Parse(tok.Text)
			if err != nil {
				return nil, err
			}
			children = append(children, exprNode(e))

		case token.If:
			branch, err := parseBranch(ctx, lx, tok.Text)
			if err != nil {
				return nil, err
			}
			children = append(children, branch)

		case token.For:
			iter, err := parseIter(ctx, lx, tok.Text)
			if err != nil {
				return nil, err
			}
			children = append(children, iter)

		case token.ElseIf, token.Else, token.End:
			if atRoot {
				return nil, errs.Newf(errs.SyntaxError, "unexpected %s at top level", tok.Kind)
			}
			lx.Unget(tok)
			return children, nil

		case token.Include:
			return nil, errs.New(errs.SyntaxError, "include token reached the parser (lexer should have resolved it)")

		default:
			return nil, errs.Newf(errs.SyntaxError, "unexpected token %s", tok.Kind)
		}
	}
}

// parseBranch implements the Branch acceptor (spec.md §4.4): the
// mandatory `if` Condition, then a loop over End/ElseIf/Else.
func parseBranch(ctx context.Context, lx *lexer.Lexer, ifHeader string) (*Node, error) {
	ifExpr, err := exprparser.Parse(ifHeader)
	if err != nil {
		return nil, err
	}
	ifCond := conditionNode(ifExpr)
	children, err := parseBody(ctx, lx, false)
	if err != nil {
		return nil, err
	}
	ifCond.Children = children

	branch := &Node{Kind: KindBranch, IfBranch: ifCond}

	for {
		tok, err := lx.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.End:
			return branch, nil

		case token.ElseIf:
			e, err := exprparser.Parse(tok.Text)
			if err != nil {
				return nil, err
			}
			cond := conditionNode(e)
			body, err := parseBody(ctx, lx, false)
			if err != nil {
				return nil, err
			}
			cond.Children = body
			branch.ElseChain = append(branch.ElseChain, cond)

		case token.Else:
			cond := conditionNode(trueLiteral())
			body, err := parseBody(ctx, lx, false)
			if err != nil {
				return nil, err
			}
			cond.Children = body
			branch.ElseChain = append(branch.ElseChain, cond)

		case token.Eof:
			return nil, errs.New(errs.SyntaxError, "unterminated if: missing end")

		default:
			return nil, errs.Newf(errs.SyntaxError, "unexpected token %s inside if", tok.Kind)
		}
	}
}

// parseIter implements the Iter acceptor (spec.md §4.4): header has
// the fixed shape "IDENT in EXPR".
func parseIter(ctx context.Context, lx *lexer.Lexer, header string) (*Node, error) {
	ident, exprSrc, ok := splitIterHeader(header)
	if !ok {
		return nil, errs.Newf(errs.SyntaxError, "malformed for header %q, want IDENT in EXPR", header)
	}
	e, err := exprparser.Parse(exprSrc)
	if err != nil {
		return nil, err
	}
	body, err := parseBody(ctx, lx, false)
	if err != nil {
		return nil, err
	}

	tok, err := lx.Next(ctx)
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.End {
		return nil, errs.New(errs.SyntaxError, "unterminated for: missing end")
	}

	return &Node{Kind: KindIter, Ident: ident, Expr: e, Children: body}, nil
}

func splitIterHeader(header string) (ident, exprSrc string, ok bool) {
	i := 0
	for i < len(header) && header[i] == ' ' {
		i++
	}
	start := i
	for i < len(header) && header[i] != ' ' {
		i++
	}
	if start == i {
		return "", "", false
	}
	ident = header[start:i]

	for i < len(header) && header[i] == ' ' {
		i++
	}
	if i+2 > len(header) || header[i:i+2] != "in" {
		return "", "", false
	}
	i += 2
	if i < len(header) && header[i] != ' ' {
		return "", "", false
	}
	for i < len(header) && header[i] == ' ' {
		i++
	}
	if i >= len(header) {
		return "", "", false
	}
	return ident, header[i:], true
}
