package exprparser

import (
	"strconv"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/ast"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

var builtinNames = map[string]ast.BuiltinFn{
	"abs":   ast.Abs,
	"ceil":  ast.Ceil,
	"floor": ast.Floor,
	"hex":   ast.Hex,
	"log":   ast.Log,
	"print": ast.Print,
	"repr":  ast.Repr,
	"sqrt":  ast.Sqrt,
}

type parser struct {
	l   *lex
	cur tok
}

// Parse compiles an expression-tag payload into an ast.Expr. Failures
// are *errs.Error of kind SyntaxError carrying a line number
// (spec.md §7).
func Parse(src string) (ast.Expr, error) {
	p := &parser{l: newLex(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tkEOF {
		return nil, errs.Newf(errs.SyntaxError, "unexpected trailing input near %q", p.cur.text).
			WithDetail("line", p.cur.line)
	}
	return expr, nil
}

func (p *parser) advance() error {
	t, err := p.l.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) expect(k tokKind, what string) error {
	if p.cur.kind != k {
		return errs.Newf(errs.SyntaxError, "expected %s", what).WithDetail("line", p.cur.line)
	}
	return p.advance()
}

// parseSeq handles the lowest-precedence `;` statement sequencing,
// producing a left-leaning chain of ast.StmtList nodes (the last
// statement is the outermost node's Right).
func (p *parser) parseSeq() (ast.Expr, error) {
	left, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkSemi {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tkEOF {
			break
		}
		right, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		left = &ast.StmtList{Left: left, Right: right}
	}
	return left, nil
}

// parseAssign handles `a = expr` and `a.b = expr`, right-associative.
func (p *parser) parseAssign() (ast.Expr, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tkAssign {
		return lhs, nil
	}
	line := p.cur.line
	if err := p.advance(); err != nil {
		return nil, err
	}
	rhs, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	switch n := lhs.(type) {
	case *ast.SymbolRef:
		return &ast.SymbolAssign{Name: n.Name, Value: rhs}, nil
	case *ast.Getattr:
		return &ast.Setattr{Object: n.Object, Name: n.Name, Value: rhs}, nil
	default:
		return nil, errs.Newf(errs.SyntaxError, "invalid assignment target").WithDetail("line", line)
	}
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkOrOr || p.cur.kind == tkOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Logical{Op: ast.Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkAndAnd || p.cur.kind == tkAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Logical{Op: ast.And, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkEqEq || p.cur.kind == tkNotEq {
		op := ast.Eq
		if p.cur.kind == tkNotEq {
			op = ast.Ne
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOpKind
		switch p.cur.kind {
		case tkLt:
			op = ast.Lt
		case tkLe:
			op = ast.Le
		case tkGt:
			op = ast.Gt
		case tkGe:
			op = ast.Ge
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkPlus || p.cur.kind == tkMinus {
		op := ast.Add
		if p.cur.kind == tkMinus {
			op = ast.Sub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkStar || p.cur.kind == tkSlash {
		op := ast.Mul
		if p.cur.kind == tkSlash {
			op = ast.Div
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	switch p.cur.kind {
	case tkMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Unary minus: 0 - x, reusing the Sub fast-path dispatch.
		return &ast.BinOp{Op: ast.Sub, Left: &ast.Literal{Value: value.F64(0)}, Right: operand}, nil
	case tkBang, tkNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Invert{Operand: operand}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tkDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tkIdent {
			return nil, errs.Newf(errs.SyntaxError, "expected member name after '.'").WithDetail("line", p.cur.line)
		}
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tkLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.MethodCall{Object: expr, Name: name, Args: args}
			continue
		}
		expr = &ast.Getattr{Object: expr, Name: name}
	}
	return expr, nil
}

func (p *parser) parseArgs() ([]ast.Expr, error) {
	if err := p.expect(tkLParen, "'('"); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.cur.kind != tkRParen {
		for {
			arg, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind != tkComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(tkRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.kind {
	case tkNumber:
		text := p.cur.text
		line := p.cur.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errs.Newf(errs.SyntaxError, "invalid numeric literal %q", text).WithDetail("line", line)
		}
		return &ast.Literal{Value: value.F64(f)}, nil

	case tkString:
		text := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Value: value.String(text)}, nil

	case tkTrue:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Value: value.Bool(true)}, nil

	case tkFalse:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Value: value.Bool(false)}, nil

	case tkRequire:
		line := p.cur.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tkString {
			return nil, errs.Newf(errs.SyntaxError, "expected namespace string after 'require'").WithDetail("line", line)
		}
		ns := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tkString {
			return nil, errs.Newf(errs.SyntaxError, "expected version string after require namespace").WithDetail("line", line)
		}
		ver := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Require{Namespace: ns, Version: ver}, nil

	case tkIdent:
		name := p.cur.text
		line := p.cur.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tkLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if fn, ok := builtinNames[name]; ok {
				if len(args) != 1 {
					return nil, errs.Newf(errs.SyntaxError, "builtin %q takes exactly one argument", name).
						WithDetail("line", line)
				}
				return &ast.BuiltinCall{Fn: fn, Arg: args[0]}, nil
			}
			return &ast.UserCall{Name: name, Args: args}, nil
		}
		return &ast.SymbolRef{Name: name}, nil

	case tkLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, errs.Newf(errs.SyntaxError, "unexpected token in expression").WithDetail("line", p.cur.line)
	}
}
