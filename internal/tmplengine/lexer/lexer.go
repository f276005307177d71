// Package lexer stacks token.Streams to resolve `{{ include "PATH" }}`
// tags transparently, tracking the active include set for cycle
// detection. Grounded on tmpl-lexer.c.
package lexer

import (
	"context"
	"io"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/token"
)

// Locator resolves an include path to a readable stream. Implemented
// by tmplengine/locator.Locator; kept as a narrow interface here so
// the lexer does not depend on locator's search-path machinery.
type Locator interface {
	Locate(path string) (io.ReadCloser, error)
}

type frame struct {
	path   string
	stream *token.Stream
	closer io.Closer
}

// Lexer is the stack-of-streams tokenizer described in spec.md §4.2.
type Lexer struct {
	locator Locator
	stack   []*frame
	active  map[string]bool
	pushback *token.Token
}

// New creates a Lexer reading the root stream r (named rootName for
// include-cycle bookkeeping, typically the root template's path).
func New(locator Locator, rootName string, r io.Reader) *Lexer {
	l := &Lexer{
		locator: locator,
		active:  make(map[string]bool),
	}
	l.stack = append(l.stack, &frame{path: rootName, stream: token.NewStream(r)})
	if rootName != "" {
		l.active[rootName] = true
	}
	return l
}

// Unget pushes tok back; it must be the last token returned by Next.
func (l *Lexer) Unget(tok token.Token) {
	t := tok
	l.pushback = &t
}

// Next returns the next token across the include stack, transparently
// resolving Include tokens via the Locator and detecting cycles.
func (l *Lexer) Next(ctx context.Context) (token.Token, error) {
	if l.pushback != nil {
		tok := *l.pushback
		l.pushback = nil
		return tok, nil
	}

	for len(l.stack) > 0 {
		select {
		case <-ctx.Done():
			return token.Token{}, ctx.Err()
		default:
		}

		top := l.stack[len(l.stack)-1]
		tok, err := top.stream.Next()
		if err != nil {
			return token.Token{}, err
		}

		if tok.Kind == token.Eof {
			l.popFrame()
			continue
		}

		if tok.Kind == token.Include {
			if err := l.pushInclude(tok.Text); err != nil {
				return token.Token{}, err
			}
			continue
		}

		return tok, nil
	}

	return token.Token{Kind: token.Eof}, nil
}

func (l *Lexer) popFrame() {
	n := len(l.stack)
	top := l.stack[n-1]
	if top.closer != nil {
		_ = top.closer.Close()
	}
	delete(l.active, top.path)
	l.stack = l.stack[:n-1]
}

func (l *Lexer) pushInclude(path string) error {
	if l.active[path] {
		return errs.Newf(errs.CircularInclude, "circular include of %q", path).WithDetail("path", path)
	}

	rc, err := l.locator.Locate(path)
	if err != nil {
		return err
	}

	l.active[path] = true
	l.stack = append(l.stack, &frame{
		path:   path,
		stream: token.NewStream(rc),
		closer: rc,
	})
	return nil
}

// Close releases every stream still on the stack, innermost first.
func (l *Lexer) Close() error {
	var first error
	for len(l.stack) > 0 {
		top := l.stack[len(l.stack)-1]
		if top.closer != nil {
			if err := top.closer.Close(); err != nil && first == nil {
				first = err
			}
		}
		l.stack = l.stack[:len(l.stack)-1]
	}
	l.active = make(map[string]bool)
	return first
}
