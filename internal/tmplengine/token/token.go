// Package token implements the UTF-8-aware tokenizer described in
// spec.md §4.1. Grounded on tmpl-token.c / tmpl-token-input-stream.c.
package token

import (
	"bufio"
	"io"
	"strings"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
)

// Kind identifies the lexical class of a Token.
type Kind int

const (
	Eof Kind = iota
	Text
	If
	ElseIf
	Else
	End
	For
	Expression
	Include
)

func (k Kind) String() string {
	switch k {
	case Eof:
		return "EOF"
	case Text:
		return "TEXT"
	case If:
		return "IF"
	case ElseIf:
		return "ELSE_IF"
	case Else:
		return "ELSE"
	case End:
		return "END"
	case For:
		return "FOR"
	case Expression:
		return "EXPRESSION"
	case Include:
		return "INCLUDE"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexical unit from a Stream.
type Token struct {
	Kind Kind
	Text string
}

// Stream tokenizes one input byte stream on demand (spec.md §4.1).
// Name chosen to avoid colliding with lexer.Lexer, which stacks
// Streams for `include` resolution.
type Stream struct {
	r *bufio.Reader

	swallowNewline       bool
	lastWasTextWithNewline bool

	eof bool
}

// NewStream wraps r for tokenization.
func NewStream(r io.Reader) *Stream {
	return &Stream{r: bufio.NewReader(r)}
}

// Next reads the next Token from the stream, or an *errs.Error of kind
// LexerFailure on a read error.
func (s *Stream) Next() (Token, error) {
	if s.eof {
		return Token{Kind: Eof}, nil
	}

	if s.swallowNewline {
		s.swallowNewline = false
		b, err := s.r.ReadByte()
		if err == nil && b != '\n' {
			if uerr := s.r.UnreadByte(); uerr != nil {
				return Token{}, errs.Wrap(errs.LexerFailure, "unread after newline-suppression peek", uerr)
			}
		} else if err != nil && err != io.EOF {
			return Token{}, errs.Wrap(errs.LexerFailure, "reading after tag", err)
		}
	}

	b, err := s.r.ReadByte()
	if err == io.EOF {
		s.eof = true
		return Token{Kind: Eof}, nil
	}
	if err != nil {
		return Token{}, errs.Wrap(errs.LexerFailure, "reading token stream", err)
	}

	switch b {
	case '\\':
		return s.readEscape()
	case '{':
		return s.readBraceOrTag()
	default:
		if err := s.r.UnreadByte(); err != nil {
			return Token{}, errs.Wrap(errs.LexerFailure, "unread before text run", err)
		}
		return s.readTextRun()
	}
}

// readTextRun scans until the next '\\' or '{', accumulating a Text
// token. The caller guarantees the cursor is positioned at the first
// byte of the run.
func (s *Stream) readTextRun() (Token, error) {
	var b strings.Builder
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			s.eof = true
			break
		}
		if err != nil {
			return Token{}, errs.Wrap(errs.LexerFailure, "reading text run", err)
		}
		if c == '\\' || c == '{' {
			if uerr := s.r.UnreadByte(); uerr != nil {
				return Token{}, errs.Wrap(errs.LexerFailure, "unread at text run boundary", uerr)
			}
			break
		}
		b.WriteByte(c)
	}
	text := b.String()
	s.lastWasTextWithNewline = strings.HasSuffix(text, "\n")
	return Token{Kind: Text, Text: text}, nil
}

// readEscape handles a leading '\\': `\{` is an escaped brace, `\X`
// for any other X is passed through as literal text "\X", and a
// trailing lone '\\' at EOF yields a one-char "\\" token.
func (s *Stream) readEscape() (Token, error) {
	c, err := s.r.ReadByte()
	if err == io.EOF {
		s.eof = true
		s.lastWasTextWithNewline = false
		return Token{Kind: Text, Text: "\\"}, nil
	}
	if err != nil {
		return Token{}, errs.Wrap(errs.LexerFailure, "reading escape", err)
	}
	var text string
	if c == '{' {
		text = "{"
	} else {
		text = "\\" + string(c)
	}
	s.lastWasTextWithNewline = false
	return Token{Kind: Text, Text: text}, nil
}

// readBraceOrTag handles a leading '{': a single unmatched '{' is
// literal text, '{{' opens a tag read up to the first unquoted '}}'.
func (s *Stream) readBraceOrTag() (Token, error) {
	c, err := s.r.ReadByte()
	if err == io.EOF {
		s.eof = true
		s.lastWasTextWithNewline = false
		return Token{Kind: Text, Text: "{"}, nil
	}
	if err != nil {
		return Token{}, errs.Wrap(errs.LexerFailure, "reading brace", err)
	}
	if c != '{' {
		if uerr := s.r.UnreadByte(); uerr != nil {
			return Token{}, errs.Wrap(errs.LexerFailure, "unread after single brace", uerr)
		}
		s.lastWasTextWithNewline = false
		return Token{Kind: Text, Text: "{"}, nil
	}

	payload, err := s.readTagPayload()
	if err != nil {
		return Token{}, err
	}

	tok := classify(strings.TrimSpace(payload))

	s.swallowNewline = s.lastWasTextWithNewline
	s.lastWasTextWithNewline = false
	return tok, nil
}

// readTagPayload reads up to (and consumes) the first "}}" that is
// not inside a double-quoted string, where a preceding '\\' in-string
// preserves the following character.
func (s *Stream) readTagPayload() (string, error) {
	var b strings.Builder
	inString := false
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			s.eof = true
			return "", errs.New(errs.SyntaxError, "unterminated tag: missing }}")
		}
		if err != nil {
			return "", errs.Wrap(errs.LexerFailure, "reading tag payload", err)
		}

		if inString {
			b.WriteByte(c)
			if c == '\\' {
				nc, err := s.r.ReadByte()
				if err != nil {
					return "", errs.New(errs.SyntaxError, "unterminated string literal in tag")
				}
				b.WriteByte(nc)
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}

		if c == '}' {
			nc, err := s.r.ReadByte()
			if err == nil && nc == '}' {
				return b.String(), nil
			}
			if err == nil {
				if uerr := s.r.UnreadByte(); uerr != nil {
					return "", errs.Wrap(errs.LexerFailure, "unread after single }", uerr)
				}
			}
			b.WriteByte(c)
			continue
		}

		b.WriteByte(c)
	}
}

// classify maps a trimmed tag payload to its Token kind, per the
// prefix rules in spec.md §4.1 / §6.
func classify(payload string) Token {
	switch {
	case strings.HasPrefix(payload, "if "):
		return Token{Kind: If, Text: strings.TrimSpace(payload[len("if "):])}
	case strings.HasPrefix(payload, "else if "):
		return Token{Kind: ElseIf, Text: strings.TrimSpace(payload[len("else if "):])}
	case payload == "else" || strings.HasPrefix(payload, "else "):
		return Token{Kind: Else, Text: strings.TrimSpace(strings.TrimPrefix(payload, "else"))}
	case payload == "end" || strings.HasPrefix(payload, "end "):
		return Token{Kind: End}
	case strings.HasPrefix(payload, "for "):
		return Token{Kind: For, Text: strings.TrimSpace(payload[len("for "):])}
	case strings.HasPrefix(payload, "include "):
		return Token{Kind: Include, Text: parseIncludePath(strings.TrimSpace(payload[len("include "):]))}
	default:
		return Token{Kind: Expression, Text: payload}
	}
}

// parseIncludePath extracts PATH from a `"PATH"` literal, following
// the sscanf pattern `include "%m[^"]` from spec.md §6: everything up
// to the next '"'. Malformed input (no quotes) is passed through
// as-is; the lexer surfaces a locator error when it fails to resolve.
func parseIncludePath(quoted string) string {
	if len(quoted) >= 2 && quoted[0] == '"' {
		if end := strings.IndexByte(quoted[1:], '"'); end >= 0 {
			return quoted[1 : 1+end]
		}
	}
	return quoted
}
