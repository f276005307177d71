package token

import (
	"strings"
	"testing"
)

func collect(t *testing.T, src string) []Token {
	t.Helper()
	s := NewStream(strings.NewReader(src))
	var toks []Token
	for {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == Eof {
			return toks
		}
	}
}

func TestTextRun(t *testing.T) {
	toks := collect(t, "Hello, world!")
	if len(toks) != 2 || toks[0].Kind != Text || toks[0].Text != "Hello, world!" || toks[1].Kind != Eof {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
}

func TestTagForms(t *testing.T) {
	cases := []struct {
		src  string
		want []Token
	}{
		{"{{ if n > 1 }}", []Token{{If, "n > 1"}, {Eof, ""}}},
		{"{{ else if n > 1 }}", []Token{{ElseIf, "n > 1"}, {Eof, ""}}},
		{"{{ else }}", []Token{{Else, ""}, {Eof, ""}}},
		{"{{ end }}", []Token{{End, ""}, {Eof, ""}}},
		{"{{ for c in word }}", []Token{{For, "c in word"}, {Eof, ""}}},
		{`{{ include "a" }}`, []Token{{Include, "a"}, {Eof, ""}}},
		{"{{ name }}", []Token{{Expression, "name"}, {Eof, ""}}},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			got := collect(t, c.src)
			if len(got) != len(c.want) {
				t.Fatalf("got %+v, want %+v", got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Errorf("token %d: got %+v, want %+v", i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestEscapedBrace(t *testing.T) {
	toks := collect(t, `\{not a tag`)
	if toks[0].Kind != Text || toks[0].Text != "{" {
		t.Fatalf("expected escaped brace, got %+v", toks[0])
	}
}

func TestTrailingBackslashAtEOF(t *testing.T) {
	toks := collect(t, `abc\`)
	if toks[0].Text != "abc" || toks[1].Kind != Text || toks[1].Text != `\` {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
}

func TestTrailingBraceAtEOF(t *testing.T) {
	toks := collect(t, `abc{`)
	if toks[0].Text != "abc" || toks[1].Kind != Text || toks[1].Text != "{" {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
}

func TestNewlineSuppressionAfterTag(t *testing.T) {
	toks := collect(t, "A\n{{ x }}\nB")
	// Text "A\n", Expression "x", Text "B" (the \n right after the
	// tag is swallowed because preceding text ended in \n).
	want := []Token{{Text, "A\n"}, {Expression, "x"}, {Text, "B"}, {Eof, ""}}
	if len(toks) != len(want) {
		t.Fatalf("got %+v", toks)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Errorf("token %d: got %+v want %+v", i, toks[i], want[i])
		}
	}
}

func TestNoSuppressionWithoutPrecedingNewline(t *testing.T) {
	toks := collect(t, "A{{ x }}\nB")
	want := []Token{{Text, "A"}, {Expression, "x"}, {Text, "\nB"}, {Eof, ""}}
	for i := range want {
		if toks[i] != want[i] {
			t.Errorf("token %d: got %+v want %+v", i, toks[i], want[i])
		}
	}
}

func TestQuotedBraceInsideTag(t *testing.T) {
	toks := collect(t, `{{ "}}" }}`)
	if toks[0].Kind != Expression || toks[0].Text != `"}}"` {
		t.Fatalf("expected quoted }} preserved in expression payload, got %+v", toks[0])
	}
}

func TestRoundTripReassembly(t *testing.T) {
	// Property 1 (spec.md §8): reassembling text runs + tag-form
	// reconstructions reproduces the input modulo the one suppressed
	// newline.
	src := `Hello, {{ name }}! {{ if x }}yes{{ else }}no{{ end }}`
	toks := collect(t, src)
	var b strings.Builder
	for _, tok := range toks {
		switch tok.Kind {
		case Text:
			b.WriteString(tok.Text)
		case If:
			b.WriteString("{{ if " + tok.Text + " }}")
		case Else:
			b.WriteString("{{ else }}")
		case End:
			b.WriteString("{{ end }}")
		case Expression:
			b.WriteString("{{ " + tok.Text + " }}")
		}
	}
	if b.String() != src {
		t.Errorf("round-trip mismatch:\n got: %q\nwant: %q", b.String(), src)
	}
}
