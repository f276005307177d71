// Package iterator implements the small next/current/destroy adapter
// described in spec.md §4.7, built from a value.Value. Grounded on
// tmpl-expr-eval.c's TMPL_EXPR_FOR handling, which walks either a
// string's Unicode code points or a GListModel-shaped handle.
package iterator

import (
	"github.com/akatz-ai/tmplfoundry/internal/tmplengine/value"
)

// Iterator exposes the three operations spec.md §4.7 names.
type Iterator interface {
	// Next advances to the next element, returning false when
	// exhausted.
	Next() bool

	// Current returns the element at the iterator's current position.
	// Only valid after a Next call returned true.
	Current() value.Value

	// Destroy releases any resources held by the iterator. Safe to
	// call more than once.
	Destroy()
}

// New builds the adapter appropriate for v's kind: per-code-point
// iteration for a string, index iteration for a value.Sequence
// handle, and an always-empty iterator for anything else.
func New(v value.Value) Iterator {
	switch v.Kind() {
	case value.KindString:
		return newStringIterator(v.AsString())
	case value.KindObject:
		if seq, ok := v.AsObject().(value.Sequence); ok {
			return newSequenceIterator(seq)
		}
		return emptyIterator{}
	default:
		return emptyIterator{}
	}
}

type emptyIterator struct{}

func (emptyIterator) Next() bool         { return false }
func (emptyIterator) Current() value.Value { return value.Null() }
func (emptyIterator) Destroy()           {}

// stringIterator walks a string one Unicode code point at a time;
// Current is a single-code-point string (a combining mark is its own
// element, not joined to its base character).
type stringIterator struct {
	segments []string
	pos      int
}

func newStringIterator(s string) *stringIterator {
	var segments []string
	for _, r := range s {
		segments = append(segments, string(r))
	}
	return &stringIterator{segments: segments, pos: -1}
}

func (it *stringIterator) Next() bool {
	it.pos++
	return it.pos < len(it.segments)
}

func (it *stringIterator) Current() value.Value {
	if it.pos < 0 || it.pos >= len(it.segments) {
		return value.Null()
	}
	return value.String(it.segments[it.pos])
}

func (it *stringIterator) Destroy() {}

// sequenceIterator walks 0..count-1 of a value.Sequence handle.
type sequenceIterator struct {
	seq value.Sequence
	pos int
}

func newSequenceIterator(seq value.Sequence) *sequenceIterator {
	return &sequenceIterator{seq: seq, pos: -1}
}

func (it *sequenceIterator) Next() bool {
	it.pos++
	return it.pos < it.seq.Count()
}

func (it *sequenceIterator) Current() value.Value {
	if it.pos < 0 || it.pos >= it.seq.Count() {
		return value.Null()
	}
	return it.seq.Get(it.pos)
}

func (it *sequenceIterator) Destroy() {}
