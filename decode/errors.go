package decode

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpectKind identifies what a failed decode step was looking for.
type ExpectKind int

const (
	// ExpectBytes: a fixed-width field needed N more bytes than remained.
	ExpectBytes ExpectKind = iota
	// ExpectInt: like ExpectBytes, but the bytes were to be read as an integer.
	ExpectInt
	// ExpectLiteral: a precise byte-literal match was required and failed.
	ExpectLiteral
	// ExpectUintNarrow: a 64-bit value would not fit where a machine-sized
	// index was required (e.g. an offset or length used to slice memory).
	ExpectUintNarrow
	// ExpectOctalDigits: a TAR numeric field held non-octal-digit text.
	ExpectOctalDigits
	// ExpectAnchor: a required structural anchor (EOCD, ZIP64 locator, ...)
	// could not be located at all.
	ExpectAnchor
)

// Expectation describes what the failing step needed.
type Expectation struct {
	Kind    ExpectKind
	N       int    // for ExpectBytes/ExpectInt: bytes needed
	Literal []byte // for ExpectLiteral: the expected bytes
	Found   uint64 // for ExpectUintNarrow: the oversized value found
	Name    string // for ExpectAnchor: what was being searched for
}

func (e Expectation) String() string {
	switch e.Kind {
	case ExpectInt:
		return fmt.Sprintf("need %d bytes as an integer", e.N)
	case ExpectLiteral:
		return fmt.Sprintf("need literal % X", e.Literal)
	case ExpectUintNarrow:
		return fmt.Sprintf("need unsigned machine-sized int, found %d", e.Found)
	case ExpectOctalDigits:
		return "need octal digits"
	case ExpectAnchor:
		return fmt.Sprintf("could not find %s", e.Name)
	default:
		return fmt.Sprintf("need %d bytes", e.N)
	}
}

// PathElem is one breadcrumb locating a failing field under its parent:
// either a static field name or an array index.
type PathElem struct {
	Field   string
	Index   int
	IsIndex bool
}

func (p PathElem) String() string {
	if p.IsIndex {
		return "[" + strconv.Itoa(p.Index) + "]"
	}
	return p.Field
}

// FieldElem builds a breadcrumb naming a struct field.
func FieldElem(name string) PathElem { return PathElem{Field: name} }

// IndexElem builds a breadcrumb naming an array index.
func IndexElem(i int) PathElem { return PathElem{Index: i, IsIndex: true} }

// Error is the single error type produced anywhere in the decode layer. It
// carries the byte position of the first unsatisfied byte, the ordered path
// of breadcrumbs from the failing field up to the root, and what was
// expected there.
//
// Path is accumulated breadcrumb-by-breadcrumb as the error unwinds through
// nested builders, innermost first; Error() reverses it for presentation.
type Error struct {
	Position Cursor
	Path     []PathElem
	Expect   Expectation
}

func newTruncation(pos Cursor, n int) *Error {
	return &Error{Position: pos, Expect: Expectation{Kind: ExpectBytes, N: n}}
}

// WithPath returns a copy of e with elem appended to its breadcrumb list.
// Called once per enclosing builder as the error bubbles outward, so the
// innermost breadcrumb ends up first in Path. Format packages (zip, tar)
// call this directly whenever they propagate a *decode.Error past a field
// boundary without going through the builder API (e.g. after a narrowing
// or slicing failure).
func (e *Error) WithPath(elem PathElem) *Error {
	next := *e
	next.Path = append(append([]PathElem(nil), e.Path...), elem)
	return &next
}

// WithPathField is WithPath(FieldElem(name)), the common case of naming a
// struct field as an error bubbles outward.
func (e *Error) WithPathField(name string) *Error {
	return e.WithPath(FieldElem(name))
}

// WithExpect returns a copy of e with its Expectation replaced.
func (e *Error) WithExpect(x Expectation) *Error {
	next := *e
	next.Expect = x
	return &next
}

// FieldPath returns the breadcrumb path in presentation order: outermost field
// first, innermost last.
func (e *Error) FieldPath() []PathElem {
	out := make([]PathElem, len(e.Path))
	for i, p := range e.Path {
		out[len(e.Path)-1-i] = p
	}
	return out
}

func (e *Error) Error() string {
	path := e.FieldPath()
	var b strings.Builder
	for i, p := range path {
		if p.IsIndex {
			b.WriteString(p.String())
		} else {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(p.Field)
		}
	}
	if b.Len() == 0 {
		return e.Expect.String()
	}
	return fmt.Sprintf("%s: %s", b.String(), e.Expect.String())
}
