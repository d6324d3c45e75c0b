// Package decode implements the generic combinator layer shared by every
// archive format parser in this module: a byte cursor, a structured error
// with a breadcrumb path, an annotated value tree, and the builder helpers
// that stitch the three together.
//
// Nothing in this package knows about ZIP or TAR. It only knows how to walk
// a byte buffer, remember exactly which bytes a value came from, and carry
// partial results up through a failing sub-parse.
package decode

import "fmt"

// Cursor is a cheaply-cloneable, read-only view over a shared byte buffer.
// Copying a Cursor never copies bytes: it copies a slice header and two ints.
type Cursor struct {
	buf   []byte
	start int
	len   int
}

// NewCursor wraps buf in a Cursor spanning the whole slice. buf is never
// mutated or copied by any Cursor operation; the caller (typically an
// mmap-backed reader) owns its lifetime.
func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf, start: 0, len: len(buf)}
}

// Len reports the number of bytes remaining in the view.
func (c Cursor) Len() int { return c.len }

// Bytes returns the zero-copy backing slice for this view.
func (c Cursor) Bytes() []byte { return c.buf[c.start : c.start+c.len] }

// Take consumes n bytes from the front of c, advancing it, and returns a
// Cursor over exactly those n bytes. c is left untouched on failure.
func (c *Cursor) Take(n int) (Cursor, *Error) {
	if n > c.len {
		return Cursor{}, newTruncation(*c, n)
	}
	taken := Cursor{buf: c.buf, start: c.start, len: n}
	c.start += n
	c.len -= n
	return taken, nil
}

// Slice returns the half-open sub-range [lo, hi) of c as a new Cursor,
// without consuming from c. Both bounds are relative to c's own start.
func (c Cursor) Slice(lo, hi int) (Cursor, *Error) {
	if lo < 0 || hi < lo {
		return Cursor{}, newTruncation(c, hi)
	}
	if hi > c.len {
		return Cursor{}, newTruncation(c, hi)
	}
	return Cursor{buf: c.buf, start: c.start + lo, len: hi - lo}, nil
}

// SliceFrom returns the suffix of c starting at lo, without consuming from c.
func (c Cursor) SliceFrom(lo int) (Cursor, *Error) {
	return c.Slice(lo, c.len)
}

// SliceTo returns the prefix of c up to (excluding) hi, without consuming
// from c.
func (c Cursor) SliceTo(hi int) (Cursor, *Error) {
	return c.Slice(0, hi)
}

// StartsWith reports whether the first len(literal) bytes of c equal
// literal. It never fails; a c shorter than literal simply does not match.
func (c Cursor) StartsWith(literal []byte) bool {
	if len(literal) > c.len {
		return false
	}
	return string(c.buf[c.start:c.start+len(literal)]) == string(literal)
}

// SplitOff consumes the suffix of c starting at at, retaining the prefix
// [0, at) in c itself, and returns the suffix as a new Cursor.
func (c *Cursor) SplitOff(at int) (Cursor, *Error) {
	if at > c.len {
		return Cursor{}, newTruncation(*c, at)
	}
	suffix := Cursor{buf: c.buf, start: c.start + at, len: c.len - at}
	c.len = at
	return suffix, nil
}

// consumed returns the prefix of before that f advanced past, given the
// cursor's state before and after calling f. It is the implementation of
// the "scoped consume" discipline described in Consume's doc comment.
func consumed(before, after Cursor) Cursor {
	n := before.len - after.len
	return Cursor{buf: before.buf, start: before.start, len: n}
}

func (c Cursor) String() string {
	return fmt.Sprintf("Cursor{start:%d len:%d}", c.start, c.len)
}
