package decode

import "encoding/binary"

// U8 decodes a single byte.
func U8(c *Cursor) (Meta, Value, uint8, *Error) {
	b, err := c.Take(1)
	if err != nil {
		return Meta{}, Value{}, 0, err.WithExpect(Expectation{Kind: ExpectInt, N: 1})
	}
	u := b.Bytes()[0]
	return MetaFrom(b), ValueU8(u), u, nil
}

// U16LE decodes a little-endian 16-bit unsigned integer.
func U16LE(c *Cursor) (Meta, Value, uint16, *Error) {
	b, err := c.Take(2)
	if err != nil {
		return Meta{}, Value{}, 0, err.WithExpect(Expectation{Kind: ExpectInt, N: 2})
	}
	u := binary.LittleEndian.Uint16(b.Bytes())
	return MetaFrom(b), ValueU16(u), u, nil
}

// U32LE decodes a little-endian 32-bit unsigned integer.
func U32LE(c *Cursor) (Meta, Value, uint32, *Error) {
	b, err := c.Take(4)
	if err != nil {
		return Meta{}, Value{}, 0, err.WithExpect(Expectation{Kind: ExpectInt, N: 4})
	}
	u := binary.LittleEndian.Uint32(b.Bytes())
	return MetaFrom(b), ValueU32(u), u, nil
}

// U64LE decodes a little-endian 64-bit unsigned integer.
func U64LE(c *Cursor) (Meta, Value, uint64, *Error) {
	b, err := c.Take(8)
	if err != nil {
		return Meta{}, Value{}, 0, err.WithExpect(Expectation{Kind: ExpectInt, N: 8})
	}
	u := binary.LittleEndian.Uint64(b.Bytes())
	return MetaFrom(b), ValueU64(u), u, nil
}

// Raw consumes n bytes and produces an un-interpreted Raw{gap:false} window.
func Raw(c *Cursor, n int) (Meta, Value, Cursor, *Error) {
	b, err := c.Take(n)
	if err != nil {
		return Meta{}, Value{}, Cursor{}, err
	}
	return MetaFrom(b), ValueRaw(b, false), b, nil
}

// Gap consumes n bytes and produces a Raw{gap:true} window, marking
// structural padding/alignment rather than a value the caller chose not to
// expand.
func Gap(c *Cursor, n int) (Meta, Value, *Error) {
	b, err := c.Take(n)
	if err != nil {
		return Meta{}, Value{}, err
	}
	return MetaFrom(b), ValueRaw(b, true), nil
}

// Str consumes n bytes and produces a Str value: raw bytes with an implied
// textual role, no encoding promise.
func Str(c *Cursor, n int) (Meta, Value, Cursor, *Error) {
	b, err := c.Take(n)
	if err != nil {
		return Meta{}, Value{}, Cursor{}, err
	}
	return MetaFrom(b), ValueStr(b), b, nil
}

// Precise consumes len(literal) bytes and succeeds if they equal literal, or
// unconditionally if force is true (diagnostic mode: record whatever was
// found and accept the mismatch).
func Precise(c *Cursor, literal []byte, force bool) (Meta, Value, *Error) {
	b, err := c.Take(len(literal))
	if err != nil {
		return Meta{}, Value{}, err.WithExpect(Expectation{Kind: ExpectLiteral, Literal: literal})
	}
	if force || string(b.Bytes()) == string(literal) {
		return MetaFrom(b), ValueRaw(b, false), nil
	}
	return Meta{}, Value{}, &Error{
		Position: b,
		Expect:   Expectation{Kind: ExpectLiteral, Literal: literal},
	}
}

// NarrowToInt narrows a uint64 offset/length to a machine-sized int,
// reporting overflow as a structured error rather than wrapping silently.
func NarrowToInt(pos Cursor, u uint64) (int, *Error) {
	n := int(u)
	if n < 0 || uint64(n) != u {
		return 0, &Error{Position: pos, Expect: Expectation{Kind: ExpectUintNarrow, Found: u}}
	}
	return n, nil
}
