// Package zip decodes the ZIP container format (PKWARE APPNOTE, plus the
// ZIP64 extension) into an annotated decode.Value tree: end-of-central-
// directory discovery, central directory traversal, local file header
// decoding, extra-field dispatch, and on-demand decompression.
package zip

import "github.com/archtrace/archtrace/decode"

// The small thin wrappers below exist because the builder API's
// AddPrimitive wants (Meta, Value, T, *Error) as four separate values,
// while every call site here only cares about the final (T, *Error) pair.
// They are not part of the decode package because they bake in the
// "signature" field name and the ZIP64 field-widening rules specific to
// this format.

func addU8(o *decode.Obj, field string, c *decode.Cursor) (uint8, *decode.Error) {
	m, v, u, err := decode.U8(c)
	return decode.AddPrimitive(o, field, m, v, u, err)
}

func addU16(o *decode.Obj, field string, c *decode.Cursor) (uint16, *decode.Error) {
	m, v, u, err := decode.U16LE(c)
	return decode.AddPrimitive(o, field, m, v, u, err)
}

func addU32(o *decode.Obj, field string, c *decode.Cursor) (uint32, *decode.Error) {
	m, v, u, err := decode.U32LE(c)
	return decode.AddPrimitive(o, field, m, v, u, err)
}

func addU64(o *decode.Obj, field string, c *decode.Cursor) (uint64, *decode.Error) {
	m, v, u, err := decode.U64LE(c)
	return decode.AddPrimitive(o, field, m, v, u, err)
}

func addRaw(o *decode.Obj, field string, c *decode.Cursor, n int) (decode.Cursor, *decode.Error) {
	m, v, raw, err := decode.Raw(c, n)
	return decode.AddPrimitive(o, field, m, v, raw, err)
}

func addSignature(o *decode.Obj, c *decode.Cursor, literal string, force bool) *decode.Error {
	m, v, err := decode.Precise(c, []byte(literal), force)
	_, err = decode.AddPrimitive(o, "signature", m, v, struct{}{}, err)
	return err
}

// addSmall decodes a field that widens from u16 to u32 once the ZIP64
// variant of a record is in play, and records it under field.
func addSmall(o *decode.Obj, field string, c *decode.Cursor, zip64 bool) (uint64, *decode.Error) {
	if zip64 {
		u, err := addU32(o, field, c)
		return uint64(u), err
	}
	u, err := addU16(o, field, c)
	return uint64(u), err
}

// addLarge decodes a field that widens from u32 to u64 under ZIP64.
func addLarge(o *decode.Obj, field string, c *decode.Cursor, zip64 bool) (uint64, *decode.Error) {
	if zip64 {
		return addU64(o, field, c)
	}
	u, err := addU32(o, field, c)
	return uint64(u), err
}

func narrow(c decode.Cursor, u uint64) (int, *decode.Error) {
	return decode.NarrowToInt(c, u)
}
