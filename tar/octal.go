package tar

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/archtrace/archtrace/decode"
)

// parseOctal normalizes the NUL-truncated, space-trimmed text in b and
// parses it in base 8 - the same two-step normalization the original
// source applies (truncate at the first NUL, then trim surrounding
// spaces) before handing the result to a numeric parse.
func parseOctal(b decode.Cursor) (uint64, *decode.Error) {
	raw := b.Bytes()
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	s := strings.Trim(string(raw), " ")
	u, err := strconv.ParseUint(s, 8, 64)
	if err != nil {
		return 0, &decode.Error{Position: b, Expect: decode.Expectation{Kind: decode.ExpectOctalDigits}}
	}
	return u, nil
}

// addOctal decodes an n-byte fixed-width octal-text field, recording it as
// a U64 spanning exactly those n bytes. The bytes are always consumed even
// when the text fails to parse: the field stays in the tree with its
// Meta.Err set (record-and-rethrow), since what fails here is the
// interpretation, not the read. This is where the original source's
// unchecked radix-8 parse would panic; here it surfaces as a normal
// *decode.Error instead.
func addOctal(o *decode.Obj, field string, c *decode.Cursor, n int) (uint64, *decode.Error) {
	b, terr := c.Take(n)
	if terr != nil {
		return 0, terr.WithPathField(field)
	}
	var u uint64
	err := o.AddField(field, decode.MetaFrom(b), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		parsed, perr := parseOctal(b)
		if perr != nil {
			return perr
		}
		u = parsed
		*v = decode.ValueU64(parsed)
		return nil
	})
	return u, err
}
