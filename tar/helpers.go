// Package tar decodes POSIX ustar archives into an annotated decode.Value
// tree: a fixed-block sequential walk with no PAX/GNU record processing,
// the "simpler client" counterpart to the zip package's combinator use.
package tar

import "github.com/archtrace/archtrace/decode"

func addStr(o *decode.Obj, field string, c *decode.Cursor, n int) (decode.Cursor, *decode.Error) {
	m, v, b, err := decode.Str(c, n)
	return decode.AddPrimitive(o, field, m, v, b, err)
}

func addRaw(o *decode.Obj, field string, c *decode.Cursor, n int) (decode.Cursor, *decode.Error) {
	m, v, b, err := decode.Raw(c, n)
	return decode.AddPrimitive(o, field, m, v, b, err)
}

func addGap(o *decode.Obj, field string, c *decode.Cursor, n int) *decode.Error {
	m, v, err := decode.Gap(c, n)
	_, err = decode.AddPrimitive(o, field, m, v, struct{}{}, err)
	return err
}

// strValue builds a Str Value out of a plain Go string, for derived text
// (the typeflag's named "kind" view) that has no backing span of its own.
func strValue(s string) decode.Value {
	c := decode.NewCursor([]byte(s))
	return decode.ValueStr(c)
}
