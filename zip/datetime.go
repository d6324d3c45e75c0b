package zip

import "github.com/archtrace/archtrace/decode"

// mask extracts width bits of u starting at offset, matching the classic
// https://stackoverflow.com/a/8012148 bit-field extraction used throughout
// MS-DOS packed date/time formats.
func mask(u uint16, offset, width uint) uint8 {
	m := uint16(((1 << width) - 1) << offset)
	return uint8((u & m) >> offset)
}

// secMinHr unpacks a DOS-packed time field per
// https://learn.microsoft.com/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func secMinHr(t uint16) (sec, min, hr uint8) {
	return mask(t, 0, 5), mask(t, 5, 6), mask(t, 11, 5)
}

func dayMonthYear(d uint16) (day, month, year uint8) {
	return mask(d, 0, 5), mask(d, 5, 4), mask(d, 9, 7)
}

// decodeTimeDate reads the DOS-packed last-mod-time and last-mod-date
// fields, each recorded as a lazily-expanded object of named components
// over the field's raw 2-byte span.
func decodeTimeDate(o *decode.Obj, c *decode.Cursor) *decode.Error {
	if err := addPackedField(o, "fat_time", c, func(t uint16) []decode.ObjField {
		sec, min, hr := secMinHr(t)
		return []decode.ObjField{
			{Name: "second", Value: decode.ValueU8(sec * 2)},
			{Name: "minute", Value: decode.ValueU8(min)},
			{Name: "hour", Value: decode.ValueU8(hr)},
		}
	}); err != nil {
		return err
	}
	return addPackedField(o, "fat_date", c, func(d uint16) []decode.ObjField {
		day, month, year := dayMonthYear(d)
		return []decode.ObjField{
			{Name: "day", Value: decode.ValueU8(day)},
			{Name: "month", Value: decode.ValueU8(month)},
			{Name: "year", Value: decode.ValueU16(uint16(year) + 1980)},
		}
	})
}

// addPackedField decodes a raw u16 and records, under field, a Lazy view
// that expands it via expand once forced. The integer itself is not kept as
// a separate U16 value; only the field's Meta holds its 2-byte span, which
// all expanded entries share.
func addPackedField(o *decode.Obj, field string, c *decode.Cursor, expand func(uint16) []decode.ObjField) *decode.Error {
	m, _, u, err := decode.U16LE(c)
	if err != nil {
		return err.WithPath(decode.FieldElem(field))
	}
	lazy := decode.ValueLazy(func() decode.Value {
		var v decode.Value
		dst := v.MakeObj()
		for _, f := range expand(u) {
			f.Meta = m
			dst.Fields = append(dst.Fields, f)
		}
		return v
	})
	_, err = decode.AddPrimitive(o, field, m, lazy, struct{}{}, nil)
	return err
}
