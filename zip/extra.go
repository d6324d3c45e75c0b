package zip

import "github.com/archtrace/archtrace/decode"

// zip64Fields holds whichever ZIP64 placeholder-resolution values a 0x0001
// extra field actually carried. Each is present only if the corresponding
// 32-bit field in the common record was the ZIP64 sentinel and the extra
// field had enough bytes left; nil means "use the narrow value instead".
type zip64Fields struct {
	uncompressedSize *uint64
	compressedSize   *uint64
	localFileOffset  *uint64
	diskNrStart      *uint32
}

// decodeZip64Extra reads the 0x0001 extra field's fixed-order optional
// 64/32-bit overrides, stopping as soon as the data runs out (APPNOTE
// leaves it to the writer which subset to include).
func decodeZip64Extra(o *decode.Obj, c *decode.Cursor) (zip64Fields, *decode.Error) {
	var z zip64Fields
	if c.Len() > 0 {
		u, err := addU64(o, "uncompressed_size", c)
		if err != nil {
			return z, err
		}
		z.uncompressedSize = &u
	}
	if c.Len() > 0 {
		u, err := addU64(o, "compressed_size", c)
		if err != nil {
			return z, err
		}
		z.compressedSize = &u
	}
	if c.Len() > 0 {
		u, err := addU64(o, "local_file_offset", c)
		if err != nil {
			return z, err
		}
		z.localFileOffset = &u
	}
	if c.Len() > 0 {
		u, err := addU32(o, "disk_nr_start", c)
		if err != nil {
			return z, err
		}
		z.diskNrStart = &u
	}
	return z, nil
}

// decodeExtendedTimestamp reads the 0x5455 extra field: a flags byte
// (lazily expanded to modification/access/creation_time_present), followed
// by a u32 Unix timestamp per set flag, in that fixed order, only while
// bytes remain (a writer may truncate the field after any of the three).
func decodeExtendedTimestamp(o *decode.Obj, c *decode.Cursor) *decode.Error {
	m, _, flagByte, err := decode.U8(c)
	if err != nil {
		return err.WithPath(decode.FieldElem("flags"))
	}
	flags := uint64(flagByte)
	if _, err := decode.AddPrimitive(o, "flags", m, flagsValue(m, flags, timestampFlagBits), struct{}{}, nil); err != nil {
		return err
	}
	for i, key := range []string{"modification_time", "access_time", "creation_time"} {
		if hasBit(flags, uint(i)) && c.Len() > 0 {
			if _, err := addU32(o, key, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeNTFSExtra reads the 0x000a NTFS extra field: a reserved u32
// followed by a nested TLV sequence reusing the {tag,size,data} grammar.
// Only sub-tag 0x0001 (three FILETIME values) is interpreted; anything else
// falls back to Raw. Grounded on the teacher's timeFromExtraField, which
// recognizes the same nesting (internal/zip/times.go).
func decodeNTFSExtra(o *decode.Obj, c *decode.Cursor) *decode.Error {
	if _, err := addRaw(o, "reserved", c, 4); err != nil {
		return err
	}
	return o.AddField("attribute", decode.MetaFrom(*c), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		arr := v.MakeArr()
		for c.Len() > 0 {
			err := arr.AddElement(decode.MetaFrom(*c), func(m *decode.Meta, v *decode.Value) *decode.Error {
				return decode.ConsumeErr(c, m, func(c *decode.Cursor) *decode.Error {
					return decodeNTFSAttribute(v.MakeObj(), c)
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeNTFSAttribute(o *decode.Obj, c *decode.Cursor) *decode.Error {
	tag, err := addU16(o, "tag", c)
	if err != nil {
		return err
	}
	size, err := addU16(o, "size", c)
	if err != nil {
		return err
	}
	n, nerr := narrow(*c, uint64(size))
	if nerr != nil {
		return nerr
	}
	dm, dv, data, err := decode.Raw(c, n)
	if err != nil {
		return err.WithPath(decode.FieldElem("data"))
	}
	if tag == 0x0001 {
		sub := data
		return o.AddField("data", dm, func(m *decode.Meta, v *decode.Value) *decode.Error {
			return decode.ConsumeErr(&sub, m, func(c *decode.Cursor) *decode.Error {
				times := v.MakeObj()
				if _, err := addU64(times, "mtime", c); err != nil {
					return err
				}
				if _, err := addU64(times, "atime", c); err != nil {
					return err
				}
				_, err := addU64(times, "ctime", c)
				return err
			})
		})
	}
	_, err = decode.AddPrimitive(o, "data", dm, dv, struct{}{}, nil)
	return err
}

// decodeUnixLegacyExtra reads the 0x000d legacy "UX" UNIX extra field.
func decodeUnixLegacyExtra(o *decode.Obj, c *decode.Cursor) *decode.Error {
	if _, err := addU32(o, "atime", c); err != nil {
		return err
	}
	if _, err := addU32(o, "mtime", c); err != nil {
		return err
	}
	if _, err := addU16(o, "uid", c); err != nil {
		return err
	}
	if _, err := addU16(o, "gid", c); err != nil {
		return err
	}
	if c.Len() > 0 {
		_, err := addRaw(o, "extra_data", c, c.Len())
		return err
	}
	return nil
}

// decodeInfoZipNewUnixExtra reads the 0x5855 "Ux" extra field: a version
// byte followed by a variable-length uid and gid, each a 1-byte size
// prefix and that many little-endian bytes.
func decodeInfoZipNewUnixExtra(o *decode.Obj, c *decode.Cursor) *decode.Error {
	if _, err := addU8(o, "version", c); err != nil {
		return err
	}
	if err := decodeVariableUnixID(o, "uid", c); err != nil {
		return err
	}
	return decodeVariableUnixID(o, "gid", c)
}

func decodeVariableUnixID(o *decode.Obj, field string, c *decode.Cursor) *decode.Error {
	size, err := addU8(o, field+"_size", c)
	if err != nil {
		return err
	}
	_, err = addRaw(o, field, c, int(size))
	return err
}

// decodeUnicodePathExtra reads the 0x7075 Info-ZIP Unicode Path extra
// field: version, crc32 of the non-Unicode name, then a UTF-8 name filling
// the rest of the field.
func decodeUnicodePathExtra(o *decode.Obj, c *decode.Cursor) *decode.Error {
	if _, err := addU8(o, "version", c); err != nil {
		return err
	}
	if _, err := addU32(o, "name_crc32", c); err != nil {
		return err
	}
	m, v, _, err := decode.Str(c, c.Len())
	if err != nil {
		return err.WithPath(decode.FieldElem("unicode_name"))
	}
	_, err = decode.AddPrimitive(o, "unicode_name", m, v, struct{}{}, nil)
	return err
}

// decodeExtraField reads one {tag,size,data} TLV and dispatches on tag,
// returning any ZIP64 override fields it found (only the 0x0001 tag
// produces one). Unrecognized tags retain their data as Raw.
func decodeExtraField(o *decode.Obj, c *decode.Cursor) (*zip64Fields, *decode.Error) {
	tag, err := addU16(o, "tag", c)
	if err != nil {
		return nil, err
	}
	size, err := addU16(o, "size", c)
	if err != nil {
		return nil, err
	}
	n, nerr := narrow(*c, uint64(size))
	if nerr != nil {
		return nil, nerr
	}
	dm, dv, data, err := decode.Raw(c, n)
	if err != nil {
		return nil, err.WithPath(decode.FieldElem("data"))
	}

	var z *zip64Fields
	field := func(m *decode.Meta, v *decode.Value) *decode.Error {
		sub := data
		switch tag {
		case 0x0001:
			zf, e := decodeZip64Extra(v.MakeObj(), &sub)
			if e == nil {
				z = &zf
			}
			return e
		case 0x5455:
			return decodeExtendedTimestamp(v.MakeObj(), &sub)
		case 0x000a:
			return decodeNTFSExtra(v.MakeObj(), &sub)
		case 0x000d:
			return decodeUnixLegacyExtra(v.MakeObj(), &sub)
		case 0x5855:
			return decodeInfoZipNewUnixExtra(v.MakeObj(), &sub)
		case 0x7075:
			return decodeUnicodePathExtra(v.MakeObj(), &sub)
		default:
			*v = dv
			return nil
		}
	}
	err = o.AddField("data", dm, field)
	return z, err
}

// decodeExtraFields walks the whole extra-fields block, one TLV at a time,
// folding together whichever ZIP64 override fields were found (there is at
// most one 0x0001 field in a conforming archive, but the last one found
// wins if a producer is non-conforming).
func decodeExtraFields(a *decode.Arr, c decode.Cursor) (zip64Fields, *decode.Error) {
	var z zip64Fields
	for c.Len() > 0 {
		var found *zip64Fields
		err := a.AddElement(decode.MetaFrom(c), func(m *decode.Meta, v *decode.Value) *decode.Error {
			return decode.ConsumeErr(&c, m, func(c *decode.Cursor) *decode.Error {
				var e *decode.Error
				found, e = decodeExtraField(v.MakeObj(), c)
				return e
			})
		})
		if err != nil {
			return z, err
		}
		if found != nil {
			z = *found
		}
	}
	return z, nil
}
