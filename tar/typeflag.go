package tar

import "github.com/archtrace/archtrace/decode"

// typeflagName names a ustar typeflag byte, grounded in the teacher's
// internal/tar/common.go Type* constant block (TypeReg, TypeLink,
// TypeSymlink, ... TypeGNULongLink). PAX and GNU types are named for
// presentation only; this package does not process their records.
func typeflagName(b byte) string {
	switch b {
	case '0', 0:
		return "regular"
	case '1':
		return "hardlink"
	case '2':
		return "symlink"
	case '3':
		return "chardev"
	case '4':
		return "blockdev"
	case '5':
		return "directory"
	case '6':
		return "fifo"
	case '7':
		return "contiguous"
	case 'x':
		return "pax_extended"
	case 'g':
		return "pax_global"
	case 'L':
		return "gnu_long_name"
	case 'K':
		return "gnu_long_link"
	case 'S':
		return "gnu_sparse"
	default:
		return "unknown"
	}
}

// addTypeflag decodes the single typeflag byte as a Str, then attaches a
// Lazy "kind" sibling field naming it. The raw field stays exactly what
// the original source records (the one-byte string); "kind" is pure
// presentation, costing nothing unless forced.
func addTypeflag(o *decode.Obj, c *decode.Cursor) *decode.Error {
	m, v, b, err := decode.Str(c, 1)
	if _, err := decode.AddPrimitive(o, "typeflag", m, v, b, err); err != nil {
		return err
	}
	flagByte := b.Bytes()[0]
	kind := decode.ValueLazy(func() decode.Value { return strValue(typeflagName(flagByte)) })
	o.Fields = append(o.Fields, decode.ObjField{Name: "kind", Meta: m, Value: kind})
	return nil
}
