package zip

import "github.com/archtrace/archtrace/decode"

// Unix st_mode constants agreed on by tooling, not part of any ZIP spec.
// Grounded on the teacher's own comment to this effect (internal/zip/zip.go).
const (
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

func unixKind(m uint32) string {
	switch m & sIFMT {
	case sIFSOCK:
		return "socket"
	case sIFLNK:
		return "symlink"
	case sIFREG:
		return "regular"
	case sIFBLK:
		return "block_device"
	case sIFDIR:
		return "directory"
	case sIFCHR:
		return "char_device"
	case sIFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// unixModeObj builds the named breakdown of a unix st_mode-shaped value,
// the annotated-tree analogue of the teacher's unixModeToFileMode, which
// folds the same bits into an fs.FileMode instead.
func unixModeObj(m decode.Meta, mode uint32) decode.Value {
	var v decode.Value
	o := v.MakeObj()
	o.Fields = append(o.Fields,
		decode.ObjField{Name: "kind", Meta: m, Value: strValue(unixKind(mode))},
		decode.ObjField{Name: "perm", Meta: m, Value: decode.ValueU16(uint16(mode & 0o7777))},
		decode.ObjField{Name: "setuid", Meta: m, Value: decode.ValueBool(mode&sISUID != 0)},
		decode.ObjField{Name: "setgid", Meta: m, Value: decode.ValueBool(mode&sISGID != 0)},
		decode.ObjField{Name: "sticky", Meta: m, Value: decode.ValueBool(mode&sISVTX != 0)},
	)
	return v
}

// dosModeObj mirrors msdosModeToFileMode's directory/read-only bits.
func dosModeObj(m decode.Meta, attrs uint32) decode.Value {
	var v decode.Value
	o := v.MakeObj()
	o.Fields = append(o.Fields,
		decode.ObjField{Name: "is_dir", Meta: m, Value: decode.ValueBool(attrs&msdosDir != 0)},
		decode.ObjField{Name: "read_only", Meta: m, Value: decode.ValueBool(attrs&msdosReadOnly != 0)},
	)
	return v
}

// strValue builds a Str Value out of a plain Go string, for derived text
// that has no backing byte span in the original archive.
func strValue(s string) decode.Value {
	c := decode.NewCursor([]byte(s))
	return decode.ValueStr(c)
}

// addDerivedMode attaches, immediately after external_file_attributes, a
// Lazy "unix_mode" or "dos_mode" sibling field decoded from the same
// 32-bit value, dispatched on the CDR's version_made_by host-OS byte - the
// same dispatch the teacher performs on os := dir[5] before picking between
// unixModeToFileMode and msdosModeToFileMode. Unrecognized hosts get no
// derived view, matching the teacher's "can't tell, don't guess" stance for
// everything except its own filesystem-materialization fallback.
func addDerivedMode(o *decode.Obj, m decode.Meta, hostOS uint8, attrs uint32) {
	switch hostOS {
	case 3, 19: // Unix, Mac OS X (Darwin's host byte reuses Unix's encoding)
		field := decode.ValueLazy(func() decode.Value { return unixModeObj(m, attrs>>16) })
		o.Fields = append(o.Fields, decode.ObjField{Name: "unix_mode", Meta: m, Value: field})
	case 0, 11, 14: // MS-DOS, NTFS, VFAT
		field := decode.ValueLazy(func() decode.Value { return dosModeObj(m, attrs) })
		o.Fields = append(o.Fields, decode.ObjField{Name: "dos_mode", Meta: m, Value: field})
	}
}
