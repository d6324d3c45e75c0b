package zip

import "github.com/archtrace/archtrace/decode"

// flagBit names one bit of a bitmask field. Unnamed bits (reserved or
// vendor-defined) remain in the field's raw bytes (its Meta span) but do
// not get an entry in the lazily-expanded object; the field's value is that
// object alone, with no separate integer value.
type flagBit struct {
	name string
	bit  uint
}

// general purpose bit flags, general-purpose bit flag field of a local/CDR
// header. Grounded on APPNOTE 4.4.4 and the teacher's own flag handling in
// internal/zip/zip.go (CreateMode / compression method dispatch reads these
// bits individually rather than expanding them into a named view, which is
// the enrichment this package adds).
var generalFlagBits = []flagBit{
	{"encrypted", 0},
	{"compression1", 1},
	{"compression0", 2},
	{"data_descriptor", 3},
	{"enhanced_deflation", 4},
	{"compressed_patched_data", 5},
	{"strong_encryption", 6},
	{"language_encoding", 11},
	{"mask_header_values", 13},
}

const dataDescriptorBit = 3

var timestampFlagBits = []flagBit{
	{"modification_time_present", 0},
	{"access_time_present", 1},
	{"creation_time_present", 2},
}

// flagsValue builds a Lazy Value that, once forced, expands bits into a
// named bool object. m is the Meta already assigned to the raw field; each
// expanded entry reuses the same byte span, since the names are a view
// onto the same bits, not new bytes.
func flagsValue(m decode.Meta, bits uint64, names []flagBit) decode.Value {
	return decode.ValueLazy(func() decode.Value {
		var v decode.Value
		o := v.MakeObj()
		for _, b := range names {
			o.Fields = append(o.Fields, decode.ObjField{
				Name:  b.name,
				Meta:  m,
				Value: decode.ValueBool(bits&(1<<b.bit) != 0),
			})
		}
		return v
	})
}

func hasBit(bits uint64, bit uint) bool { return bits&(1<<bit) != 0 }
