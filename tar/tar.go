package tar

import "github.com/archtrace/archtrace/decode"

const blockSize = 512

// Opts controls decoding tolerance. TAR has no signature to force past the
// way zip.Opts.Force does; kept as a distinct type for symmetry and so a
// future lenient mode has somewhere to live.
type Opts struct{}

const (
	nameSize     = 100
	modeSize     = 8
	uidSize      = 8
	gidSize      = 8
	sizeSize     = 12
	mtimeSize    = 12
	chksumSize   = 8
	typeflagSize = 1
	linknameSize = 100
	headerSize   = nameSize + modeSize + uidSize + gidSize + sizeSize +
		mtimeSize + chksumSize + typeflagSize + linknameSize

	ustarMagicSize    = 6
	ustarVersionSize  = 2
	ustarUnameSize    = 32
	ustarGnameSize    = 32
	ustarDevmajorSize = 8
	ustarDevminorSize = 8
	ustarPrefixSize   = 155
	ustarSize         = ustarMagicSize + ustarVersionSize + ustarUnameSize +
		ustarGnameSize + ustarDevmajorSize + ustarDevminorSize + ustarPrefixSize

	ustarMagic = "ustar\x00"
)

// blockPadding reports how many more bytes are needed to reach the next
// 512-byte boundary after n bytes have been consumed.
func blockPadding(n int) int {
	r := n % blockSize
	if r == 0 {
		return 0
	}
	return blockSize - r
}

var endMarker = make([]byte, 2*blockSize)

// atEndMarker reports whether two consecutive all-zero 512-byte blocks
// start at c, the archive's conventional end-of-data marker.
func atEndMarker(c decode.Cursor) bool {
	return c.StartsWith(endMarker)
}

// decodeUstar decodes the ustar extension fields into o when the 6 bytes
// at c read "ustar\0"; otherwise c and o are left untouched. This mirrors
// the original source's decode_ustar returning an Option rather than a
// Result: pre-POSIX ("v7") tar lacks these fields entirely, and that is
// not an error. If the magic matches but the record is then truncated
// before all seven ustar fields can be read, that truncation is reported
// as a normal error rather than silently discarded - unlike the magic
// check itself, a corrupt ustar block is a real decode failure.
func decodeUstar(o *decode.Obj, c *decode.Cursor) *decode.Error {
	save := *c
	magic, err := c.Take(ustarMagicSize)
	if err != nil || string(magic.Bytes()) != ustarMagic {
		*c = save
		return nil
	}
	*c = save
	if _, err := addStr(o, "magic", c, ustarMagicSize); err != nil {
		return err
	}
	if _, err := addOctal(o, "version", c, ustarVersionSize); err != nil {
		return err
	}
	if _, err := addStr(o, "uname", c, ustarUnameSize); err != nil {
		return err
	}
	if _, err := addStr(o, "gname", c, ustarGnameSize); err != nil {
		return err
	}
	if _, err := addOctal(o, "devmajor", c, ustarDevmajorSize); err != nil {
		return err
	}
	if _, err := addOctal(o, "devminor", c, ustarDevminorSize); err != nil {
		return err
	}
	if _, err := addStr(o, "prefix", c, ustarPrefixSize); err != nil {
		return err
	}
	return nil
}

// decodeFile decodes one 512-byte header block (plus its optional ustar
// extension, header padding, data, and data padding) as the next element
// of a.
func decodeFile(a *decode.Arr, c *decode.Cursor) *decode.Error {
	return a.AddElement(decode.MetaFrom(*c), func(m *decode.Meta, v *decode.Value) *decode.Error {
		return decode.ConsumeErr(c, m, func(c *decode.Cursor) *decode.Error {
			o := v.MakeObj()
			if _, err := addStr(o, "name", c, nameSize); err != nil {
				return err
			}
			if _, err := addOctal(o, "mode", c, modeSize); err != nil {
				return err
			}
			if _, err := addOctal(o, "uid", c, uidSize); err != nil {
				return err
			}
			if _, err := addOctal(o, "gid", c, gidSize); err != nil {
				return err
			}
			size, err := addOctal(o, "size", c, sizeSize)
			if err != nil {
				return err
			}
			if _, err := addOctal(o, "mtime", c, mtimeSize); err != nil {
				return err
			}
			if _, err := addOctal(o, "chksum", c, chksumSize); err != nil {
				return err
			}
			if err := addTypeflag(o, c); err != nil {
				return err
			}
			if _, err := addStr(o, "linkname", c, linknameSize); err != nil {
				return err
			}

			fieldsBefore := len(o.Fields)
			if err := decodeUstar(o, c); err != nil {
				return err
			}
			headerLen := headerSize
			if len(o.Fields) > fieldsBefore {
				headerLen += ustarSize
			}
			if err := addGap(o, "header_padding", c, blockPadding(headerLen)); err != nil {
				return err
			}

			dataLen, nerr := decode.NarrowToInt(*c, size)
			if nerr != nil {
				return nerr.WithPathField("size")
			}
			if _, err := addRaw(o, "data", c, dataLen); err != nil {
				return err
			}
			return addGap(o, "data_padding", c, blockPadding(dataLen))
		})
	})
}

// Decode walks buf as a sequence of ustar file records, populating root's
// single "files" field. Walking stops at the end-of-data marker (two
// consecutive all-zero 512-byte blocks) or when the input is exhausted,
// whichever comes first.
func Decode(root *decode.Obj, buf []byte, opts Opts) *decode.Error {
	c := decode.NewCursor(buf)
	return root.AddField("files", decode.MetaFrom(c), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		arr := v.MakeArr()
		for c.Len() > 0 && !atEndMarker(c) {
			if err := decodeFile(arr, &c); err != nil {
				return err
			}
		}
		return nil
	})
}

// DecodeBytes is the convenience entry point: decode buf and return the
// resulting root Value directly.
func DecodeBytes(buf []byte, opts Opts) (decode.Value, *decode.Error) {
	var v decode.Value
	root := v.MakeObj()
	err := Decode(root, buf, opts)
	return v, err
}
