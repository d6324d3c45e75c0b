package zip

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/archtrace/archtrace/decode"
)

// compressionMethodName names APPNOTE's compression-method registry, used
// only for presentation (Meta.Description on the compressed field), never
// to gate decoding - the dispatch itself lives in decompress.
func compressionMethodName(method uint16) string {
	switch method {
	case 0:
		return "none"
	case 1:
		return "shrunk"
	case 2, 3, 4, 5:
		return "reduced_compression_factor"
	case 6:
		return "imploded"
	case 8:
		return "deflated"
	case 9:
		return "enhanced_deflated"
	case 10:
		return "pk_ware_dcl_imploded"
	case 12:
		return "bzip2"
	case 14:
		return "lzma"
	case 18:
		return "ibmterse"
	case 19:
		return "ibmlz77z"
	case 98:
		return "pp_md"
	default:
		return "unknown"
	}
}

// decompress runs the one decompressor this package actually implements
// (DEFLATE, via klauspost/compress/flate) plus the trivial STORE
// passthrough. Every other method reports no output, matching the
// teacher's own "skip what we can't decode" posture (internal/flate is
// only wired for the methods the teacher's callers actually need).
func decompress(compressed []byte, method uint16) ([]byte, bool) {
	switch method {
	case 0:
		return compressed, true
	case 8:
		fr := flate.NewReader(bytes.NewReader(compressed))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

// uncompressValue is the thunk body behind a local file's "compressed"
// field: forcing it runs decompress and, on success, attaches a single
// "uncompressed" child holding the result. Failure or an unsupported
// method yields an empty object rather than an error, since the compressed
// bytes themselves were read successfully - only their interpretation is
// unavailable.
func uncompressValue(compressed []byte, method uint16) decode.Value {
	var v decode.Value
	o := v.MakeObj()
	out, ok := decompress(compressed, method)
	if ok {
		c := decode.NewCursor(out)
		m, val, _, err := decode.Raw(&c, len(out))
		if err == nil {
			o.Fields = append(o.Fields, decode.ObjField{Name: "uncompressed", Meta: m, Value: val})
		}
	}
	return v
}
