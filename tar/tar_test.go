package tar

import (
	"fmt"
	"testing"

	"github.com/archtrace/archtrace/decode"
)

func octalField(width int, n uint64) []byte {
	b := make([]byte, width)
	copy(b, fmt.Sprintf("%0*o", width-1, n))
	return b
}

func strField(width int, s string) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

func buildFileRecord(name string, size uint64, data []byte) []byte {
	var h []byte
	h = append(h, strField(nameSize, name)...)
	h = append(h, octalField(modeSize, 0o644)...)
	h = append(h, octalField(uidSize, 0)...)
	h = append(h, octalField(gidSize, 0)...)
	h = append(h, octalField(sizeSize, size)...)
	h = append(h, octalField(mtimeSize, 0)...)
	h = append(h, octalField(chksumSize, 0)...)
	h = append(h, '0') // typeflag: regular
	h = append(h, strField(linknameSize, "")...)
	h = append(h, make([]byte, blockPadding(len(h)))...)
	h = append(h, data...)
	h = append(h, make([]byte, blockPadding(len(data)))...)
	return h
}

func TestDecodeTwoFileArchive(t *testing.T) {
	var buf []byte
	buf = append(buf, buildFileRecord("a", 3, []byte("abc"))...)
	buf = append(buf, buildFileRecord("b", 0, nil)...)
	buf = append(buf, make([]byte, 2*blockSize)...) // terminator

	v, err := DecodeBytes(buf, Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	files, ok := v.Obj().Get("files")
	if !ok {
		t.Fatal("missing files field")
	}
	arr := files.Arr()
	if len(arr.Elems) != 2 {
		t.Fatalf("expected 2 files, got %d", len(arr.Elems))
	}

	f0 := arr.Elems[0].Value.Obj()
	nameVal, _ := f0.Get("name")
	nc, _ := nameVal.Raw()
	if nc.Len() != nameSize {
		t.Fatalf("expected name span of %d bytes, got %d", nameSize, nc.Len())
	}
	if string(nc.Bytes()[:1]) != "a" {
		t.Fatalf("expected file 0 name 'a', got %q", nc.Bytes()[:1])
	}

	dataVal, _ := f0.Get("data")
	dc, _ := dataVal.Raw()
	if dc.Len() != 3 {
		t.Fatalf("expected data span of 3 bytes, got %d", dc.Len())
	}

	f1 := arr.Elems[1].Value.Obj()
	padVal, ok := f1.Get("data_padding")
	if !ok {
		t.Fatal("expected data_padding field on zero-size file")
	}
	pc, _ := padVal.Raw()
	if pc.Len() != 0 {
		t.Fatalf("zero-size file should need no data padding, got %d", pc.Len())
	}
}

func TestDecodeNonOctalSizeField(t *testing.T) {
	var h []byte
	h = append(h, strField(nameSize, "bad")...)
	h = append(h, octalField(modeSize, 0o644)...)
	h = append(h, octalField(uidSize, 0)...)
	h = append(h, octalField(gidSize, 0)...)
	bad := make([]byte, sizeSize)
	copy(bad, "99999999999") // '9' is not a valid octal digit
	h = append(h, bad...)
	h = append(h, octalField(mtimeSize, 0)...)
	h = append(h, octalField(chksumSize, 0)...)
	h = append(h, '0')
	h = append(h, strField(linknameSize, "")...)
	h = append(h, make([]byte, blockPadding(len(h)))...)

	_, err := DecodeBytes(h, Opts{})
	if err == nil {
		t.Fatal("expected octal parse failure")
	}
	if err.Expect.Kind != decode.ExpectOctalDigits {
		t.Fatalf("expected ExpectOctalDigits, got %+v", err.Expect)
	}
	if len(err.Path) < 1 || err.Path[0].Field != "size" {
		t.Fatalf("expected innermost breadcrumb 'size', got %+v", err.Path)
	}
}

func TestDecodeStopsAtEndMarker(t *testing.T) {
	buf := make([]byte, 2*blockSize)
	v, err := DecodeBytes(buf, Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	files, _ := v.Obj().Get("files")
	if len(files.Arr().Elems) != 0 {
		t.Fatalf("expected no files before a leading end marker, got %d", len(files.Arr().Elems))
	}
}

func TestTypeflagKindDerivation(t *testing.T) {
	buf := buildFileRecord("a", 0, nil)
	v, err := DecodeBytes(buf, Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	files, _ := v.Obj().Get("files")
	f0 := files.Arr().Elems[0].Value.Obj()
	kind, ok := f0.Get("kind")
	if !ok {
		t.Fatal("expected derived kind field")
	}
	kc, _ := kind.Eval().Raw()
	if string(kc.Bytes()) != "regular" {
		t.Fatalf("expected kind regular, got %q", kc.Bytes())
	}
}
