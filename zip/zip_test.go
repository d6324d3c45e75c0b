package zip

import (
	gozip "archive/zip"
	"bytes"
	"encoding/binary"
	"io/fs"
	"testing"

	"github.com/archtrace/archtrace/decode"
)

// ntfsExtra builds a raw 0x000a NTFS extra field carrying one 0x0001
// attribute (three FILETIME values), the nesting decodeNTFSExtra expects.
func ntfsExtra(mtime, atime, ctime uint64) []byte {
	var attr bytes.Buffer
	binary.Write(&attr, binary.LittleEndian, uint16(0x0001))
	binary.Write(&attr, binary.LittleEndian, uint16(24))
	binary.Write(&attr, binary.LittleEndian, mtime)
	binary.Write(&attr, binary.LittleEndian, atime)
	binary.Write(&attr, binary.LittleEndian, ctime)

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(0)) // reserved
	body.Write(attr.Bytes())

	var field bytes.Buffer
	binary.Write(&field, binary.LittleEndian, uint16(0x000a))
	binary.Write(&field, binary.LittleEndian, uint16(body.Len()))
	field.Write(body.Bytes())
	return field.Bytes()
}

func mustGet(t *testing.T, o *decode.Obj, name string) decode.Value {
	t.Helper()
	v, ok := o.Get(name)
	if !ok {
		t.Fatalf("missing field %q", name)
	}
	return v
}

func TestDecodeEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)
	if err := w.Close(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	v, err := DecodeBytes(buf.Bytes(), Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	o := v.Obj()
	if mustGet(t, o, "central_directories").Arr().Elems != nil {
		t.Fatalf("expected no central directory entries")
	}
	if mustGet(t, o, "local_files").Arr().Elems != nil {
		t.Fatalf("expected no local file entries")
	}
}

func TestDecodeStoreAndDeflateMembers(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)

	stored, err := w.CreateHeader(&gozip.FileHeader{Name: "stored.txt", Method: gozip.Store})
	if err != nil {
		t.Fatalf("create stored header: %v", err)
	}
	stored.Write([]byte("hello stored"))

	deflated, err := w.CreateHeader(&gozip.FileHeader{Name: "deflated.txt", Method: gozip.Deflate})
	if err != nil {
		t.Fatalf("create deflated header: %v", err)
	}
	deflated.Write([]byte("hello deflated, repeated repeated repeated repeated"))

	if err := w.Close(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	v, err := DecodeBytes(buf.Bytes(), Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	o := v.Obj()
	lf := mustGet(t, o, "local_files").Arr()
	if len(lf.Elems) != 2 {
		t.Fatalf("expected 2 local files, got %d", len(lf.Elems))
	}

	want := []string{"hello stored", "hello deflated, repeated repeated repeated repeated"}
	for i, elem := range lf.Elems {
		fo := elem.Value.Obj()
		compressed := mustGet(t, fo, "compressed")
		uncompressed := compressed.Eval()
		uo := uncompressed.Obj()
		raw, ok := uo.Get("uncompressed")
		if !ok {
			t.Fatalf("file %d: expected uncompressed child after eval", i)
		}
		c, _ := raw.Raw()
		if string(c.Bytes()) != want[i] {
			t.Fatalf("file %d: expected %q, got %q", i, want[i], c.Bytes())
		}
	}
}

func TestDecodeTruncatedArchive(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)
	f, err := w.CreateHeader(&gozip.FileHeader{Name: "a.txt", Method: gozip.Store})
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	f.Write([]byte("abc"))
	if err := w.Close(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()-10]
	if _, err := DecodeBytes(truncated, Opts{}); err == nil {
		t.Fatal("expected truncated archive to fail decoding")
	}
}

func TestDecodeForceToleratesBadSignature(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)
	f, err := w.CreateHeader(&gozip.FileHeader{Name: "a.txt", Method: gozip.Store})
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	f.Write([]byte("abc"))
	if err := w.Close(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	corrupted := append([]byte(nil), buf.Bytes()...)
	cdrAt, ok := findBackwards(corrupted, sigCentralDir, 65558)
	if !ok {
		t.Fatal("fixture missing central directory record")
	}
	corrupted[cdrAt] = 'X'

	if _, err := DecodeBytes(corrupted, Opts{}); err == nil {
		t.Fatal("expected corrupted signature to fail without Force")
	}
	if _, err := DecodeBytes(corrupted, Opts{Force: true}); err != nil {
		t.Fatalf("expected Force to tolerate bad signature, got %v", err)
	}
}

func TestNTFSExtraFieldAttribute(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)

	fh := &gozip.FileHeader{Name: "dated.txt", Method: gozip.Store}
	fh.Extra = ntfsExtra(132223200000000000, 132223200000000001, 132223200000000002)
	fw, err := w.CreateHeader(fh)
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	fw.Write([]byte("x"))
	if err := w.Close(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	v, err := DecodeBytes(buf.Bytes(), Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cds := mustGet(t, v.Obj(), "central_directories").Arr()
	if len(cds.Elems) != 1 {
		t.Fatalf("expected 1 central directory entry, got %d", len(cds.Elems))
	}
	cdr := cds.Elems[0].Value.Obj()
	extras := mustGet(t, cdr, "extra_fields").Arr()
	if len(extras.Elems) != 1 {
		t.Fatalf("expected 1 extra field, got %d", len(extras.Elems))
	}
	ef := extras.Elems[0].Value.Obj()
	if mustGet(t, ef, "tag").U16() != 0x000a {
		t.Fatalf("expected NTFS tag 0x000a, got %#x", mustGet(t, ef, "tag").U16())
	}
	ntfs := mustGet(t, ef, "data").Eval().Obj()
	attrs := mustGet(t, ntfs, "attribute").Arr()
	if len(attrs.Elems) != 1 {
		t.Fatalf("expected 1 NTFS attribute, got %d", len(attrs.Elems))
	}
	attr := attrs.Elems[0].Value.Obj()
	times := mustGet(t, attr, "data").Eval().Obj()
	if mustGet(t, times, "mtime").U64() != 132223200000000000 {
		t.Fatalf("expected mtime filetime to round-trip, got %d", mustGet(t, times, "mtime").U64())
	}
}

func TestUnixModeDerivation(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)

	fh := &gozip.FileHeader{Name: "link", Method: gozip.Store}
	fh.SetMode(0o755 | fs.ModeSymlink)
	lw, err := w.CreateHeader(fh)
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	lw.Write([]byte("target"))
	if err := w.Close(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	v, err := DecodeBytes(buf.Bytes(), Opts{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cds := mustGet(t, v.Obj(), "central_directories").Arr()
	if len(cds.Elems) != 1 {
		t.Fatalf("expected 1 central directory entry, got %d", len(cds.Elems))
	}
	cdr := cds.Elems[0].Value.Obj()
	unixMode, ok := cdr.Get("unix_mode")
	if !ok {
		t.Fatal("expected unix_mode derived field on a Unix-authored entry")
	}
	um := unixMode.Eval().Obj()
	kind, _ := um.Get("kind")
	kindCursor, _ := kind.Raw()
	if string(kindCursor.Bytes()) != "symlink" {
		t.Fatalf("expected kind symlink, got %q", kindCursor.Bytes())
	}
	perm, _ := um.Get("perm")
	if perm.U16() != 0o755 {
		t.Fatalf("expected perm 0755, got %#o", perm.U16())
	}
}
