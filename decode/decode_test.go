package decode

import (
	"testing"
)

func TestCursorTakeNoDuplication(t *testing.T) {
	c := NewCursor([]byte("hello world"))
	orig := c
	first, err := c.Take(5)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if string(first.Bytes()) != "hello" {
		t.Fatalf("got %q", first.Bytes())
	}
	if c.Len() != orig.Len()-5 {
		t.Fatalf("cursor not advanced: %d vs %d", c.Len(), orig.Len())
	}
	if string(first.Bytes())+string(c.Bytes()) != string(orig.Bytes()) {
		t.Fatalf("concatenation mismatch")
	}
}

func TestCursorTakeTruncation(t *testing.T) {
	c := NewCursor([]byte("hi"))
	_, err := c.Take(5)
	if err == nil {
		t.Fatal("expected truncation error")
	}
	if err.Expect.Kind != ExpectBytes || err.Expect.N != 5 {
		t.Fatalf("unexpected expectation: %+v", err.Expect)
	}
	if c.Len() != 2 {
		t.Fatalf("cursor mutated on failure: len=%d", c.Len())
	}
}

func TestCursorSliceBounds(t *testing.T) {
	c := NewCursor([]byte("0123456789"))
	if _, err := c.Slice(2, 5); err != nil {
		t.Fatalf("in-bounds slice failed: %v", err)
	}
	if _, err := c.Slice(2, 11); err == nil {
		t.Fatal("expected out-of-bounds slice to fail")
	}
	empty, err := c.Slice(3, 3)
	if err != nil || empty.Len() != 0 {
		t.Fatalf("empty half-open range should be legal, got %v %v", empty, err)
	}
}

func TestCursorStartsWith(t *testing.T) {
	c := NewCursor([]byte("PK\x03\x04rest"))
	if !c.StartsWith([]byte("PK\x03\x04")) {
		t.Fatal("expected prefix match")
	}
	if c.StartsWith([]byte("PK\x05\x06")) {
		t.Fatal("unexpected prefix match")
	}
	if c.StartsWith([]byte("way too long to match")) {
		t.Fatal("overlong literal should not match")
	}
}

func TestU16LEExpectation(t *testing.T) {
	c := NewCursor([]byte{1})
	_, _, _, err := U16LE(&c)
	if err == nil || err.Expect.Kind != ExpectInt {
		t.Fatalf("expected ExpectInt, got %+v", err)
	}
}

func TestPreciseForceRecordsMismatch(t *testing.T) {
	c := NewCursor([]byte("NOPE"))
	_, err := func() (Value, *Error) {
		m, v, e := Precise(&c, []byte("PK\x01\x02"), false)
		_ = m
		return v, e
	}()
	if err == nil {
		t.Fatal("expected mismatch without force")
	}
	if err.Expect.Kind != ExpectLiteral {
		t.Fatalf("unexpected expectation %+v", err.Expect)
	}

	c2 := NewCursor([]byte("NOPE"))
	m, v, err2 := Precise(&c2, []byte("PK\x01\x02"), true)
	if err2 != nil {
		t.Fatalf("force should swallow mismatch: %v", err2)
	}
	if string(m.Bytes.Bytes()) != "NOPE" {
		t.Fatalf("forced precise should record actual bytes, got %q", m.Bytes.Bytes())
	}
	_ = v
}

func TestObjAddFieldRecordsPartialTreeOnFailure(t *testing.T) {
	var o Obj
	c := NewCursor([]byte{0x01})

	err := o.AddField("width", Meta{}, func(m *Meta, v *Value) *Error {
		_, val, u, e := U16LE(&c)
		*v = val
		_, e = AddPrimitive(&o, "unused", Meta{}, Value{}, u, e)
		return e
	})
	if err == nil {
		t.Fatal("expected truncation to propagate")
	}
	if len(err.Path) != 2 || err.Path[0].Field != "unused" || err.Path[1].Field != "width" {
		t.Fatalf("expected breadcrumbs [unused width], got %+v", err.Path)
	}
	if len(o.Fields) != 1 || o.Fields[0].Name != "width" {
		t.Fatalf("expected partial field to remain in tree, got %+v", o.Fields)
	}
	if o.Fields[0].Meta.Err == nil {
		t.Fatal("expected Meta.Err to be set on the failing field")
	}
}

func TestBreadcrumbPathReversal(t *testing.T) {
	// Simulate two levels of nesting failing, the way a real decoder
	// would propagate: innermost breadcrumb pushed first.
	leaf := &Error{Expect: Expectation{Kind: ExpectBytes, N: 4}}
	withInner := leaf.WithPath(FieldElem("inner"))
	withOuter := withInner.WithPath(FieldElem("outer"))

	path := withOuter.FieldPath()
	if len(path) != 2 || path[0].Field != "outer" || path[1].Field != "inner" {
		t.Fatalf("expected [outer inner], got %+v", path)
	}
}

func TestEvalForcesLazyAndIsIdempotent(t *testing.T) {
	calls := 0
	inner := ValueLazy(func() Value {
		calls++
		return ValueU8(42)
	})

	var o Obj
	o.Fields = append(o.Fields, ObjField{Name: "x", Value: inner})
	root := Value{Kind: KindObj, obj: &o}

	once := root.Eval()
	twice := once.Eval()

	if calls != 1 {
		t.Fatalf("expected thunk forced exactly once, got %d", calls)
	}
	if once.Obj().Fields[0].Value.Kind != KindU8 || once.Obj().Fields[0].Value.U8() != 42 {
		t.Fatalf("unexpected evaluated value: %+v", once.Obj().Fields[0].Value)
	}
	if twice.Obj().Fields[0].Value.Kind != KindU8 {
		t.Fatalf("second Eval should still be a plain U8, got %v", twice.Obj().Fields[0].Value.Kind)
	}
}

func TestLazyForcePanicIsContained(t *testing.T) {
	v := ValueLazy(func() Value {
		panic("boom")
	})
	got := v.Eval()
	if got.Kind != KindObj || len(got.Obj().Fields) != 0 {
		t.Fatalf("expected empty obj fallback after panic, got %+v", got)
	}
}

func TestNarrowToInt(t *testing.T) {
	c := NewCursor(nil)
	if _, err := NarrowToInt(c, ^uint64(0)); err == nil {
		t.Fatal("expected narrowing of math.MaxUint64 to fail on any platform")
	}
	if n, err := NarrowToInt(c, 42); err != nil || n != 42 {
		t.Fatalf("expected 42, nil, got %d, %v", n, err)
	}
}
