package decode

import "sync"

// Kind tags the variant held by a Value. KindRaw is the zero value, so a
// freshly zero-initialized Value already reads as Raw{gap:false} — the same
// default the builder installs as a placeholder before a field is decoded.
type Kind uint8

const (
	KindRaw Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindStr
	KindArr
	KindObj
	KindLazy
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindStr:
		return "str"
	case KindArr:
		return "arr"
	case KindObj:
		return "obj"
	case KindLazy:
		return "lazy"
	default:
		return "raw"
	}
}

// Value is a recursive tagged value: the node type of the annotated tree.
// It is a flat struct rather than an interface so that scalar nodes (the
// overwhelming majority in any decoded archive) cost no extra allocation.
type Value struct {
	Kind Kind

	boolVal bool
	u8Val   uint8
	u16Val  uint16
	u32Val  uint32
	u64Val  uint64

	raw Cursor // backing bytes for Str and Raw
	gap bool   // Raw only: true marks structural padding/alignment

	arr  *Arr
	obj  *Obj
	lazy *lazyCell
}

// Arr is an ordered sequence of (Meta, Value) elements. Order is
// significant.
type Arr struct {
	Elems []ArrElem
}

// ArrElem is one element of an Arr.
type ArrElem struct {
	Meta  Meta
	Value Value
}

// Obj is an ordered sequence of (field-name, Meta, Value) entries. Order is
// the decoding order and is significant for presentation and for
// field-offset reconstruction.
type Obj struct {
	Fields []ObjField
}

// ObjField is one entry of an Obj.
type ObjField struct {
	Name  string
	Meta  Meta
	Value Value
}

// Get returns the value of the named field and whether it was present.
func (o *Obj) Get(name string) (Value, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// lazyCell is a single-evaluation, single-threaded memoization cell: the Go
// realization of the spec's "shared, single-evaluation cell" wrapping a
// nullary thunk. sync.Once makes forcing idempotent and safe to call more
// than once, matching the teacher's own use of sync.Once for exactly this
// shape of deferred one-time work (internal/zip/zip.go's localHeaderReader).
type lazyCell struct {
	once  sync.Once
	thunk func() Value
	val   Value
}

func (l *lazyCell) force() (v Value) {
	l.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				l.val = Value{Kind: KindObj, obj: &Obj{}}
			}
		}()
		l.val = l.thunk()
		l.thunk = nil
	})
	return l.val
}

// Constructors. These build a standalone Value; the builder API (builder.go)
// is what attaches a Value (plus its Meta) into an Obj or Arr.

func ValueBool(b bool) Value    { return Value{Kind: KindBool, boolVal: b} }
func ValueU8(u uint8) Value     { return Value{Kind: KindU8, u8Val: u} }
func ValueU16(u uint16) Value   { return Value{Kind: KindU16, u16Val: u} }
func ValueU32(u uint32) Value   { return Value{Kind: KindU32, u32Val: u} }
func ValueU64(u uint64) Value   { return Value{Kind: KindU64, u64Val: u} }
func ValueStr(c Cursor) Value   { return Value{Kind: KindStr, raw: c} }
func ValueRaw(c Cursor, gap bool) Value {
	return Value{Kind: KindRaw, raw: c, gap: gap}
}

// ValueLazy wraps a thunk producing a Value into a Lazy node. The thunk
// should capture only cheap Cursor clones and plain data, never other tree
// nodes, so that evaluation can never observe a cycle.
func ValueLazy(thunk func() Value) Value {
	return Value{Kind: KindLazy, lazy: &lazyCell{thunk: thunk}}
}

// MakeArr overwrites v in place with a fresh, empty Arr and returns it for
// population. It is the Go equivalent of the spec's Val::make_arr.
func (v *Value) MakeArr() *Arr {
	a := &Arr{}
	*v = Value{Kind: KindArr, arr: a}
	return a
}

// MakeObj overwrites v in place with a fresh, empty Obj and returns it for
// population. It is the Go equivalent of the spec's Val::make_obj.
func (v *Value) MakeObj() *Obj {
	o := &Obj{}
	*v = Value{Kind: KindObj, obj: o}
	return o
}

// Accessors. None of them checks Kind: on a mismatched Kind each returns the
// zero value of its result (nil for Arr and Obj). Callers that reach these
// know the Kind because they just built or dispatched on it.

func (v Value) Bool() bool { return v.boolVal }
func (v Value) U8() uint8  { return v.u8Val }
func (v Value) U16() uint16 { return v.u16Val }
func (v Value) U32() uint32 { return v.u32Val }
func (v Value) U64() uint64 { return v.u64Val }

// Raw returns the backing cursor and gap flag for a Str or Raw value.
func (v Value) Raw() (Cursor, bool) { return v.raw, v.gap }

func (v Value) Arr() *Arr { return v.arr }
func (v Value) Obj() *Obj { return v.obj }

// Eval performs a depth-first force of every Lazy node reachable from v,
// returning a tree with no Lazy variants. It is idempotent and safe to call
// on a partially-decoded tree: a forced thunk's own sub-tree is evaluated
// recursively before Eval returns.
func (v Value) Eval() Value {
	switch v.Kind {
	case KindLazy:
		return v.lazy.force().Eval()
	case KindArr:
		elems := make([]ArrElem, len(v.arr.Elems))
		for i, e := range v.arr.Elems {
			elems[i] = ArrElem{Meta: e.Meta, Value: e.Value.Eval()}
		}
		return Value{Kind: KindArr, arr: &Arr{Elems: elems}}
	case KindObj:
		fields := make([]ObjField, len(v.obj.Fields))
		for i, f := range v.obj.Fields {
			fields[i] = ObjField{Name: f.Name, Meta: f.Meta, Value: f.Value.Eval()}
		}
		return Value{Kind: KindObj, obj: &Obj{Fields: fields}}
	default:
		return v
	}
}

// Meta is the per-node metadata attached to every Value occurrence.
type Meta struct {
	// Bytes is the exact byte span of the input this value was parsed from.
	Bytes Cursor
	// Description is an optional static, human-readable annotation.
	Description string
	// Err is set by a builder when this child's sub-parse failed locally;
	// the enclosing parse may still have succeeded for everything else.
	Err *Error
}

// MetaFrom builds a Meta whose span is exactly c.
func MetaFrom(c Cursor) Meta { return Meta{Bytes: c} }
