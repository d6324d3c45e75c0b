package decode

// AddField inserts a placeholder child named field with Meta m, then runs
// build to populate it in place. On success the child's final Meta and
// Value are whatever build left them as. On failure the child remains in
// the tree with its current Meta and whatever Value build had written so
// far (the zero Raw value if it wrote none); its Meta gains Err, and the
// error is re-raised with field pushed onto its path.
//
// This record-and-rethrow behavior is load-bearing: the returned tree keeps
// partially-decoded structure even when decoding fails mid-way.
func (o *Obj) AddField(field string, m Meta, build func(*Meta, *Value) *Error) *Error {
	o.Fields = append(o.Fields, ObjField{Name: field, Meta: m})
	f := &o.Fields[len(o.Fields)-1]
	if err := build(&f.Meta, &f.Value); err != nil {
		f.Meta.Err = err
		return err.WithPath(FieldElem(field))
	}
	return nil
}

// AddElement is AddField's Arr counterpart: identical record-and-rethrow
// semantics, breadcrumbed with the element's index instead of a field name.
func (a *Arr) AddElement(m Meta, build func(*Meta, *Value) *Error) *Error {
	i := len(a.Elems)
	a.Elems = append(a.Elems, ArrElem{Meta: m})
	e := &a.Elems[i]
	if err := build(&e.Meta, &e.Value); err != nil {
		e.Meta.Err = err
		return err.WithPath(IndexElem(i))
	}
	return nil
}

// AddPrimitive attaches a child produced by a self-contained primitive
// decoder that already returned its own (Meta, Value, T). Unlike AddField,
// nothing is pushed into the tree on failure: a primitive that failed to
// decode produced no bytes to represent in the first place.
func AddPrimitive[T any](o *Obj, field string, m Meta, v Value, out T, err *Error) (T, *Error) {
	if err != nil {
		return out, err.WithPath(FieldElem(field))
	}
	o.Fields = append(o.Fields, ObjField{Name: field, Meta: m, Value: v})
	return out, nil
}

// Consume runs f(c), and on return (success or failure) sets *m's byte span
// to exactly the range that f advanced c past. This is how composite
// children acquire a precise source span without the caller measuring
// before/after by hand.
func Consume[T any](c *Cursor, m *Meta, f func(*Cursor) (T, *Error)) (T, *Error) {
	before := *c
	val, err := f(c)
	*m = MetaFrom(consumed(before, *c))
	return val, err
}

// ConsumeErr is Consume for steps that produce no value of their own
// (the Go equivalent of the spec's consume returning only Result<()>).
func ConsumeErr(c *Cursor, m *Meta, f func(*Cursor) *Error) *Error {
	_, err := Consume(c, m, func(c *Cursor) (struct{}, *Error) {
		return struct{}{}, f(c)
	})
	return err
}
