package whery

import "fmt"

// Tuple is any object exposing an arity and per-field access. It is the
// common read interface shared by backed, fresh and projected tuples.
type Tuple interface {
	// Arity returns the number of fields in the tuple. Must be ≥ 1.
	Arity() int

	// FieldAt returns the i'th field of the tuple. Out-of-range i is
	// undefined behaviour, mirroring the source's no-bounds-check
	// policy in release builds (spec §7).
	FieldAt(i int) Field
}

// BackedTuple borrows a byte buffer and a layout; it may be mutated
// unless marked read-only. Its lifetime must not exceed the buffer it
// points into.
type BackedTuple struct {
	buf      []byte
	layout   *Layout
	readOnly bool
}

// NewBackedTuple returns a BackedTuple over buf using layout. buf must
// be at least layout.Size() bytes.
func NewBackedTuple(buf []byte, layout *Layout) *BackedTuple {
	return &BackedTuple{buf: buf, layout: layout}
}

// Arity returns the tuple's arity.
func (t *BackedTuple) Arity() int { return t.layout.Arity() }

// FieldAt returns field i, honoring the tuple's read-only flag.
func (t *BackedTuple) FieldAt(i int) Field {
	if t.readOnly {
		return t.layout.FieldAtReadOnly(t.buf, i)
	}
	return t.layout.FieldAt(t.buf, i)
}

// Buffer returns the tuple's backing buffer.
func (t *BackedTuple) Buffer() []byte { return t.buf }

// Layout returns the tuple's layout.
func (t *BackedTuple) Layout() *Layout { return t.layout }

// ReadOnly reports whether the tuple rejects writes.
func (t *BackedTuple) ReadOnly() bool { return t.readOnly }

// MakeReadOnly marks the tuple read-only; subsequent writes through its
// fields fail with ErrWriteToReadOnly. Used once a tuple's bytes have
// been copied into a sorted page, so the page's ordering invariant is
// never violated by an in-place mutation (spec §4.6).
func (t *BackedTuple) MakeReadOnly() { t.readOnly = true }

// CopyFrom copies every field of source into t via per-field SetFrom.
// Requires source and t to have equal arity; requires t not be
// read-only.
func (t *BackedTuple) CopyFrom(source Tuple) error {
	if source.Arity() != t.Arity() {
		return fmt.Errorf("copy_from: %w (source %d, dest %d)", ErrArityMismatch, source.Arity(), t.Arity())
	}
	if t.readOnly {
		return fmt.Errorf("copy_from: %w", ErrWriteToReadOnly)
	}
	for i := 0; i < t.Arity(); i++ {
		if err := t.FieldAt(i).SetFrom(source.FieldAt(i)); err != nil {
			return err
		}
	}
	return nil
}

// FreshTuple is an owning tuple: it carries its own zero-initialised
// buffer sized by its layout, and is value-copyable via Clone.
type FreshTuple struct {
	BackedTuple
}

// NewFreshTuple allocates a zero-initialised buffer sized by layout and
// returns an owning tuple over it.
func NewFreshTuple(layout *Layout) *FreshTuple {
	return &FreshTuple{BackedTuple{buf: make([]byte, layout.Size()), layout: layout}}
}

// Clone deep-copies the tuple's buffer and returns a new, independent
// FreshTuple with the same contents.
func (t *FreshTuple) Clone() *FreshTuple {
	buf := make([]byte, len(t.buf))
	copy(buf, t.buf)
	return &FreshTuple{BackedTuple{buf: buf, layout: t.layout}}
}

// ProjectedTuple is a read-only virtual view over another tuple: each
// field(i) returns source.FieldAt(indices[i]); it holds no storage of
// its own.
type ProjectedTuple struct {
	source  Tuple
	indices []int
}

// NewProjectedTuple builds a projection of source selecting the fields
// named by indices, in order (indices may repeat or reorder fields).
// Returns ErrEmptySchema if indices is empty; indices must each be <
// source.Arity() (undefined behaviour otherwise, mirroring the source's
// assert-only bounds checking).
func NewProjectedTuple(source Tuple, indices []int) (*ProjectedTuple, error) {
	if len(indices) == 0 {
		return nil, ErrEmptySchema
	}
	idx := make([]int, len(indices))
	copy(idx, indices)
	return &ProjectedTuple{source: source, indices: idx}, nil
}

// Arity returns the number of projected fields.
func (t *ProjectedTuple) Arity() int { return len(t.indices) }

// FieldAt returns the source tuple's field named by indices[i], as a
// read-only field.
func (t *ProjectedTuple) FieldAt(i int) Field {
	f := t.source.FieldAt(t.indices[i])
	f.readOnly = true
	return f
}
