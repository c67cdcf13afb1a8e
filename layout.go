package whery

import "fmt"

// Layout is the fixed field layout derived from an ordered, non-empty
// schema of field manipulators: arity, per-field byte offsets, and a
// total size rounded up to the maximum-alignment boundary.
type Layout struct {
	manips  []FieldManipulator
	offsets []uint32
	size    uint32
}

// NewLayout builds a Layout from schema, an ordered non-empty list of
// field manipulators. Returns ErrEmptySchema if schema is empty.
func NewLayout(schema []FieldManipulator) (*Layout, error) {
	if len(schema) == 0 {
		return nil, ErrEmptySchema
	}

	tracker := &alignmentTracker{}
	offsets := make([]uint32, len(schema))
	for i, m := range schema {
		tracker.advanceToBoundary(m.Alignment())
		offsets[i] = tracker.offset
		tracker.advance(m.Size())
	}
	tracker.advanceToBoundary(tracker.maxAlignment())

	manips := make([]FieldManipulator, len(schema))
	copy(manips, schema)

	return &Layout{manips: manips, offsets: offsets, size: tracker.offset}, nil
}

// Arity returns the number of fields in the layout.
func (l *Layout) Arity() int { return len(l.manips) }

// Size returns the total buffer size, in bytes, required by one tuple
// of this layout.
func (l *Layout) Size() uint32 { return l.size }

// Offset returns the byte offset of field i within a buffer laid out
// according to this layout.
func (l *Layout) Offset(i int) uint32 { return l.offsets[i] }

// Manipulator returns the field manipulator responsible for field i.
func (l *Layout) Manipulator(i int) FieldManipulator { return l.manips[i] }

// Manipulators returns a copy of the layout's full ordered schema.
func (l *Layout) Manipulators() []FieldManipulator {
	out := make([]FieldManipulator, len(l.manips))
	copy(out, l.manips)
	return out
}

// FieldAt returns a writable Field for field i of a tuple stored in buf.
func (l *Layout) FieldAt(buf []byte, i int) Field {
	return Field{buf: buf, offset: int(l.offsets[i]), manip: l.manips[i]}
}

// FieldAtReadOnly returns a read-only Field for field i of a tuple
// stored in buf.
func (l *Layout) FieldAtReadOnly(buf []byte, i int) Field {
	return Field{buf: buf, offset: int(l.offsets[i]), manip: l.manips[i], readOnly: true}
}

// checkArity returns ErrArityMismatch if n doesn't match the layout's
// arity, wrapped with a message naming op.
func (l *Layout) checkArity(op string, n int) error {
	if n != l.Arity() {
		return fmt.Errorf("%s: %w (have %d, want %d)", op, ErrArityMismatch, n, l.Arity())
	}
	return nil
}
