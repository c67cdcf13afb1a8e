package whery

// maxScalarAlignment is the alignment boundary big enough for any
// scalar type the engine's field manipulators support. The original
// engine computes this from a union of the platform's widest scalar
// types; this engine supports a fixed, closed set of scalar types
// (int32, float64), so the true maximum alignment any field ever
// requires is 8 bytes. Kept generous at 8 rather than narrowed further
// so that layouts remain a multiple of any future scalar type's
// alignment up to a 64-bit word.
const maxScalarAlignment = 8

// alignmentTracker accumulates an offset while laying out fields in a
// buffer, rounding up to type-specific alignment boundaries as it goes.
type alignmentTracker struct {
	offset uint32
}

// advance moves the tracked offset forward by n bytes.
func (t *alignmentTracker) advance(n uint32) {
	t.offset += n
}

// advanceToBoundary rounds the tracked offset up to the next multiple
// of alignment. A no-op if already on such a boundary.
func (t *alignmentTracker) advanceToBoundary(alignment uint32) {
	if t.offset%alignment != 0 {
		t.offset = (t.offset/alignment + 1) * alignment
	}
}

// maxAlignment returns the alignment boundary large enough for any
// scalar field type this engine supports.
func (t *alignmentTracker) maxAlignment() uint32 {
	return maxScalarAlignment
}
