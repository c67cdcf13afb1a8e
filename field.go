package whery

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldManipulator is a stateless capability for reading, writing and
// comparing one scalar type at a caller-supplied address inside a byte
// buffer. Manipulators hold no state of their own: a single shared
// instance per scalar type is sufficient, and is exposed as IntManipulator
// and DoubleManipulator below.
type FieldManipulator interface {
	// Size returns the size in bytes of the manipulated type.
	Size() uint32

	// Alignment returns the required alignment boundary, in bytes, for
	// the manipulated type.
	Alignment() uint32

	// GetInt reads the field at buf[offset:] as an int, converting if
	// the manipulator's native type differs.
	GetInt(buf []byte, offset int) int32

	// GetDouble reads the field at buf[offset:] as a float64, converting
	// if the manipulator's native type differs.
	GetDouble(buf []byte, offset int) float64

	// SetInt writes v into the field at buf[offset:], converting to the
	// manipulator's native type.
	SetInt(buf []byte, offset int, v int32)

	// SetDouble writes v into the field at buf[offset:], converting to
	// the manipulator's native type.
	SetDouble(buf []byte, offset int, v float64)

	// CompareTo compares the field at buf[offset:] (as read by this
	// manipulator) against the field at otherBuf[otherOffset:] (as read
	// by otherManip), converting the other side to this manipulator's
	// native type first, then comparing. Returns -1, 0 or 1.
	CompareTo(buf []byte, offset int, otherManip FieldManipulator, otherBuf []byte, otherOffset int) int

	// SetFrom converts the field at srcBuf[srcOffset:] (as read by
	// srcManip) to this manipulator's native type and stores it at
	// buf[offset:].
	SetFrom(buf []byte, offset int, srcManip FieldManipulator, srcBuf []byte, srcOffset int)

	// name identifies the manipulator for error messages and tests; it
	// is not part of the source contract but is cheap and useful.
	name() string
}

// intManipulator manipulates 32-bit signed integer fields.
type intManipulator struct{}

// IntManipulator is the single shared INT field manipulator instance.
var IntManipulator FieldManipulator = intManipulator{}

func (intManipulator) Size() uint32      { return 4 }
func (intManipulator) Alignment() uint32 { return 4 }
func (intManipulator) name() string      { return "int" }

func (intManipulator) GetInt(buf []byte, offset int) int32 {
	return int32(binary.LittleEndian.Uint32(buf[offset : offset+4]))
}

func (m intManipulator) GetDouble(buf []byte, offset int) float64 {
	return float64(m.GetInt(buf, offset))
}

func (intManipulator) SetInt(buf []byte, offset int, v int32) {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(v))
}

func (m intManipulator) SetDouble(buf []byte, offset int, v float64) {
	m.SetInt(buf, offset, int32(v))
}

func (m intManipulator) CompareTo(buf []byte, offset int, otherManip FieldManipulator, otherBuf []byte, otherOffset int) int {
	lhs := m.GetInt(buf, offset)
	rhs := otherManip.GetInt(otherBuf, otherOffset)
	return compareOrdered(lhs, rhs)
}

func (m intManipulator) SetFrom(buf []byte, offset int, srcManip FieldManipulator, srcBuf []byte, srcOffset int) {
	m.SetInt(buf, offset, srcManip.GetInt(srcBuf, srcOffset))
}

// doubleManipulator manipulates IEEE 754 64-bit float fields.
type doubleManipulator struct{}

// DoubleManipulator is the single shared DOUBLE field manipulator
// instance.
var DoubleManipulator FieldManipulator = doubleManipulator{}

func (doubleManipulator) Size() uint32      { return 8 }
func (doubleManipulator) Alignment() uint32 { return 8 }
func (doubleManipulator) name() string      { return "double" }

func (doubleManipulator) GetDouble(buf []byte, offset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
}

func (m doubleManipulator) GetInt(buf []byte, offset int) int32 {
	return int32(m.GetDouble(buf, offset))
}

func (doubleManipulator) SetDouble(buf []byte, offset int, v float64) {
	binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(v))
}

func (m doubleManipulator) SetInt(buf []byte, offset int, v int32) {
	m.SetDouble(buf, offset, float64(v))
}

func (m doubleManipulator) CompareTo(buf []byte, offset int, otherManip FieldManipulator, otherBuf []byte, otherOffset int) int {
	lhs := m.GetDouble(buf, offset)
	rhs := otherManip.GetDouble(otherBuf, otherOffset)
	return compareOrdered(lhs, rhs)
}

func (m doubleManipulator) SetFrom(buf []byte, offset int, srcManip FieldManipulator, srcBuf []byte, srcOffset int) {
	m.SetDouble(buf, offset, srcManip.GetDouble(srcBuf, srcOffset))
}

// compareOrdered compares two ordered values the way compare_with_less
// does in the source: -1 if lhs < rhs, 1 if rhs < lhs, 0 otherwise.
func compareOrdered[T int32 | float64](lhs, rhs T) int {
	switch {
	case lhs < rhs:
		return -1
	case rhs < lhs:
		return 1
	default:
		return 0
	}
}

// Field is a small value type capturing an address inside a tuple's
// buffer, the manipulator responsible for it, and whether it may be
// written.
type Field struct {
	buf      []byte
	offset   int
	manip    FieldManipulator
	readOnly bool
}

// GetInt returns the field's value as an int32.
func (f Field) GetInt() int32 { return f.manip.GetInt(f.buf, f.offset) }

// GetDouble returns the field's value as a float64.
func (f Field) GetDouble() float64 { return f.manip.GetDouble(f.buf, f.offset) }

// SetInt writes v into the field. Returns ErrWriteToReadOnly if the
// field is read-only.
func (f Field) SetInt(v int32) error {
	if f.readOnly {
		return fmt.Errorf("%w: int field", ErrWriteToReadOnly)
	}
	f.manip.SetInt(f.buf, f.offset, v)
	return nil
}

// SetDouble writes v into the field. Returns ErrWriteToReadOnly if the
// field is read-only.
func (f Field) SetDouble(v float64) error {
	if f.readOnly {
		return fmt.Errorf("%w: double field", ErrWriteToReadOnly)
	}
	f.manip.SetDouble(f.buf, f.offset, v)
	return nil
}

// CompareTo compares this field against another field, which may use a
// different manipulator; the other side is converted to this field's
// native type before comparing, per FieldManipulator.CompareTo.
func (f Field) CompareTo(other Field) int {
	return f.manip.CompareTo(f.buf, f.offset, other.manip, other.buf, other.offset)
}

// SetFrom converts src's value to this field's native type and stores
// it. Returns ErrWriteToReadOnly if this field is read-only.
func (f Field) SetFrom(src Field) error {
	if f.readOnly {
		return fmt.Errorf("%w: set_from target", ErrWriteToReadOnly)
	}
	f.manip.SetFrom(f.buf, f.offset, src.manip, src.buf, src.offset)
	return nil
}

// ReadOnly reports whether the field rejects writes.
func (f Field) ReadOnly() bool { return f.readOnly }

// Manipulator returns the field manipulator backing this field.
func (f Field) Manipulator() FieldManipulator { return f.manip }
