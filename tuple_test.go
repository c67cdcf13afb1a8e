package whery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intDoubleLayout(t *testing.T) *Layout {
	t.Helper()
	layout, err := NewLayout([]FieldManipulator{IntManipulator, DoubleManipulator})
	require.NoError(t, err)
	return layout
}

func TestFreshTupleArityAndRoundTrip(t *testing.T) {
	layout := intDoubleLayout(t)
	tup := NewFreshTuple(layout)
	require.Equal(t, 2, tup.Arity())

	require.NoError(t, tup.FieldAt(0).SetInt(11))
	require.NoError(t, tup.FieldAt(1).SetDouble(2.5))

	require.Equal(t, int32(11), tup.FieldAt(0).GetInt())
	require.Equal(t, 2.5, tup.FieldAt(1).GetDouble())
}

func TestFreshTupleZeroInitialised(t *testing.T) {
	layout := intDoubleLayout(t)
	tup := NewFreshTuple(layout)
	require.Equal(t, int32(0), tup.FieldAt(0).GetInt())
	require.Equal(t, float64(0), tup.FieldAt(1).GetDouble())
}

func TestFreshTupleCloneIsIndependent(t *testing.T) {
	layout := intDoubleLayout(t)
	tup := NewFreshTuple(layout)
	require.NoError(t, tup.FieldAt(0).SetInt(5))

	clone := tup.Clone()
	require.NoError(t, clone.FieldAt(0).SetInt(99))

	require.Equal(t, int32(5), tup.FieldAt(0).GetInt())
	require.Equal(t, int32(99), clone.FieldAt(0).GetInt())
}

func TestBackedTupleReadOnlyRejectsWrite(t *testing.T) {
	layout := intDoubleLayout(t)
	buf := make([]byte, layout.Size())
	tup := NewBackedTuple(buf, layout)
	tup.MakeReadOnly()

	require.ErrorIs(t, tup.FieldAt(0).SetInt(1), ErrWriteToReadOnly)
}

func TestBackedTupleCopyFromRequiresEqualArity(t *testing.T) {
	dst := NewFreshTuple(intDoubleLayout(t))

	singleLayout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	src := NewFreshTuple(singleLayout)

	err = dst.CopyFrom(src)
	require.ErrorIs(t, err, ErrArityMismatch)
}

func TestBackedTupleCopyFromConverts(t *testing.T) {
	layout := intDoubleLayout(t)
	src := NewFreshTuple(layout)
	require.NoError(t, src.FieldAt(0).SetInt(4))
	require.NoError(t, src.FieldAt(1).SetDouble(9.25))

	dst := NewFreshTuple(layout)
	require.NoError(t, dst.CopyFrom(src))
	require.Equal(t, int32(4), dst.FieldAt(0).GetInt())
	require.Equal(t, 9.25, dst.FieldAt(1).GetDouble())
}

func TestBackedTupleCopyFromIntoReadOnlyFails(t *testing.T) {
	layout := intDoubleLayout(t)
	src := NewFreshTuple(layout)
	dst := NewFreshTuple(layout)
	dst.MakeReadOnly()

	require.ErrorIs(t, dst.CopyFrom(src), ErrWriteToReadOnly)
}

func TestProjectedTupleEmptyIndicesFails(t *testing.T) {
	src := NewFreshTuple(intDoubleLayout(t))
	_, err := NewProjectedTuple(src, nil)
	require.ErrorIs(t, err, ErrEmptySchema)
}

func TestProjectedTupleViewsSourceFields(t *testing.T) {
	layout := intDoubleLayout(t)
	src := NewFreshTuple(layout)
	require.NoError(t, src.FieldAt(0).SetInt(3))
	require.NoError(t, src.FieldAt(1).SetDouble(6.0))

	// Reorder and duplicate: project (field 1, field 0, field 1).
	proj, err := NewProjectedTuple(src, []int{1, 0, 1})
	require.NoError(t, err)
	require.Equal(t, 3, proj.Arity())
	require.Equal(t, 6.0, proj.FieldAt(0).GetDouble())
	require.Equal(t, int32(3), proj.FieldAt(1).GetInt())
	require.Equal(t, 6.0, proj.FieldAt(2).GetDouble())

	// Projection has no storage of its own: mutating the source is visible
	// through the projection.
	require.NoError(t, src.FieldAt(1).SetDouble(8.0))
	require.Equal(t, 8.0, proj.FieldAt(0).GetDouble())
}
