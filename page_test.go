package whery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intDoubleIntSchema() []FieldManipulator {
	return []FieldManipulator{IntManipulator, DoubleManipulator, IntManipulator}
}

func newIntDoubleIntTuple(t *testing.T, layout *Layout, i int32, d float64, j int32) *FreshTuple {
	t.Helper()
	tup := NewFreshTuple(layout)
	require.NoError(t, tup.FieldAt(0).SetInt(i))
	require.NoError(t, tup.FieldAt(1).SetDouble(d))
	require.NoError(t, tup.FieldAt(2).SetInt(j))
	return tup
}

func TestNewSortedPageRejectsOversizedBuffer(t *testing.T) {
	_, err := NewSortedPageFromSchema([]FieldManipulator{IntManipulator}, MaxPageBufferSize+1)
	require.Error(t, err)
}

func TestNewSortedPageRejectsZeroBuffer(t *testing.T) {
	_, err := NewSortedPageFromSchema([]FieldManipulator{IntManipulator}, 0)
	require.Error(t, err)
}

// TestSortedPageS2 is spec §8 scenario S2.
func TestSortedPageS2(t *testing.T) {
	page, err := NewSortedPageFromSchema(intDoubleIntSchema(), 1024)
	require.NoError(t, err)
	layout := page.Layout()

	_, err = page.AddTuple(newIntDoubleIntTuple(t, layout, 23, 9.0, 84))
	require.NoError(t, err)
	_, err = page.AddTuple(newIntDoubleIntTuple(t, layout, 7, 8.0, 51))
	require.NoError(t, err)
	_, err = page.AddTuple(newIntDoubleIntTuple(t, layout, 17, 10.0, 51))
	require.NoError(t, err)

	require.Equal(t, 3, page.TupleCount())
	got := page.Tuples()
	require.Len(t, got, 3)
	requireIntTupleEqual(t, got[0], 7, 8.0, 51)
	requireIntTupleEqual(t, got[1], 17, 10.0, 51)
	requireIntTupleEqual(t, got[2], 23, 9.0, 84)

	// Delete the middle element.
	require.True(t, page.DeleteTuple(got[1]))
	require.Equal(t, 2, page.TupleCount())
	got = page.Tuples()
	requireIntTupleEqual(t, got[0], 7, 8.0, 51)
	requireIntTupleEqual(t, got[1], 23, 9.0, 84)

	// Insert an all-zero tuple; tuple_count becomes 3, and since a free
	// slot is available from the delete above, the free list drains back
	// to empty after one insert.
	_, err = page.AddTuple(NewFreshTuple(layout))
	require.NoError(t, err)
	require.Equal(t, 3, page.TupleCount())
	require.Empty(t, page.freeList)
}

func requireIntTupleEqual(t *testing.T, tup Tuple, i int32, d float64, j int32) {
	t.Helper()
	require.Equal(t, i, tup.FieldAt(0).GetInt())
	require.Equal(t, d, tup.FieldAt(1).GetDouble())
	require.Equal(t, j, tup.FieldAt(2).GetInt())
}

func TestSortedPageAddTupleFullFails(t *testing.T) {
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	// Buffer holds exactly 2 tuples.
	page, err := NewSortedPage(layout, int(layout.Size())*2)
	require.NoError(t, err)

	for i := int32(0); i < 2; i++ {
		tup := NewFreshTuple(layout)
		require.NoError(t, tup.FieldAt(0).SetInt(i))
		_, err := page.AddTuple(tup)
		require.NoError(t, err)
	}

	overflow := NewFreshTuple(layout)
	require.NoError(t, overflow.FieldAt(0).SetInt(99))
	_, err = page.AddTuple(overflow)
	require.ErrorIs(t, err, ErrPageFull)
}

func TestSortedPageDeleteTupleNoopIfAbsent(t *testing.T) {
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	page, err := NewSortedPage(layout, 1024)
	require.NoError(t, err)

	absent := NewFreshTuple(layout)
	require.NoError(t, absent.FieldAt(0).SetInt(1))
	require.False(t, page.DeleteTuple(absent))
}

func TestSortedPageClearResetsCountsNotBufferSize(t *testing.T) {
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	page, err := NewSortedPage(layout, 1024)
	require.NoError(t, err)

	for i := int32(0); i < 3; i++ {
		tup := NewFreshTuple(layout)
		require.NoError(t, tup.FieldAt(0).SetInt(i))
		_, err := page.AddTuple(tup)
		require.NoError(t, err)
	}
	bufSize := page.BufferSize()
	page.Clear()
	require.Equal(t, 0, page.TupleCount())
	require.Equal(t, bufSize, page.BufferSize())
}

func TestSortedPageIterationIsPrefixMonotonic(t *testing.T) {
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	page, err := NewSortedPage(layout, 4096)
	require.NoError(t, err)

	for _, v := range []int32{5, 1, 9, 3, 7} {
		tup := NewFreshTuple(layout)
		require.NoError(t, tup.FieldAt(0).SetInt(v))
		_, err := page.AddTuple(tup)
		require.NoError(t, err)
	}

	tuples := page.Tuples()
	for i := 1; i < len(tuples); i++ {
		require.LessOrEqual(t, ComparePrefix(tuples[i-1], tuples[i]), 0)
	}
}

func TestSortedPageMaxAndEmptyTupleCount(t *testing.T) {
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	page, err := NewSortedPage(layout, int(layout.Size())*10)
	require.NoError(t, err)

	require.Equal(t, 10, page.MaxTupleCount())
	require.Equal(t, 10, page.EmptyTupleCount())
	require.Equal(t, float64(0), page.PercentageFull())

	for i := int32(0); i < 4; i++ {
		tup := NewFreshTuple(layout)
		require.NoError(t, tup.FieldAt(0).SetInt(i))
		_, err := page.AddTuple(tup)
		require.NoError(t, err)
	}
	require.Equal(t, 6, page.EmptyTupleCount())
	require.Equal(t, float64(40), page.PercentageFull())
}

// buildGridPage builds the 125-tuple (i,j,k in 0..4) fixture shared by
// spec §8 scenarios S3 and S4.
func buildGridPage(t *testing.T) (*SortedPage, *Layout) {
	t.Helper()
	layout, err := NewLayout(threeIntSchema())
	require.NoError(t, err)
	// 125 tuples of 16 bytes each (12 bytes of ints, rounded up to the
	// 8-byte boundary) comfortably fit in 4096 bytes.
	page, err := NewSortedPage(layout, 4096)
	require.NoError(t, err)

	for i := int32(0); i < 5; i++ {
		for j := int32(0); j < 5; j++ {
			for k := int32(0); k < 5; k++ {
				tup := NewFreshTuple(layout)
				require.NoError(t, tup.FieldAt(0).SetInt(i))
				require.NoError(t, tup.FieldAt(1).SetInt(j))
				require.NoError(t, tup.FieldAt(2).SetInt(k))
				_, err := page.AddTuple(tup)
				require.NoError(t, err)
			}
		}
	}
	require.Equal(t, 125, page.TupleCount())
	return page, layout
}

func newRangeKeyOn(t *testing.T, schema []FieldManipulator, indices []int) *RangeKey {
	t.Helper()
	rk, err := NewRangeKey(schema, indices)
	require.NoError(t, err)
	return rk
}

func setTwoIntValue(t *testing.T, vk *ValueKey, a, b int32) {
	t.Helper()
	require.NoError(t, vk.FieldAt(0).SetInt(a))
	require.NoError(t, vk.FieldAt(1).SetInt(b))
}

// TestSortedPageS3 is spec §8 scenario S3: a single range key over columns
// (0,1), low=(2,4) and high=(3,0), is mutated through each endpoint-kind
// combination in turn (mirroring the order the kinds are actually flipped
// in, since the low kind set for one sub-case carries into the next).
func TestSortedPageS3(t *testing.T) {
	page, _ := buildGridPage(t)
	schema := threeIntSchema()

	rangeTuples := func(rk *RangeKey) []*BackedTuple {
		lo, hi := page.EqualRangeRange(rk)
		return page.Tuples()[lo:hi]
	}

	rk := newRangeKeyOn(t, schema, []int{0, 1})
	setTwoIntValue(t, rk.LowValue(), 2, 4)
	setTwoIntValue(t, rk.HighValue(), 3, 0)

	// closed/closed.
	got := rangeTuples(rk)
	require.Len(t, got, 10)
	requireIntTupleEqual(t, got[0], 2, 4, 0)
	requireIntTupleEqual(t, got[9], 3, 0, 4)

	// closed/open.
	rk.SetHighKind(Open)
	got = rangeTuples(rk)
	require.Len(t, got, 5)
	requireIntTupleEqual(t, got[0], 2, 4, 0)
	requireIntTupleEqual(t, got[4], 2, 4, 4)

	// open/open.
	rk.SetLowKind(Open)
	require.Empty(t, rangeTuples(rk))

	// open/closed.
	rk.SetHighKind(Closed)
	got = rangeTuples(rk)
	require.Len(t, got, 5)
	requireIntTupleEqual(t, got[0], 3, 0, 0)
	requireIntTupleEqual(t, got[4], 3, 0, 4)

	// half-bounded: clear the high endpoint; low is still open from above,
	// so (2,4,*) stays excluded and the range starts at (3,0,0).
	rk.ClearHigh()
	got = rangeTuples(rk)
	require.Len(t, got, 50)
	requireIntTupleEqual(t, got[0], 3, 0, 0)
	requireIntTupleEqual(t, got[49], 4, 4, 4)

	// unbounded: clear the low endpoint too -> the full page.
	rk.ClearLow()
	got = rangeTuples(rk)
	require.Len(t, got, 125)
	requireIntTupleEqual(t, got[0], 0, 0, 0)
	requireIntTupleEqual(t, got[124], 4, 4, 4)
}

// TestSortedPageS4 is spec §8 scenario S4.
func TestSortedPageS4(t *testing.T) {
	page, schema := buildGridPageWithSchema(t)

	countEqual := func(vk *ValueKey) int {
		lo, hi := page.EqualRangeValue(vk)
		return hi - lo
	}

	vk1, err := NewValueKey(schema, []int{0})
	require.NoError(t, err)
	require.NoError(t, vk1.FieldAt(0).SetInt(2))
	require.Equal(t, 25, countEqual(vk1))

	vk2, err := NewValueKey(schema, []int{0, 1})
	require.NoError(t, err)
	setTwoIntValue(t, vk2, 2, 3)
	require.Equal(t, 5, countEqual(vk2))

	vk3, err := NewValueKey(schema, []int{0, 1, 2})
	require.NoError(t, err)
	require.NoError(t, vk3.FieldAt(0).SetInt(2))
	require.NoError(t, vk3.FieldAt(1).SetInt(3))
	require.NoError(t, vk3.FieldAt(2).SetInt(1))
	require.Equal(t, 1, countEqual(vk3))
}

func buildGridPageWithSchema(t *testing.T) (*SortedPage, []FieldManipulator) {
	t.Helper()
	page, _ := buildGridPage(t)
	return page, threeIntSchema()
}

func TestSortedPageFindReturnsFalseWhenAbsent(t *testing.T) {
	page, layout := newIntPage(t, 1024)
	for _, v := range []int32{1, 3, 5} {
		tup := NewFreshTuple(layout)
		require.NoError(t, tup.FieldAt(0).SetInt(v))
		_, err := page.AddTuple(tup)
		require.NoError(t, err)
	}

	vk, err := NewValueKey([]FieldManipulator{IntManipulator}, []int{0})
	require.NoError(t, err)
	require.NoError(t, vk.FieldAt(0).SetInt(4))

	_, ok := page.Find(vk)
	require.False(t, ok)

	require.NoError(t, vk.FieldAt(0).SetInt(3))
	pos, ok := page.Find(vk)
	require.True(t, ok)
	require.Equal(t, int32(3), page.At(pos).FieldAt(0).GetInt())
}

func newIntPage(t *testing.T, bufSize int) (*SortedPage, *Layout) {
	t.Helper()
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	require.NoError(t, err)
	page, err := NewSortedPage(layout, bufSize)
	require.NoError(t, err)
	return page, layout
}

func BenchmarkSortedPageAddTuple(b *testing.B) {
	layout, err := NewLayout(intDoubleIntSchema())
	if err != nil {
		b.Fatal(err)
	}
	maxCount := 4096
	page, err := NewSortedPage(layout, int(layout.Size())*maxCount)
	if err != nil {
		b.Fatal(err)
	}

	tup := NewFreshTuple(layout)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if i > 0 && i%maxCount == 0 {
			page.Clear()
		}
		if err := tup.FieldAt(0).SetInt(int32(i)); err != nil {
			b.Fatal(err)
		}
		if _, err := page.AddTuple(tup); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSortedPageDeleteTuple(b *testing.B) {
	layout, err := NewLayout([]FieldManipulator{IntManipulator})
	if err != nil {
		b.Fatal(err)
	}
	maxCount := b.N + 1
	page, err := NewSortedPage(layout, int(layout.Size())*maxCount)
	if err != nil {
		b.Fatal(err)
	}

	stored := make([]*BackedTuple, 0, b.N)
	for i := 0; i < b.N; i++ {
		tup := NewFreshTuple(layout)
		if err := tup.FieldAt(0).SetInt(int32(i)); err != nil {
			b.Fatal(err)
		}
		s, err := page.AddTuple(tup)
		if err != nil {
			b.Fatal(err)
		}
		stored = append(stored, s)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		page.DeleteTuple(stored[i])
	}
}
