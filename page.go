package whery

import (
	"sort"

	"github.com/wherydb/whery/internal/utils"
)

// MaxPageBufferSize bounds how large a single sorted page's buffer may be.
const MaxPageBufferSize = utils.MaxPageBufferSize

// pageSlot is one stored (or freed) tuple position inside a page's buffer:
// a byte offset and, while live, the backed tuple view over it.
type pageSlot struct {
	offset int
	tuple  *BackedTuple
}

// SortedPage is a fixed-byte buffer holding a prefix-ordered multiset of
// backed tuples, with a free list recycling the buffer addresses of
// deleted tuples. See spec §4.6.
type SortedPage struct {
	buf      []byte
	layout   *Layout
	slots    []pageSlot // kept sorted by ComparePrefix(slot.tuple, ...)
	freeList []int      // offsets available for reuse, LIFO
}

// NewSortedPageFromSchema builds a page over a fresh layout derived from
// schema, with a buffer of bufferSize bytes.
func NewSortedPageFromSchema(schema []FieldManipulator, bufferSize int) (*SortedPage, error) {
	layout, err := NewLayout(schema)
	if err != nil {
		return nil, err
	}
	return NewSortedPage(layout, bufferSize)
}

// NewSortedPage builds a page storing tuples of layout in a buffer of
// bufferSize bytes.
func NewSortedPage(layout *Layout, bufferSize int) (*SortedPage, error) {
	if err := utils.ValidateBufferSize(uint64(bufferSize), MaxPageBufferSize, "sorted page buffer"); err != nil {
		return nil, utils.WrapError("new sorted page", err)
	}
	buf := utils.GetBuffer(bufferSize)
	for i := range buf {
		buf[i] = 0
	}
	return &SortedPage{buf: buf, layout: layout}, nil
}

// Release returns the page's buffer to the shared pool. The page must not
// be used afterwards. Callers that churn many short-lived pages (bulk
// loads, tests) may call this to avoid per-page allocation; it is not
// required for correctness.
func (p *SortedPage) Release() {
	utils.ReleaseBuffer(p.buf)
	p.buf = nil
}

// Layout returns the page's tuple layout.
func (p *SortedPage) Layout() *Layout { return p.layout }

// FieldManipulators returns the page's tuple schema.
func (p *SortedPage) FieldManipulators() []FieldManipulator { return p.layout.Manipulators() }

// BufferSize returns the fixed size, in bytes, of the page's backing buffer.
func (p *SortedPage) BufferSize() int { return len(p.buf) }

// Buffer returns the page's raw backing buffer, for callers that persist or
// inspect pages byte-for-byte (e.g. a PageCache's Persister). Mutating the
// returned slice corrupts the page's stored tuples; treat it as read-only
// unless you know what you're doing.
func (p *SortedPage) Buffer() []byte { return p.buf }

// TupleCount returns the number of tuples currently stored in the page.
func (p *SortedPage) TupleCount() int { return len(p.slots) }

// MaxTupleCount returns the maximum number of tuples the page's buffer can
// hold at its layout's size.
func (p *SortedPage) MaxTupleCount() int {
	return len(p.buf) / int(p.layout.Size())
}

// EmptyTupleCount returns the number of additional tuples the page can
// still accept before it is full.
func (p *SortedPage) EmptyTupleCount() int {
	return p.MaxTupleCount() - p.TupleCount()
}

// PercentageFull returns the page's occupancy as count*100/max.
func (p *SortedPage) PercentageFull() float64 {
	max := p.MaxTupleCount()
	if max == 0 {
		return 0
	}
	return float64(p.TupleCount()) * 100 / float64(max)
}

// AddTuple copies t's fields into a fresh slot (reusing a freed address if
// one is available), marks the new stored tuple read-only, and inserts it
// into the page's prefix-ordered multiset. Returns ErrPageFull if the page
// is already at MaxTupleCount.
func (p *SortedPage) AddTuple(t Tuple) (*BackedTuple, error) {
	if p.TupleCount() == p.MaxTupleCount() {
		return nil, ErrPageFull
	}

	var off int
	if n := len(p.freeList); n > 0 {
		off = p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
	} else {
		off64, err := utils.SafeMultiply(uint64(p.TupleCount()), uint64(p.layout.Size()))
		if err != nil {
			return nil, utils.WrapError("add tuple", err)
		}
		off = int(off64)
	}

	size := int(p.layout.Size())
	stored := NewBackedTuple(p.buf[off:off+size:off+size], p.layout)
	if err := stored.CopyFrom(t); err != nil {
		return nil, err
	}
	stored.MakeReadOnly()

	pos := sort.Search(len(p.slots), func(i int) bool {
		return ComparePrefix(p.slots[i].tuple, stored) > 0
	})
	p.slots = append(p.slots, pageSlot{})
	copy(p.slots[pos+1:], p.slots[pos:])
	p.slots[pos] = pageSlot{offset: off, tuple: stored}

	return stored, nil
}

// DeleteTuple removes one tuple equivalent to t under prefix comparison,
// reclaiming its buffer address onto the free list. No-op (returns false)
// if no equivalent tuple is present. If duplicates exist, which one is
// removed is unspecified (spec §9).
func (p *SortedPage) DeleteTuple(t Tuple) bool {
	pos := sort.Search(len(p.slots), func(i int) bool {
		return ComparePrefix(p.slots[i].tuple, t) >= 0
	})
	if pos >= len(p.slots) || ComparePrefix(p.slots[pos].tuple, t) != 0 {
		return false
	}
	p.freeList = append(p.freeList, p.slots[pos].offset)
	p.slots = append(p.slots[:pos], p.slots[pos+1:]...)
	return true
}

// Clear empties the page's multiset and free list; the buffer size is
// unchanged.
func (p *SortedPage) Clear() {
	p.slots = nil
	p.freeList = nil
}

// Begin returns the position of the first tuple in prefix order, or End()
// if the page is empty.
func (p *SortedPage) Begin() int { return 0 }

// End returns the sentinel one-past-the-last position.
func (p *SortedPage) End() int { return len(p.slots) }

// RBegin returns the position of the last tuple in prefix order, or
// REnd() if the page is empty.
func (p *SortedPage) RBegin() int { return len(p.slots) - 1 }

// REnd returns the sentinel one-before-the-first position.
func (p *SortedPage) REnd() int { return -1 }

// At returns the backed tuple stored at position i, i in [0, TupleCount()).
func (p *SortedPage) At(i int) *BackedTuple { return p.slots[i].tuple }

// Tuples returns the page's tuples as a snapshot slice in prefix order.
func (p *SortedPage) Tuples() []*BackedTuple {
	out := make([]*BackedTuple, len(p.slots))
	for i, s := range p.slots {
		out[i] = s.tuple
	}
	return out
}

// LowerBoundValue returns the position of the first tuple not less than
// key under prefix comparison.
func (p *SortedPage) LowerBoundValue(key Tuple) int {
	return sort.Search(len(p.slots), func(i int) bool {
		return ComparePrefix(p.slots[i].tuple, key) >= 0
	})
}

// UpperBoundValue returns the position of the first tuple strictly
// greater than key under prefix comparison.
func (p *SortedPage) UpperBoundValue(key Tuple) int {
	return sort.Search(len(p.slots), func(i int) bool {
		return ComparePrefix(p.slots[i].tuple, key) > 0
	})
}

// EqualRangeValue returns [lower, upper) bounding exactly the tuples
// equal to key under prefix comparison.
func (p *SortedPage) EqualRangeValue(key Tuple) (int, int) {
	return p.LowerBoundValue(key), p.UpperBoundValue(key)
}

// Find returns the position of a tuple equal to key under prefix
// comparison, and true, or (End(), false) if none is present.
func (p *SortedPage) Find(key Tuple) (int, bool) {
	pos := p.LowerBoundValue(key)
	if pos < len(p.slots) && ComparePrefix(p.slots[pos].tuple, key) == 0 {
		return pos, true
	}
	return p.End(), false
}

// LowerBoundRange returns the position of the first tuple in range's
// interval: the multiset lower bound on the low endpoint's value, advanced
// past prefix-equal tuples if the low endpoint is open; Begin() if there
// is no low endpoint.
func (p *SortedPage) LowerBoundRange(rk *RangeKey) int {
	if !rk.HasLow() {
		return p.Begin()
	}
	low := rk.LowValue()
	pos := p.LowerBoundValue(low)
	if rk.LowKind() == Open {
		for pos < len(p.slots) && ComparePrefix(p.slots[pos].tuple, low) == 0 {
			pos++
		}
	}
	return pos
}

// UpperBoundRange returns the position one past the last tuple in range's
// interval: the multiset upper bound on the high endpoint's value, walked
// back past prefix-equal tuples if the high endpoint is open; End() if
// there is no high endpoint.
func (p *SortedPage) UpperBoundRange(rk *RangeKey) int {
	if !rk.HasHigh() {
		return p.End()
	}
	high := rk.HighValue()
	pos := p.UpperBoundValue(high)
	if rk.HighKind() == Open {
		for pos > 0 && ComparePrefix(p.slots[pos-1].tuple, high) == 0 {
			pos--
		}
	}
	return pos
}

// EqualRangeRange returns (LowerBoundRange(rk), UpperBoundRange(rk)).
func (p *SortedPage) EqualRangeRange(rk *RangeKey) (int, int) {
	return p.LowerBoundRange(rk), p.UpperBoundRange(rk)
}
