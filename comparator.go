package whery

import "fmt"

// SortDirection controls whether a column contributes ascending or
// descending order to a MultiColumnComparator.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// sortColumn pairs a field index with its sort direction.
type sortColumn struct {
	index     int
	direction SortDirection
}

// MultiColumnComparator orders tuples by a configured, non-empty list of
// (field index, direction) pairs, comparing field by field until the
// first inequality.
type MultiColumnComparator struct {
	columns []sortColumn
}

// NewMultiColumnComparator builds a comparator from a non-empty list of
// (field index, direction) pairs. Returns ErrEmptySchema if empty.
func NewMultiColumnComparator(columns []struct {
	Index     int
	Direction SortDirection
}) (*MultiColumnComparator, error) {
	if len(columns) == 0 {
		return nil, ErrEmptySchema
	}
	cols := make([]sortColumn, len(columns))
	for i, c := range columns {
		cols[i] = sortColumn{index: c.Index, direction: c.Direction}
	}
	return &MultiColumnComparator{columns: cols}, nil
}

// NewDefaultComparator builds a MultiColumnComparator over the first n
// columns, all ascending, mirroring TupleComparator::make_default.
func NewDefaultComparator(n int) (*MultiColumnComparator, error) {
	if n == 0 {
		return nil, ErrEmptySchema
	}
	cols := make([]sortColumn, n)
	for i := 0; i < n; i++ {
		cols[i] = sortColumn{index: i, direction: Ascending}
	}
	return &MultiColumnComparator{columns: cols}, nil
}

// Compare returns -1, 0 or 1 according to the configured column order.
// Requires lhs and rhs to have equal arity; returns ErrArityMismatch
// otherwise. The result is returned alongside the error so callers that
// expect a clean comparison can check err first.
func (c *MultiColumnComparator) Compare(lhs, rhs Tuple) (int, error) {
	if lhs.Arity() != rhs.Arity() {
		return 0, fmt.Errorf("multi-column compare: %w", ErrArityMismatch)
	}

	for _, col := range c.columns {
		switch lhs.FieldAt(col.index).CompareTo(rhs.FieldAt(col.index)) {
		case -1:
			if col.direction == Ascending {
				return -1, nil
			}
			return 1, nil
		case 1:
			if col.direction == Descending {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

// Less reports whether lhs sorts strictly before rhs. Panics on arity
// mismatch; use Compare directly when arities may legitimately differ.
func (c *MultiColumnComparator) Less(lhs, rhs Tuple) bool {
	cmp, err := c.Compare(lhs, rhs)
	if err != nil {
		panic(err)
	}
	return cmp == -1
}

// ComparePrefix compares two tuples of possibly different arity by
// walking their shared prefix field-by-field in declaration order,
// returning on the first inequality. If every shared-prefix field is
// equal, the tuples compare equal regardless of arity: (7,8) = (7,8,51).
// This is what lets a shorter value/range key match every longer stored
// tuple sharing its prefix during a bound search.
func ComparePrefix(lhs, rhs Tuple) int {
	n := lhs.Arity()
	if rhs.Arity() < n {
		n = rhs.Arity()
	}

	for i := 0; i < n; i++ {
		switch lhs.FieldAt(i).CompareTo(rhs.FieldAt(i)) {
		case -1:
			return -1
		case 1:
			return 1
		}
	}

	return 0
}

// LessPrefix reports whether lhs sorts strictly before rhs under prefix
// comparison.
func LessPrefix(lhs, rhs Tuple) bool {
	return ComparePrefix(lhs, rhs) == -1
}
