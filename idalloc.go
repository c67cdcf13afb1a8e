package whery

import (
	"fmt"
	"sort"
)

// IDAllocator allocates small, dense, non-negative integer ids with reuse.
// See spec §4.7.
type IDAllocator struct {
	used    map[int]struct{}
	usedMax int   // -1 when used is empty
	free    []int // sorted ascending
}

// NewIDAllocator returns an empty allocator.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{used: make(map[int]struct{}), usedMax: -1}
}

// Allocate returns the smallest freed id if one is available, or the next
// dense id (len(used)) otherwise, and marks the returned id used.
func (a *IDAllocator) Allocate() int {
	var id int
	if len(a.free) > 0 {
		id = a.free[0]
		a.free = a.free[1:]
	} else {
		id = len(a.used)
	}
	a.used[id] = struct{}{}
	if id > a.usedMax {
		a.usedMax = id
	}
	return id
}

// Deallocate marks id no longer used. Returns ErrUnknownID if id is not
// currently allocated.
//
// If id is the current maximum of the used set, it is dropped entirely,
// and any freed ids greater than the new maximum are trimmed away (they
// could never be reissued above the new top, since Allocate falls back
// to len(used) once the free list is exhausted). Otherwise id moves from
// the used set into the free set for reuse by a future Allocate.
func (a *IDAllocator) Deallocate(id int) error {
	if _, ok := a.used[id]; !ok {
		return fmt.Errorf("deallocate id %d: %w", id, ErrUnknownID)
	}
	delete(a.used, id)

	if id == a.usedMax {
		newMax := -1
		for u := range a.used {
			if u > newMax {
				newMax = u
			}
		}
		a.usedMax = newMax

		trimmed := a.free[:0]
		for _, f := range a.free {
			if f <= newMax {
				trimmed = append(trimmed, f)
			}
		}
		a.free = trimmed
		return nil
	}

	pos := sort.SearchInts(a.free, id)
	a.free = append(a.free, 0)
	copy(a.free[pos+1:], a.free[pos:])
	a.free[pos] = id
	return nil
}

// Reset clears both the used and free sets.
func (a *IDAllocator) Reset() {
	a.used = make(map[int]struct{})
	a.usedMax = -1
	a.free = nil
}

// IsUsed reports whether id is currently allocated.
func (a *IDAllocator) IsUsed(id int) bool {
	_, ok := a.used[id]
	return ok
}

// UsedCount returns the number of currently allocated ids.
func (a *IDAllocator) UsedCount() int { return len(a.used) }
