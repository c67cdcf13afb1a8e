package whery

import (
	"fmt"
	"log"

	"github.com/wherydb/whery/internal/utils"
)

// Persister saves and loads a page's bytes to/from whatever backing
// store a cache-backed page controller chooses. The cache only calls it
// on flush/retrieve; it never inspects the bytes itself.
type Persister interface {
	Save(buf []byte) error
	Load() ([]byte, error)
}

// pageCacheEntry tracks one cached page's bookkeeping: the page itself,
// its pin count, and (if persistable) the persister backing it.
type pageCacheEntry struct {
	page      *SortedPage
	layout    *Layout
	pinCount  int
	persister Persister
}

// PageCache is a pin/unpin catalogue over a soft byte budget, fronting
// pages that may be lazily loaded or flushed through a Persister. See
// spec §4.10.
//
// Eviction policy is explicitly out of scope (spec §9 open question):
// this type tracks which unpinned, persistable pages are eligible and
// exposes the budget, but does not itself choose or act on a victim.
//
// PageCache does no locking of its own; its methods are not safe for
// concurrent use.
type PageCache struct {
	entries    map[int]*pageCacheEntry
	bySource   map[Persister]int
	ids        *IDAllocator
	budget     int
	bytesInUse int

	// Verbose gates a log.Printf trace of pin/unpin/flush churn; silent
	// by default (spec §10).
	Verbose bool
}

// NewPageCache returns an empty cache with a soft budget of budgetBytes.
// The budget is advisory: AddPage never fails because of it (spec leaves
// eviction for a later design pass), it only informs a future evictor.
func NewPageCache(budgetBytes int) *PageCache {
	return &PageCache{
		entries:  make(map[int]*pageCacheEntry),
		bySource: make(map[Persister]int),
		ids:      NewIDAllocator(),
		budget:   budgetBytes,
	}
}

func (c *PageCache) logf(format string, args ...interface{}) {
	if c.Verbose {
		log.Printf("pagecache: "+format, args...)
	}
}

// AddPage registers page as non-persistable (it is never evicted and has
// no backing store to flush to) and returns its id.
func (c *PageCache) AddPage(page *SortedPage) int {
	id := c.ids.Allocate()
	c.entries[id] = &pageCacheEntry{page: page, layout: page.Layout()}
	c.bytesInUse += page.BufferSize()
	c.logf("add_page id=%d persistable=false bytes_in_use=%d", id, c.bytesInUse)
	return id
}

// AddPageWithPersister registers page as persistable via persister and
// returns its id. Returns ErrDuplicatePersistenceTarget if persister is
// already mapped to another page.
func (c *PageCache) AddPageWithPersister(page *SortedPage, persister Persister) (int, error) {
	if _, ok := c.bySource[persister]; ok {
		return 0, fmt.Errorf("add page with persister: %w", ErrDuplicatePersistenceTarget)
	}
	id := c.ids.Allocate()
	c.entries[id] = &pageCacheEntry{page: page, layout: page.Layout(), persister: persister}
	c.bySource[persister] = id
	c.bytesInUse += page.BufferSize()
	c.logf("add_page id=%d persistable=true bytes_in_use=%d", id, c.bytesInUse)
	return id, nil
}

func (c *PageCache) get(id int) (*pageCacheEntry, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("page id %d: %w", id, ErrUnknownID)
	}
	return e, nil
}

// RetrievePage returns the page registered under id, reloading it via its
// persister first if the entry holds no resident page. No method of this
// type leaves an entry non-resident: Remove deletes the entry outright
// (a later RetrievePage of that id returns ErrUnknownID), and nothing
// unloads a resident page. Returns ErrUnknownID if id is not registered,
// or ErrNotPersistable if the entry is non-resident with no persister to
// reload from.
func (c *PageCache) RetrievePage(id int) (*SortedPage, error) {
	e, err := c.get(id)
	if err != nil {
		return nil, utils.WrapError("retrieve page", err)
	}
	if e.page == nil {
		if e.persister == nil {
			return nil, fmt.Errorf("retrieve page %d: %w", id, ErrNotPersistable)
		}
		buf, err := e.persister.Load()
		if err != nil {
			return nil, utils.WrapError("retrieve page: load", err)
		}
		page, err := NewSortedPage(e.layout, len(buf))
		if err != nil {
			return nil, err
		}
		copy(page.buf, buf)
		e.page = page
	}
	return e.page, nil
}

// Pin marks id as in use, making it ineligible for eviction until matched
// by Unpin. Returns ErrUnknownID if id is not registered, or
// ErrNotPersistable if the page has no persister.
func (c *PageCache) Pin(id int) error {
	e, err := c.get(id)
	if err != nil {
		return utils.WrapError("pin", err)
	}
	if e.persister == nil {
		return fmt.Errorf("pin %d: %w", id, ErrNotPersistable)
	}
	e.pinCount++
	c.logf("pin id=%d pin_count=%d", id, e.pinCount)
	return nil
}

// Unpin reverses one Pin; unpinning an already-unpinned page is a no-op.
// Returns ErrUnknownID if id is not registered, or ErrNotPersistable if
// the page has no persister.
func (c *PageCache) Unpin(id int) error {
	e, err := c.get(id)
	if err != nil {
		return utils.WrapError("unpin", err)
	}
	if e.persister == nil {
		return fmt.Errorf("unpin %d: %w", id, ErrNotPersistable)
	}
	if e.pinCount > 0 {
		e.pinCount--
	}
	c.logf("unpin id=%d pin_count=%d", id, e.pinCount)
	return nil
}

// IsPinned reports whether id currently has a positive pin count.
// Returns ErrUnknownID if id is not registered.
func (c *PageCache) IsPinned(id int) (bool, error) {
	e, err := c.get(id)
	if err != nil {
		return false, utils.WrapError("is_pinned", err)
	}
	return e.pinCount > 0, nil
}

// IsPersistable reports whether id has a persister backing it. Returns
// ErrUnknownID if id is not registered.
func (c *PageCache) IsPersistable(id int) (bool, error) {
	e, err := c.get(id)
	if err != nil {
		return false, utils.WrapError("is_persistable", err)
	}
	return e.persister != nil, nil
}

// Flush saves id's page bytes via its persister. Returns ErrUnknownID if
// id is not registered, ErrNotPersistable if it has no persister.
func (c *PageCache) Flush(id int) error {
	e, err := c.get(id)
	if err != nil {
		return utils.WrapError("flush", err)
	}
	if e.persister == nil {
		return fmt.Errorf("flush %d: %w", id, ErrNotPersistable)
	}
	if e.page == nil {
		return nil
	}
	if err := e.persister.Save(e.page.Buffer()); err != nil {
		return utils.WrapError("flush: save", err)
	}
	c.logf("flush id=%d", id)
	return nil
}

// Remove evicts id from the cache, flushing first unless flush is false.
// Returns ErrUnknownID if id is not registered.
func (c *PageCache) Remove(id int, flush bool) error {
	e, err := c.get(id)
	if err != nil {
		return utils.WrapError("remove", err)
	}
	if flush && e.persister != nil {
		if err := c.Flush(id); err != nil {
			return err
		}
	}
	if e.page != nil {
		c.bytesInUse -= e.page.BufferSize()
	}
	if e.persister != nil {
		delete(c.bySource, e.persister)
	}
	delete(c.entries, id)
	if err := c.ids.Deallocate(id); err != nil {
		return utils.WrapError("remove: deallocate id", err)
	}
	c.logf("remove id=%d bytes_in_use=%d", id, c.bytesInUse)
	return nil
}

// BytesInUse returns the cache's current resident byte usage.
func (c *PageCache) BytesInUse() int { return c.bytesInUse }

// Budget returns the cache's soft byte budget.
func (c *PageCache) Budget() int { return c.budget }

// EvictionCandidates returns the ids of currently unpinned, persistable
// pages: the set an eviction policy would choose from. No policy is
// implemented (spec §9 open question); this is bookkeeping only.
func (c *PageCache) EvictionCandidates() []int {
	var ids []int
	for id, e := range c.entries {
		if e.pinCount == 0 && e.persister != nil {
			ids = append(ids, id)
		}
	}
	return ids
}
