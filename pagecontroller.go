package whery

import "github.com/wherydb/whery/internal/utils"

// PageController is the strategy a BTree uses to build branch and leaf
// pages: it fixes their tuple layouts and buffer sizes, and names which
// leaf columns form the branch key. See spec §4.8.
type PageController interface {
	// LeafTupleLayout returns the layout stored in leaf pages.
	LeafTupleLayout() *Layout

	// BranchTupleLayout returns the layout stored in branch pages: the
	// leaf columns named by BranchKeyFieldIndices, in order, followed by
	// a trailing INT child-node-id field.
	BranchTupleLayout() *Layout

	// BranchKeyFieldIndices returns the leaf-schema column indices that
	// form the branch key, in order. Typically just the first column for
	// a primary index.
	BranchKeyFieldIndices() []int

	// NewLeafPage allocates a fresh, empty leaf page.
	NewLeafPage() (*SortedPage, error)

	// NewBranchPage allocates a fresh, empty branch page.
	NewBranchPage() (*SortedPage, error)
}

// InMemoryPageController is a PageController whose branch and leaf pages
// are plain in-process SortedPages of fixed buffer sizes. See spec §4.8.
type InMemoryPageController struct {
	leafLayout    *Layout
	branchLayout  *Layout
	keyIndices    []int
	leafBufSize   int
	branchBufSize int
}

// NewInMemoryPageController builds a controller for leaf tuples shaped by
// leafSchema, using keyIndices (column indices into leafSchema) as the
// branch key. leafBufSize and branchBufSize are the fixed buffer sizes,
// in bytes, of the pages it allocates.
func NewInMemoryPageController(leafSchema []FieldManipulator, keyIndices []int, leafBufSize, branchBufSize int) (*InMemoryPageController, error) {
	leafLayout, err := NewLayout(leafSchema)
	if err != nil {
		return nil, err
	}

	branchSchema := make([]FieldManipulator, 0, len(keyIndices)+1)
	for _, idx := range keyIndices {
		branchSchema = append(branchSchema, leafSchema[idx])
	}
	branchSchema = append(branchSchema, IntManipulator)

	branchLayout, err := NewLayout(branchSchema)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(keyIndices))
	copy(idx, keyIndices)

	return &InMemoryPageController{
		leafLayout:    leafLayout,
		branchLayout:  branchLayout,
		keyIndices:    idx,
		leafBufSize:   leafBufSize,
		branchBufSize: branchBufSize,
	}, nil
}

func (c *InMemoryPageController) LeafTupleLayout() *Layout   { return c.leafLayout }
func (c *InMemoryPageController) BranchTupleLayout() *Layout { return c.branchLayout }

func (c *InMemoryPageController) BranchKeyFieldIndices() []int {
	out := make([]int, len(c.keyIndices))
	copy(out, c.keyIndices)
	return out
}

func (c *InMemoryPageController) NewLeafPage() (*SortedPage, error) {
	page, err := NewSortedPage(c.leafLayout, c.leafBufSize)
	if err != nil {
		return nil, utils.WrapError("new leaf page", err)
	}
	return page, nil
}

func (c *InMemoryPageController) NewBranchPage() (*SortedPage, error) {
	page, err := NewSortedPage(c.branchLayout, c.branchBufSize)
	if err != nil {
		return nil, utils.WrapError("new branch page", err)
	}
	return page, nil
}
