package whery

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// noID is the sentinel "absent" node id: no parent, no sibling, no child.
const noID = -1

type nodeRole int

const (
	leafRole nodeRole = iota
	branchRole
)

// btreeNode is a node in the B+-tree: a sorted page plus the graph links
// to its parent, siblings and (for branches) first child. See spec §3.
type btreeNode struct {
	id         int
	role       nodeRole
	page       *SortedPage
	firstChild int // branch only; noID for leaves or an empty branch
	parent     int
	left       int
	right      int
}

// splitResult describes a node split: the (unchanged) left node id, the
// freshly created right node id, and the branch key that separates them.
type splitResult struct {
	left        int
	right       int
	splitterKey *FreshTuple
}

// BTree is an ordered index over sorted pages: branch nodes route tuples
// to children by key prefix, leaf nodes hold the indexed tuples
// themselves, and leaf siblings form a doubly linked chain supporting
// ordered range scans. See spec §4.9.
type BTree struct {
	controller       PageController
	ids              *IDAllocator
	nodes            []*btreeNode
	root             int
	count            int
	branchKeyIndices []int
	branchKeyLayout  *Layout
}

// NewBTree constructs a tree with a single empty leaf as its root, using
// controller to build branch and leaf pages.
func NewBTree(controller PageController) (*BTree, error) {
	branchLayout := controller.BranchTupleLayout()
	keyIndices := controller.BranchKeyFieldIndices()

	keyManips := make([]FieldManipulator, len(keyIndices))
	for i := range keyIndices {
		keyManips[i] = branchLayout.Manipulator(i)
	}
	branchKeyLayout, err := NewLayout(keyManips)
	if err != nil {
		return nil, err
	}

	t := &BTree{
		controller:       controller,
		ids:              NewIDAllocator(),
		branchKeyIndices: keyIndices,
		branchKeyLayout:  branchKeyLayout,
	}

	rootID, err := t.newLeafNode()
	if err != nil {
		return nil, err
	}
	t.root = rootID
	return t, nil
}

// TupleCount returns the number of tuples currently stored in the tree's
// leaves.
func (t *BTree) TupleCount() int { return t.count }

// BranchTupleLayout returns the layout used by the tree's branch tuples.
func (t *BTree) BranchTupleLayout() *Layout { return t.controller.BranchTupleLayout() }

// LeafTupleLayout returns the layout used by the tree's leaf tuples.
func (t *BTree) LeafTupleLayout() *Layout { return t.controller.LeafTupleLayout() }

// Clear empties the tree back to a single empty leaf root. tuple_count()
// is 0 afterwards.
func (t *BTree) Clear() error {
	t.ids.Reset()
	t.nodes = nil
	t.count = 0
	rootID, err := t.newLeafNode()
	if err != nil {
		return err
	}
	t.root = rootID
	return nil
}

// BulkLoad inserts every tuple found on each of pages into the tree, in
// page then tuple order. No bespoke bulk-construction algorithm survives
// in the source (spec §9), so this is a naive repeated InsertTuple.
func (t *BTree) BulkLoad(pages []*SortedPage) error {
	for _, page := range pages {
		for _, tup := range page.Tuples() {
			if err := t.InsertTuple(tup); err != nil {
				return err
			}
		}
	}
	return nil
}

//#################### NODE CONSTRUCTION ####################

func (t *BTree) newLeafNode() (int, error) {
	page, err := t.controller.NewLeafPage()
	if err != nil {
		return 0, err
	}
	id := t.ids.Allocate()
	t.setNode(id, &btreeNode{id: id, role: leafRole, page: page, firstChild: noID, parent: noID, left: noID, right: noID})
	return id, nil
}

func (t *BTree) newBranchNode() (int, error) {
	page, err := t.controller.NewBranchPage()
	if err != nil {
		return 0, err
	}
	id := t.ids.Allocate()
	t.setNode(id, &btreeNode{id: id, role: branchRole, page: page, firstChild: noID, parent: noID, left: noID, right: noID})
	return id, nil
}

func (t *BTree) setNode(id int, n *btreeNode) {
	for len(t.nodes) <= id {
		t.nodes = append(t.nodes, nil)
	}
	t.nodes[id] = n
}

// insertRightSibling splices fresh into the sibling chain immediately to
// the right of node, giving it the same parent. See spec §4.9 "Sibling
// linking".
func (t *BTree) insertRightSibling(nodeID, freshID int) {
	node := t.nodes[nodeID]
	fresh := t.nodes[freshID]
	oldRight := node.right
	fresh.left = nodeID
	fresh.right = oldRight
	node.right = freshID
	if oldRight != noID {
		t.nodes[oldRight].left = freshID
	}
	fresh.parent = node.parent
}

//#################### INSERT ####################

// InsertTuple inserts tuple into the tree, descending to the appropriate
// leaf, splitting nodes as necessary and propagating any split up to a
// new root if the depth must grow. See spec §4.9 "Insert".
func (t *BTree) InsertTuple(tuple Tuple) error {
	split, err := t.insertIntoSubtree(t.root, tuple)
	if err != nil {
		return err
	}
	if split == nil {
		return nil
	}

	newRootID, err := t.newBranchNode()
	if err != nil {
		return err
	}
	newRoot := t.nodes[newRootID]
	newRoot.firstChild = split.left
	t.nodes[split.left].parent = newRootID
	t.nodes[split.right].parent = newRootID

	branchTuple := t.makeBranchTuple(split.splitterKey, split.right)
	if _, err := newRoot.page.AddTuple(branchTuple); err != nil {
		return err
	}
	t.root = newRootID
	return nil
}

func (t *BTree) insertIntoSubtree(id int, tuple Tuple) (*splitResult, error) {
	node := t.nodes[id]

	if node.role == leafRole {
		if _, err := node.page.AddTuple(tuple); err == nil {
			t.count++
			return nil, nil
		} else if !errors.Is(err, ErrPageFull) {
			return nil, err
		}
		return t.splitLeafAndInsert(node, tuple)
	}

	childID := t.routeChildForInsert(node, tuple)
	split, err := t.insertIntoSubtree(childID, tuple)
	if err != nil {
		return nil, err
	}
	if split == nil {
		return nil, nil
	}

	branchTuple := t.makeBranchTuple(split.splitterKey, split.right)
	if _, err := node.page.AddTuple(branchTuple); err == nil {
		return nil, nil
	} else if !errors.Is(err, ErrPageFull) {
		return nil, err
	}
	return t.splitBranchAndInsert(node, branchTuple)
}

// splitLeafAndInsert splits a full leaf node into two half-full leaves
// linked as siblings, then places tuple in whichever half it belongs by
// comparison with the right half's first key ("selectively_insert_tuple"
// in the source). See spec §4.9 "Leaf split".
func (t *BTree) splitLeafAndInsert(node *btreeNode, tuple Tuple) (*splitResult, error) {
	rightID, err := t.newLeafNode()
	if err != nil {
		return nil, err
	}
	t.insertRightSibling(node.id, rightID)

	left := node.page
	right := t.nodes[rightID].page

	// Copy the stored tuples out before clearing: re-adding them writes
	// into slots of the same buffer that the backed views point into.
	all := make([]*FreshTuple, 0, left.TupleCount())
	for _, tup := range left.Tuples() {
		fresh := NewFreshTuple(tup.Layout())
		copy(fresh.buf, tup.Buffer())
		all = append(all, fresh)
	}
	left.Clear()

	mid := len(all) / 2
	for _, tup := range all[:mid] {
		if _, err := left.AddTuple(tup); err != nil {
			return nil, err
		}
	}
	for _, tup := range all[mid:] {
		if _, err := right.AddTuple(tup); err != nil {
			return nil, err
		}
	}

	firstRight := right.At(right.Begin())
	if ComparePrefix(tuple, firstRight) < 0 {
		if _, err := left.AddTuple(tuple); err != nil {
			return nil, err
		}
	} else {
		if _, err := right.AddTuple(tuple); err != nil {
			return nil, err
		}
	}
	t.count++

	return &splitResult{
		left:        node.id,
		right:       rightID,
		splitterKey: t.extractBranchKey(right.At(right.Begin())),
	}, nil
}

// splitBranchAndInsert splits a full branch node into two half-full
// branches linked as siblings. The median branch tuple becomes the
// splitter: its child id becomes the right branch's first child, and the
// median tuple itself is not copied into either half. See spec §4.9
// "Branch split".
func (t *BTree) splitBranchAndInsert(node *btreeNode, branchTuple Tuple) (*splitResult, error) {
	rightID, err := t.newBranchNode()
	if err != nil {
		return nil, err
	}
	t.insertRightSibling(node.id, rightID)

	leftPage := node.page
	// Copy the stored tuples out before clearing, as in splitLeafAndInsert.
	existing := make([]*FreshTuple, 0, leftPage.TupleCount())
	for _, tup := range leftPage.Tuples() {
		fresh := NewFreshTuple(tup.Layout())
		copy(fresh.buf, tup.Buffer())
		existing = append(existing, fresh)
	}
	leftPage.Clear()

	merged := make([]Tuple, 0, len(existing)+1)
	inserted := false
	for _, e := range existing {
		if !inserted && ComparePrefix(branchTuple, e) < 0 {
			merged = append(merged, branchTuple)
			inserted = true
		}
		merged = append(merged, e)
	}
	if !inserted {
		merged = append(merged, branchTuple)
	}

	medianIdx := len(merged) / 2
	median := merged[medianIdx]
	medianChildID := childNodeID(median)

	right := t.nodes[rightID]
	right.firstChild = medianChildID
	t.nodes[medianChildID].parent = rightID

	for _, tup := range merged[:medianIdx] {
		if _, err := leftPage.AddTuple(tup); err != nil {
			return nil, err
		}
	}
	for _, tup := range merged[medianIdx+1:] {
		if _, err := right.page.AddTuple(tup); err != nil {
			return nil, err
		}
		t.nodes[childNodeID(tup)].parent = rightID
	}

	return &splitResult{
		left:        node.id,
		right:       rightID,
		splitterKey: t.extractBranchKeyFromBranchTuple(median),
	}, nil
}

//#################### ROUTING ####################

// childNodeID extracts the child node id from a branch tuple of the form
// <k1,...,kM,childID>.
func childNodeID(branchTuple Tuple) int {
	return int(branchTuple.FieldAt(branchTuple.Arity()-1).GetInt())
}

// routeChildByKey finds the child of branch node to route to for
// routeKey, a tuple of the branch node's own arity (key fields plus a
// trailing sentinel child id). It returns the child of the greatest
// separator not exceeding routeKey, or the first child if there is none,
// per spec §4.9 "Search (routing) inside a branch". When a run of equal
// keys spans several children, this is the last of them.
//
// The trailing field of routeKey is filled with math.MaxInt32, which is
// not less than any real child id, so a tuple whose key exactly matches
// a separator compares greater than or equal to that separator tuple:
// UpperBoundValue lands past it and the tuple is routed to that
// separator's own child, keeping the "subtree(c) has keys >= k"
// invariant (spec §8).
func (t *BTree) routeChildByKey(node *btreeNode, routeKey Tuple) int {
	pos := node.page.UpperBoundValue(routeKey)
	if pos == node.page.Begin() {
		return node.firstChild
	}
	entry := node.page.At(pos - 1)
	return childNodeID(entry)
}

func (t *BTree) routeChildForInsert(node *btreeNode, leafTuple Tuple) int {
	return t.routeChildByKey(node, t.routingKeyFromLeaf(leafTuple))
}

// routingKeyFromLeaf builds a routing key of the branch layout's arity
// from leaf, selecting the fields named by branchKeyFieldIndices and
// appending the MaxInt32 sentinel (see routeChildByKey).
func (t *BTree) routingKeyFromLeaf(leaf Tuple) *FreshTuple {
	key := NewFreshTuple(t.controller.BranchTupleLayout())
	for i, idx := range t.branchKeyIndices {
		if err := key.FieldAt(i).SetFrom(leaf.FieldAt(idx)); err != nil {
			panic(err)
		}
	}
	key.FieldAt(key.Arity() - 1).SetInt(math.MaxInt32)
	return key
}

// routeKeyFromPrefix builds a routing key from a search key (a value or
// range endpoint) whose leading `take` fields already align, in order,
// with the tree's branch key columns (see canRouteOn).
func (t *BTree) routeKeyFromPrefix(src Tuple, take int) *FreshTuple {
	key := NewFreshTuple(t.controller.BranchTupleLayout())
	for i := 0; i < take; i++ {
		if err := key.FieldAt(i).SetFrom(src.FieldAt(i)); err != nil {
			panic(err)
		}
	}
	key.FieldAt(key.Arity() - 1).SetInt(math.MaxInt32)
	return key
}

// canRouteOn reports whether a search key's field indices share the
// tree's branch key columns as a literal leading prefix, in the same
// order, which is the condition under which the tree can route directly
// to a target leaf rather than falling back to a full scan from an end.
func (t *BTree) canRouteOn(fieldIndices []int) bool {
	if len(fieldIndices) < len(t.branchKeyIndices) {
		return false
	}
	for i, idx := range t.branchKeyIndices {
		if fieldIndices[i] != idx {
			return false
		}
	}
	return true
}

func (t *BTree) descendRoute(routeKey Tuple) int {
	id := t.root
	for t.nodes[id].role == branchRole {
		id = t.routeChildByKey(t.nodes[id], routeKey)
	}
	return id
}

func (t *BTree) leftmostLeaf() int {
	id := t.root
	for t.nodes[id].role == branchRole {
		id = t.nodes[id].firstChild
	}
	return id
}

//#################### BRANCH KEY / TUPLE HELPERS ####################

// extractBranchKey projects a leaf tuple's branch-key columns into a
// fresh tuple of branchKeyLayout's arity (no trailing child id field).
func (t *BTree) extractBranchKey(leaf Tuple) *FreshTuple {
	key := NewFreshTuple(t.branchKeyLayout)
	for i, idx := range t.branchKeyIndices {
		if err := key.FieldAt(i).SetFrom(leaf.FieldAt(idx)); err != nil {
			panic(err)
		}
	}
	return key
}

// extractBranchKeyFromBranchTuple projects a branch tuple's key columns
// (all but its trailing child id field) into a fresh branchKeyLayout
// tuple.
func (t *BTree) extractBranchKeyFromBranchTuple(bt Tuple) *FreshTuple {
	key := NewFreshTuple(t.branchKeyLayout)
	n := bt.Arity() - 1
	for i := 0; i < n; i++ {
		if err := key.FieldAt(i).SetFrom(bt.FieldAt(i)); err != nil {
			panic(err)
		}
	}
	return key
}

// makeBranchTuple builds a <k1,...,kM,childID> branch tuple from a
// branch-key-arity tuple plus a child node id.
func (t *BTree) makeBranchTuple(key *FreshTuple, childID int) *FreshTuple {
	bt := NewFreshTuple(t.controller.BranchTupleLayout())
	n := key.Arity()
	for i := 0; i < n; i++ {
		if err := bt.FieldAt(i).SetFrom(key.FieldAt(i)); err != nil {
			panic(err)
		}
	}
	bt.FieldAt(n).SetInt(int32(childID))
	return bt
}

//#################### ITERATION ####################

// BTreeIterator walks the tuples of a B+-tree in ascending key order,
// following the leaf sibling chain once a leaf's own page is exhausted.
type BTreeIterator struct {
	tree   *BTree
	nodeID int // noID for the end sentinel
	pos    int
}

// Valid reports whether the iterator refers to a tuple.
func (it *BTreeIterator) Valid() bool { return it.nodeID != noID }

// Tuple returns the tuple the iterator currently refers to. Calling it on
// an invalid iterator is undefined behaviour.
func (it *BTreeIterator) Tuple() *BackedTuple { return it.tree.nodes[it.nodeID].page.At(it.pos) }

// Next advances the iterator to the next tuple in key order, following
// the leaf sibling chain as needed, or to End() if none remain.
func (it *BTreeIterator) Next() {
	it.pos++
	for {
		if !it.Valid() {
			return
		}
		node := it.tree.nodes[it.nodeID]
		if it.pos < node.page.TupleCount() {
			return
		}
		if node.right == noID {
			it.nodeID = noID
			it.pos = 0
			return
		}
		it.nodeID = node.right
		it.pos = 0
	}
}

func (it *BTreeIterator) equals(other *BTreeIterator) bool {
	return it.nodeID == other.nodeID && it.pos == other.pos
}

// Begin returns an iterator to the first tuple of the leftmost leaf, or
// End() if the tree is empty.
func (t *BTree) Begin() *BTreeIterator {
	return t.normalizeIterator(t.leftmostLeaf(), 0)
}

// End returns the sentinel one-past-the-last iterator.
func (t *BTree) End() *BTreeIterator {
	return &BTreeIterator{tree: t, nodeID: noID}
}

// normalizeIterator walks forward from (nodeID, pos) across empty or
// exhausted leaves until it lands on a real tuple, or on End().
func (t *BTree) normalizeIterator(nodeID, pos int) *BTreeIterator {
	it := &BTreeIterator{tree: t, nodeID: nodeID, pos: pos}
	for it.Valid() {
		node := t.nodes[it.nodeID]
		if it.pos < node.page.TupleCount() {
			return it
		}
		if node.right == noID {
			return t.End()
		}
		it.nodeID = node.right
		it.pos = 0
	}
	return it
}

//#################### SEARCH ####################

// scanForward walks the leaf chain from Begin() to the first tuple
// satisfying stop, or End(). The fallback search path for keys whose
// field indices don't lead with the branch key columns, where branch
// routing cannot narrow the descent.
func (t *BTree) scanForward(stop func(Tuple) bool) *BTreeIterator {
	it := t.Begin()
	for it.Valid() && !stop(it.Tuple()) {
		it.Next()
	}
	return it
}

// LowerBoundValue returns an iterator to the first tuple equal to vk
// under prefix comparison, or to the position where one would be
// inserted if none exists.
func (t *BTree) LowerBoundValue(vk *ValueKey) *BTreeIterator {
	if !t.canRouteOn(vk.FieldIndices()) {
		return t.scanForward(func(tup Tuple) bool { return ComparePrefix(tup, vk) >= 0 })
	}
	leafID := t.descendRoute(t.routeKeyFromPrefix(vk, len(t.branchKeyIndices)))
	node := t.nodes[leafID]
	pos := node.page.LowerBoundValue(vk)

	// Heavily duplicated keys can fill an entire leaf and spill into its
	// left sibling at an earlier split (spec §9); walk back across any
	// such siblings to find the true first occurrence.
	for pos == 0 && node.left != noID {
		left := t.nodes[node.left]
		if left.page.TupleCount() == 0 || ComparePrefix(left.page.At(left.page.TupleCount()-1), vk) != 0 {
			break
		}
		node = left
		leafID = node.id
		pos = node.page.LowerBoundValue(vk)
	}
	return t.normalizeIterator(leafID, pos)
}

// UpperBoundValue returns an iterator one past the last tuple equal to vk
// under prefix comparison.
func (t *BTree) UpperBoundValue(vk *ValueKey) *BTreeIterator {
	if !t.canRouteOn(vk.FieldIndices()) {
		return t.scanForward(func(tup Tuple) bool { return ComparePrefix(tup, vk) > 0 })
	}
	leafID := t.descendRoute(t.routeKeyFromPrefix(vk, len(t.branchKeyIndices)))
	node := t.nodes[leafID]
	it := t.normalizeIterator(leafID, node.page.UpperBoundValue(vk))

	// Symmetric to LowerBoundValue's backward walk: duplicates may spill
	// rightward across a leaf boundary too, so keep skipping past exact
	// matches however many leaves they span.
	for it.Valid() && ComparePrefix(it.Tuple(), vk) == 0 {
		it.Next()
	}
	return it
}

// EqualRangeValue returns [LowerBoundValue(vk), UpperBoundValue(vk)).
func (t *BTree) EqualRangeValue(vk *ValueKey) (*BTreeIterator, *BTreeIterator) {
	return t.LowerBoundValue(vk), t.UpperBoundValue(vk)
}

// LowerBoundRange returns an iterator to the first tuple in rk's
// interval, or Begin() if rk has no low endpoint. A closed low endpoint
// bounds like an exact value; an open one starts just past the last
// tuple prefix-equal to the low value, so both reduce to the value
// bounds above (which already handle duplicate runs spanning leaves).
func (t *BTree) LowerBoundRange(rk *RangeKey) *BTreeIterator {
	if !rk.HasLow() {
		return t.Begin()
	}
	if rk.LowKind() == Open {
		return t.UpperBoundValue(rk.LowValue())
	}
	return t.LowerBoundValue(rk.LowValue())
}

// UpperBoundRange returns an iterator one past the last tuple in rk's
// interval, or End() if rk has no high endpoint. Symmetric to
// LowerBoundRange: a closed high endpoint ends after the last tuple
// prefix-equal to the high value, an open one before the first.
func (t *BTree) UpperBoundRange(rk *RangeKey) *BTreeIterator {
	if !rk.HasHigh() {
		return t.End()
	}
	if rk.HighKind() == Open {
		return t.LowerBoundValue(rk.HighValue())
	}
	return t.UpperBoundValue(rk.HighValue())
}

// EqualRangeRange returns [LowerBoundRange(rk), UpperBoundRange(rk)).
func (t *BTree) EqualRangeRange(rk *RangeKey) (*BTreeIterator, *BTreeIterator) {
	return t.LowerBoundRange(rk), t.UpperBoundRange(rk)
}

//#################### ERASE ####################

// EraseTuples deletes every tuple in the tree equal to vk under prefix
// comparison. Per spec §9, this is a leaf-only delete-in-place: no
// merge/redistribute-on-underflow algorithm survives in the source, so
// underflowed leaves are left as is (see DESIGN.md).
func (t *BTree) EraseTuples(vk *ValueKey) error {
	return t.eraseRange(t.EqualRangeValue(vk))
}

// EraseTuple deletes every tuple in the tree within rk's interval. Same
// leaf-only semantics as EraseTuples.
func (t *BTree) EraseTuple(rk *RangeKey) error {
	return t.eraseRange(t.EqualRangeRange(rk))
}

func (t *BTree) eraseRange(lo, hi *BTreeIterator) error {
	type located struct {
		leafID int
		tup    *BackedTuple
	}
	var victims []located
	for it := lo; it.Valid() && !it.equals(hi); it.Next() {
		victims = append(victims, located{it.nodeID, it.Tuple()})
	}
	for _, v := range victims {
		if t.nodes[v.leafID].page.DeleteTuple(v.tup) {
			t.count--
		}
	}
	return nil
}

//#################### DEBUG PRINTING ####################

// Print walks the tree in depth order, writing one tab-prefixed line per
// node (its id and sibling ids) followed by one line per tuple on its
// page. See spec §6 "Debug printing".
func (t *BTree) Print(w io.Writer) error {
	return t.printSubtree(w, t.root, 0)
}

func (t *BTree) printSubtree(w io.Writer, id int, depth int) error {
	node := t.nodes[id]

	if err := t.writeTabbed(w, depth, fmt.Sprintf("node %d (left=%d, right=%d, parent=%d)", node.id, node.left, node.right, node.parent)); err != nil {
		return err
	}
	for i := 0; i < node.page.TupleCount(); i++ {
		if err := t.writeTabbed(w, depth+1, formatTuple(node.page.At(i))); err != nil {
			return err
		}
	}

	if node.role == branchRole {
		children := make([]int, 0, node.page.TupleCount()+1)
		children = append(children, node.firstChild)
		for i := 0; i < node.page.TupleCount(); i++ {
			children = append(children, childNodeID(node.page.At(i)))
		}
		for _, c := range children {
			if err := t.printSubtree(w, c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *BTree) writeTabbed(w io.Writer, tabCount int, text string) error {
	_, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("\t", tabCount), text)
	return err
}

func formatTuple(tup Tuple) string {
	parts := make([]string, tup.Arity())
	for i := 0; i < tup.Arity(); i++ {
		f := tup.FieldAt(i)
		switch f.Manipulator() {
		case IntManipulator:
			parts[i] = fmt.Sprintf("%d", f.GetInt())
		case DoubleManipulator:
			parts[i] = fmt.Sprintf("%g", f.GetDouble())
		default:
			parts[i] = fmt.Sprintf("%v", f.GetInt())
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
