// Package land implements the free land: a coalescing interval index
// over free address ranges, queryable by zone preference -- the "zoned
// CBS" of SPEC_FULL.md §3, §4.4.
//
// It is a height-balanced (AVL) binary tree over addr.Range, ordered by
// base address, augmented at each internal node with the ZoneSet union
// of its subtree so FindInZones can prune. No retrieved third-party
// library offers this augmented-interval-tree shape (google/btree's
// Item has no aggregate-recompute hook), so unlike the chunk tree this
// one is hand-rolled -- see DESIGN.md.
//
// Tree nodes are allocated from an embedded CBS-block pool (package
// mfs), which refuses to self-extend; Insert/Delete/FindInZones return
// mfs.ErrLimit when a new node would be required and the pool has none
// spare, and never attempt to extend themselves -- that is the arena's
// job (SPEC_FULL.md §4.3, §4.5.2).
package land

import (
	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/internal/assert"
	"github.com/pavanmanishd/memarena/mfs"
)

type node struct {
	left, right *node
	height      int8
	rng         addr.Range
	chunk       addr.Addr // identity of the owning chunk; ranges never cross chunks (F2)
	zones       addr.ZoneSet
}

func (n *node) zoneUnion() addr.ZoneSet {
	if n == nil {
		return addr.ZoneSetEmpty
	}
	return n.zones
}

func heightOf(n *node) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

// Land is the arena's free-land index.
type Land struct {
	zoneShift addr.Shift
	root      *node
	pool      *mfs.Pool[node]
	size      int // number of ranges currently in the tree, for diagnostics
}

// NewLand returns an empty free land. nodeUnitSize is the size the
// embedded CBS-block pool charges per land node; it sets how many nodes
// each donated page provides.
func NewLand(zoneShift addr.Shift, nodeUnitSize addr.Size) *Land {
	return &Land{zoneShift: zoneShift, pool: mfs.New[node](nodeUnitSize)}
}

// ExtendNodePool feeds the land's CBS-block pool a fresh page, as
// arenaExtendCBSBlockPool does in the source.
func (l *Land) ExtendNodePool(pageBase addr.Addr, pageSize addr.Size) {
	l.pool.Extend(pageBase, pageSize)
}

// NodePoolPages returns the base address of every page ever donated to
// the land's node pool, for ArenaDestroy to release directly
// (SPEC_FULL.md §3 Lifecycle).
func (l *Land) NodePoolPages() []addr.Addr { return l.pool.Pages() }

// NodePoolStats reports the node pool's capacity and current usage.
func (l *Land) NodePoolStats() (capacity, used int) {
	return l.pool.Capacity(), l.pool.InUse()
}

// Size returns the number of disjoint free ranges currently indexed.
func (l *Land) Size() int { return l.size }

func (l *Land) rangeZones(r addr.Range) addr.ZoneSet {
	return addr.ZoneSetOfRange(l.zoneShift, r.Base, r.Limit)
}

// Insert adds rng (owned by the chunk identified by chunkBase) to the
// land, coalescing with any adjacent range within the same chunk
// (SPEC_FULL.md F1). It returns the resulting coalesced range, or
// mfs.ErrLimit if a new tree node was required and the block pool had
// none spare.
func (l *Land) Insert(rng addr.Range, chunkBase addr.Addr) (addr.Range, error) {
	assert.That(!rng.IsEmpty(), "land: insert of empty range")

	merged := rng
	if left, ok := l.findAbuttingLeft(rng, chunkBase); ok {
		merged = left.Join(merged)
		l.deleteExact(left, chunkBase)
		l.size--
	}
	if right, ok := l.findAbuttingRight(rng, chunkBase); ok {
		merged = right.Join(merged)
		l.deleteExact(right, chunkBase)
		l.size--
	}

	n, err := l.pool.Alloc()
	if err != nil {
		// A node is only genuinely missing when neither neighbour
		// coalesced: had one been removed above, Free just handed the
		// pool a spare and this Alloc could not fail.
		assert.That(merged.Equal(rng), "land: alloc failed after a coalesce freed a node")
		return addr.Range{}, err
	}
	n.rng = merged
	n.chunk = chunkBase
	n.zones = l.rangeZones(merged)
	n.height = 1
	l.root = l.insertNode(l.root, n)
	l.size++
	return merged, nil
}

// insertNode inserts leaf n (ordered by rng.Base) into the subtree
// rooted at t, rebalancing and recomputing augmentation on the way back
// up.
func (l *Land) insertNode(t, n *node) *node {
	if t == nil {
		return n
	}
	if n.rng.Base < t.rng.Base {
		t.left = l.insertNode(t.left, n)
	} else {
		t.right = l.insertNode(t.right, n)
	}
	return l.rebalance(t)
}

// findAbuttingLeft returns the existing range (if any, within the same
// chunk) whose Limit equals rng.Base.
func (l *Land) findAbuttingLeft(rng addr.Range, chunkBase addr.Addr) (addr.Range, bool) {
	var result addr.Range
	found := false
	var walk func(*node)
	walk = func(n *node) {
		if n == nil || found {
			return
		}
		if n.rng.Limit == rng.Base && n.chunk == chunkBase {
			result, found = n.rng, true
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(l.root)
	return result, found
}

// findAbuttingRight returns the existing range (if any, within the same
// chunk) whose Base equals rng.Limit.
func (l *Land) findAbuttingRight(rng addr.Range, chunkBase addr.Addr) (addr.Range, bool) {
	var result addr.Range
	found := false
	var walk func(*node)
	walk = func(n *node) {
		if n == nil || found {
			return
		}
		if n.rng.Base == rng.Limit && n.chunk == chunkBase {
			result, found = n.rng, true
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(l.root)
	return result, found
}

// deleteExact removes the node with exactly range rng (no splitting).
func (l *Land) deleteExact(rng addr.Range, chunkBase addr.Addr) {
	freed, newRoot := l.removeExact(l.root, rng, chunkBase)
	l.root = newRoot
	if freed != nil {
		l.pool.Free(freed)
	}
}

func (l *Land) removeExact(t *node, rng addr.Range, chunkBase addr.Addr) (*node, *node) {
	if t == nil {
		return nil, nil
	}
	if rng.Base < t.rng.Base {
		freed, nl := l.removeExact(t.left, rng, chunkBase)
		t.left = nl
		return freed, l.rebalance(t)
	}
	if rng.Base > t.rng.Base {
		freed, nr := l.removeExact(t.right, rng, chunkBase)
		t.right = nr
		return freed, l.rebalance(t)
	}
	// t.rng.Base == rng.Base: this must be our node.
	assert.That(t.rng.Equal(rng) && t.chunk == chunkBase, "land: exact delete target mismatch")
	return t, l.detachRoot(t)
}

// detachRoot removes t (whose children are t.left/t.right) from the
// tree, returning the replacement subtree.
func (l *Land) detachRoot(t *node) *node {
	if t.left == nil {
		return t.right
	}
	if t.right == nil {
		return t.left
	}
	succ, newRight := l.removeMin(t.right)
	succ.left = t.left
	succ.right = newRight
	return l.rebalance(succ)
}

// removeMin splices the in-order minimum out of the subtree rooted at
// t, rebalancing and recomputing augmentation along the path back up.
func (l *Land) removeMin(t *node) (min *node, newSub *node) {
	if t.left == nil {
		return t, t.right
	}
	min, t.left = l.removeMin(t.left)
	return min, l.rebalance(t)
}

func (l *Land) rebalance(t *node) *node {
	l.recomputeAugment(t)
	balance := int(heightOf(t.left)) - int(heightOf(t.right))
	if balance > 1 {
		if heightOf(t.left.left) < heightOf(t.left.right) {
			t.left = l.rotateLeft(t.left)
		}
		return l.rotateRight(t)
	}
	if balance < -1 {
		if heightOf(t.right.right) < heightOf(t.right.left) {
			t.right = l.rotateRight(t.right)
		}
		return l.rotateLeft(t)
	}
	return t
}

func (l *Land) rotateLeft(t *node) *node {
	r := t.right
	t.right = r.left
	r.left = t
	l.recomputeAugment(t)
	l.recomputeAugment(r)
	return r
}

func (l *Land) rotateRight(t *node) *node {
	lft := t.left
	t.left = lft.right
	lft.right = t
	l.recomputeAugment(t)
	l.recomputeAugment(lft)
	return lft
}

func (l *Land) recomputeAugment(t *node) {
	h := heightOf(t.left)
	if hr := heightOf(t.right); hr > h {
		h = hr
	}
	t.height = h + 1
	t.zones = l.rangeZones(t.rng).Union(t.left.zoneUnion()).Union(t.right.zoneUnion())
}

// Delete removes rng, which must be entirely covered by one existing
// free range, splitting that range if rng lies in its interior. It
// returns the pre-existing range that contained it, or mfs.ErrLimit if
// a split was needed and the block pool had no spare node.
func (l *Land) Delete(rng addr.Range) (addr.Range, error) {
	owner, ok := l.findCovering(rng)
	assert.That(ok, "land: delete of range not present: %v", rng)

	old := owner.rng
	switch {
	case rng.Equal(old):
		l.deleteExact(old, owner.chunk)
	case rng.Base == old.Base:
		// Shrinking from the low end moves the node's key (rng.Base), so
		// the mutation must happen while the search still matches the
		// pre-mutation key -- otherwise the walk compares the old key
		// against an already-moved node and takes the wrong branch.
		l.updateInPlace(old.Base, func(t *node) { t.rng.Base = rng.Limit })
	case rng.Limit == old.Limit:
		l.updateInPlace(old.Base, func(t *node) { t.rng.Limit = rng.Base })
	default:
		// Interior split: shrink owner to the low remainder, insert a new
		// node for the high remainder.
		tailRange := addr.NewRange(rng.Limit, old.Limit)
		l.updateInPlace(old.Base, func(t *node) { t.rng.Limit = rng.Base })

		n, err := l.pool.Alloc()
		if err != nil {
			l.updateInPlace(old.Base, func(t *node) { t.rng.Limit = old.Limit }) // roll back the shrink
			return addr.Range{}, err
		}
		n.rng = tailRange
		n.chunk = owner.chunk
		n.zones = l.rangeZones(tailRange)
		n.height = 1
		l.root = l.insertNode(l.root, n)
		l.size++
	}
	return old, nil
}

// updateInPlace locates the node keyed by base (its rng.Base at the time
// of the call), applies mutate to it, and recomputes augmentation from
// that node up to the root. The search key must match the node's
// PRE-mutation base, so mutate runs only once the matching node is
// found, not before the walk reaches it.
func (l *Land) updateInPlace(base addr.Addr, mutate func(*node)) {
	var walk func(*node) *node
	walk = func(t *node) *node {
		if t == nil {
			return nil
		}
		switch {
		case base < t.rng.Base:
			t.left = walk(t.left)
		case base > t.rng.Base:
			t.right = walk(t.right)
		default:
			mutate(t)
		}
		l.recomputeAugment(t)
		return t
	}
	l.root = walk(l.root)
}

func (l *Land) findCovering(rng addr.Range) (*node, bool) {
	var found *node
	var walk func(*node)
	walk = func(n *node) {
		if n == nil || found != nil {
			return
		}
		if n.rng.ContainsRange(rng) {
			found = n
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(l.root)
	return found, found != nil
}

// Iterate visits every free range in base-address order, stopping early
// if fn returns false. It lets callers and tests inspect the land, for
// example to check invariants I1-I3.
func (l *Land) Iterate(fn func(rng addr.Range, chunkBase addr.Addr) bool) {
	var walk func(*node) bool
	walk = func(n *node) bool {
		if n == nil {
			return true
		}
		if !walk(n.left) {
			return false
		}
		if !fn(n.rng, n.chunk) {
			return false
		}
		return walk(n.right)
	}
	walk(l.root)
}

// FindInZones finds an aligned range of the given size whose every
// address lies in zones. high=false picks the smallest-address fit;
// high=true picks the highest-address fit (SPEC_FULL.md §4.4). It
// returns found=false if no such range exists. FindInZones never mutates
// the tree and so never needs a node from the pool: its error result is
// always nil.
func (l *Land) FindInZones(size addr.Size, zones addr.ZoneSet, high bool) (found bool, result addr.Range, err error) {
	assert.That(size > 0, "land: FindInZones with zero size")

	var best addr.Range
	haveBest := false

	consider := func(run addr.Range) {
		if run.Size() < size {
			return
		}
		var candidate addr.Range
		if high {
			candidate = addr.NewRange(run.Limit-addr.Addr(size), run.Limit)
		} else {
			candidate = addr.NewRange(run.Base, run.Base+addr.Addr(size))
		}
		switch {
		case !haveBest:
			best, haveBest = candidate, true
		case high && candidate.Base > best.Base:
			best = candidate
		case !high && candidate.Base < best.Base:
			best = candidate
		}
	}

	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n.zones.Inter(zones).IsEmpty() {
			return // whole subtree's zone union misses zones: prune
		}
		walk(n.left)
		for _, run := range stripeRunsInZones(n.rng, l.zoneShift, zones) {
			consider(run)
		}
		walk(n.right)
	}
	walk(l.root)

	if !haveBest {
		return false, addr.Range{}, nil
	}
	return true, best, nil
}

// stripeRunsInZones partitions rng at zone-stripe boundaries and returns
// the maximal contiguous runs whose zone is a member of zones.
func stripeRunsInZones(rng addr.Range, zoneShift addr.Shift, zones addr.ZoneSet) []addr.Range {
	stride := addr.Size(1) << zoneShift
	var runs []addr.Range
	cur := rng.Base
	var runStart addr.Addr
	inRun := false
	for cur < rng.Limit {
		stripeEnd := addr.AlignDown(cur, addr.Align(stride)) + addr.Addr(stride)
		if stripeEnd > rng.Limit || stripeEnd <= cur {
			stripeEnd = rng.Limit
		}
		z := addr.ZoneOf(cur, zoneShift)
		if zones.Has(z) {
			if !inRun {
				runStart, inRun = cur, true
			}
		} else if inRun {
			runs = append(runs, addr.NewRange(runStart, cur))
			inRun = false
		}
		cur = stripeEnd
	}
	if inRun {
		runs = append(runs, addr.NewRange(runStart, rng.Limit))
	}
	return runs
}
