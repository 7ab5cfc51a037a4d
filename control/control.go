// Package control implements the control pool: a variable-block
// allocator living inside the arena, used by higher layers for small
// metadata allocations (SPEC_FULL.md §4.8). ControlAlloc/ControlFree in
// the arena package are thin wrappers over a Pool.
//
// This generalizes the teacher's chunked bump allocator
// (Arena.grow/AllocBytes/currentChunk in the original arena.go) from a
// release-only bump allocator into a free-list-coalescing one: each
// page the pool acquires via GrowFunc is carved with a bump pointer
// exactly as the teacher's grow did, but Free threads the returned
// block onto an address-ordered free list and coalesces it with any
// abutting free neighbour, rather than only ever growing.
package control

import (
	"sort"

	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/internal/assert"
)

// GrowFunc asks the arena for a fresh page of at least minSize bytes,
// returning its base and actual size (which may be larger, e.g. rounded
// up to a whole number of tracts).
type GrowFunc func(minSize addr.Size) (base addr.Addr, size addr.Size, err error)

// Pool is a coalescing variable-block allocator.
type Pool struct {
	align addr.Align
	grow  GrowFunc

	free     []addr.Range // sorted by Base, no two entries abut or overlap
	pages    []addr.Range // every page ever obtained from grow, for diagnostics/destroy
	reserved addr.Size
	used     addr.Size
}

// New returns an empty Pool that carves blocks aligned to align and
// grows by calling grow when no free block is large enough.
func New(align addr.Align, grow GrowFunc) *Pool {
	assert.That(align.IsPowerOfTwo(), "control: align must be a power of two")
	return &Pool{align: align, grow: grow}
}

// Reserved returns the total bytes ever obtained from grow.
func (p *Pool) Reserved() addr.Size { return p.reserved }

// Used returns the bytes currently allocated (not on the free list).
func (p *Pool) Used() addr.Size { return p.used }

// Pages returns every page the pool has ever obtained from grow, for
// ArenaDestroy to release directly.
func (p *Pool) Pages() []addr.Range {
	return append([]addr.Range(nil), p.pages...)
}

// Alloc returns size bytes of storage, first-fit from the free list,
// growing the pool via GrowFunc if nothing free is large enough.
func (p *Pool) Alloc(size addr.Size) (addr.Addr, error) {
	assert.That(size > 0, "control: alloc of zero size")
	size = addr.SizeAlignUp(size, p.align)

	if i, ok := p.firstFit(size); ok {
		r := p.free[i]
		base := r.Base
		p.consumeFree(i, size)
		p.used += size
		return base, nil
	}

	base, got, err := p.grow(size)
	if err != nil {
		return 0, err
	}
	assert.That(got >= size, "control: grow returned less than requested")
	p.reserved += got
	p.pages = append(p.pages, addr.NewRange(base, addr.AddrAdd(base, got)))
	if rem := got - size; rem > 0 {
		p.insertFree(addr.NewRange(addr.AddrAdd(base, size), addr.AddrAdd(base, got)))
	}
	p.used += size
	return base, nil
}

// Free returns a block of size bytes based at base to the pool,
// coalescing it with any abutting free neighbour.
func (p *Pool) Free(base addr.Addr, size addr.Size) {
	size = addr.SizeAlignUp(size, p.align)
	p.insertFree(addr.NewRange(base, addr.AddrAdd(base, size)))
	p.used -= size
}

// firstFit returns the index of the first free block at least size
// bytes long.
func (p *Pool) firstFit(size addr.Size) (int, bool) {
	for i, r := range p.free {
		if r.Size() >= size {
			return i, true
		}
	}
	return 0, false
}

// consumeFree removes size bytes from the low end of free block i,
// shrinking or removing it.
func (p *Pool) consumeFree(i int, size addr.Size) {
	r := p.free[i]
	if r.Size() == size {
		p.free = append(p.free[:i], p.free[i+1:]...)
		return
	}
	p.free[i] = addr.NewRange(addr.AddrAdd(r.Base, size), r.Limit)
}

// insertFree adds rng to the free list in address order, coalescing
// with whichever existing entries it abuts.
func (p *Pool) insertFree(rng addr.Range) {
	i := sort.Search(len(p.free), func(i int) bool { return p.free[i].Base >= rng.Base })

	if i > 0 && p.free[i-1].Limit == rng.Base {
		rng = addr.NewRange(p.free[i-1].Base, rng.Limit)
		i--
		p.free = append(p.free[:i], p.free[i+1:]...)
	}
	if i < len(p.free) && p.free[i].Base == rng.Limit {
		rng = addr.NewRange(rng.Base, p.free[i].Limit)
		p.free = append(p.free[:i], p.free[i+1:]...)
	}

	p.free = append(p.free, addr.Range{})
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = rng
}
