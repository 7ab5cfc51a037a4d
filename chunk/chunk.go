// Package chunk implements the Chunk and its ordered tree index
// (SPEC_FULL.md §3, §4.2): a contiguous backing region with a
// page-index allocation bitmap, and the balanced map from base address
// to chunk that the arena consults for containment queries.
package chunk

import (
	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/bitmap"
	"github.com/pavanmanishd/memarena/internal/assert"
	"github.com/pavanmanishd/memarena/tract"
)

// Chunk owns a contiguous address region [Base, Limit) divided into
// grains of GrainSize bytes. Grains [0, AllocBase) are the chunk's
// header: pre-marked allocated and never handed to clients (the tract
// table and alloc bitmap themselves are ordinary Go allocations);
// grains [AllocBase, pages) are available to clients.
//
// Chunks never overlap and never coalesce: SPEC_FULL.md §4.6.
type Chunk struct {
	Base      addr.Addr
	Limit     addr.Addr
	GrainSize addr.Size
	AllocBase int // first grain index available to clients

	alloc *bitmap.T
	pages *tract.Table
	// Serial distinguishes chunks created at the same address across a
	// process lifetime for diagnostics; it plays no role in ordering.
	Serial uint64
}

// Pages returns the number of grains in the chunk (including header grains).
func (c *Chunk) Pages() int {
	return int(addr.AddrOffset(c.Base, c.Limit) / c.GrainSize)
}

// New constructs a chunk over [base, limit), which must be a whole
// multiple of grainSize. headerGrains grains at the low end are reserved
// for the chunk's own metadata and pre-marked allocated.
func New(base, limit addr.Addr, grainSize addr.Size, headerGrains int, serial uint64) *Chunk {
	assert.That(limit > base, "chunk: limit must exceed base")
	assert.That(addr.SizeIsAligned(addr.Size(limit-base), addr.Align(grainSize)),
		"chunk: size must be a multiple of grain size")

	c := &Chunk{Base: base, Limit: limit, GrainSize: grainSize, AllocBase: headerGrains, Serial: serial}
	n := c.Pages()
	c.alloc = bitmap.New(n)
	c.pages = tract.NewTable(n)
	c.alloc.SetRange(0, headerGrains)
	for i := 0; i < headerGrains; i++ {
		c.pages.At(i).Init(c.PageIndexBase(i), nil)
	}
	return c
}

// IndexOfAddr returns the grain index of addr a within the chunk.
func (c *Chunk) IndexOfAddr(a addr.Addr) int {
	assert.That(c.Contains(a), "chunk: address %#x not in chunk [%#x,%#x)", uintptr(a), uintptr(c.Base), uintptr(c.Limit))
	return int(addr.Size(a-c.Base) / c.GrainSize)
}

// PageIndexBase returns the base address of grain index i.
func (c *Chunk) PageIndexBase(i int) addr.Addr {
	return c.Base + addr.Addr(addr.Size(i)*c.GrainSize)
}

// SizeToPages converts a byte size (a multiple of GrainSize) to a grain count.
func (c *Chunk) SizeToPages(size addr.Size) int {
	assert.That(addr.SizeIsAligned(size, addr.Align(c.GrainSize)), "chunk: size not grain-aligned")
	return int(size / c.GrainSize)
}

// PageSize returns the chunk's grain size.
func (c *Chunk) PageSize() addr.Size { return c.GrainSize }

// Contains reports whether a lies in [Base, Limit).
func (c *Chunk) Contains(a addr.Addr) bool {
	return a >= c.Base && a < c.Limit
}

// Range returns the chunk's address range.
func (c *Chunk) Range() addr.Range { return addr.NewRange(c.Base, c.Limit) }

// AllocBitmap exposes the chunk's grain allocation table. Grains set in
// the bitmap are allocated (either to a client pool, or -- for grains
// donated to the CBS-block pool -- excluded from the free land while
// still marked allocated here; SPEC_FULL.md I6).
func (c *Chunk) AllocBitmap() *bitmap.T { return c.alloc }

// PageTable exposes the chunk's per-grain tract descriptors.
func (c *Chunk) PageTable() *tract.Table { return c.pages }

// FindFreeGrain finds a single free grain within the chunk, preferring
// the lowest address, for use by the bootstrap page allocator
// (SPEC_FULL.md §4.3 arenaAllocPage). It never touches grains below
// AllocBase.
func (c *Chunk) FindFreeGrain() (index int, found bool) {
	base, _, ok := c.alloc.FindShortResRange(c.AllocBase, c.Pages(), 1)
	return base, ok
}

// MarkAllocated marks grains [base, base+pages) allocated and assigns
// owner to their tract descriptors.
func (c *Chunk) MarkAllocated(base, pages int, owner tract.Owner) {
	assert.That(c.alloc.IsResetRange(base, base+pages), "chunk: double allocation")
	c.alloc.SetRange(base, base+pages)
	for i := base; i < base+pages; i++ {
		c.pages.At(i).Init(c.PageIndexBase(i), owner)
	}
}

// MarkFree marks grains [base, base+pages) free.
func (c *Chunk) MarkFree(base, pages int) {
	assert.That(c.alloc.IsSetRange(base, base+pages), "chunk: double free")
	c.alloc.ResetRange(base, base+pages)
	for i := base; i < base+pages; i++ {
		c.pages.At(i).Finish()
	}
}
