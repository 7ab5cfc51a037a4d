// Package mfs implements the CBS-block pool: a fixed-size-block
// allocator dedicated to storing free-land tree nodes (SPEC_FULL.md
// §2.4, §4.3). It refuses to self-extend -- on exhaustion Alloc returns
// ErrLimit and the caller (the land package, via the arena's bootstrap
// functions) must feed it a fresh page with Extend.
//
// This generalizes the teacher's chunked bump allocator
// (Arena.grow/AllocBytes/currentChunk in the original arena.go): the
// same "carve fixed units out of a page, bump a cursor, grow on demand"
// shape, but the units it hands out are land-tree nodes recycled
// through a free list rather than raw bytes, because land nodes hold
// child pointers that Go's garbage collector must be able to trace --
// the teacher's unsafe.Pointer byte-carving technique is sound only for
// pointer-free payloads, so here capacity/free-list accounting plays
// the teacher's role while node storage itself stays ordinary
// GC-managed allocation (see DESIGN.md).
package mfs

import "github.com/pavanmanishd/memarena/addr"

// ErrLimit is returned by Alloc when the pool has exhausted its current
// page and the caller must Extend it with a fresh one. It is the Go
// rendering of the source's internal ResLIMIT and must never cross a
// package boundary beyond land/arena's bootstrap retry logic
// (SPEC_FULL.md §4.5.2, §7).
type limitError struct{}

func (limitError) Error() string { return "mfs: block pool exhausted (LIMIT)" }

// ErrLimit is the sentinel value returned by Alloc on exhaustion.
var ErrLimit error = limitError{}

// Pool is a fixed-size-block allocator with a single configured unit
// size. T is typically the land package's node type.
type Pool[T any] struct {
	unitSize addr.Size
	capacity int
	used     int
	free     []*T
	extends  int
	pages    []addr.Addr
}

// New returns a Pool configured for units of size unitSize. Go manages
// the actual storage per object; unitSize only sets how many units each
// Extend page provides (pageSize/unitSize). It starts with zero
// capacity, as the source's MFS pool does until first Extend.
func New[T any](unitSize addr.Size) *Pool[T] {
	return &Pool[T]{unitSize: unitSize}
}

// UnitSize returns the pool's configured unit size.
func (p *Pool[T]) UnitSize() addr.Size { return p.unitSize }

// Capacity returns the number of units the pool could hold without a
// further Extend.
func (p *Pool[T]) Capacity() int { return p.capacity }

// InUse returns the number of units currently allocated.
func (p *Pool[T]) InUse() int { return p.used }

// Extends returns how many times Extend has been called.
func (p *Pool[T]) Extends() int { return p.extends }

// Alloc returns a fresh zero-valued *T, or ErrLimit if the pool has no
// spare capacity and nothing on its free list.
func (p *Pool[T]) Alloc() (*T, error) {
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		p.free = p.free[:n-1]
		p.used++
		*v = *new(T)
		return v, nil
	}
	if p.used >= p.capacity {
		return nil, ErrLimit
	}
	p.used++
	return new(T), nil
}

// Free returns v to the pool's free list for reuse.
func (p *Pool[T]) Free(v *T) {
	p.used--
	p.free = append(p.free, v)
}

// Extend grows the pool's capacity by the number of units that fit in a
// page of pageSize bytes based at pageBase, mirroring
// MFSExtend(pageBase, ArenaAlign(arena)). pageBase is remembered so that
// Pages can report every page the pool holds when the arena tears it
// down directly via the class free hook (SPEC_FULL.md §3 Lifecycle).
func (p *Pool[T]) Extend(pageBase addr.Addr, pageSize addr.Size) {
	n := int(pageSize / p.unitSize)
	if n < 1 {
		n = 1
	}
	p.capacity += n
	p.extends++
	p.pages = append(p.pages, pageBase)
}

// Pages returns the base address of every page ever handed to Extend, in
// the order they were donated.
func (p *Pool[T]) Pages() []addr.Addr {
	return append([]addr.Addr(nil), p.pages...)
}
