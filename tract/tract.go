// Package tract implements the per-grain page descriptor and its
// per-chunk table (SPEC_FULL.md §3 "Tract"). The pool layer itself is an
// external collaborator (spec.md §1 "Out of scope"); tract only needs an
// opaque identity for "who owns this grain", modeled as Owner.
package tract

import "github.com/pavanmanishd/memarena/addr"

// Owner is the opaque pool identity attached to an allocated tract. The
// concrete pool layer is out of scope for this core; callers supply
// whatever comparable value identifies their pool (typically a *Pool
// pointer from the layer above).
type Owner any

// T is the per-grain descriptor: a base address, the owning pool, and a
// small amount of class-private state (e.g. a "white"/colour bit for a
// collector). The arena core itself only resets the state, in Init and
// Finish.
type T struct {
	base  addr.Addr
	owner Owner
	state uint8
}

// Init (re-)initializes a tract descriptor, as TractInit does in the
// source, including when arenaLandInsertSteal re-initializes a tract
// stolen from its previous owner to belong to the CBS-block pool.
func (t *T) Init(base addr.Addr, owner Owner) {
	t.base = base
	t.owner = owner
	t.state = 0
}

// Finish clears a tract before it is re-initialized for a new owner.
func (t *T) Finish() {
	t.owner = nil
	t.state = 0
}

// Base returns the tract's base address.
func (t *T) Base() addr.Addr { return t.base }

// Owner returns the tract's owning pool identity.
func (t *T) Owner() Owner { return t.owner }

// State returns the class-private state byte.
func (t *T) State() uint8 { return t.state }

// SetState sets the class-private state byte.
func (t *T) SetState(s uint8) { t.state = s }

// Table is a per-chunk array of tracts, one per grain, indexed by grain
// index relative to the chunk's base (the "page table" of SPEC_FULL.md §3).
type Table struct {
	tracts []T
}

// NewTable allocates a page table for nGrains grains.
func NewTable(nGrains int) *Table {
	return &Table{tracts: make([]T, nGrains)}
}

// At returns the tract descriptor for grain index i.
func (p *Table) At(i int) *T {
	return &p.tracts[i]
}

// Len returns the number of grains in the table.
func (p *Table) Len() int { return len(p.tracts) }
