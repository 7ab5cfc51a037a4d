// Package class defines the arena class vtable: the polymorphic hooks
// every concrete back-end (virtual-memory, client-memory, ...) supplies
// so the generic arena core in package arena can drive it without
// knowing how address space is actually reserved or committed
// (SPEC_FULL.md §4.7).
//
// Backend is the Go rendering of the source's vtable-of-function-
// pointers; Defaults is an embeddable struct providing the trivial
// implementations the source names (ArenaNoGrow, ArenaNoPurgeSpare,
// ArenaNoExtend, ArenaTrivCompact), mirroring single-inheritance-to-
// embedding the way Go idiomatically models optional vtable slots.
package class

import (
	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/chunk"
	"github.com/pavanmanishd/memarena/tract"
)

// ChunkHandle is an opaque identity for a chunk a backend has set up,
// returned by Extend/Grow and passed back to ChunkInit/ChunkFinish.
// Init returns no handle; the arena passes nil for the primary chunk.
type ChunkHandle any

// InitArgs carries the configuration keys ArenaCreate accepts that are
// backend-relevant (SPEC_FULL.md §6 "variadic configuration keys").
// Class-specific keys beyond these are a concrete backend's own
// constructor's concern, not this vtable's.
type InitArgs struct {
	ArenaSize addr.Size // class-specific interpretation; 0 means "backend default"
	GrainSize addr.Size // 0 means "backend default"
	Zoned     bool
}

// Backend is the arena class vtable. Every method corresponds to one
// hook named in SPEC_FULL.md §4.7.
type Backend interface {
	// Init sets up the concrete backend-specific state and returns the
	// arena's primary chunk range, grain size and zone shift.
	Init(args InitArgs) (primary addr.Range, grainSize addr.Size, zoneShift addr.Shift, err error)

	// Finish releases any backend-specific state. Called last in
	// ArenaDestroy, after the control pool's and CBS-block pool's pages
	// have been surrendered via Free and every chunk via ChunkFinish.
	Finish()

	// Reserved returns the total address space reserved by the backend
	// across every chunk.
	Reserved() addr.Size

	// PurgeSpare releases up to size bytes of spare-committed memory
	// back to the backend, returning the amount actually released.
	PurgeSpare(size addr.Size) addr.Size

	// Extend adds a caller-supplied contiguous region as a new chunk.
	Extend(base addr.Addr, size addr.Size) (ChunkHandle, error)

	// Grow autonomously acquires more address space (e.g. a fresh mmap
	// region), creating a new chunk. Used by Plan C.
	Grow(minSize addr.Size) (ChunkHandle, addr.Range, error)

	// Free surrenders rng, previously committed, back to the backend.
	// It may release the backing store immediately or retain it as
	// spare, backend-dependent.
	Free(rng addr.Range)

	// ChunkInit performs backend-specific setup for a freshly created
	// chunk (e.g. reserving its header pages' backing store).
	ChunkInit(h ChunkHandle, c *chunk.Chunk) error

	// ChunkFinish tears down backend-specific state for a chunk being
	// destroyed.
	ChunkFinish(h ChunkHandle)

	// PagesMarkAllocated commits backing store for the pages in rng and
	// records owner in their tract entries. It must never call back
	// into the arena's public Alloc/Free (SPEC_FULL.md §5 re-entrancy
	// hazard).
	PagesMarkAllocated(c *chunk.Chunk, rng addr.Range, owner tract.Owner) error

	// Compact runs backend-specific compaction. Most backends have
	// nothing to do here.
	Compact()

	// Describe writes a short human-readable backend state summary,
	// mirroring the source's describe hook used for diagnostics.
	Describe() string
}

// Defaults provides trivial implementations for the optional vtable
// slots. A concrete backend embeds Defaults and overrides only the
// hooks it actually supports.
type Defaults struct{}

// ErrNoGrow is returned by a backend that does not support autonomous
// growth (ArenaNoGrow in the source).
var ErrNoGrow = errNoGrow{}

type errNoGrow struct{}

func (errNoGrow) Error() string { return "class: backend does not support Grow (RESOURCE)" }

// Grow is the trivial "no autonomous growth" implementation.
func (Defaults) Grow(addr.Size) (ChunkHandle, addr.Range, error) {
	return nil, addr.Range{}, ErrNoGrow
}

// PurgeSpare is the trivial "nothing to purge" implementation.
func (Defaults) PurgeSpare(addr.Size) addr.Size { return 0 }

// Extend is the trivial "extension unsupported" implementation. The
// source documents ArenaNoExtend as unreachable: a backend embedding
// Defaults without overriding Extend is declaring it will never be
// called, so this panics rather than returning an error.
func (Defaults) Extend(addr.Addr, addr.Size) (ChunkHandle, error) {
	panic("class: backend does not support Extend")
}

// Compact is the trivial no-op implementation.
func (Defaults) Compact() {}
