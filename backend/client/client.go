// Package client implements a caller-supplied-memory arena class
// (SPEC_FULL.md §4.7, §6): the caller hands over one or more ordinary
// Go byte slices up front, and the backend treats every byte in them
// as already committed. There is no virtual-memory reservation, no
// mprotect, no autonomous growth -- just bookkeeping over slices the
// caller already owns. This mirrors the source's client-arena class,
// used for embedding the allocator inside already-managed memory (for
// instance a single large arena carved out of another pool).
package client

import (
	"unsafe"

	"github.com/pkg/errors"

	memarena "github.com/pavanmanishd/memarena"
	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/chunk"
	"github.com/pavanmanishd/memarena/class"
	"github.com/pavanmanishd/memarena/internal/assert"
	"github.com/pavanmanishd/memarena/tract"
)

// block is one caller-supplied buffer backing one chunk. The slice
// itself is retained only so it stays reachable to the Go garbage
// collector for the arena's lifetime; no bytes in it are ever read or
// written by this backend.
type block struct {
	mem  []byte
	base addr.Addr
	size addr.Size
}

// Backend is a class.Backend over caller-supplied []byte buffers. It
// never autonomously grows (class.Defaults.Grow) and never purges spare
// (class.Defaults.PurgeSpare): a client backend is exactly as big as
// what was handed to it.
type Backend struct {
	class.Defaults

	grainSize  addr.Size
	blocks     map[class.ChunkHandle]*block
	nextHandle int
	reserved   addr.Size

	primary []byte // consumed by the first Init call only
}

// New returns a client backend whose primary chunk is backed by mem.
// len(mem) must be a whole multiple of the arena's eventual grain size.
func New(mem []byte) *Backend {
	return &Backend{blocks: make(map[class.ChunkHandle]*block), primary: mem}
}

func (b *Backend) Init(args class.InitArgs) (addr.Range, addr.Size, addr.Shift, error) {
	grainSize := args.GrainSize
	if grainSize == 0 {
		grainSize = 4096
	}
	if len(b.primary) == 0 {
		return addr.Range{}, 0, 0, errors.WithStack(memarena.ErrMemory)
	}
	if !addr.SizeIsAligned(addr.Size(len(b.primary)), addr.Align(grainSize)) {
		return addr.Range{}, 0, 0, errors.WithMessage(errors.WithStack(memarena.ErrFail),
			"client: supplied buffer length is not a multiple of grain size")
	}
	b.grainSize = grainSize

	base := sliceBase(b.primary)
	rng := addr.NewRange(base, addr.AddrAdd(base, addr.Size(len(b.primary))))
	b.blocks[0] = &block{mem: b.primary, base: base, size: addr.Size(len(b.primary))} // handle 0: never assigned by Extend/Grow
	b.reserved += addr.Size(len(b.primary))
	b.primary = nil

	zoneShift := addr.ShiftForSize(grainSize)
	return rng, grainSize, zoneShift, nil
}

func (b *Backend) Finish() {
	b.blocks = make(map[class.ChunkHandle]*block)
}

func (b *Backend) Reserved() addr.Size { return b.reserved }

// Extend adopts a caller-supplied buffer as a new chunk. base and size
// must describe the address range of an existing, still-reachable Go
// slice: the backend records it for containment lookups but performs
// no reservation of its own.
func (b *Backend) Extend(base addr.Addr, size addr.Size) (class.ChunkHandle, error) {
	b.nextHandle++
	h := b.nextHandle
	b.blocks[h] = &block{base: base, size: size}
	b.reserved += size
	return h, nil
}

func (b *Backend) Free(addr.Range) {
	// Caller-owned memory: nothing to release back to the OS. Grains are
	// simply marked free again in the chunk's own bitmap by the arena.
}

func (b *Backend) ChunkInit(class.ChunkHandle, *chunk.Chunk) error { return nil }

func (b *Backend) ChunkFinish(h class.ChunkHandle) {
	delete(b.blocks, h)
}

// PagesMarkAllocated records owner in the chunk's tract table. The
// backing bytes are already live Go memory, so there is nothing to
// commit.
func (b *Backend) PagesMarkAllocated(c *chunk.Chunk, rng addr.Range, owner tract.Owner) error {
	assert.That(b.contains(rng.Base), "client: mark-allocated for range outside any supplied buffer")
	c.MarkAllocated(c.IndexOfAddr(rng.Base), c.SizeToPages(rng.Size()), owner)
	return nil
}

func (b *Backend) contains(a addr.Addr) bool {
	for _, blk := range b.blocks {
		lo := blk.base
		hi := addr.AddrAdd(lo, blk.size)
		if a >= lo && a < hi {
			return true
		}
	}
	return false
}

func (b *Backend) Describe() string {
	return "client backend: caller-supplied buffers, no OS-level commit/decommit"
}

func sliceBase(mem []byte) addr.Addr {
	if len(mem) == 0 {
		return 0
	}
	return addr.Addr(uintptr(unsafe.Pointer(&mem[0])))
}
