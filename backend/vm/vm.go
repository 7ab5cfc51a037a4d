// Package vm implements a virtual-memory-backed arena class
// (SPEC_FULL.md §4.7, §6): each chunk is a private anonymous mmap
// reserved PROT_NONE up front, with individual grains committed to
// PROT_READ|PROT_WRITE on demand and decommitted back to PROT_NONE on
// free. This is the arena's primary backend, the Go analogue of the
// source's VMArena class.
package vm

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	memarena "github.com/pavanmanishd/memarena"
	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/chunk"
	"github.com/pavanmanishd/memarena/class"
	"github.com/pavanmanishd/memarena/internal/assert"
	"github.com/pavanmanishd/memarena/tract"
)

const defaultArenaSize = addr.Size(256 << 20) // 256 MiB, the source's default initial reservation
const defaultGrainSize = addr.Size(4096)

// region is one mmap reservation backing one chunk.
type region struct {
	mem  []byte
	base addr.Addr
	size addr.Size
}

// Backend is a class.Backend over private anonymous mmap regions.
// The zero value is not usable; construct with New.
type Backend struct {
	class.Defaults

	grainSize addr.Size
	regions   map[class.ChunkHandle]*region
	nextHandle int
	reserved  addr.Size
}

// New returns an unconfigured virtual-memory backend; Init performs the
// actual reservation.
func New() *Backend {
	return &Backend{regions: make(map[class.ChunkHandle]*region)}
}

func (b *Backend) Init(args class.InitArgs) (addr.Range, addr.Size, addr.Shift, error) {
	size := args.ArenaSize
	if size == 0 {
		size = defaultArenaSize
	}
	grainSize := args.GrainSize
	if grainSize == 0 {
		grainSize = defaultGrainSize
	}
	size = addr.SizeAlignUp(size, addr.Align(grainSize))
	b.grainSize = grainSize

	// Init's signature has no way to hand the primary chunk's handle back
	// to the arena core, which always calls ChunkInit(nil, primary): the
	// region is recovered by base-address lookup in ChunkInit/Free/
	// PagesMarkAllocated, and Finish (not ChunkFinish) reaps it at
	// teardown since it is never removed from b.regions by handle.
	_, rng, err := b.reserve(size)
	if err != nil {
		return addr.Range{}, 0, 0, errors.WithMessage(err, "vm: initial reservation failed")
	}

	zoneShift := addr.ShiftForSize(grainSize)
	return rng, grainSize, zoneShift, nil
}

func (b *Backend) reserve(size addr.Size) (class.ChunkHandle, addr.Range, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, addr.Range{}, errors.Wrap(err, "vm: mmap reservation")
	}
	base := addr.Addr(uintptr(sliceAddr(mem)))
	rng := addr.NewRange(base, addr.AddrAdd(base, size))

	b.nextHandle++
	h := b.nextHandle
	b.regions[h] = &region{mem: mem, base: base, size: size}
	b.reserved += size
	return h, rng, nil
}

func (b *Backend) Finish() {
	for h, r := range b.regions {
		_ = unix.Munmap(r.mem)
		delete(b.regions, h)
	}
}

func (b *Backend) Reserved() addr.Size { return b.reserved }

// Grow reserves a fresh mmap region for a new chunk (Plan C).
func (b *Backend) Grow(minSize addr.Size) (class.ChunkHandle, addr.Range, error) {
	size := addr.SizeAlignUp(minSize, addr.Align(b.grainSize))
	if size < defaultArenaSize {
		size = defaultArenaSize
	}
	h, rng, err := b.reserve(size)
	if err != nil {
		return nil, addr.Range{}, errors.WithStack(memarena.ErrResource)
	}
	return h, rng, nil
}

// Extend adopts a caller-supplied region: the backend does not own its
// backing store, so Init/Finish never touch it, but PagesMarkAllocated
// still needs a region entry to mprotect against.
func (b *Backend) Extend(base addr.Addr, size addr.Size) (class.ChunkHandle, error) {
	b.nextHandle++
	h := b.nextHandle
	b.regions[h] = &region{base: base, size: size} // mem left nil: not ours to munmap
	return h, nil
}

// Free decommits rng back to PROT_NONE and advises the kernel the
// physical pages backing it may be reclaimed immediately (no spare
// retention in this backend: PurgeSpare is the trivial zero default).
func (b *Backend) Free(rng addr.Range) {
	r := b.regionFor(rng.Base)
	assert.That(r != nil, "vm: free of range not in any region")
	mem := b.slice(r, rng)
	_ = unix.Madvise(mem, unix.MADV_DONTNEED)
	_ = unix.Mprotect(mem, unix.PROT_NONE)
}

func (b *Backend) ChunkInit(h class.ChunkHandle, c *chunk.Chunk) error {
	r := b.regions[h]
	if r == nil {
		r = b.regionFor(c.Base)
	}
	assert.That(r != nil, "vm: chunk init for unknown region")
	if c.AllocBase == 0 {
		return nil
	}
	headerRange := addr.NewRange(c.Base, c.PageIndexBase(c.AllocBase))
	return b.commit(r, headerRange)
}

func (b *Backend) ChunkFinish(h class.ChunkHandle) {
	r, ok := b.regions[h]
	if !ok {
		return
	}
	if r.mem != nil {
		_ = unix.Munmap(r.mem)
		b.reserved -= addr.Size(len(r.mem))
	}
	delete(b.regions, h)
}

// PagesMarkAllocated commits rng's backing store to RW and records
// owner in the chunk's tract table.
func (b *Backend) PagesMarkAllocated(c *chunk.Chunk, rng addr.Range, owner tract.Owner) error {
	r := b.regionFor(rng.Base)
	assert.That(r != nil, "vm: mark-allocated for range not in any region")
	if err := b.commit(r, rng); err != nil {
		return err
	}
	c.MarkAllocated(c.IndexOfAddr(rng.Base), c.SizeToPages(rng.Size()), owner)
	return nil
}

func (b *Backend) commit(r *region, rng addr.Range) error {
	mem := b.slice(r, rng)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return errors.WithMessage(errors.WithStack(memarena.ErrMemory), "vm: mprotect commit: "+err.Error())
	}
	return nil
}

func (b *Backend) regionFor(a addr.Addr) *region {
	for _, r := range b.regions {
		lo := r.base
		hi := addr.AddrAdd(lo, r.size)
		if a >= lo && a < hi {
			return r
		}
	}
	return nil
}

// slice returns a []byte view over rng. For a region this backend reserved
// itself, that view is a subslice of the owning mmap. For a region adopted
// via Extend, there is no owned slice to subslice -- mem is nil -- so the
// view is constructed directly over the caller's memory at that address.
func (b *Backend) slice(r *region, rng addr.Range) []byte {
	if r.mem != nil {
		off := addr.AddrOffset(r.base, rng.Base)
		return r.mem[off : off+rng.Size()]
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(rng.Base))), int(rng.Size()))
}

func (b *Backend) Describe() string {
	return "vm backend: anonymous-mmap chunks, mprotect-based commit/decommit"
}

// sliceAddr returns the address of the first byte of mem. Needed because
// Addr must be derived from the mmap's returned slice.
func sliceAddr(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mem[0]))
}
