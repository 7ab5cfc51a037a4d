package control

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavanmanishd/memarena/addr"
)

func pageGrower(t *testing.T, pageSize addr.Size) (GrowFunc, *addr.Addr) {
	t.Helper()
	next := addr.Addr(0x100000)
	return func(minSize addr.Size) (addr.Addr, addr.Size, error) {
		base := next
		size := pageSize
		if addr.Size(minSize) > size {
			size = addr.SizeAlignUp(minSize, 0x1000)
		}
		next = addr.AddrAdd(next, size)
		return base, size, nil
	}, &next
}

func TestAllocGrowsThenReusesFreeBlock(t *testing.T) {
	grow, _ := pageGrower(t, 0x1000)
	p := New(8, grow)

	a, err := p.Alloc(64)
	assert.NoError(t, err)
	assert.Equal(t, addr.Addr(0x100000), a)
	assert.Equal(t, addr.Size(0x1000), p.Reserved())

	p.Free(a, 64)
	assert.Equal(t, addr.Size(0), p.Used())

	b, err := p.Alloc(64)
	assert.NoError(t, err)
	assert.Equal(t, a, b, "freed block must be reused before growing again")
	assert.Equal(t, addr.Size(0x1000), p.Reserved(), "no second grow needed")
}

func TestFreeCoalescesAdjacentBlocks(t *testing.T) {
	grow, _ := pageGrower(t, 0x1000)
	p := New(8, grow)

	a, err := p.Alloc(256)
	assert.NoError(t, err)
	b, err := p.Alloc(256)
	assert.NoError(t, err)
	assert.Equal(t, addr.AddrAdd(a, 256), b, "sequential allocs from one page must be adjacent")

	p.Free(a, 256)
	p.Free(b, 256)

	// A third alloc spanning both freed blocks must succeed without
	// growing, proving they coalesced into one contiguous free run.
	reserved := p.Reserved()
	c, err := p.Alloc(512)
	assert.NoError(t, err)
	assert.Equal(t, a, c)
	assert.Equal(t, reserved, p.Reserved())
}

func TestAllocGrowsWhenNoFreeBlockFits(t *testing.T) {
	grow, _ := pageGrower(t, 0x1000)
	p := New(8, grow)

	_, err := p.Alloc(4000)
	assert.NoError(t, err)
	// 96 bytes remain free in the first page; a 200 byte request cannot
	// fit and must grow.
	reserved := p.Reserved()
	_, err = p.Alloc(200)
	assert.NoError(t, err)
	assert.Greater(t, p.Reserved(), reserved)
}

func TestAllocPropagatesGrowError(t *testing.T) {
	sentinel := errors.New("resource exhausted")
	p := New(8, func(addr.Size) (addr.Addr, addr.Size, error) {
		return 0, 0, sentinel
	})
	_, err := p.Alloc(64)
	assert.ErrorIs(t, err, sentinel)
}

func TestUsedAccounting(t *testing.T) {
	grow, _ := pageGrower(t, 0x1000)
	p := New(8, grow)

	a, err := p.Alloc(100)
	assert.NoError(t, err)
	assert.Equal(t, addr.Size(104), p.Used(), "size rounds up to the 8-byte alignment")

	p.Free(a, 100)
	assert.Equal(t, addr.Size(0), p.Used())
}

func TestPagesTracksEveryGrowth(t *testing.T) {
	grow, _ := pageGrower(t, 0x1000)
	p := New(8, grow)

	_, err := p.Alloc(64)
	assert.NoError(t, err)
	// 4032 bytes remain free in the first page; a 4096 byte request cannot
	// fit and must grow a second page.
	_, err = p.Alloc(4096)
	assert.NoError(t, err)

	assert.Len(t, p.Pages(), 2)
}
