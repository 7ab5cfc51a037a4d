package arena_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/arena"
	"github.com/pavanmanishd/memarena/backend/client"
)

func uintptrOf(mem []byte) uintptr { return uintptr(unsafe.Pointer(&mem[0])) }

type testOwner struct{ id int }

func newArena(t *testing.T, bufSize int, grainSize addr.Size, opts ...arena.Option) *arena.Arena {
	t.Helper()
	mem := make([]byte, bufSize)
	allOpts := append([]arena.Option{arena.GrainSize(grainSize), arena.NodePoolUnitSize(8)}, opts...)
	a, err := arena.Create(client.New(mem), nil, nil, allOpts...)
	require.NoError(t, err)
	return a
}

func TestCreateSeedsAvailableSpace(t *testing.T) {
	a := newArena(t, 4096, 64)
	require.Equal(t, addr.Size(4096), a.Reserved())
	require.True(t, a.Avail() > 0)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	a := newArena(t, 4096, 64)
	owner := testOwner{1}
	baseline := a.Committed() // header grain, plus whatever the CBS-block pool's bootstrap steal committed

	base, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 256, owner)
	require.NoError(t, err)
	require.True(t, a.HasAddr(base))
	require.Equal(t, baseline+256, a.Committed())

	tr, err := a.AddrTract(base)
	require.NoError(t, err)
	require.Equal(t, owner, tr.Owner())

	a.Free(base, 256, owner)
	require.Equal(t, baseline, a.Committed())

	// The freed range must be available again.
	base2, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 256, owner)
	require.NoError(t, err)
	require.Equal(t, base, base2)
}

func TestAllocRespectsCommitLimit(t *testing.T) {
	a := newArena(t, 4096, 64, arena.CommitLimit(128))
	owner := testOwner{1}

	_, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 256, owner)
	require.Error(t, err)
}

func TestAllocFailsWhenExhausted(t *testing.T) {
	a := newArena(t, 4096, 64)
	owner := testOwner{1}

	for {
		if _, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 64, owner); err != nil {
			break
		}
	}

	_, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 64, owner)
	require.Error(t, err)
}

func TestFreeThenAllocCoalescesAdjacentRanges(t *testing.T) {
	a := newArena(t, 8192, 64)
	owner := testOwner{1}

	b1, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 64, owner)
	require.NoError(t, err)
	b2, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 64, owner)
	require.NoError(t, err)
	require.Equal(t, b1+64, b2)

	a.Free(b1, 64, owner)
	a.Free(b2, 64, owner)

	big, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 128, owner)
	require.NoError(t, err)
	require.Equal(t, b1, big)
}

func TestExtendAddsUsableChunk(t *testing.T) {
	a := newArena(t, 4096, 64)
	owner := testOwner{1}

	extra := make([]byte, 4096)
	base := addr.Addr(uintptrOf(extra))
	require.NoError(t, a.Extend(base, addr.Size(len(extra))))

	got, err := a.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 4096, owner)
	require.NoError(t, err)
	require.True(t, got >= base && got < base+addr.Addr(len(extra)))
}

func TestControlAllocGrowsThroughArena(t *testing.T) {
	a := newArena(t, 8192, 64)

	b1, err := a.ControlAlloc(100)
	require.NoError(t, err)
	require.NotZero(t, b1)

	a.ControlFree(b1, 100)
}
