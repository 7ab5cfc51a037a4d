package arena_test

import (
	"testing"

	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/arena"
	"github.com/pavanmanishd/memarena/backend/client"
)

// safeArena serializes every call to one *arena.Arena behind a mutex,
// adapted from the teacher's deleted SafeArena: the core itself holds
// no locks (SPEC_FULL.md §5), so tests and benchmarks exercising it
// concurrently need this thin wrapper rather than a lock inside the
// core itself.
type safeArena struct {
	mu sync.Mutex
	a  *arena.Arena
}

func (s *safeArena) Alloc(pref arena.Locus, size addr.Size, owner any) (addr.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Alloc(pref, size, owner)
}

func (s *safeArena) Free(base addr.Addr, size addr.Size, owner any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Free(base, size, owner)
}

func (s *safeArena) Committed() addr.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Committed()
}

// TestConcurrentAllocFreeHoldsInvariants hammers one arena from many
// goroutines through safeArena. It relies on the core's own internal
// assertions (which panic in non-release builds) to catch a broken
// invariant during each operation; the test body itself checks only
// that every worker finishes without error.
func TestConcurrentAllocFreeHoldsInvariants(t *testing.T) {
	mem := make([]byte, 1<<20)
	raw, err := arena.Create(client.New(mem), nil, nil, arena.GrainSize(64), arena.NodePoolUnitSize(16))
	require.NoError(t, err)
	s := &safeArena{a: raw}

	const workers = 16
	const perWorker = 200

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			owner := struct{ n int }{i}
			for j := 0; j < perWorker; j++ {
				base, err := s.Alloc(arena.Locus{Zones: addr.ZoneSetUniv}, 64, owner)
				if err != nil {
					continue // RESOURCE under contention is acceptable, not a bug
				}
				s.Free(base, 64, owner)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
