// Package arena implements the arena core: the orchestration layer
// that owns a chunk tree, a zoned free land, a CBS-block pool and a
// control pool, and drives the zoned allocation policy over them
// (SPEC_FULL.md §4.5-§4.6). It is the "30% / Arena core" component.
package arena

import (
	"github.com/pkg/errors"

	memarena "github.com/pavanmanishd/memarena"
	"github.com/pavanmanishd/memarena/addr"
	"github.com/pavanmanishd/memarena/chunk"
	"github.com/pavanmanishd/memarena/class"
	"github.com/pavanmanishd/memarena/control"
	"github.com/pavanmanishd/memarena/internal/assert"
	"github.com/pavanmanishd/memarena/land"
	"github.com/pavanmanishd/memarena/mfs"
	"github.com/pavanmanishd/memarena/policy"
	"github.com/pavanmanishd/memarena/tract"
)

// Locus is the caller's placement preference, re-exported from package
// policy so callers need only import package arena.
type Locus = policy.Locus

// cbsPoolOwner is the tract.Owner identity assigned to grains donated
// to the CBS-block pool: they remain marked allocated in their chunk's
// bitmap forever (until the whole chunk is destroyed) but are excluded
// from the free land (SPEC_FULL.md I6).
type cbsPoolOwner struct{}

// Arena is the core: owns the chunk tree, free land, CBS-block pool and
// control pool for one backend. It holds no internal locks; callers
// must serialize every public method via an outer lock (SPEC_FULL.md
// §5).
type Arena struct {
	backend   class.Backend
	grainSize addr.Size
	zoneShift addr.Shift
	zoned     bool

	committed        addr.Size
	commitLimit      addr.Size
	spareCommitted   addr.Size
	spareCommitLimit addr.Size

	chunks       *chunk.Tree
	chunkHandles map[*chunk.Chunk]class.ChunkHandle
	primary      *chunk.Chunk
	chunkSerial  uint64

	land      *land.Land
	freeZones addr.ZoneSet

	control   *control.Pool
	poolReady bool

	lastTract *tract.T
	lastBase  addr.Addr
	lastLimit addr.Addr

	events  *memarena.Events
	metrics *memarena.Metrics
}

// Create performs the arena's two-phase init (SPEC_FULL.md §3
// Lifecycle): the backend allocates its concrete state and reports the
// primary chunk's range, grain size and zone shift; then the generic
// initializer wires the CBS-block pool and free land (the land starts
// empty until the primary chunk's range is inserted); finally the
// control pool is initialized.
//
// events and metrics may be nil; events defaults to a no-op sink.
func Create(backend class.Backend, events *memarena.Events, metrics *memarena.Metrics, opts ...Option) (*Arena, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if events == nil {
		events = memarena.NewEvents(nil)
	}

	primaryRange, grainSize, zoneShift, err := backend.Init(class.InitArgs{
		ArenaSize: cfg.arenaSize,
		GrainSize: cfg.grainSize,
		Zoned:     cfg.zoned,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "arena: backend init failed")
	}

	a := &Arena{
		backend:          backend,
		grainSize:        grainSize,
		zoneShift:        zoneShift,
		zoned:            cfg.zoned,
		commitLimit:      cfg.commitLimit,
		spareCommitLimit: cfg.spareCommitLimit,
		chunks:           chunk.NewTree(),
		chunkHandles:     make(map[*chunk.Chunk]class.ChunkHandle),
		land:             land.NewLand(zoneShift, cfg.nodePoolUnitSize),
		events:           events,
		metrics:          metrics,
	}

	const headerGrains = 1 // one grain reserved for the chunk's own bookkeeping
	primary := chunk.New(primaryRange.Base, primaryRange.Limit, grainSize, headerGrains, a.nextSerial())
	if err := backend.ChunkInit(nil, primary); err != nil {
		return nil, errors.WithMessage(err, "arena: primary chunk init failed")
	}
	a.chunks.Insert(primary)
	a.primary = primary
	a.freeZones = addr.ZoneSetUniv
	a.committed += addr.Size(headerGrains) * grainSize

	headerLimit := primary.PageIndexBase(headerGrains)
	freeRange := addr.NewRange(headerLimit, primaryRange.Limit)
	if !freeRange.IsEmpty() {
		if err := a.insertWholeChunkFreeRange(freeRange, primary.Base); err != nil {
			return nil, errors.WithMessage(err, "arena: failed to seed free land with primary chunk")
		}
	}

	a.control = control.New(addr.Align(8), a.controlGrow)
	a.poolReady = true

	a.recordMetrics()
	a.events.ArenaCreate(grainSize, zoneShift, cfg.zoned)
	return a, nil
}

func (a *Arena) nextSerial() uint64 {
	a.chunkSerial++
	return a.chunkSerial
}

// Destroy tears the arena down, reversing Create's order: drain spare,
// tear down the control pool, finish the free land, have the CBS-block
// pool release every page it holds via the backend's free hook
// directly (it cannot go through the arena, which is being destroyed),
// then the backend-specific finish.
func (a *Arena) Destroy() {
	a.backend.PurgeSpare(a.spareCommitted)

	for _, rng := range a.control.Pages() {
		a.backend.Free(rng)
	}

	for _, base := range a.land.NodePoolPages() {
		a.backend.Free(addr.NewRange(base, addr.AddrAdd(base, a.grainSize)))
	}

	a.chunks.Ascend(func(c *chunk.Chunk) bool {
		a.backend.ChunkFinish(a.chunkHandles[c])
		return true
	})

	a.backend.Finish()
}

// GrainSize returns the arena's configured grain size.
func (a *Arena) GrainSize() addr.Size { return a.grainSize }

// Zoned reports whether the arena was created with zoned placement.
func (a *Arena) Zoned() bool { return a.zoned }

// ---- Bootstrap: arenaAllocPage, arenaExtendCBSBlockPool, arenaExcludePage (SPEC_FULL.md §4.3) ----

// arenaAllocPage is a deliberately simple page allocator: it scans
// chunk alloc-bitmaps directly (no free-land consultation) for one free
// grain, preferring the primary chunk so auxiliary chunks remain
// individually destructible. On success it marks the page allocated
// (owned by the CBS-block pool) and returns its base address.
func (a *Arena) arenaAllocPage() (addr.Addr, error) {
	if idx, ok := a.primary.FindFreeGrain(); ok {
		return a.markPageForBlockPool(a.primary, idx)
	}

	var found *chunk.Chunk
	var foundIdx int
	a.chunks.Ascend(func(c *chunk.Chunk) bool {
		if c == a.primary {
			return true
		}
		if idx, ok := c.FindFreeGrain(); ok {
			found, foundIdx = c, idx
			return false
		}
		return true
	})
	if found == nil {
		return 0, errors.WithStack(memarena.ErrResource)
	}
	return a.markPageForBlockPool(found, foundIdx)
}

func (a *Arena) markPageForBlockPool(c *chunk.Chunk, grainIdx int) (addr.Addr, error) {
	base := c.PageIndexBase(grainIdx)
	rng := addr.NewRange(base, addr.AddrAdd(base, a.grainSize))
	if err := a.backend.PagesMarkAllocated(c, rng, cbsPoolOwner{}); err != nil {
		return 0, err
	}
	a.committed += a.grainSize
	a.recordMetrics()
	return base, nil
}

// arenaExtendCBSBlockPool feeds the free land's node pool a fresh page
// and excludes that page's range from the free land (SPEC_FULL.md
// §4.3): the insert-before-exclude ordering is enforced
// by construction here, since by the time this runs the land already
// holds whatever range the page was carved from.
func (a *Arena) arenaExtendCBSBlockPool() error {
	base, err := a.arenaAllocPage()
	if err != nil {
		return err
	}
	a.land.ExtendNodePool(base, a.grainSize)
	return a.arenaExcludePage(base)
}

// arenaExcludePage deletes the page based at base from the free land.
// The page must be there: arenaAllocPage only picks grains that are
// free in their chunk's bitmap, and land.Delete asserts that a covering
// range exists. Its own LIMIT is handled by one further recursive extend,
// which the source guarantees always succeeds.
func (a *Arena) arenaExcludePage(base addr.Addr) error {
	pageRange := addr.NewRange(base, addr.AddrAdd(base, a.grainSize))
	_, err := a.land.Delete(pageRange)
	if err == nil || !errors.Is(err, mfs.ErrLimit) {
		return err
	}
	if extErr := a.arenaExtendCBSBlockPool(); extErr != nil {
		return extErr
	}
	_, err = a.land.Delete(pageRange)
	assert.That(!errors.Is(err, mfs.ErrLimit), "arena: CBS block pool still exhausted after extend")
	return err
}

// arenaLandInsertSteal inserts rng (owned by chunkBase) into the free
// land, self-healing a LIMIT failure by stealing the first grain of
// rng itself to feed the node pool directly, rather than going through
// arenaExtendCBSBlockPool/arenaExcludePage -- those assume the land
// already has content to exclude the stolen page's range from, which
// is not true the first time any given range is inserted (the
// bootstrap corner case, and every new chunk's first insert).
func (a *Arena) arenaLandInsertSteal(rng addr.Range, chunkBase addr.Addr) (addr.Range, error) {
	merged, err := a.land.Insert(rng, chunkBase)
	if err == nil {
		return merged, nil
	}
	if !errors.Is(err, mfs.ErrLimit) {
		return addr.Range{}, err
	}

	c, ok := a.chunks.Find(rng.Base)
	assert.That(ok, "arena: steal target address %#x not in any chunk", uintptr(rng.Base))

	stolen := addr.NewRange(rng.Base, addr.AddrAdd(rng.Base, a.grainSize))
	if _, err := a.markPageForBlockPool(c, c.IndexOfAddr(stolen.Base)); err != nil {
		return addr.Range{}, err
	}
	a.land.ExtendNodePool(stolen.Base, a.grainSize)

	remainder := addr.NewRange(stolen.Limit, rng.Limit)
	if remainder.IsEmpty() {
		return stolen, nil
	}
	merged, err = a.land.Insert(remainder, chunkBase)
	assert.That(err == nil, "arena: retry after stealing a block-pool node must succeed: %v", err)
	return merged, nil
}

// insertWholeChunkFreeRange inserts a brand new chunk's entire free
// range (SPEC_FULL.md §4.6): it must not coalesce with anything
// already present, which land.Insert guarantees by construction since
// a fresh chunkBase never matches an existing node's chunk identity.
// The inserted range may be one grain short of rng if its first grain
// was stolen for the CBS-block pool, so the check is containment.
func (a *Arena) insertWholeChunkFreeRange(rng addr.Range, chunkBase addr.Addr) error {
	merged, err := a.arenaLandInsertSteal(rng, chunkBase)
	if err != nil {
		return err
	}
	assert.That(rng.ContainsRange(merged), "arena: new chunk's free range coalesced with an existing range (violates chunk non-coalescence)")
	return nil
}

// arenaFreeLandDelete removes a chunk's free range ahead of the chunk's
// own destruction (SPEC_FULL.md §4.6, §9). rng must be exactly the
// range the free land currently holds for this chunk -- the caller
// (the not-yet-built chunk-destruction path) is expected to look that
// up via Land.Iterate first; relaxing this to an arbitrary mid-chunk
// split at removal time is explicitly not attempted, per the source's
// own documented caution.
func (a *Arena) arenaFreeLandDelete(rng addr.Range, c *chunk.Chunk) error {
	assert.That(c.Contains(rng.Base) || rng.IsEmpty(), "arena: ArenaFreeLandDelete range not within the given chunk")
	old, err := a.deleteWithLimitRetry(rng)
	assert.That(err != nil || old.Equal(rng), "arena: ArenaFreeLandDelete must remove a whole free range, not part of %v", old)
	return err
}

func (a *Arena) deleteWithLimitRetry(rng addr.Range) (addr.Range, error) {
	old, err := a.land.Delete(rng)
	if err == nil || !errors.Is(err, mfs.ErrLimit) {
		return old, err
	}
	if extErr := a.arenaExtendCBSBlockPool(); extErr != nil {
		return addr.Range{}, extErr
	}
	old, err = a.land.Delete(rng)
	assert.That(!errors.Is(err, mfs.ErrLimit), "arena: delete still LIMIT after CBS pool extend")
	return old, err
}

func (a *Arena) findInZonesWithLimitRetry(size addr.Size, zones addr.ZoneSet, high bool) (bool, addr.Range, error) {
	found, result, err := a.land.FindInZones(size, zones, high)
	if err == nil || !errors.Is(err, mfs.ErrLimit) {
		return found, result, err
	}
	if extErr := a.arenaExtendCBSBlockPool(); extErr != nil {
		return false, addr.Range{}, extErr
	}
	found, result, err = a.land.FindInZones(size, zones, high)
	assert.That(!errors.Is(err, mfs.ErrLimit), "arena: FindInZones still LIMIT after CBS pool extend")
	return found, result, err
}

// ---- Commit accounting (SPEC_FULL.md §4.5.1) ----

// Reserved returns the total address space reserved by the backend.
func (a *Arena) Reserved() addr.Size { return a.backend.Reserved() }

// Committed returns the bytes currently committed.
func (a *Arena) Committed() addr.Size { return a.committed }

// SpareCommitted returns the committed-but-parked-as-spare bytes.
func (a *Arena) SpareCommitted() addr.Size { return a.spareCommitted }

// Avail returns an estimate of bytes available for further allocation
// without exceeding the commit limit.
func (a *Arena) Avail() addr.Size {
	if a.committed >= a.commitLimit {
		return 0
	}
	return a.commitLimit - a.committed
}

// SetCommitLimit sets the maximum bytes the arena may have committed.
func (a *Arena) SetCommitLimit(limit addr.Size) {
	a.commitLimit = limit
	a.events.CommitLimitSet(limit)
}

// SetSpareCommitLimit sets the maximum spare-committed bytes retained.
func (a *Arena) SetSpareCommitLimit(limit addr.Size) {
	a.spareCommitLimit = limit
	a.events.SpareCommitLimitSet(limit)
	if a.spareCommitted > limit {
		released := a.backend.PurgeSpare(a.spareCommitted - limit)
		a.spareCommitted -= released
		a.recordMetrics()
	}
}

// checkCommitLimit returns ErrCommitLimit if committing an additional
// size bytes (net of whatever is already parked as spare) would exceed
// commitLimit. This check happens before the free land is ever
// consulted (SPEC_FULL.md §4.5.1).
func (a *Arena) checkCommitLimit(size addr.Size) error {
	delta := size
	if a.spareCommitted >= size {
		delta = 0
	} else {
		delta = size - a.spareCommitted
	}
	if a.committed+delta < a.committed || a.committed+delta > a.commitLimit {
		return errors.WithStack(memarena.ErrCommitLimit)
	}
	return nil
}

func (a *Arena) recordMetrics() {
	if a.metrics == nil {
		return
	}
	a.metrics.Reserved.Set(float64(a.Reserved()))
	a.metrics.Committed.Set(float64(a.committed))
	a.metrics.SpareCommitted.Set(float64(a.spareCommitted))
	a.metrics.Chunks.Set(float64(a.chunks.Len()))
}

// ---- Alloc / Free (SPEC_FULL.md §4.5, §6) ----

// Alloc finds and commits a range of size bytes (a multiple of
// GrainSize) matching pref, returning its base address. It runs Plans
// A-E (package policy) over the free land, asking the backend to grow
// the address space between Plan B and Plan D if neither found a fit.
func (a *Arena) Alloc(pref Locus, size addr.Size, owner tract.Owner) (addr.Addr, error) {
	assert.That(addr.SizeIsAligned(size, addr.Align(a.grainSize)), "arena: alloc size must be a multiple of grain size")

	if !a.zoned {
		// An unzoned arena has no zone discipline to preserve: every plan
		// searches the whole address space regardless of what the caller
		// asked for (_examples/original_source/code/arena.c: "if
		// (!arena->zoned) zones = ZoneSetUNIV;").
		pref.Zones = addr.ZoneSetUniv
		pref.Avoid = addr.ZoneSetEmpty
	}

	if err := a.checkCommitLimit(size); err != nil {
		a.events.ArenaAllocFail(size, err)
		if a.metrics != nil {
			a.metrics.AllocFailures.Inc()
		}
		return 0, err
	}

	var base addr.Addr
	var found bool

	try := func(zones addr.ZoneSet) (bool, error) {
		f, result, err := a.findInZonesWithLimitRetry(size, zones, pref.High)
		if err != nil {
			return false, err
		}
		if !f {
			return false, nil
		}
		b, allocErr := a.arenaAllocFromLand(result, owner)
		if allocErr != nil {
			return false, allocErr
		}
		base, found = b, true
		return true, nil
	}

	grow := func() (bool, error) {
		h, chunkRange, err := a.backend.Grow(size)
		if err != nil {
			return false, nil // RESOURCE/unsupported: fall through to Plans D/E, not fatal to the search
		}
		if err := a.addGrownChunk(h, chunkRange); err != nil {
			return false, err
		}
		return true, nil
	}

	ok, err := policy.Run(pref, func() addr.ZoneSet { return a.freeZones }, try, grow)
	if err != nil {
		a.events.ArenaAllocFail(size, err)
		if a.metrics != nil {
			a.metrics.AllocFailures.Inc()
		}
		return 0, err
	}
	if !ok {
		err := errors.WithStack(memarena.ErrResource)
		a.events.ArenaAllocFail(size, err)
		if a.metrics != nil {
			a.metrics.AllocFailures.Inc()
		}
		return 0, err
	}
	assert.That(found, "arena: policy reported success without recording a base")

	a.events.ArenaAlloc(base, size)
	if a.metrics != nil {
		a.metrics.Allocs.Inc()
	}
	return base, nil
}

// arenaAllocFromLand locates the chunk owning result, asks the backend
// to commit and populate the page table, clears result's zones from
// freeZones, updates the lastTract cache and rolls the land back on a
// commit failure (SPEC_FULL.md §4.5.2).
func (a *Arena) arenaAllocFromLand(result addr.Range, owner tract.Owner) (addr.Addr, error) {
	c, ok := a.chunks.Find(result.Base)
	assert.That(ok, "arena: allocated range's base not in any chunk")

	if _, err := a.deleteWithLimitRetry(result); err != nil {
		return 0, err
	}

	if err := a.backend.PagesMarkAllocated(c, result, owner); err != nil {
		if _, reErr := a.land.Insert(result, c.Base); reErr != nil {
			a.events.RollbackLeak(result, reErr)
		}
		return 0, err
	}

	a.committed += result.Size()
	a.freeZones = a.freeZones.Diff(addr.ZoneSetOfRange(a.zoneShift, result.Base, result.Limit))

	idx := c.IndexOfAddr(result.Base)
	a.lastTract = c.PageTable().At(idx)
	a.lastBase, a.lastLimit = result.Base, result.Limit

	a.recordMetrics()
	return result.Base, nil
}

// addGrownChunk wires a backend-grown chunk range into the chunk tree
// and free land (Plan C).
func (a *Arena) addGrownChunk(h class.ChunkHandle, rng addr.Range) error {
	c := chunk.New(rng.Base, rng.Limit, a.grainSize, 0, a.nextSerial())
	if err := a.backend.ChunkInit(h, c); err != nil {
		return err
	}
	a.chunkHandles[c] = h
	a.chunks.Insert(c)
	if err := a.insertWholeChunkFreeRange(rng, c.Base); err != nil {
		return err
	}
	a.recordMetrics()
	return nil
}

// Free inserts (base, size) back into the free land and invokes the
// backend's free hook (SPEC_FULL.md §4.5.3).
func (a *Arena) Free(base addr.Addr, size addr.Size, owner tract.Owner) {
	assert.That(addr.SizeIsAligned(size, addr.Align(a.grainSize)), "arena: free size must be a multiple of grain size")

	limit := addr.AddrAdd(base, size)
	if a.lastTract != nil && base < a.lastLimit && a.lastBase < limit {
		a.lastTract = nil
	}

	c, ok := a.chunks.Find(base)
	assert.That(ok, "arena: free of address not in any chunk")

	rng := addr.NewRange(base, limit)
	c.MarkFree(c.IndexOfAddr(base), c.SizeToPages(size))

	if _, err := a.arenaLandInsertSteal(rng, c.Base); err != nil {
		a.events.RollbackLeak(rng, err)
		return
	}

	// Only the newly freed sub-range's backing store is surrendered here;
	// any neighbour rng coalesced with in the free land already had its
	// own backing store released when it was freed.
	a.backend.Free(rng)
	a.committed -= size
	a.recordMetrics()

	a.events.ArenaFree(base, size)
	if a.metrics != nil {
		a.metrics.Frees.Inc()
	}
}

// Extend adds a caller-supplied contiguous region as a new chunk.
func (a *Arena) Extend(base addr.Addr, size addr.Size) error {
	h, err := a.backend.Extend(base, size)
	if err != nil {
		return err
	}
	rng := addr.NewRange(base, addr.AddrAdd(base, size))
	c := chunk.New(rng.Base, rng.Limit, a.grainSize, 0, a.nextSerial())
	a.chunkHandles[c] = h
	if err := a.backend.ChunkInit(h, c); err != nil {
		return err
	}
	a.chunks.Insert(c)
	if err := a.insertWholeChunkFreeRange(rng, c.Base); err != nil {
		return err
	}
	a.recordMetrics()
	a.events.ArenaExtend(base, size)
	return nil
}

// HasAddr reports whether addr lies within any chunk the arena owns.
func (a *Arena) HasAddr(q addr.Addr) bool {
	_, ok := a.chunks.Find(q)
	return ok
}

// AddrTract returns the tract descriptor for the grain containing q,
// consulting the lastTract cache first (SPEC_FULL.md §4.5.4).
func (a *Arena) AddrTract(q addr.Addr) (*tract.T, error) {
	if a.lastTract != nil && q >= a.lastBase && q < a.lastLimit {
		return a.lastTract, nil
	}
	c, ok := a.chunks.Find(q)
	if !ok {
		return nil, errors.WithStack(memarena.ErrFail)
	}
	return c.PageTable().At(c.IndexOfAddr(q)), nil
}

// ControlAlloc is a convenience wrapper over the arena's control pool.
func (a *Arena) ControlAlloc(size addr.Size) (addr.Addr, error) {
	assert.That(a.poolReady, "arena: control pool not yet initialized")
	return a.control.Alloc(size)
}

// ControlFree is a convenience wrapper over the arena's control pool.
func (a *Arena) ControlFree(base addr.Addr, size addr.Size) {
	a.control.Free(base, size)
}

// controlGrow feeds the control pool a fresh page via the arena's own
// allocation path (the control pool is initialized after the free land
// is alive, so it is simply another ArenaAlloc consumer, per
// SPEC_FULL.md §4.8).
func (a *Arena) controlGrow(minSize addr.Size) (addr.Addr, addr.Size, error) {
	size := addr.SizeAlignUp(minSize, addr.Align(a.grainSize))
	base, err := a.Alloc(Locus{Zones: addr.ZoneSetUniv, High: false}, size, controlPoolOwner{})
	if err != nil {
		return 0, 0, err
	}
	return base, size, nil
}

// controlPoolOwner identifies tracts backing the control pool.
type controlPoolOwner struct{}
