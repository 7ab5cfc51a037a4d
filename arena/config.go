package arena

import "github.com/pavanmanishd/memarena/addr"

// config collects the variadic configuration keys ArenaCreate accepts
// (SPEC_FULL.md §6). It is built from a functional-options slice rather
// than a typed key/value arg list: the idiomatic Go rendering of the
// source's C-varargs key mechanism.
type config struct {
	grainSize        addr.Size
	zoned            bool
	commitLimit      addr.Size
	spareCommitLimit addr.Size
	arenaSize        addr.Size
	nodePoolUnitSize addr.Size
}

// defaultConfig mirrors the source's documented defaults: no commit
// limit (effectively unlimited), no spare retained, a 4 KiB grain.
func defaultConfig() config {
	return config{
		grainSize:        4096,
		commitLimit:      addr.Size(^uintptr(0)),
		spareCommitLimit: 0,
		nodePoolUnitSize: 64,
	}
}

// Option configures an Arena at ArenaCreate time.
type Option func(*config)

// GrainSize sets the arena's grain size (the backend may reject or
// round this; 0 leaves the backend's default in force).
func GrainSize(s addr.Size) Option { return func(c *config) { c.grainSize = s } }

// Zoned enables zoned placement preferences (Plans A/B/D use the
// caller's zone/avoid sets meaningfully only when this is set; an
// unzoned arena still functions, every zone set simply means "any
// address").
func Zoned(zoned bool) Option { return func(c *config) { c.zoned = zoned } }

// CommitLimit sets the maximum bytes the arena may have committed at
// once.
func CommitLimit(s addr.Size) Option { return func(c *config) { c.commitLimit = s } }

// SpareCommitLimit sets the maximum bytes of freed-but-still-committed
// memory the arena may retain as spare.
func SpareCommitLimit(s addr.Size) Option { return func(c *config) { c.spareCommitLimit = s } }

// ArenaSize is a class-specific sizing hint (e.g. the virtual-memory
// backend's initial reservation size); backends that don't use it
// ignore it, per §6 "class-specific keys ... accepted but ignored on
// incompatible back-ends."
func ArenaSize(s addr.Size) Option { return func(c *config) { c.arenaSize = s } }

// NodePoolUnitSize overrides the size the CBS-block pool charges per
// free-land node, which sets how many nodes each donated grain provides;
// tests use this to fit several nodes into a small grain. Most callers
// never need it.
func NodePoolUnitSize(s addr.Size) Option { return func(c *config) { c.nodePoolUnitSize = s } }
