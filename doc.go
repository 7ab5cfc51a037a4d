// Package memarena implements the arena core of a memory pool manager:
// a zoned address-space allocator with a self-bootstrapping free-space
// index, modeled on the arena component of a tracing garbage collector
// (SPEC_FULL.md §1-§2).
//
// # Overview
//
// An Arena owns one or more chunks of address space, each divided into
// fixed-size grains. Clients request ranges via ArenaAlloc, optionally
// biased toward a set of zones (an address-bit equivalence class used
// by collectors to cheaply test "might this pointer be of interest");
// the arena consults its allocation policy (package policy, Plans A-E)
// and its free-space index (package land) to find a fit, then asks the
// concrete backend (package class, e.g. backend/vm or backend/client)
// to commit backing store for the pages found.
//
// # Packages
//
//   - addr: address, size and alignment arithmetic, ranges and zone sets.
//   - bitmap: a packed grain-allocation bitmap with free-run search.
//   - tract: per-grain page descriptors.
//   - chunk: contiguous backing regions and their ordered tree index.
//   - mfs: the fixed-size-block pool that stores free-land tree nodes.
//   - land: the zoned CBS, a coalescing interval index over free ranges.
//   - policy: the zoned allocation policy (Plans A-E).
//   - control: the arena's own variable-block metadata allocator.
//   - class: the arena class vtable, implemented by concrete backends.
//   - arena: the core that ties all of the above together.
//
// # Thread safety
//
// The core holds no internal locks and performs no I/O of its own; a
// single caller-held lock must serialize every public operation on one
// Arena (SPEC_FULL.md §5).
package memarena
