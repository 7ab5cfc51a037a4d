// Package bitmap implements the per-chunk grain allocation table (the
// "allocBitmap" of SPEC_FULL.md §3) and the short-resource-range search
// used to bootstrap the free land (§4.2, §4.3's BTFindShortResRange).
//
// Grounded on the bit-table (BT) primitive the original arena.c calls
// into (bt.h) and on the kernel-style bitmap allocators retrieved in the
// pack (e.g. page-frame bitmap allocators); expressed here with
// math/bits word scanning since no retrieved third-party library
// exposes this exact primitive (a resizable bit-vector with
// run-finding) as a dependency — see DESIGN.md.
package bitmap

import "math/bits"

const wordBits = bits.UintSize

// T is a fixed-length bitmap, one bit per grain.
type T struct {
	words []uint
	n     int
}

// New returns a bitmap of n bits, all clear (free).
func New(n int) *T {
	return &T{words: make([]uint, (n+wordBits-1)/wordBits), n: n}
}

// Len returns the number of bits in the bitmap.
func (b *T) Len() int { return b.n }

// Set marks bit i allocated.
func (b *T) Set(i int) {
	b.words[i/wordBits] |= 1 << (uint(i) % wordBits)
}

// Reset marks bit i free.
func (b *T) Reset(i int) {
	b.words[i/wordBits] &^= 1 << (uint(i) % wordBits)
}

// IsSet reports whether bit i is allocated.
func (b *T) IsSet(i int) bool {
	return b.words[i/wordBits]&(1<<(uint(i)%wordBits)) != 0
}

// SetRange marks [base, limit) allocated.
func (b *T) SetRange(base, limit int) {
	for i := base; i < limit; i++ {
		b.Set(i)
	}
}

// ResetRange marks [base, limit) free.
func (b *T) ResetRange(base, limit int) {
	for i := base; i < limit; i++ {
		b.Reset(i)
	}
}

// IsSetRange reports whether every bit in [base, limit) is allocated.
func (b *T) IsSetRange(base, limit int) bool {
	for i := base; i < limit; i++ {
		if !b.IsSet(i) {
			return false
		}
	}
	return true
}

// IsResetRange reports whether every bit in [base, limit) is free.
func (b *T) IsResetRange(base, limit int) bool {
	for i := base; i < limit; i++ {
		if b.IsSet(i) {
			return false
		}
	}
	return true
}

// FindShortResRange finds a run of exactly length free (reset) bits within
// [searchBase, searchLimit), scanning from the low end. It corresponds to
// BTFindShortResRange in the source: a simple linear scan adequate for
// the rarely-called bootstrap page allocator (SPEC_FULL.md §4.3).
func (b *T) FindShortResRange(searchBase, searchLimit, length int) (base, limit int, found bool) {
	if length <= 0 || searchLimit-searchBase < length {
		return 0, 0, false
	}
	run := 0
	for i := searchBase; i < searchLimit; i++ {
		if b.IsSet(i) {
			run = 0
			continue
		}
		run++
		if run == length {
			return i - length + 1, i + 1, true
		}
	}
	return 0, 0, false
}

// FindLongResRange finds a maximal run of free bits within
// [searchBase, searchLimit) that is at least length bits long: the
// highest-addressed such run when high is true, otherwise the lowest.
// Runs are chosen by position, not by size, and the whole run is
// returned.
func (b *T) FindLongResRange(searchBase, searchLimit, length int, high bool) (base, limit int, found bool) {
	bestBase, bestLimit := 0, 0
	i := searchBase
	for i < searchLimit {
		if b.IsSet(i) {
			i++
			continue
		}
		start := i
		for i < searchLimit && !b.IsSet(i) {
			i++
		}
		if i-start >= length {
			if !found {
				bestBase, bestLimit, found = start, i, true
			} else if high {
				bestBase, bestLimit = start, i
			}
			if !high {
				return start, i, true
			}
		}
	}
	return bestBase, bestLimit, found
}
