package addr

import "math/bits"

// ZoneWidth is the number of zones a ZoneSet can distinguish: one bit per
// zone, one word wide, per SPEC_FULL.md §3 ("W is the word bit-width").
const ZoneWidth = bits.UintSize

// ZoneSet is a bitmask over the fixed set of ZoneWidth zones.
type ZoneSet uint

const (
	// ZoneSetEmpty contains no zones.
	ZoneSetEmpty ZoneSet = 0
	// ZoneSetUniv contains every zone.
	ZoneSetUniv ZoneSet = ^ZoneSet(0)
)

// ZoneOf returns the zone that address a belongs to, given zoneShift.
func ZoneOf(a Addr, zoneShift Shift) uint {
	return uint(a>>zoneShift) % ZoneWidth
}

// Single returns the ZoneSet containing exactly zone z.
func Single(z uint) ZoneSet {
	return ZoneSet(1) << (z % ZoneWidth)
}

// Union returns the union of a and b.
func (z ZoneSet) Union(o ZoneSet) ZoneSet { return z | o }

// Diff returns the zones in z that are not in o.
func (z ZoneSet) Diff(o ZoneSet) ZoneSet { return z &^ o }

// Inter returns the zones common to z and o.
func (z ZoneSet) Inter(o ZoneSet) ZoneSet { return z & o }

// IsEmpty reports whether z contains no zones.
func (z ZoneSet) IsEmpty() bool { return z == ZoneSetEmpty }

// Has reports whether z contains zone zone.
func (z ZoneSet) Has(zone uint) bool { return z&Single(zone) != 0 }

// SubsetOf reports whether every zone in z is also in o.
func (z ZoneSet) SubsetOf(o ZoneSet) bool { return z&^o == 0 }

// ZoneSetOfRange returns the set of zones any address in [base, limit) may
// belong to (SPEC_FULL.md §4.1). For ranges spanning ZoneWidth or more
// stripes, every zone is touched and the result is ZoneSetUniv.
func ZoneSetOfRange(zoneShift Shift, base, limit Addr) ZoneSet {
	if base == limit {
		return ZoneSetEmpty
	}
	size := AddrOffset(base, limit)
	stride := Size(1) << zoneShift
	if Size(size) >= stride*Size(ZoneWidth) {
		return ZoneSetUniv
	}
	// Walk zone-stride boundaries from base's zone to (limit-1)'s zone.
	firstZone := ZoneOf(base, zoneShift)
	lastZone := ZoneOf(limit-1, zoneShift)
	var zones ZoneSet
	// Count of stripes touched, capped at ZoneWidth by the check above.
	firstStripe := Addr(base) >> zoneShift
	lastStripe := Addr(limit-1) >> zoneShift
	n := uint(lastStripe-firstStripe) + 1
	if n >= ZoneWidth {
		return ZoneSetUniv
	}
	z := firstZone
	for i := uint(0); i < n; i++ {
		zones |= Single(z)
		z = (z + 1) % ZoneWidth
	}
	_ = lastZone
	return zones
}
