// Package policy implements the arena's zoned allocation policy: Plans
// A-E (SPEC_FULL.md §4.5.2). It is pure decision logic -- it knows
// nothing about the free land or the arena class, only how to turn a
// Locus preference and the set of not-yet-allocated zones into the
// ordered sequence of zone sets an allocation attempt should try, and
// when to ask for more address space in between.
package policy

import "github.com/pavanmanishd/memarena/addr"

// Locus is a caller's placement preference: try to land the allocation
// in zones, never in avoid, preferring the lowest address (high=false)
// or highest (high=true) fit within whatever zone set is tried.
type Locus struct {
	Zones addr.ZoneSet
	Avoid addr.ZoneSet
	High  bool
}

// planA is the caller's first choice: its preferred zones, minus
// whatever it asked to avoid.
func planA(l Locus) addr.ZoneSet {
	return l.Zones.Diff(l.Avoid)
}

// planB widens Plan A with every zone the arena has never yet allocated
// from, still honoring avoid: a fresh zone is always an acceptable
// fallback because nothing of a conflicting generation lives there yet.
func planB(l Locus, freeZones addr.ZoneSet) addr.ZoneSet {
	return planA(l).Union(freeZones.Diff(l.Avoid))
}

// planD tries every zone except avoid. This risks mixing generations in
// the same zone and may degrade the collector's zone check.
func planD(l Locus) addr.ZoneSet {
	return addr.ZoneSetUniv.Diff(l.Avoid)
}

// planE is the last resort: every zone, ignoring avoid entirely. This
// may pin garbage via ambiguous references permanently.
func planE() addr.ZoneSet {
	return addr.ZoneSetUniv
}

// PreGrowthZoneSets returns the zone sets Plans A and B try, in order,
// before the class is asked to grow the address space.
func PreGrowthZoneSets(l Locus, freeZones addr.ZoneSet) []addr.ZoneSet {
	return []addr.ZoneSet{planA(l), planB(l, freeZones)}
}

// PostGrowthZoneSets returns the zone sets Plans D and E try, in order,
// once Plan C's growth-and-retry of A and B has also failed.
//
// Plan C vs Plan D ordering is kept exactly as the source orders it
// (grow, then retry A and B, only then fall to D and E) -- the source
// flags this relationship as a known area of drift and explicitly warns
// against silently "fixing" it during a rewrite.
func PostGrowthZoneSets(l Locus) []addr.ZoneSet {
	return []addr.ZoneSet{planD(l), planE()}
}

// TryFunc attempts to satisfy the allocation within zones, preferring
// the high or low end per Locus.High. ok=false means the zone set had
// no fit; a non-nil error aborts the whole Run.
type TryFunc func(zones addr.ZoneSet) (ok bool, err error)

// GrowFunc asks the arena class to add address space (Plan C). ok=false
// means growth itself did not succeed (e.g. RESOURCE/COMMIT_LIMIT) and
// the search should fall straight to Plans D and E.
type GrowFunc func() (ok bool, err error)

// FreeZonesFunc returns the arena's current freeZones (zones never yet
// allocated from). Queried again after a successful grow, since growth
// may have introduced a chunk in a zone nothing had touched before.
type FreeZonesFunc func() addr.ZoneSet

// Run drives Plans A through E for locus l, calling try for each zone
// set the policy wants attempted and grow once, between Plan B and
// Plan D, if neither A nor B found a fit. It returns true as soon as
// try reports a hit, or false if every plan was exhausted. A non-nil
// error from try or from grow short-circuits Run immediately. Only
// grow reporting ok=false with a nil error sends the search on to
// Plans D and E.
func Run(l Locus, freeZones FreeZonesFunc, try TryFunc, grow GrowFunc) (bool, error) {
	if ok, err := tryAll(PreGrowthZoneSets(l, freeZones()), try); ok || err != nil {
		return ok, err
	}

	if grow != nil {
		if grown, err := grow(); err != nil {
			return false, err
		} else if grown {
			if ok, err := tryAll(PreGrowthZoneSets(l, freeZones()), try); ok || err != nil {
				return ok, err
			}
		}
	}

	return tryAll(PostGrowthZoneSets(l), try)
}

func tryAll(zoneSets []addr.ZoneSet, try TryFunc) (bool, error) {
	for _, zones := range zoneSets {
		ok, err := try(zones)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
