package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavanmanishd/memarena/addr"
)

func TestPlanAHitSkipsEverythingElse(t *testing.T) {
	l := Locus{Zones: addr.Single(3), Avoid: addr.ZoneSetEmpty, High: false}
	var tried []addr.ZoneSet
	grew := false

	ok, err := Run(l, func() addr.ZoneSet { return addr.ZoneSetEmpty },
		func(zones addr.ZoneSet) (bool, error) {
			tried = append(tried, zones)
			return zones == addr.Single(3), nil
		},
		func() (bool, error) { grew = true; return true, nil },
	)

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []addr.ZoneSet{addr.Single(3)}, tried)
	assert.False(t, grew, "grow must not be called when Plan A already hits")
}

func TestPlanBWidensWithFreeZones(t *testing.T) {
	l := Locus{Zones: addr.Single(3), Avoid: addr.ZoneSetEmpty}
	free := addr.Single(7)
	var tried []addr.ZoneSet

	ok, err := Run(l, func() addr.ZoneSet { return free },
		func(zones addr.ZoneSet) (bool, error) {
			tried = append(tried, zones)
			return zones == addr.Single(3).Union(free), nil
		},
		func() (bool, error) { t.Fatal("grow must not be called when Plan B hits"); return false, nil },
	)

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []addr.ZoneSet{addr.Single(3), addr.Single(3).Union(free)}, tried)
}

func TestPlanCGrowsThenRetriesAAndB(t *testing.T) {
	l := Locus{Zones: addr.Single(3), Avoid: addr.ZoneSetEmpty}
	grown := false
	var tried []addr.ZoneSet

	ok, err := Run(l,
		func() addr.ZoneSet {
			if grown {
				return addr.Single(9)
			}
			return addr.ZoneSetEmpty
		},
		func(zones addr.ZoneSet) (bool, error) {
			tried = append(tried, zones)
			return grown && zones == addr.Single(3).Union(addr.Single(9)), nil
		},
		func() (bool, error) { grown = true; return true, nil },
	)

	assert.NoError(t, err)
	assert.True(t, ok)
	// Plan A, Plan B (pre-growth, freeZones empty so B == A), grow, then
	// Plan A and Plan B retried with the widened freeZones.
	assert.Equal(t, []addr.ZoneSet{
		addr.Single(3),
		addr.Single(3),
		addr.Single(3),
		addr.Single(3).Union(addr.Single(9)),
	}, tried)
}

func TestPlanDAndEAfterGrowFails(t *testing.T) {
	l := Locus{Zones: addr.Single(3), Avoid: addr.Single(5)}
	var tried []addr.ZoneSet

	ok, err := Run(l, func() addr.ZoneSet { return addr.ZoneSetEmpty },
		func(zones addr.ZoneSet) (bool, error) {
			tried = append(tried, zones)
			return zones == addr.ZoneSetUniv, nil // only Plan E (ignores avoid) hits
		},
		func() (bool, error) { return false, nil },
	)

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []addr.ZoneSet{
		planA(l),
		planB(l, addr.ZoneSetEmpty),
		planD(l),
		planE(),
	}, tried)
}

func TestRunExhaustsAllPlansAndFails(t *testing.T) {
	l := Locus{Zones: addr.Single(3)}
	ok, err := Run(l, func() addr.ZoneSet { return addr.ZoneSetEmpty },
		func(addr.ZoneSet) (bool, error) { return false, nil },
		func() (bool, error) { return true, nil },
	)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRunPropagatesTryError(t *testing.T) {
	l := Locus{Zones: addr.Single(3)}
	sentinel := errors.New("boom")
	ok, err := Run(l, func() addr.ZoneSet { return addr.ZoneSetEmpty },
		func(addr.ZoneSet) (bool, error) { return false, sentinel },
		nil,
	)
	assert.False(t, ok)
	assert.ErrorIs(t, err, sentinel)
}

func TestRunGrowFailureFallsThroughToDAndE(t *testing.T) {
	l := Locus{Zones: addr.Single(3)}
	var tried []addr.ZoneSet

	ok, err := Run(l, func() addr.ZoneSet { return addr.ZoneSetEmpty },
		func(zones addr.ZoneSet) (bool, error) {
			tried = append(tried, zones)
			return zones == addr.ZoneSetUniv, nil
		},
		func() (bool, error) { return false, nil }, // grow itself reports failure
	)

	assert.NoError(t, err)
	assert.True(t, ok)
	// Plan A, Plan B, then straight to D and E -- no growth retry of A/B
	// since grow reported ok=false.
	assert.Equal(t, []addr.ZoneSet{
		planA(l), planB(l, addr.ZoneSetEmpty), planD(l), planE(),
	}, tried)
}
