package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneOf(t *testing.T) {
	const shift = Shift(16)
	z0 := ZoneOf(0, shift)
	z1 := ZoneOf(Addr(1)<<shift, shift)
	assert.Equal(t, uint(0), z0)
	assert.Equal(t, uint(1), z1)
}

func TestZoneSetOfRangeSmall(t *testing.T) {
	const shift = Shift(16)
	stride := Addr(1) << shift
	zones := ZoneSetOfRange(shift, 0, stride)
	assert.Equal(t, Single(0), zones)

	zones2 := ZoneSetOfRange(shift, 0, stride*3)
	assert.True(t, zones2.Has(0))
	assert.True(t, zones2.Has(1))
	assert.True(t, zones2.Has(2))
	assert.False(t, zones2.Has(3))
}

func TestZoneSetOfRangeUniv(t *testing.T) {
	const shift = Shift(4) // tiny stride so ZoneWidth stripes is easy to exceed
	stride := Addr(1) << shift
	zones := ZoneSetOfRange(shift, 0, stride*Addr(ZoneWidth+1))
	assert.Equal(t, ZoneSetUniv, zones)
}

func TestZoneSetAlgebra(t *testing.T) {
	a := Single(1) | Single(2)
	b := Single(2) | Single(3)
	assert.Equal(t, Single(1)|Single(2)|Single(3), a.Union(b))
	assert.Equal(t, Single(1), a.Diff(b))
	assert.Equal(t, Single(2), a.Inter(b))
	assert.True(t, Single(1).SubsetOf(a))
	assert.False(t, a.SubsetOf(Single(1)))
}
