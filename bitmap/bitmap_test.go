package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetResetIsSet(t *testing.T) {
	b := New(128)
	assert.False(t, b.IsSet(5))
	b.Set(5)
	assert.True(t, b.IsSet(5))
	b.Reset(5)
	assert.False(t, b.IsSet(5))
}

func TestRangeOps(t *testing.T) {
	b := New(64)
	b.SetRange(10, 20)
	assert.True(t, b.IsSetRange(10, 20))
	assert.False(t, b.IsResetRange(10, 20))
	b.ResetRange(12, 14)
	assert.False(t, b.IsSetRange(10, 20))
	assert.True(t, b.IsResetRange(12, 14))
}

func TestFindShortResRange(t *testing.T) {
	b := New(32)
	b.SetRange(0, 5)
	base, limit, found := b.FindShortResRange(0, 32, 3)
	assert.True(t, found)
	assert.Equal(t, 5, base)
	assert.Equal(t, 8, limit)
}

func TestFindShortResRangeNoneFits(t *testing.T) {
	b := New(8)
	b.SetRange(0, 8)
	_, _, found := b.FindShortResRange(0, 8, 1)
	assert.False(t, found)
}

func TestFindLongResRangeLowVsHigh(t *testing.T) {
	b := New(40)
	// free runs at [0,10) and [20,40)
	b.SetRange(10, 20)
	lowBase, lowLimit, found := b.FindLongResRange(0, 40, 5, false)
	assert.True(t, found)
	assert.Equal(t, 0, lowBase)
	assert.Equal(t, 10, lowLimit)

	highBase, highLimit, found := b.FindLongResRange(0, 40, 5, true)
	assert.True(t, found)
	assert.Equal(t, 20, highBase)
	assert.Equal(t, 40, highLimit)
}
