package mfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct {
	x int
}

func TestAllocExhaustsThenLimit(t *testing.T) {
	p := New[node](8)
	p.Extend(0x1000, 16) // 2 units
	a, err := p.Alloc()
	assert.NoError(t, err)
	assert.NotNil(t, a)
	b, err := p.Alloc()
	assert.NoError(t, err)
	assert.NotNil(t, b)

	_, err = p.Alloc()
	assert.ErrorIs(t, err, ErrLimit)
}

func TestFreeRecycles(t *testing.T) {
	p := New[node](8)
	p.Extend(0x1000, 8) // 1 unit
	a, err := p.Alloc()
	assert.NoError(t, err)
	a.x = 42

	p.Free(a)
	b, err := p.Alloc()
	assert.NoError(t, err)
	assert.Equal(t, 0, b.x, "recycled node must come back zeroed")
}

func TestExtendGrowsCapacity(t *testing.T) {
	p := New[node](16)
	assert.Equal(t, 0, p.Capacity())
	p.Extend(0x2000, 64)
	assert.Equal(t, 4, p.Capacity())
	assert.Equal(t, 1, p.Extends())
	assert.Equal(t, []int{1}, []int{len(p.Pages())})
}
