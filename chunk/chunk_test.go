package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavanmanishd/memarena/addr"
)

func TestNewChunkHeaderReserved(t *testing.T) {
	c := New(0x10000, 0x20000, 0x1000, 2, 1)
	assert.Equal(t, 16, c.Pages())
	assert.True(t, c.AllocBitmap().IsSetRange(0, 2))
	assert.True(t, c.AllocBitmap().IsResetRange(2, 16))
}

func TestIndexOfAddrAndPageIndexBase(t *testing.T) {
	c := New(0x10000, 0x20000, 0x1000, 1, 1)
	idx := c.IndexOfAddr(0x13000)
	assert.Equal(t, 3, idx)
	assert.Equal(t, addr.Addr(0x13000), c.PageIndexBase(3))
}

func TestMarkAllocatedAndFree(t *testing.T) {
	c := New(0x10000, 0x14000, 0x1000, 1, 1)
	c.MarkAllocated(1, 2, "pool-a")
	assert.True(t, c.AllocBitmap().IsSetRange(1, 3))
	assert.Equal(t, "pool-a", c.PageTable().At(1).Owner())
	c.MarkFree(1, 2)
	assert.True(t, c.AllocBitmap().IsResetRange(1, 3))
	assert.Nil(t, c.PageTable().At(1).Owner())
}

func TestFindFreeGrainSkipsHeader(t *testing.T) {
	c := New(0x10000, 0x13000, 0x1000, 1, 1)
	idx, found := c.FindFreeGrain()
	assert.True(t, found)
	assert.Equal(t, 1, idx)
}
