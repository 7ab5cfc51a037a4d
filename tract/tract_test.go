package tract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitFinish(t *testing.T) {
	var tr T
	owner := "poolA"
	tr.Init(0x1000, owner)
	assert.Equal(t, owner, tr.Owner())
	tr.Finish()
	assert.Nil(t, tr.Owner())
}

func TestTable(t *testing.T) {
	tbl := NewTable(4)
	assert.Equal(t, 4, tbl.Len())
	tbl.At(2).Init(0x2000, "poolB")
	assert.Equal(t, "poolB", tbl.At(2).Owner())
	assert.Nil(t, tbl.At(1).Owner())
}
