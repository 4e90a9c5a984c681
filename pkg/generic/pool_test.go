package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := NewHotPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset, 2)

	buf := p.Get()
	buf.WriteString("frame")
	p.Put(buf)
	assert.Zero(t, buf.Len())

	assert.NotNil(t, p.Get())
}

func TestPoolWithoutReset(t *testing.T) {
	calls := 0
	p := NewPool(func() []int { calls++; return make([]int, 0, 8) }, nil)

	s := p.Get()
	assert.Equal(t, 8, cap(s))
	assert.Equal(t, 1, calls)
	p.Put(s)
}
