package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPoolSizes(t *testing.T) {
	p := NewBufferPool(0)
	assert.Equal(t, DefaultBufferSize, p.Size())

	p = NewBufferPool(128)
	b := p.Get()
	assert.Len(t, b, 128)
	assert.Equal(t, int64(1), p.InUse())

	// A shortened slice comes back at full length.
	p.Put(b[:3])
	assert.Equal(t, int64(0), p.InUse())
	assert.Len(t, p.Get(), 128)
}

func TestBufferPoolDropsForeignBuffers(t *testing.T) {
	p := NewBufferPool(64)
	_ = p.Get()
	p.Put(make([]byte, 8))
	assert.Equal(t, int64(0), p.InUse())
	p.Put(nil)
	assert.Equal(t, int64(0), p.InUse())
	for i := 0; i < 4; i++ {
		assert.Len(t, p.Get(), 64)
	}
}

func TestSyncPool(t *testing.T) {
	created := 0
	sp := NewSyncPool(func() *int {
		created++
		v := created
		return &v
	})
	var _ ObjectPool[*int] = sp
	v := sp.Get()
	assert.NotNil(t, v)
	sp.Put(v)
	assert.GreaterOrEqual(t, created, 1)
}
